package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// envelope is a jsend response body.
type envelope struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

func success(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, envelope{Status: "success", Data: data})
}

func created(c echo.Context, data any) error {
	return c.JSON(http.StatusCreated, envelope{Status: "success", Data: data})
}

func fail(c echo.Context, code int, message string, data any) error {
	return c.JSON(code, envelope{Status: "fail", Message: message, Data: data})
}

func failValidation(c echo.Context, fieldErrors map[string]string) error {
	return fail(c, http.StatusBadRequest, "Validation failed", map[string]any{
		"validation_errors": fieldErrors,
	})
}

func failNotFound(c echo.Context, message string) error {
	return fail(c, http.StatusNotFound, message, nil)
}

func internalError(c echo.Context, message string) error {
	return c.JSON(http.StatusInternalServerError, envelope{
		Status:  "error",
		Message: message,
		Code:    http.StatusInternalServerError,
	})
}
