// Package httpapi serves the read API and the watch create/update boundary.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/KasiaMirowska/shift-track/internal/globaltime"
	"github.com/KasiaMirowska/shift-track/internal/watch"
)

const (
	defaultPageSize   = 25
	maxPageSize       = 200
	defaultEventLimit = 50
	maxEventLimit     = 500
)

// WatchService is the create/update boundary. *watch.Service implements it.
type WatchService interface {
	CreateWatch(ctx context.Context, in watch.CreateInput) (watch.Result, error)
	UpdateWatch(ctx context.Context, in watch.UpdateInput) (watch.Result, error)
}

type Options struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type Server struct {
	store   Store
	watches WatchService
	logger  zerolog.Logger
	opts    Options
}

func NewServer(store Store, watches WatchService, logger zerolog.Logger, opts Options) *Server {
	if strings.TrimSpace(opts.Host) == "" {
		opts.Host = "0.0.0.0"
	}
	if opts.Port <= 0 {
		opts.Port = 8090
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 10 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 30 * time.Second
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	return &Server{store: store, watches: watches, logger: logger, opts: opts}
}

// Handler builds the echo instance with middleware and routes.
func (s *Server) Handler() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimit("64K"))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			event := s.logger.Info()
			msg := "http request"
			if v.Error != nil {
				event = s.logger.Error().Err(v.Error)
				msg = "http request failed"
			}
			event.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg(msg)
			return nil
		},
	}))

	api := e.Group("/api/v1")
	api.GET("/health", s.handleHealth)
	api.GET("/subjects", s.handleSubjects)
	api.GET("/subjects/:slug", s.handleSubjectDetail)
	api.GET("/ingestion-events", s.handleIngestionEvents)
	api.GET("/ingest-runs", s.handleIngestRuns)
	api.POST("/watches", s.handleCreateWatch)
	api.PUT("/watches/:watch_uuid", s.handleUpdateWatch)

	return e
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("server is not initialized")
	}

	e := s.Handler()
	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			s.logger.Error().Err(err).Msg("server shutdown failed")
		}
	}()

	s.logger.Info().Str("addr", addr).Msg("shifttrack api started")
	if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start server: %w", err)
	}
	s.logger.Info().Msg("shifttrack api stopped")
	return nil
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		if text, ok := he.Message.(string); ok && strings.TrimSpace(text) != "" {
			message = text
		} else if text := http.StatusText(status); text != "" {
			message = text
		}
	}

	if status >= 500 {
		_ = internalError(c, "Internal server error")
		return
	}
	_ = fail(c, status, message, nil)
}

func (s *Server) handleHealth(c echo.Context) error {
	dbStatus := "ok"
	if err := s.store.Ping(c.Request().Context()); err != nil {
		s.logger.Warn().Err(err).Msg("health check database ping failed")
		dbStatus = "unavailable"
	}
	return success(c, map[string]any{
		"service":  "shifttrack",
		"database": dbStatus,
		"time":     globaltime.UTC(),
	})
}

func (s *Server) handleSubjects(c echo.Context) error {
	items, err := s.store.ListSubjects(c.Request().Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("query subjects failed")
		return internalError(c, "Failed to load subjects")
	}
	return success(c, map[string]any{"items": items})
}

func (s *Server) handleSubjectDetail(c echo.Context) error {
	slug := strings.TrimSpace(c.Param("slug"))
	if slug == "" {
		return failValidation(c, map[string]string{"slug": "is required"})
	}

	page, err := parsePositiveInt(c.QueryParam("page"), 1, 1, 1_000_000)
	if err != nil {
		return failValidation(c, map[string]string{"page": err.Error()})
	}
	pageSize, err := parsePositiveInt(c.QueryParam("page_size"), defaultPageSize, 1, maxPageSize)
	if err != nil {
		return failValidation(c, map[string]string{"page_size": err.Error()})
	}

	detail, err := s.store.SubjectDetail(c.Request().Context(), slug, page, pageSize)
	if err != nil {
		if errors.Is(err, errSubjectNotFound) {
			return failNotFound(c, "Subject not found")
		}
		s.logger.Error().Err(err).Str("slug", slug).Msg("query subject detail failed")
		return internalError(c, "Failed to load subject")
	}

	totalPages := 0
	if detail.TotalSources > 0 {
		totalPages = int((detail.TotalSources + int64(pageSize) - 1) / int64(pageSize))
	}
	return success(c, map[string]any{
		"subject": detail.Subject,
		"watches": detail.Watches,
		"sources": detail.Sources,
		"pagination": map[string]any{
			"page":        page,
			"page_size":   pageSize,
			"total_items": detail.TotalSources,
			"total_pages": totalPages,
		},
	})
}

func (s *Server) handleIngestionEvents(c echo.Context) error {
	limit, err := parsePositiveInt(c.QueryParam("limit"), defaultEventLimit, 1, maxEventLimit)
	if err != nil {
		return failValidation(c, map[string]string{"limit": err.Error()})
	}
	status := strings.ToLower(strings.TrimSpace(c.QueryParam("status")))
	if status != "" && status != "inserted" && status != "matched" {
		return failValidation(c, map[string]string{"status": "must be inserted or matched"})
	}

	items, err := s.store.ListIngestionEvents(c.Request().Context(), limit, status)
	if err != nil {
		s.logger.Error().Err(err).Msg("query ingestion events failed")
		return internalError(c, "Failed to load ingestion events")
	}
	return success(c, map[string]any{"items": items, "limit": limit})
}

func (s *Server) handleIngestRuns(c echo.Context) error {
	limit, err := parsePositiveInt(c.QueryParam("limit"), 20, 1, 200)
	if err != nil {
		return failValidation(c, map[string]string{"limit": err.Error()})
	}

	items, err := s.store.ListIngestRuns(c.Request().Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("query ingest runs failed")
		return internalError(c, "Failed to load ingest runs")
	}
	return success(c, map[string]any{"items": items, "limit": limit})
}

type createWatchRequest struct {
	SubjectID   int64    `json:"subject_id"`
	SubjectName string   `json:"subject_name"`
	SubjectType string   `json:"subject_type"`
	Query       string   `json:"query"`
	FeedURLs    []string `json:"feed_urls"`
}

type updateWatchRequest struct {
	Query    string   `json:"query"`
	Enabled  *bool    `json:"enabled"`
	FeedURLs []string `json:"feed_urls"`
}

func (s *Server) handleCreateWatch(c echo.Context) error {
	if s.watches == nil {
		return internalError(c, "Watch service unavailable")
	}

	var req createWatchRequest
	if err := c.Bind(&req); err != nil {
		return failValidation(c, map[string]string{"body": "must be a JSON object"})
	}
	if req.SubjectID <= 0 && strings.TrimSpace(req.SubjectName) == "" {
		return failValidation(c, map[string]string{"subject": "subject_id or subject_name is required"})
	}
	if _, err := watch.ParseSubjectType(req.SubjectType); err != nil {
		return failValidation(c, map[string]string{"subject_type": "must be PERSON, ORGANIZATION, POLICY or TOPIC"})
	}

	result, err := s.watches.CreateWatch(c.Request().Context(), watch.CreateInput{
		SubjectID:   req.SubjectID,
		SubjectName: req.SubjectName,
		SubjectType: req.SubjectType,
		Query:       req.Query,
		FeedURLs:    req.FeedURLs,
	})
	if err != nil {
		return s.watchError(c, err, "create")
	}
	return created(c, result)
}

func (s *Server) handleUpdateWatch(c echo.Context) error {
	if s.watches == nil {
		return internalError(c, "Watch service unavailable")
	}

	watchUUID := strings.TrimSpace(c.Param("watch_uuid"))
	if watchUUID == "" {
		return failValidation(c, map[string]string{"watch_uuid": "is required"})
	}

	var req updateWatchRequest
	if err := c.Bind(&req); err != nil {
		return failValidation(c, map[string]string{"body": "must be a JSON object"})
	}

	result, err := s.watches.UpdateWatch(c.Request().Context(), watch.UpdateInput{
		WatchUUID: watchUUID,
		Query:     req.Query,
		Enabled:   req.Enabled,
		FeedURLs:  req.FeedURLs,
	})
	if err != nil {
		return s.watchError(c, err, "update")
	}
	return success(c, result)
}

func (s *Server) watchError(c echo.Context, err error, op string) error {
	switch {
	case errors.Is(err, watch.ErrSubjectNotFound):
		return failNotFound(c, "Subject not found")
	case errors.Is(err, watch.ErrWatchNotFound):
		return failNotFound(c, "Watch not found")
	case errors.Is(err, watch.ErrInvalidInput):
		return failValidation(c, map[string]string{"watch": err.Error()})
	default:
		s.logger.Error().Err(err).Str("op", op).Msg("watch request failed")
		return internalError(c, "Failed to "+op+" watch")
	}
}

func parsePositiveInt(raw string, defaultValue, minValue, maxValue int) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("must be an integer")
	}
	if value < minValue || value > maxValue {
		return 0, fmt.Errorf("must be between %d and %d", minValue, maxValue)
	}
	return value, nil
}
