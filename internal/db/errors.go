package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// DescribeError flattens a Postgres error into a one-line diagnostic.
// Non-Postgres errors are returned as their message.
func DescribeError(err error) string {
	if err == nil {
		return ""
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err.Error()
	}

	parts := []string{fmt.Sprintf("code=%s", pgErr.Code), fmt.Sprintf("message=%q", pgErr.Message)}
	if pgErr.ConstraintName != "" {
		parts = append(parts, "constraint="+pgErr.ConstraintName)
	}
	if pgErr.ColumnName != "" {
		parts = append(parts, "column="+pgErr.ColumnName)
	}
	if pgErr.Detail != "" {
		parts = append(parts, fmt.Sprintf("detail=%q", pgErr.Detail))
	}
	return strings.Join(parts, " ")
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
