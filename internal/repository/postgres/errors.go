package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// isPgDuplicateError checks if error is a unique constraint violation (23505)
func isPgDuplicateError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// isPgNoRowsError checks if error is a "no rows" error
func isPgNoRowsError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// pgErrorDetails extracts the diagnostics Postgres attached to err, if any
func pgErrorDetails(err error) map[string]interface{} {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return nil
	}
	details := map[string]interface{}{
		"code":    pgErr.Code,
		"message": pgErr.Message,
	}
	if pgErr.Hint != "" {
		details["hint"] = pgErr.Hint
	}
	if pgErr.Detail != "" {
		details["detail"] = pgErr.Detail
	}
	return details
}
