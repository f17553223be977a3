package repositories

import (
	"context"

	"quicksend/internal/domain/models"
)

// EventRepository is a backing store for analytics rows.
// Insert performs exactly one write and never retries.
type EventRepository interface {
	Insert(ctx context.Context, row *models.EventRow) error

	// Name identifies the store in logs and metrics
	Name() string
}

// InsertError is returned by EventRepository.Insert when the store rejected
// the row. Details carries whatever structured diagnostics the store returned.
type InsertError struct {
	Details map[string]interface{}
	Err     error
}

func (e *InsertError) Error() string {
	if e.Err != nil {
		return "insert failed: " + e.Err.Error()
	}
	return "insert failed"
}

func (e *InsertError) Unwrap() error { return e.Err }
