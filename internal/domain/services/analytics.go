package services

import (
	"context"
	"net/http"
)

// IngestService validates, enriches and stores one analytics event
type IngestService interface {
	// Ingest normalizes body and writes it to the store. Errors are
	// *domain.IngestError values carrying the wire error kind.
	Ingest(ctx context.Context, body []byte, headers http.Header) error
}
