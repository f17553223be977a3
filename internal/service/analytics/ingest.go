package analytics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"quicksend/internal/domain"
	"quicksend/internal/domain/repositories"
	"quicksend/internal/domain/services"
	"quicksend/internal/metrics"
)

// ingestService implements services.IngestService
type ingestService struct {
	catalog *Catalog
	events  repositories.EventRepository
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewIngestService creates an ingest service writing to events.
// A nil events repository means the store is not configured; every
// valid submission then fails with server_misconfigured.
func NewIngestService(
	catalog *Catalog,
	events repositories.EventRepository,
	m *metrics.Metrics,
	logger *slog.Logger,
) services.IngestService {
	return &ingestService{
		catalog: catalog,
		events:  events,
		metrics: m,
		logger:  logger,
	}
}

// Ingest validates the body and performs exactly one insert
func (s *ingestService) Ingest(ctx context.Context, body []byte, headers http.Header) error {
	row, err := s.catalog.Normalize(body, headers)
	if err != nil {
		return err
	}

	if s.events == nil {
		return domain.NewIngestError(domain.KindServerMisconfigured, domain.ErrMisconfigured)
	}

	start := time.Now()
	err = s.events.Insert(ctx, row)
	s.metrics.IngestInsertDuration.WithLabelValues(s.events.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		ingestErr := domain.NewIngestError(domain.KindInsertFailed, err)
		var insertErr *repositories.InsertError
		if errors.As(err, &insertErr) {
			ingestErr.Details = insertErr.Details
		}
		s.logger.Error("analytics insert failed",
			"sink", s.events.Name(),
			"event_name", row.EventName,
			"error", err,
		)
		return ingestErr
	}

	s.logger.Debug("analytics event stored",
		"sink", s.events.Name(),
		"event_name", row.EventName,
		"installation_id", row.InstallationID,
	)
	return nil
}
