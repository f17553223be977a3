package handler

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"quicksend/internal/domain"
	"quicksend/internal/domain/services"
	"quicksend/internal/httputil"
	"quicksend/internal/metrics"
)

const (
	outcomeOK       = "ok"
	maxPanicMessage = 400
	bearerPrefix    = "bearer "
)

// AnalyticsIngestHandler serves the analytics ingest function.
// It holds no per-request state and is safe for concurrent use.
type AnalyticsIngestHandler struct {
	service  services.IngestService
	anonKeys [][]byte
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewAnalyticsIngestHandler creates the ingest handler. anonKeys are the
// caller-facing secrets; with none configured every POST fails closed.
func NewAnalyticsIngestHandler(
	service services.IngestService,
	anonKeys []string,
	m *metrics.Metrics,
	logger *slog.Logger,
) *AnalyticsIngestHandler {
	keys := make([][]byte, 0, len(anonKeys))
	for _, k := range anonKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, []byte(k))
		}
	}
	return &AnalyticsIngestHandler{
		service:  service,
		anonKeys: keys,
		metrics:  m,
		logger:   logger.With("component", "analytics-ingest"),
	}
}

// ServeHTTP handles one event submission
// OPTIONS /functions/v1/quicksend-analytics-ingest → 204
// POST /functions/v1/quicksend-analytics-ingest → {"ok":true}
func (h *AnalyticsIngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			message := httputil.TruncateRunes(fmt.Sprint(rec), maxPanicMessage)
			h.logger.Error("panic during ingest", "error", message)
			h.metrics.IngestEventsTotal.WithLabelValues(domain.KindInternal).Inc()
			httputil.RespondUncached(w, http.StatusInternalServerError, map[string]interface{}{
				"error":   domain.KindInternal,
				"message": message,
			})
		}
	}()

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodPost {
		h.fail(w, domain.NewIngestError(domain.KindMethodNotAllowed, fmt.Errorf("method %s", r.Method)))
		return
	}

	if len(h.anonKeys) == 0 {
		h.fail(w, domain.NewIngestError(domain.KindServerMisconfigured, fmt.Errorf("no anon key configured: %w", domain.ErrMisconfigured)))
		return
	}
	if !h.authorized(r) {
		h.fail(w, domain.NewIngestError(domain.KindUnauthorized, domain.ErrUnauthorized))
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, httputil.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			// rejected before parsing, so the props size is unknown
			h.logger.Warn("request body over limit",
				"limit_bytes", tooLarge.Limit,
				"content_length", r.ContentLength,
			)
			h.fail(w, domain.NewIngestError(domain.KindPropsTooLarge,
				fmt.Errorf("request body exceeds %d bytes: %w", tooLarge.Limit, err)))
			return
		}
		h.fail(w, domain.NewIngestError(domain.KindInvalidJSON, err))
		return
	}

	if err := h.service.Ingest(r.Context(), body, r.Header); err != nil {
		var ingestErr *domain.IngestError
		if !errors.As(err, &ingestErr) {
			ingestErr = domain.NewIngestError(domain.KindInsertFailed, err)
		}
		h.fail(w, ingestErr)
		return
	}

	h.metrics.IngestEventsTotal.WithLabelValues(outcomeOK).Inc()
	httputil.RespondUncached(w, http.StatusOK, map[string]bool{"ok": true})
}

// authorized reports whether the apikey header or the bearer token matches
// a configured anon key
func (h *AnalyticsIngestHandler) authorized(r *http.Request) bool {
	apikey := r.Header.Get("apikey")

	bearer := ""
	if auth := r.Header.Get("Authorization"); len(auth) >= len(bearerPrefix) &&
		strings.EqualFold(auth[:len(bearerPrefix)], bearerPrefix) {
		bearer = auth[len(bearerPrefix):]
	}

	ok := false
	for _, key := range h.anonKeys {
		if apikey != "" && subtle.ConstantTimeCompare([]byte(apikey), key) == 1 {
			ok = true
		}
		if bearer != "" && subtle.ConstantTimeCompare([]byte(bearer), key) == 1 {
			ok = true
		}
	}
	return ok
}

func (h *AnalyticsIngestHandler) fail(w http.ResponseWriter, err *domain.IngestError) {
	h.metrics.IngestEventsTotal.WithLabelValues(err.Kind).Inc()
	if err.Status >= http.StatusInternalServerError {
		h.logger.Error("ingest failed", "kind", err.Kind, "error", err)
	} else {
		h.logger.Debug("ingest rejected", "kind", err.Kind, "error", err)
	}
	httputil.RespondUncached(w, err.Status, err.Body())
}
