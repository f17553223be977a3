package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime"
	"sync"
	"time"

	"quicksend/internal/metrics"
)

// IngestPath is where the ingest function is served, relative to the Supabase URL
const IngestPath = "/functions/v1/quicksend-analytics-ingest"

const trackerPostTimeout = 2 * time.Second

// TrackerConfig configures the outbound tracker
type TrackerConfig struct {
	Enabled        bool
	SupabaseURL    string
	AnonKey        string
	QueueSize      int
	InstallationID string
	SessionID      string
	AppVersion     string
	IsFrozen       bool
	HTTPClient     *http.Client
}

// trackedEvent is the ingest payload
type trackedEvent struct {
	EventName      string                 `json:"event_name"`
	InstallationID string                 `json:"installation_id"`
	SessionID      string                 `json:"session_id"`
	AppVersion     string                 `json:"app_version"`
	Platform       string                 `json:"platform"`
	IsFrozen       bool                   `json:"is_frozen"`
	Props          map[string]interface{} `json:"props"`
}

// Tracker posts this process's analytics events to the ingest function from
// a single background worker. Track never blocks; when the queue is full the
// event is dropped.
type Tracker struct {
	cfg      TrackerConfig
	endpoint string
	client   *http.Client
	metrics  *metrics.Metrics
	logger   *slog.Logger

	mu      sync.RWMutex
	queue   chan trackedEvent
	closed  bool
	started bool
	done    chan struct{}
}

// NewTracker creates a tracker. It is inert unless enabled with both a
// Supabase URL and an anon key.
func NewTracker(cfg TrackerConfig, m *metrics.Metrics, logger *slog.Logger) *Tracker {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 200
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: trackerPostTimeout}
	}
	return &Tracker{
		cfg:      cfg,
		endpoint: cfg.SupabaseURL + IngestPath,
		client:   client,
		metrics:  m,
		logger:   logger.With("component", "analytics-tracker"),
		queue:    make(chan trackedEvent, cfg.QueueSize),
		done:     make(chan struct{}),
	}
}

// Enabled reports whether events are sent anywhere
func (t *Tracker) Enabled() bool {
	return t.cfg.Enabled && t.cfg.SupabaseURL != "" && t.cfg.AnonKey != ""
}

// Start launches the worker. Posts use ctx; cancelling it fails pending posts
// fast but the queue is still drained.
func (t *Tracker) Start(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started || t.closed {
		return
	}
	t.started = true

	go func() {
		defer close(t.done)
		for ev := range t.queue {
			if err := t.post(ctx, ev); err != nil {
				t.metrics.TrackerEventsTotal.WithLabelValues("failed").Inc()
				t.logger.Debug("analytics post failed", "event_name", ev.EventName, "error", err)
				continue
			}
			t.metrics.TrackerEventsTotal.WithLabelValues("sent").Inc()
		}
	}()
	t.logger.Info("analytics tracker started", "queue_size", cap(t.queue), "enabled", t.Enabled())
}

// Track enqueues an event. Safe for concurrent use.
func (t *Tracker) Track(eventName string, props map[string]interface{}) {
	if !t.Enabled() {
		return
	}
	if props == nil {
		props = map[string]interface{}{}
	}
	ev := trackedEvent{
		EventName:      eventName,
		InstallationID: t.cfg.InstallationID,
		SessionID:      t.cfg.SessionID,
		AppVersion:     t.cfg.AppVersion,
		Platform:       Platform(),
		IsFrozen:       t.cfg.IsFrozen,
		Props:          props,
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return
	}
	select {
	case t.queue <- ev:
	default:
		t.metrics.TrackerEventsTotal.WithLabelValues("dropped").Inc()
		t.logger.Warn("analytics event dropped (queue full)", "event_name", eventName)
	}
}

// Close stops accepting events and waits for the queue to drain or ctx to end
func (t *Tracker) Close(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	close(t.queue)
	started := t.started
	t.mu.Unlock()

	if !started {
		return nil
	}
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Tracker) post(ctx context.Context, ev trackedEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, trackerPostTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apikey", t.cfg.AnonKey)
	req.Header.Set("Authorization", "Bearer "+t.cfg.AnonKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ingest responded %d", resp.StatusCode)
	}
	return nil
}

// Platform is the short OS name reported with every event
func Platform() string {
	switch runtime.GOOS {
	case "darwin":
		return "darwin"
	case "windows":
		return "win"
	default:
		return "linux"
	}
}
