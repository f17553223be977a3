package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quicksend/internal/domain/models"
	"quicksend/internal/domain/repositories"
	"quicksend/internal/metrics"
	"quicksend/internal/service/analytics"
)

const testAnonKey = "anon-key"

type recordingEvents struct {
	mu   sync.Mutex
	rows []*models.EventRow
	err  error
}

func (f *recordingEvents) Insert(_ context.Context, row *models.EventRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, row)
	return nil
}

func (f *recordingEvents) Name() string { return "recording" }

func (f *recordingEvents) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

// panickingService blows up inside Ingest
type panickingService struct{}

func (panickingService) Ingest(context.Context, []byte, http.Header) error {
	panic("store exploded")
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newIngestHandler(t *testing.T, events repositories.EventRepository, keys ...string) (*AnalyticsIngestHandler, *metrics.Metrics) {
	t.Helper()
	catalog, err := analytics.LoadCatalog()
	require.NoError(t, err)
	m := metrics.New(nil)
	svc := analytics.NewIngestService(catalog, events, m, testLogger())
	return NewAnalyticsIngestHandler(svc, keys, m, testLogger()), m
}

func post(h http.Handler, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, analytics.IngestPath, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), "body: %s", rec.Body.String())
	return body
}

var validInstall = `{"event_name":"install","installation_id":"abc"}`

func TestIngest_Success(t *testing.T) {
	events := &recordingEvents{}
	h, m := newIngestHandler(t, events, testAnonKey)

	rec := post(h, validInstall, map[string]string{"apikey": testAnonKey})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	require.Equal(t, 1, events.count())
	assert.Equal(t, "install", events.rows[0].EventName)
	assert.Equal(t, "abc", events.rows[0].InstallationID)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.IngestEventsTotal.WithLabelValues("ok")))
}

func TestIngest_BearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "bearer", header: "Bearer " + testAnonKey, want: http.StatusOK},
		{name: "lowercase scheme", header: "bearer " + testAnonKey, want: http.StatusOK},
		{name: "wrong token", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "no scheme", header: testAnonKey, want: http.StatusUnauthorized},
		{name: "basic scheme", header: "Basic " + testAnonKey, want: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newIngestHandler(t, &recordingEvents{}, testAnonKey)
			rec := post(h, validInstall, map[string]string{"Authorization": tt.header})
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestIngest_SecondAnonKeyAccepted(t *testing.T) {
	h, _ := newIngestHandler(t, &recordingEvents{}, "supabase-anon", " qs-anon ")

	rec := post(h, validInstall, map[string]string{"apikey": "qs-anon"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestIngest_UnauthorizedRegardlessOfPayload(t *testing.T) {
	bodies := []string{validInstall, `{`, `{"event_name":"bogus"}`, ""}
	headers := []map[string]string{
		{},
		{"apikey": "wrong"},
		{"Authorization": "Bearer wrong"},
		{"apikey": ""},
	}

	for _, body := range bodies {
		for _, hdr := range headers {
			events := &recordingEvents{}
			h, _ := newIngestHandler(t, events, testAnonKey)
			rec := post(h, body, hdr)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, map[string]interface{}{"error": "unauthorized"}, decode(t, rec))
			assert.Zero(t, events.count())
		}
	}
}

func TestIngest_MissingAnonKeyFailsClosed(t *testing.T) {
	events := &recordingEvents{}
	h, _ := newIngestHandler(t, events, "", "  ")

	rec := post(h, validInstall, map[string]string{"apikey": ""})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, map[string]interface{}{"error": "server_misconfigured"}, decode(t, rec))
	assert.Zero(t, events.count())
}

func TestIngest_Options(t *testing.T) {
	h, _ := newIngestHandler(t, &recordingEvents{})

	req := httptest.NewRequest(http.MethodOptions, analytics.IngestPath, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestIngest_MethodNotAllowed(t *testing.T) {
	h, _ := newIngestHandler(t, &recordingEvents{}, testAnonKey)

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete, http.MethodPatch} {
		req := httptest.NewRequest(method, analytics.IngestPath, nil)
		req.Header.Set("apikey", testAnonKey)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, method)
		assert.Equal(t, map[string]interface{}{"error": "method_not_allowed"}, decode(t, rec))
	}
}

func TestIngest_ClientErrors(t *testing.T) {
	bigProps := `{"blob":"` + strings.Repeat("x", 16000) + `"}`

	tests := []struct {
		name     string
		body     string
		wantCode int
		wantKind string
	}{
		{name: "invalid json", body: `{"event_name":`, wantCode: http.StatusBadRequest, wantKind: "invalid_json"},
		{name: "bogus event", body: `{"event_name":"bogus","installation_id":"abc"}`, wantCode: http.StatusBadRequest, wantKind: "invalid_event"},
		{name: "missing installation", body: `{"event_name":"install"}`, wantCode: http.StatusBadRequest, wantKind: "missing_installation_id"},
		{name: "props too large", body: `{"event_name":"install","installation_id":"abc","props":` + bigProps + `}`, wantCode: http.StatusRequestEntityTooLarge, wantKind: "props_too_large"},
		{name: "body over limit", body: `{"pad":"` + strings.Repeat("p", 1<<20) + `"}`, wantCode: http.StatusRequestEntityTooLarge, wantKind: "props_too_large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := &recordingEvents{}
			h, m := newIngestHandler(t, events, testAnonKey)

			rec := post(h, tt.body, map[string]string{"apikey": testAnonKey})

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, map[string]interface{}{"error": tt.wantKind}, decode(t, rec))
			assert.Zero(t, events.count(), "no store call for rejected events")
			assert.Equal(t, float64(1), testutil.ToFloat64(m.IngestEventsTotal.WithLabelValues(tt.wantKind)))
		})
	}
}

func TestIngest_NoStoreConfigured(t *testing.T) {
	h, _ := newIngestHandler(t, nil, testAnonKey)

	rec := post(h, validInstall, map[string]string{"apikey": testAnonKey})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, map[string]interface{}{"error": "server_misconfigured"}, decode(t, rec))
}

func TestIngest_InsertFailed(t *testing.T) {
	events := &recordingEvents{err: &repositories.InsertError{
		Details: map[string]interface{}{"status": 400, "body": "bad row"},
		Err:     errors.New("rpc responded 400"),
	}}
	h, _ := newIngestHandler(t, events, testAnonKey)

	rec := post(h, validInstall, map[string]string{"apikey": testAnonKey})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"insert_failed","details":{"status":400,"body":"bad row"}}`, rec.Body.String())
}

func TestIngest_DuplicatesProduceTwoRows(t *testing.T) {
	events := &recordingEvents{}
	h, _ := newIngestHandler(t, events, testAnonKey)

	for i := 0; i < 2; i++ {
		rec := post(h, validInstall, map[string]string{"apikey": testAnonKey})
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, 2, events.count())
}

func TestIngest_GeoHeaderEnrichment(t *testing.T) {
	events := &recordingEvents{}
	h, _ := newIngestHandler(t, events, testAnonKey)

	rec := post(h, validInstall, map[string]string{"apikey": testAnonKey, "CF-IPCountry": "de"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, events.count())
	assert.JSONEq(t, `"DE"`, string(events.rows[0].Props["geo_country"]))
}

func TestIngest_ConcurrentRequests(t *testing.T) {
	events := &recordingEvents{}
	h, _ := newIngestHandler(t, events, testAnonKey)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			post(h, validInstall, map[string]string{"apikey": testAnonKey})
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, events.count())
}

func TestIngest_PanicBecomesInternalError(t *testing.T) {
	m := metrics.New(nil)
	h := NewAnalyticsIngestHandler(panickingService{}, []string{testAnonKey}, m, testLogger())

	rec := post(h, validInstall, map[string]string{"apikey": testAnonKey})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, map[string]interface{}{"error": "internal_error", "message": "store exploded"}, decode(t, rec))
}

func TestIngest_OversizedBodyLoggedApartFromLargeProps(t *testing.T) {
	var logs bytes.Buffer
	catalog, err := analytics.LoadCatalog()
	require.NoError(t, err)
	m := metrics.New(nil)
	logger := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	svc := analytics.NewIngestService(catalog, &recordingEvents{}, m, logger)
	h := NewAnalyticsIngestHandler(svc, []string{testAnonKey}, m, logger)
	auth := map[string]string{"apikey": testAnonKey}

	rec := post(h, `{"pad":"`+strings.Repeat("p", 1<<20)+`"}`, auth)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, logs.String(), `"msg":"request body over limit"`)
	assert.Contains(t, logs.String(), `"limit_bytes":1048576`)
	assert.Contains(t, logs.String(), "request body exceeds 1048576 bytes")

	logs.Reset()
	rec = post(h, `{"event_name":"install","installation_id":"abc","props":{"blob":"`+strings.Repeat("x", 16000)+`"}}`, auth)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.NotContains(t, logs.String(), "request body over limit")
	assert.Contains(t, logs.String(), "props is")
}
