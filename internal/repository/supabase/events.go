package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"quicksend/internal/config"
	"quicksend/internal/domain"
	"quicksend/internal/domain/models"
	"quicksend/internal/domain/repositories"
	"quicksend/internal/httputil"
)

// InsertEventRPC is the PostgREST function that stores one analytics row
const InsertEventRPC = "qs_analytics_insert_event"

// EventRepository inserts analytics rows through a Supabase RPC call,
// authenticated with the service role key.
type EventRepository struct {
	supabaseURL string
	serviceKey  string
	httpClient  *http.Client
}

// NewEventRepository creates an RPC-backed event repository.
// Both the project URL and the service role key are required.
func NewEventRepository(supabaseURL, serviceKey string, client *http.Client) (*EventRepository, error) {
	supabaseURL = strings.TrimRight(supabaseURL, "/")
	if supabaseURL == "" || serviceKey == "" {
		return nil, fmt.Errorf("supabase url and service role key are required: %w", domain.ErrMisconfigured)
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &EventRepository{
		supabaseURL: supabaseURL,
		serviceKey:  serviceKey,
		httpClient:  client,
	}, nil
}

var _ repositories.EventRepository = (*EventRepository)(nil)

// Name implements repositories.EventRepository
func (r *EventRepository) Name() string { return config.SinkRPC }

type insertEventRequest struct {
	Row *models.EventRow `json:"p_row"`
}

// Insert posts the row to the RPC endpoint. A non-2xx response becomes an
// InsertError carrying the status and the (truncated) response body.
func (r *EventRepository) Insert(ctx context.Context, row *models.EventRow) error {
	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(insertEventRequest{Row: row}); err != nil {
		return fmt.Errorf("encode row: %w", err)
	}

	url := fmt.Sprintf("%s/rest/v1/rpc/%s", r.supabaseURL, InsertEventRPC)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return fmt.Errorf("failed to create insert request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apikey", r.serviceKey)
	req.Header.Set("Authorization", "Bearer "+r.serviceKey)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return &repositories.InsertError{Err: fmt.Errorf("rpc request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return &repositories.InsertError{
			Details: map[string]interface{}{
				"status": resp.StatusCode,
				"body":   httputil.TruncateRunes(string(respBody), config.MaxInsertErrorBody),
			},
			Err: fmt.Errorf("rpc %s responded %d", InsertEventRPC, resp.StatusCode),
		}
	}

	io.Copy(io.Discard, resp.Body)
	return nil
}
