package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quicksend/internal/domain"
	"quicksend/internal/domain/models"
	"quicksend/internal/domain/repositories"
)

func TestNewEventRepository_RequiresConfig(t *testing.T) {
	tests := []struct {
		name string
		url  string
		key  string
	}{
		{name: "missing url", key: "service"},
		{name: "missing key", url: "https://x.supabase.co"},
		{name: "missing both"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEventRepository(tt.url, tt.key, nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrMisconfigured))
		})
	}
}

func TestEventRepository_Insert(t *testing.T) {
	var gotPath, gotAPIKey, gotAuth string
	var gotBody map[string]json.RawMessage

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAPIKey = r.Header.Get("apikey")
		gotAuth = r.Header.Get("Authorization")
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	repo, err := NewEventRepository(srv.URL+"/", "service-key", srv.Client())
	require.NoError(t, err)

	session := "s1"
	row := &models.EventRow{
		EventName:      models.EventInstall,
		InstallationID: "abc",
		SessionID:      &session,
		Props:          models.Props{"geo_country": json.RawMessage(`"DE"`)},
	}
	require.NoError(t, repo.Insert(context.Background(), row))

	assert.Equal(t, "/rest/v1/rpc/qs_analytics_insert_event", gotPath)
	assert.Equal(t, "service-key", gotAPIKey)
	assert.Equal(t, "Bearer service-key", gotAuth)
	require.Contains(t, gotBody, "p_row")

	var stored map[string]interface{}
	require.NoError(t, json.Unmarshal(gotBody["p_row"], &stored))
	assert.Equal(t, "install", stored["event_name"])
	assert.Equal(t, "abc", stored["installation_id"])
	assert.Equal(t, "s1", stored["session_id"])
	assert.Nil(t, stored["app_version"])
	assert.Nil(t, stored["is_frozen"])
	assert.Equal(t, map[string]interface{}{"geo_country": "DE"}, stored["props"])
}

func TestEventRepository_InsertFailureDetails(t *testing.T) {
	longBody := strings.Repeat("x", 900)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, longBody)
	}))
	defer srv.Close()

	repo, err := NewEventRepository(srv.URL, "service-key", srv.Client())
	require.NoError(t, err)

	err = repo.Insert(context.Background(), &models.EventRow{EventName: "install", InstallationID: "abc", Props: models.Props{}})
	require.Error(t, err)

	var insertErr *repositories.InsertError
	require.True(t, errors.As(err, &insertErr))
	assert.Equal(t, http.StatusBadRequest, insertErr.Details["status"])
	assert.Len(t, insertErr.Details["body"], 500)
}
