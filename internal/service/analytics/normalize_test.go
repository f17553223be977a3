package analytics

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quicksend/internal/domain"
)

func mustCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := LoadCatalog()
	require.NoError(t, err)
	return c
}

func ingestKind(t *testing.T, err error) string {
	t.Helper()
	var ingestErr *domain.IngestError
	require.True(t, errors.As(err, &ingestErr), "expected IngestError, got %v", err)
	return ingestErr.Kind
}

func TestLoadCatalog(t *testing.T) {
	c := mustCatalog(t)

	assert.Equal(t, []string{"install", "app_open", "file_upload", "text_share"}, c.Events)
	assert.Equal(t, Limits{
		EventName:      64,
		InstallationID: 128,
		SessionID:      128,
		AppVersion:     32,
		Platform:       16,
		Props:          16000,
	}, c.Limits)
	assert.Equal(t, "x-vercel-ip-country", c.GeoHeaders[0])
	assert.Len(t, c.GeoHeaders, 7)
	assert.True(t, c.Allowed("text_share"))
	assert.False(t, c.Allowed("bogus"))
}

func TestNormalize_EventRuleFollowsCatalog(t *testing.T) {
	c, err := ParseCatalog([]byte("events: [beta_open]\nlimits: {event_name: 64, installation_id: 128, props: 16000}\n"))
	require.NoError(t, err)

	_, err = c.Normalize([]byte(`{"event_name":"beta_open","installation_id":"abc"}`), http.Header{})
	require.NoError(t, err)

	_, err = c.Normalize([]byte(`{"event_name":"install","installation_id":"abc"}`), http.Header{})
	assert.Equal(t, domain.KindInvalidEvent, ingestKind(t, err))
}

func TestParseCatalog_RejectsEmpty(t *testing.T) {
	_, err := ParseCatalog([]byte("events: []\n"))
	assert.Error(t, err)

	_, err = ParseCatalog([]byte("events: [\n"))
	assert.Error(t, err)
}

func TestNormalize_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantKind string
	}{
		{name: "empty body", body: "", wantKind: domain.KindInvalidJSON},
		{name: "malformed", body: `{"event_name":`, wantKind: domain.KindInvalidJSON},
		{name: "array body", body: `[1,2]`, wantKind: domain.KindInvalidEvent},
		{name: "number body", body: `42`, wantKind: domain.KindInvalidEvent},
		{name: "trailing garbage", body: `{"event_name":"install"} x`, wantKind: domain.KindInvalidJSON},
		{name: "unknown event", body: `{"event_name":"bogus","installation_id":"abc"}`, wantKind: domain.KindInvalidEvent},
		{name: "missing event", body: `{"installation_id":"abc"}`, wantKind: domain.KindInvalidEvent},
		{name: "null body", body: `null`, wantKind: domain.KindInvalidEvent},
		{name: "event checked before installation", body: `{"event_name":"nope"}`, wantKind: domain.KindInvalidEvent},
		{name: "missing installation", body: `{"event_name":"install"}`, wantKind: domain.KindMissingInstallationID},
		{name: "empty installation", body: `{"event_name":"install","installation_id":""}`, wantKind: domain.KindMissingInstallationID},
		{name: "null installation", body: `{"event_name":"install","installation_id":null}`, wantKind: domain.KindMissingInstallationID},
	}

	c := mustCatalog(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row, err := c.Normalize([]byte(tt.body), http.Header{})
			require.Error(t, err)
			assert.Nil(t, row)
			assert.Equal(t, tt.wantKind, ingestKind(t, err))
		})
	}
}

func TestNormalize_EventNameTruncatedBeforeCheck(t *testing.T) {
	c := mustCatalog(t)

	// 64-character limit: "install" padded past the limit can never match
	body := `{"event_name":"` + "install" + strings.Repeat("x", 100) + `","installation_id":"abc"}`
	_, err := c.Normalize([]byte(body), http.Header{})
	assert.Equal(t, domain.KindInvalidEvent, ingestKind(t, err))
}

func TestNormalize_FullRow(t *testing.T) {
	c := mustCatalog(t)
	body := `{
		"event_name": "file_upload",
		"installation_id": "` + strings.Repeat("i", 200) + `",
		"session_id": "sess",
		"app_version": "` + strings.Repeat("9", 40) + `",
		"platform": "linux-amd64-very-long-name",
		"is_frozen": true,
		"props": {"status": "success", "file_count": 2}
	}`

	row, err := c.Normalize([]byte(body), http.Header{})
	require.NoError(t, err)

	assert.Equal(t, "file_upload", row.EventName)
	assert.Len(t, row.InstallationID, 128)
	require.NotNil(t, row.SessionID)
	assert.Equal(t, "sess", *row.SessionID)
	require.NotNil(t, row.AppVersion)
	assert.Len(t, *row.AppVersion, 32)
	require.NotNil(t, row.Platform)
	assert.Equal(t, "linux-amd64-very", *row.Platform)
	require.NotNil(t, row.IsFrozen)
	assert.True(t, *row.IsFrozen)
	assert.JSONEq(t, `"success"`, string(row.Props["status"]))
	assert.JSONEq(t, `2`, string(row.Props["file_count"]))
}

func TestNormalize_OptionalFields(t *testing.T) {
	c := mustCatalog(t)

	row, err := c.Normalize([]byte(`{"event_name":"install","installation_id":"abc","session_id":null,"is_frozen":"yes","props":[1,2]}`), http.Header{})
	require.NoError(t, err)

	assert.Nil(t, row.SessionID)
	assert.Nil(t, row.AppVersion)
	assert.Nil(t, row.Platform)
	assert.Nil(t, row.IsFrozen, "non-boolean is_frozen becomes null")
	assert.Empty(t, row.Props, "non-object props become an empty object")
	assert.NotNil(t, row.Props)
}

func TestNormalize_ScalarsStringified(t *testing.T) {
	c := mustCatalog(t)

	row, err := c.Normalize([]byte(`{"event_name":"app_open","installation_id":12345,"app_version":1.5,"is_frozen":false}`), http.Header{})
	require.NoError(t, err)

	assert.Equal(t, "12345", row.InstallationID)
	assert.Equal(t, "1.5", *row.AppVersion)
	require.NotNil(t, row.IsFrozen)
	assert.False(t, *row.IsFrozen)
}

func TestNormalize_NumbersInShortestForm(t *testing.T) {
	c := mustCatalog(t)

	row, err := c.Normalize([]byte(`{"event_name":"app_open","installation_id":1e2,"app_version":1.0,"platform":[1,2]}`), http.Header{})
	require.NoError(t, err)

	assert.Equal(t, "100", row.InstallationID)
	assert.Equal(t, "1", *row.AppVersion)
	assert.Equal(t, "1,2", *row.Platform)
}

func TestNormalize_TruncatesByUTF16Units(t *testing.T) {
	c := mustCatalog(t)

	platform := strings.Repeat("é", 20)
	row, err := c.Normalize([]byte(`{"event_name":"install","installation_id":"abc","platform":"`+platform+`"}`), http.Header{})
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("é", 16), *row.Platform)

	// each emoji is a surrogate pair
	platform = strings.Repeat("😀", 10)
	row, err = c.Normalize([]byte(`{"event_name":"install","installation_id":"abc","platform":"`+platform+`"}`), http.Header{})
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("😀", 8), *row.Platform)
}

func TestNormalize_GeoEnrichment(t *testing.T) {
	tests := []struct {
		name    string
		props   string
		headers map[string]string
		want    string // expected geo_country JSON, "" for absent
	}{
		{
			name:    "first matching header wins",
			headers: map[string]string{"CF-IPCountry": "fr", "X-Country": "DE"},
			want:    `"FR"`,
		},
		{
			name:    "header order, not insertion order",
			headers: map[string]string{"X-Client-Country": "us", "X-Vercel-IP-Country": "jp"},
			want:    `"JP"`,
		},
		{
			name:    "invalid values are skipped",
			headers: map[string]string{"X-Vercel-IP-Country": "XX1", "Cf-Ipcountry": "T1", "X-Geo-Country": " nl "},
			want:    `"NL"`,
		},
		{
			name:    "caller value kept",
			props:   `{"geo_country":"ZZ"}`,
			headers: map[string]string{"Cf-Ipcountry": "FR"},
			want:    `"ZZ"`,
		},
		{
			name:    "caller null counts as defined",
			props:   `{"geo_country":null}`,
			headers: map[string]string{"Cf-Ipcountry": "FR"},
			want:    `null`,
		},
		{
			name: "no headers leaves props untouched",
			want: "",
		},
	}

	c := mustCatalog(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			for k, v := range tt.headers {
				h.Set(k, v)
			}
			body := `{"event_name":"install","installation_id":"abc"`
			if tt.props != "" {
				body += `,"props":` + tt.props
			}
			body += `}`

			row, err := c.Normalize([]byte(body), h)
			require.NoError(t, err)

			got, ok := row.Props["geo_country"]
			if tt.want == "" {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestNormalize_PropsSizeCap(t *testing.T) {
	c := mustCatalog(t)

	build := func(valueLen int) []byte {
		props := map[string]string{"v": strings.Repeat("a", valueLen)}
		raw, _ := json.Marshal(props)
		return []byte(`{"event_name":"install","installation_id":"abc","props":` + string(raw) + `}`)
	}

	// {"v":"..."} adds 8 characters around the value
	_, err := c.Normalize(build(16000-8), http.Header{})
	assert.NoError(t, err, "exactly at the limit is accepted")

	_, err = c.Normalize(build(16000-7), http.Header{})
	assert.Equal(t, domain.KindPropsTooLarge, ingestKind(t, err))
}

func TestNormalize_PropsSizeIncludesGeo(t *testing.T) {
	c := mustCatalog(t)

	raw, _ := json.Marshal(map[string]string{"v": strings.Repeat("a", 16000-8)})
	body := []byte(`{"event_name":"install","installation_id":"abc","props":` + string(raw) + `}`)

	h := http.Header{}
	h.Set("Cf-Ipcountry", "FR")
	_, err := c.Normalize(body, h)
	assert.Equal(t, domain.KindPropsTooLarge, ingestKind(t, err))
}

func TestGeoCountry(t *testing.T) {
	h := http.Header{}
	_, ok := GeoCountry(h, []string{"cf-ipcountry"})
	assert.False(t, ok)

	h.Set("cf-ipcountry", "gb")
	got, ok := GeoCountry(h, []string{"x-country", "cf-ipcountry"})
	assert.True(t, ok)
	assert.Equal(t, "GB", got)

	h.Set("cf-ipcountry", "ÉS")
	_, ok = GeoCountry(h, []string{"cf-ipcountry"})
	assert.False(t, ok, "non-ASCII letters are rejected")
}
