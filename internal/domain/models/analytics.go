package models

import (
	"bytes"
	"encoding/json"
	"unicode/utf16"
	"unicode/utf8"

	"quicksend/internal/httputil"
)

// Event names accepted by the ingest endpoint
const (
	EventInstall    = "install"
	EventAppOpen    = "app_open"
	EventFileUpload = "file_upload"
	EventTextShare  = "text_share"
)

// GeoCountryProp is the props key the ingest pipeline fills from edge geo headers
const GeoCountryProp = "geo_country"

// IncomingEvent is the JSON payload posted by an app installation.
// Text fields accept any JSON scalar; null and absent are equivalent.
type IncomingEvent struct {
	EventName      httputil.LooseString `json:"event_name"`
	InstallationID httputil.LooseString `json:"installation_id"`
	SessionID      httputil.LooseString `json:"session_id"`
	AppVersion     httputil.LooseString `json:"app_version"`
	Platform       httputil.LooseString `json:"platform"`
	IsFrozen       json.RawMessage      `json:"is_frozen"`
	Props          json.RawMessage      `json:"props"`
}

// EventRow is the normalized row written to the analytics store
type EventRow struct {
	EventName      string  `json:"event_name"`
	InstallationID string  `json:"installation_id"`
	SessionID      *string `json:"session_id"`
	AppVersion     *string `json:"app_version"`
	Platform       *string `json:"platform"`
	IsFrozen       *bool   `json:"is_frozen"`
	Props          Props   `json:"props"`
}

// Props is a JSON object of arbitrary values. Values stay as validated raw JSON
// so the row can be re-serialized without loss.
type Props map[string]json.RawMessage

// ParseProps returns the object held in raw, or an empty Props when raw is
// absent, null or not an object.
func ParseProps(raw json.RawMessage) Props {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Props{}
	}
	var p Props
	if err := json.Unmarshal(trimmed, &p); err != nil || p == nil {
		return Props{}
	}
	return p
}

// Has reports whether key is defined
func (p Props) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// WithString returns a copy of p with key set to the JSON string value
func (p Props) WithString(key, value string) Props {
	out := make(Props, len(p)+1)
	for k, v := range p {
		out[k] = v
	}
	encoded, _ := json.Marshal(value)
	out[key] = encoded
	return out
}

// Encode serializes p compactly without HTML escaping
func (p Props) Encode() ([]byte, error) {
	if p == nil {
		p = Props{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(map[string]json.RawMessage(p)); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// EncodedLen is the serialized length in UTF-16 code units, the unit
// browsers and edge runtimes use for string length.
func (p Props) EncodedLen() (int, error) {
	data, err := p.Encode()
	if err != nil {
		return 0, err
	}
	n := 0
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		data = data[size:]
		if l := utf16.RuneLen(r); l > 0 {
			n += l
		} else {
			n++
		}
	}
	return n, nil
}
