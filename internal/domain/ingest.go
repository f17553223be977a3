package domain

import (
	"fmt"
	"net/http"
)

// Ingest error kinds, as reported in the "error" field of the response
const (
	KindMethodNotAllowed      = "method_not_allowed"
	KindUnauthorized          = "unauthorized"
	KindServerMisconfigured   = "server_misconfigured"
	KindInvalidJSON           = "invalid_json"
	KindInvalidEvent          = "invalid_event"
	KindMissingInstallationID = "missing_installation_id"
	KindPropsTooLarge         = "props_too_large"
	KindInsertFailed          = "insert_failed"
	KindInternal              = "internal_error"
)

// IngestError is a rejected or failed analytics submission
type IngestError struct {
	Kind    string
	Status  int
	Details map[string]interface{}
	Err     error
}

func (e *IngestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Kind
}

func (e *IngestError) Unwrap() error { return e.Err }

// StatusCode implements HTTPError
func (e *IngestError) StatusCode() int { return e.Status }

// Body is the JSON response for the error
func (e *IngestError) Body() map[string]interface{} {
	body := map[string]interface{}{"error": e.Kind}
	if len(e.Details) > 0 {
		body["details"] = e.Details
	}
	return body
}

// NewIngestError builds an IngestError whose status follows from its kind
func NewIngestError(kind string, err error) *IngestError {
	return &IngestError{Kind: kind, Status: ingestStatus(kind), Err: err}
}

func ingestStatus(kind string) int {
	switch kind {
	case KindMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindInvalidJSON, KindInvalidEvent, KindMissingInstallationID:
		return http.StatusBadRequest
	case KindPropsTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}
