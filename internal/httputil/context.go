package httputil

import (
	"context"
	"net/http"
)

// Context key type to avoid collisions
type contextKey string

const (
	viewerKey contextKey = "viewer"
)

// Viewer describes who is calling the group API
type Viewer struct {
	// IsHost is true for the machine running the server (loopback) or an
	// operator holding a verified access token.
	IsHost bool
	// UserID is the token subject when the viewer authenticated with a token
	UserID string
	// RemoteAddr is the client address, recorded as a group's creator
	RemoteAddr string
}

// WithViewer adds the viewer to the request context
func WithViewer(r *http.Request, v Viewer) *http.Request {
	ctx := context.WithValue(r.Context(), viewerKey, v)
	return r.WithContext(ctx)
}

// GetViewer retrieves the viewer from context, returns a remote non-host viewer if not found
func GetViewer(r *http.Request) Viewer {
	v, ok := r.Context().Value(viewerKey).(Viewer)
	if !ok {
		return Viewer{RemoteAddr: r.RemoteAddr}
	}
	return v
}
