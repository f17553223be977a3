package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"quicksend/internal/auth"
	"quicksend/internal/httputil"
)

// Viewer resolves who is calling and stores it in the request context.
// Loopback callers are the host. Remote callers become the host only by
// presenting an access token the verifier accepts; a bad token leaves them
// a plain remote viewer rather than failing the request. verifier may be nil.
func Viewer(verifier auth.JWTVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			v := httputil.Viewer{RemoteAddr: r.RemoteAddr}

			if isLoopback(r.RemoteAddr) {
				v.IsHost = true
			} else if token := bearerToken(r); token != "" && verifier != nil {
				claims, err := verifier.VerifyToken(token)
				if err != nil {
					logger.Debug("viewer token rejected", "remote_addr", r.RemoteAddr, "error", err)
				} else {
					v.IsHost = true
					v.UserID = claims.GetUserID()
				}
			}

			next.ServeHTTP(w, httputil.WithViewer(r, v))
		})
	}
}

func isLoopback(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	return addr.Unmap().IsLoopback()
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
