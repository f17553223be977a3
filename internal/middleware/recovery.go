package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"quicksend/internal/httputil"
	"quicksend/internal/metrics"
)

// Recovery turns a handler panic in the group API into a 500 problem
// response and counts it per route. The ingest handler recovers on its own
// to keep its error shape, so a panic seen here is never an ingest panic.
// http.ErrAbortHandler passes through so the server can drop the connection.
func Recovery(m *metrics.Metrics, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				route := routeLabel(r)
				m.HTTPPanicsTotal.WithLabelValues(route).Inc()
				logger.Error("panic recovered",
					"error", fmt.Sprint(rec),
					"route", route,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
					"stack", string(debug.Stack()),
				)

				// a partly written response cannot be replaced
				if sw.wroteHeader {
					return
				}
				httputil.RespondError(sw, http.StatusInternalServerError, "internal server error")
			}()

			next.ServeHTTP(sw, r)
		})
	}
}
