package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/okian/blurber/pkg/metrics"
)

// Route templates used as metric labels. Paths carrying a character id are
// collapsed so the label set stays bounded.
const (
	routeHealth      = "/healthz"
	routePing        = "/ping"
	routeStats       = "/stats"
	routeTrack       = "/track"
	routeUntrack     = "/track/{id}"
	routeSessions    = "/sessions"
	routeLeaderboard = "/leaderboard"
	routeCharacter   = "/characters/{id}"
)

// MetricsMiddleware records request count, latency and error kind for one
// route. The status label is the class (2xx, 4xx, 5xx); the error kind is
// the code the handler wrote with writeError.
func MetricsMiddleware(next http.HandlerFunc, route string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		durationMs := float64(time.Since(start).Microseconds()) / 1000
		class := statusClass(rec.status)
		metrics.RecordHTTPRequest(route, r.Method, class)
		metrics.RecordHTTPRequestDuration(route, r.Method, class, durationMs)

		if rec.status < http.StatusBadRequest {
			return
		}
		kind := rec.errorKind()
		metrics.RecordErrorByEndpoint(route, r.Method, kind)
		metrics.RecordErrorByType(kind, errorSeverity(rec.status))
		metrics.RecordErrorLatency("http", kind, durationMs)
	}
}

func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "other"
	}
	return fmt.Sprintf("%dxx", status/100)
}

// errorSeverity ranks failures for alerting. A missing or already tracked
// character is routine; a malformed request points at a broken client.
func errorSeverity(status int) string {
	switch {
	case status >= http.StatusInternalServerError:
		return "high"
	case status == http.StatusNotFound, status == http.StatusConflict:
		return "low"
	default:
		return "medium"
	}
}

// statusRecorder captures the status and API error code of a response.
type statusRecorder struct {
	http.ResponseWriter
	status int
	code   string
}

func (rw *statusRecorder) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("failed to write response: %w", err)
	}
	return n, nil
}

func (rw *statusRecorder) errorKind() string {
	if rw.code != "" {
		return rw.code
	}
	if rw.status >= http.StatusInternalServerError {
		return "server_error"
	}
	return "client_error"
}

// noteErrorCode tells an enclosing statusRecorder which API error code the
// response carries.
func noteErrorCode(w http.ResponseWriter, code string) {
	if rec, ok := w.(*statusRecorder); ok {
		rec.code = code
	}
}
