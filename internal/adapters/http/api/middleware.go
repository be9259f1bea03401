package api

import (
	"net/http"
	"strconv"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/okian/adrec/pkg/metrics"
)

// Instrument returns chi middleware that records request count, latency and
// error classes under the given endpoint label.
func Instrument(endpoint string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			code := strconv.Itoa(status)
			elapsed := float64(time.Since(start).Milliseconds())

			metrics.RecordHTTPRequest(endpoint, r.Method, code)
			metrics.RecordHTTPRequestDuration(endpoint, r.Method, code, elapsed)
			if status < http.StatusBadRequest {
				return
			}
			class, severity := classifyStatus(status)
			metrics.RecordErrorByEndpoint(endpoint, r.Method, class)
			metrics.RecordErrorByType(class, severity)
			metrics.RecordErrorLatency("http", class, elapsed)
		})
	}
}

// classifyStatus maps an error status to the error class and severity labels.
func classifyStatus(status int) (class, severity string) {
	switch {
	case status == http.StatusServiceUnavailable:
		return "unavailable", "high"
	case status >= http.StatusInternalServerError:
		return "server_error", "high"
	case status == http.StatusUnprocessableEntity:
		return "validation", "medium"
	case status == http.StatusNotFound:
		return "not_found", "medium"
	case status >= http.StatusBadRequest:
		return "client_error", "medium"
	default:
		return "unknown", "low"
	}
}
