package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/keeval/keeval/internal/metrics"
)

// capturingResponseWriter remembers the status code written.
type capturingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *capturingResponseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// instrument records request count and latency per route template.
// It runs after routing, so mux.CurrentRoute is set.
func instrument(m *metrics.Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := "unknown"
			if cur := mux.CurrentRoute(r); cur != nil {
				if tpl, err := cur.GetPathTemplate(); err == nil {
					route = tpl
				}
			}
			cw := &capturingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(cw, r)
			m.ObserveRequest(route, r.Method, cw.statusCode, time.Since(start))
		})
	}
}
