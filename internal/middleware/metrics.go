package middleware

import (
	"net/http"
	"strconv"
	"time"

	"carprice/internal/observability"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Metrics records request latency and counts labelled by route pattern, so
// that path parameters and unknown paths do not create new series.
func Metrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			path := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				path = rctx.RoutePattern()
			}

			observability.HTTPRequestDuration.WithLabelValues(
				r.Method,
				path,
				strconv.Itoa(status),
			).Observe(time.Since(start).Seconds())

			observability.HTTPRequestsTotal.WithLabelValues(
				r.Method,
				path,
				strconv.Itoa(status),
			).Inc()
		})
	}
}

// RequestContext copies the chi request id into the logging context.
func RequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := chimiddleware.GetReqID(r.Context()); id != "" {
			r = r.WithContext(observability.WithRequestID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}
