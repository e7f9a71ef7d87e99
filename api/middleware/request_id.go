package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/canvasly/canvasly-backend/pkg/logger"
)

const requestIDHeader = "X-Request-Id"

// RequestID threads a correlation id through the request: the caller's
// header value when present, otherwise a fresh UUID. The id is echoed
// back on the response and attached to every log line.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(requestIDHeader)
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, id)

			ctx := r.Context()
			if logg != nil {
				ctx = logg.WithRequestID(ctx, id)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
