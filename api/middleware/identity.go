package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/canvasly/canvasly-backend/api/responses"
	pkgerrors "github.com/canvasly/canvasly-backend/pkg/errors"
	"github.com/canvasly/canvasly-backend/pkg/logger"
)

const userIDHeader = "X-User-Id"

// Identity resolves the acting user from the gateway-injected header.
// The edge gateway terminates authentication; by the time a request
// reaches this service the header is trusted.
func Identity(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(userIDHeader))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing"))
				return
			}
			if _, err := uuid.Parse(raw); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user identity"))
				return
			}

			ctx := WithUserID(r.Context(), raw)
			if logg != nil {
				ctx = logg.WithUserID(ctx, raw)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
