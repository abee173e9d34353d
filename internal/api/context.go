package api

import (
	"log/slog"
	"net/http"

	"github.com/hyperengineering/grantscan/internal/logging"
)

// RequestContext attaches the request ID to the request context so every
// record logged while serving it carries request_id. It must run after
// chi's RequestID middleware.
func RequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := GetRequestID(r.Context()); id != "" {
			ctx := logging.WithAttrs(r.Context(), slog.String("request_id", id))
			r = r.WithContext(ctx)
		}
		next.ServeHTTP(w, r)
	})
}
