// Package middleware provides the HTTP middleware chain for the service.
//
// Ordering matters and is enforced where routers are assembled:
//
//	Recovery → RequestID → RequestTime → ClientMetadata → Logger → Timeout →
//	ContentTypeJSON → LatencyMiddleware → RequireAuth → Handler
//
// Recovery runs first so a panic anywhere below still produces a well-formed
// response. RequestID and RequestTime run before logging so every log line
// carries a correlation ID and every domain timestamp within one request
// agrees. RequireAuth runs last so rejected requests are still logged and
// measured.
//
// Request-scoped values are stored via pkg/requestcontext, not package-local
// context keys, so services and workers can read them without importing
// anything HTTP-flavored.
package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"provisor/pkg/requestcontext"
)

// RequestIDHeader is the header checked for an inbound correlation ID and set
// on every response.
const RequestIDHeader = "X-Request-ID"

// RequestID attaches a correlation ID to the request context and response.
// An inbound X-Request-ID is honored so IDs stay stable across service hops;
// otherwise a fresh UUID is generated.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)

		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
