package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"provisor/pkg/requestcontext"
)

// JWTValidator defines the interface for validating JWT bearer tokens.
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims represents the claims we expect from the JWT validator.
type JWTClaims struct {
	// Subject identifies the caller (an operator login or an upstream system)
	// and becomes the audit actor for the request.
	Subject string
}

// APIKeyValidator defines the interface for validating X-API-Key credentials.
// It returns the name of the client the key belongs to.
type APIKeyValidator interface {
	ValidateAPIKey(key string) (string, error)
}

// RequireAuth authenticates the request via a JWT bearer token or an
// X-API-Key header and stores the resulting actor in the request context.
// A nil validator disables that credential mode.
func RequireAuth(jwtValidator JWTValidator, apiKeys APIKeyValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			authHeader := r.Header.Get("Authorization")
			const bearerPrefix = "Bearer "
			if token, ok := strings.CutPrefix(authHeader, bearerPrefix); ok && jwtValidator != nil {
				claims, err := jwtValidator.ValidateToken(token)
				if err != nil {
					logger.WarnContext(ctx, "unauthorized access - invalid token",
						"error", err,
						"request_id", requestcontext.RequestID(ctx),
					)
					writeUnauthorized(ctx, w, logger, "Invalid or expired token")
					return
				}
				ctx = requestcontext.WithActor(ctx, claims.Subject)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			if key := r.Header.Get("X-API-Key"); key != "" && apiKeys != nil {
				clientName, err := apiKeys.ValidateAPIKey(key)
				if err != nil {
					logger.WarnContext(ctx, "unauthorized access - invalid api key",
						"error", err,
						"request_id", requestcontext.RequestID(ctx),
					)
					writeUnauthorized(ctx, w, logger, "Invalid API key")
					return
				}
				ctx = requestcontext.WithActor(ctx, clientName)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			// No Authorization header, no API key
			logger.WarnContext(ctx, "unauthorized access - missing credentials",
				"request_id", requestcontext.RequestID(ctx),
			)
			writeUnauthorized(ctx, w, logger, "Missing or invalid credentials")
		})
	}
}

func writeUnauthorized(ctx context.Context, w http.ResponseWriter, logger *slog.Logger, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	if _, err := w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`)); err != nil {
		logger.ErrorContext(ctx, "failed to write unauthorized response",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}
