package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/knowledgehub/backend/internal/models"
)

type contextKey string

const callerKey contextKey = "caller"

// TokenValidator validates an access token and returns its caller
type TokenValidator interface {
	ValidateAccessToken(tokenString string) (*models.Caller, error)
}

// AuthMiddleware validates JWT access token and stores the caller in the request context
func AuthMiddleware(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)

			if token == "" {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			caller, err := validator.ValidateAccessToken(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), callerKey, caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuthMiddleware stores the caller when a valid token is present and
// lets anonymous requests through otherwise
func OptionalAuthMiddleware(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token != "" {
				if caller, err := validator.ValidateAccessToken(token); err == nil {
					r = r.WithContext(context.WithValue(r.Context(), callerKey, caller))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetCaller retrieves the caller from context
func GetCaller(ctx context.Context) (*models.Caller, bool) {
	caller, ok := ctx.Value(callerKey).(*models.Caller)
	return caller, ok
}

// WithCaller returns a copy of ctx carrying caller
func WithCaller(ctx context.Context, caller *models.Caller) context.Context {
	return context.WithValue(ctx, callerKey, caller)
}

// extractToken reads the bearer token from the Authorization header or the access_token cookie
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		// Expected format: "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
			return parts[1]
		}
	}

	cookie, err := r.Cookie("access_token")
	if err == nil {
		return cookie.Value
	}

	return ""
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + message + `"}`))
}
