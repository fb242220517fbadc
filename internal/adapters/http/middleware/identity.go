package middleware

import (
	"context"
	"net/http"
	"strings"

	"vortex/internal/domain/conversation"
)

// UserIDHeader carries the caller's user ID, set by the fronting auth proxy.
const UserIDHeader = "X-User-ID"

type contextKey string

const userContextKey contextKey = "user_id"

// Identity places the X-User-ID header value in the request context and
// rejects unidentified requests to protected path prefixes. IDs that
// cannot form an unambiguous conversation ID are rejected everywhere.
func Identity(protectedPrefixes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := strings.TrimSpace(r.Header.Get(UserIDHeader))
			if userID == "" {
				for _, p := range protectedPrefixes {
					if strings.HasPrefix(r.URL.Path, p) {
						http.Error(w, "Unauthorized", http.StatusUnauthorized)
						return
					}
				}
				next.ServeHTTP(w, r)
				return
			}
			if err := conversation.ValidateUserID(userID); err != nil {
				http.Error(w, "Invalid user ID", http.StatusBadRequest)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// WithUserID returns a copy of ctx carrying userID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userContextKey, userID)
}

// UserIDFromContext returns the caller's user ID, or "" when unidentified.
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userContextKey).(string)
	return id
}
