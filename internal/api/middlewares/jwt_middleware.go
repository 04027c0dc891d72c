package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/citebase/citebase/internal/auth"
	"github.com/citebase/citebase/internal/core"
)

type contextKey string

const (
	userIDKey contextKey = "user_id"
	emailKey  contextKey = "email"
)

// UserIDFromContext returns the authenticated user's id, if present.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok
}

// EmailFromContext returns the authenticated user's email, if present.
func EmailFromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(emailKey).(string)
	return email, ok
}

// WithUser attaches an authenticated identity to the context.
func WithUser(ctx context.Context, userID, email string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, emailKey, email)
}

// JWT validates the Authorization bearer token, resolves the subject
// email to a user, and attaches both to the request context.
func JWT(secret []byte, db core.DbClient) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := r.Header.Get("Authorization")
			if !strings.HasPrefix(authz, "Bearer ") {
				unauthorized(w, "missing or invalid token")
				return
			}

			email, err := auth.VerifyToken(secret, strings.TrimPrefix(authz, "Bearer "))
			if err != nil {
				unauthorized(w, "invalid token")
				return
			}

			user, err := db.GetUserByEmail(r.Context(), email)
			if err != nil || user == nil {
				unauthorized(w, "unknown user")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user.ID, user.Email)))
		})
	}
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "message": message})
}
