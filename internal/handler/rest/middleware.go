package rest

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/pairly/messaging-service/internal/service"
)

type ctxKey int

const userIDKey ctxKey = iota

// Authenticate verifies the bearer token and stashes the caller's user ID
// in the request context. Every route behind it can assume an identity.
func Authenticate(auther service.Auther) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if token == "" {
				http.Error(w, "missing credential", http.StatusUnauthorized)
				return
			}

			userID, err := auther.Verify(r.Context(), token)
			if err != nil {
				http.Error(w, "authentication failed", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(
				context.WithValue(r.Context(), userIDKey, userID)))
		})
	}
}

func callerID(r *http.Request) uuid.UUID {
	id, _ := r.Context().Value(userIDKey).(uuid.UUID)
	return id
}
