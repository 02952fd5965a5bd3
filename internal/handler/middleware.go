// internal/handler/middleware.go
package handler

import (
	"context"
	"net/http"
	"strconv"
)

type contextKey string

const userIDKey contextKey = "user_id"

// RequireAdminUser extracts the authenticated admin's user id from the
// X-Admin-User header set by the fronting auth layer. Real authentication is
// owned by the admin panel; this service only needs the identity to enforce
// campaign ownership.
func RequireAdminUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(r.Header.Get("X-Admin-User"))
		if err != nil || id <= 0 {
			http.Error(w, "unauthenticated", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func adminUserID(r *http.Request) int {
	id, _ := r.Context().Value(userIDKey).(int)
	return id
}
