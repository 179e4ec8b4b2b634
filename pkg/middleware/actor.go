package middleware

import (
	"context"
	"net/http"
	"strconv"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// GuestIDKey is the context key for the authenticated guest ID
	GuestIDKey ContextKey = "guest_id"
	// CastIDKey is the context key for the authenticated cast ID
	CastIDKey ContextKey = "cast_id"
)

// ActorMiddleware resolves the acting guest/cast from X-Guest-ID and
// X-Cast-ID headers (DEV ONLY — the real gateway injects these after
// session validation). Guest-scoped handlers read only the guest key and
// cast-scoped handlers only the cast key, so each request carries exactly
// the capability its header grants.
func ActorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if v := r.Header.Get("X-Guest-ID"); v != "" {
			if id, err := strconv.ParseInt(v, 10, 64); err == nil && id > 0 {
				ctx = context.WithValue(ctx, GuestIDKey, id)
			}
		}
		if v := r.Header.Get("X-Cast-ID"); v != "" {
			if id, err := strconv.ParseInt(v, 10, 64); err == nil && id > 0 {
				ctx = context.WithValue(ctx, CastIDKey, id)
			}
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetGuestID extracts the acting guest ID from the request context
func GetGuestID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(GuestIDKey).(int64)
	return id, ok
}

// GetCastID extracts the acting cast ID from the request context
func GetCastID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(CastIDKey).(int64)
	return id, ok
}
