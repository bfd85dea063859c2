package middleware

import (
	"context"
	"net/http"

	"github.com/Strob0t/foodshare/internal/logger"
)

// Identity headers set by the authenticating gateway in front of the API.
const (
	headerUserID    = "X-User-ID"
	headerUserEmail = "X-User-Email"
	headerUserName  = "X-User-Name"
)

// Identity is the authenticated caller as forwarded by the gateway.
type Identity struct {
	UserID string
	Email  string
	Name   string
}

type identityCtxKey struct{}

// UserIdentity extracts the forwarded identity headers into the request
// context. Requests without X-User-ID pass through anonymously.
func UserIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := Identity{
			UserID: r.Header.Get(headerUserID),
			Email:  r.Header.Get(headerUserEmail),
			Name:   r.Header.Get(headerUserName),
		}
		if id.UserID == "" {
			next.ServeHTTP(w, r)
			return
		}
		ctx := context.WithValue(r.Context(), identityCtxKey{}, id)
		ctx = logger.WithUserID(ctx, id.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireUser rejects anonymous requests with 401.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFromContext(r.Context()); !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"missing X-User-ID"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// IdentityFromContext returns the caller identity stored in ctx.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityCtxKey{}).(Identity)
	return id, ok
}

// WithIdentity returns a context carrying id, as UserIdentity would set it.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	ctx = context.WithValue(ctx, identityCtxKey{}, id)
	return logger.WithUserID(ctx, id.UserID)
}
