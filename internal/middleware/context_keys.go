package middleware

import (
	"context"

	"github.com/Bernard-Murphy/dbay-public/internal/domain"
	"github.com/Bernard-Murphy/dbay-public/internal/session"
)

// ContextKey is a private type for request context keys.
type ContextKey string

const (
	// AuthStoreCtxKey holds the *session.AuthStore of the request.
	AuthStoreCtxKey = ContextKey("auth_store")
	// RequestIDCtxKey holds the request ID assigned by RequestID.
	RequestIDCtxKey = ContextKey("request_id")
	// UserIDCtxKey holds the ID of the logged-in user, if any.
	UserIDCtxKey = ContextKey("user_id")
)

// AuthStore returns the request's auth store, or nil outside the Session
// middleware.
func AuthStore(ctx context.Context) *session.AuthStore {
	s, _ := ctx.Value(AuthStoreCtxKey).(*session.AuthStore)
	return s
}

// CurrentSession returns the session of the request, nil when logged out.
func CurrentSession(ctx context.Context) *domain.Session {
	if s := AuthStore(ctx); s != nil {
		return s.Current()
	}
	return nil
}

func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDCtxKey).(string)
	return id
}

func UserIDFrom(ctx context.Context) domain.ID {
	id, _ := ctx.Value(UserIDCtxKey).(domain.ID)
	return id
}
