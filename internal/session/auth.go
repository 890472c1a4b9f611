// Package session keeps the per-visitor auth state: who is logged in and the
// backend token used on their behalf.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Bernard-Murphy/dbay-public/internal/domain"
	"github.com/Bernard-Murphy/dbay-public/internal/platform/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Credentials are the tokens obtained at sign-in.
type Credentials struct {
	// Token is sent as the bearer token to every backend.
	Token string
	// AccessToken is only set for managed identity and used to sign out.
	AccessToken string
	// Demo marks a locally fabricated session.
	Demo bool
}

// Manager restores and persists sessions across requests.
type Manager struct {
	storage Storage
	codec   *CookieCodec
	ttl     time.Duration
	logger  *logger.Logger
	now     func() time.Time
}

func NewManager(storage Storage, codec *CookieCodec, ttl time.Duration, log *logger.Logger) *Manager {
	return &Manager{
		storage: storage,
		codec:   codec,
		ttl:     ttl,
		logger:  log.Named("session"),
		now:     time.Now,
	}
}

// Load returns the AuthStore for one request, restoring any persisted
// session referenced by the cookie. The token is trusted as-is.
func (m *Manager) Load(w http.ResponseWriter, r *http.Request) *AuthStore {
	store := &AuthStore{manager: m, w: w}

	id, err := m.codec.Decode(r)
	if err != nil {
		if !errors.Is(err, ErrNoCookie) {
			m.logger.Debug("discarding invalid session cookie", zap.Error(err))
			http.SetCookie(w, m.codec.Expire())
		}
		return store
	}

	sess, err := m.storage.Get(r.Context(), id)
	if err != nil {
		if !errors.Is(err, domain.ErrSessionNotFound) {
			m.logger.Error("failed to restore session", zap.String("session_id", id), zap.Error(err))
		}
		http.SetCookie(w, m.codec.Expire())
		return store
	}
	store.session = sess
	return store
}

// AuthStore is the auth state of one request. Mutations are persisted
// immediately so the next request sees them.
type AuthStore struct {
	manager *Manager
	w       http.ResponseWriter

	mu      sync.RWMutex
	session *domain.Session
}

// Current returns a copy of the session, or nil when logged out.
func (a *AuthStore) Current() *domain.Session {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.session == nil {
		return nil
	}
	cp := *a.session
	return &cp
}

func (a *AuthStore) IsAuthenticated() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.session.Authenticated()
}

// Login replaces any existing session with a new one for user.
func (a *AuthStore) Login(ctx context.Context, user domain.User, creds Credentials) error {
	if user.ID == "" || creds.Token == "" {
		return errors.New("login requires a user id and a token")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.session != nil {
		if err := a.manager.storage.Delete(ctx, a.session.ID); err != nil {
			a.manager.logger.Warn("failed to delete previous session", zap.Error(err))
		}
	}

	sess := &domain.Session{
		ID:          uuid.NewString(),
		UserID:      user.ID,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		AvatarURL:   user.AvatarURL,
		Token:       creds.Token,
		AccessToken: creds.AccessToken,
		IsStaff:     user.IsStaff,
		Demo:        creds.Demo,
		CreatedAt:   a.manager.now().UTC(),
	}
	if err := a.manager.storage.Save(ctx, sess, a.manager.ttl); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	cookie, err := a.manager.codec.Encode(sess.ID)
	if err != nil {
		_ = a.manager.storage.Delete(ctx, sess.ID)
		return err
	}
	http.SetCookie(a.w, cookie)
	a.session = sess
	return nil
}

// Logout removes every trace of the session: the stored record, the cookie
// and the in-request state.
func (a *AuthStore) Logout(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	http.SetCookie(a.w, a.manager.codec.Expire())
	if a.session == nil {
		return nil
	}
	id := a.session.ID
	a.session = nil
	if err := a.manager.storage.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// SetUser refreshes the cached profile fields of the logged-in user.
func (a *AuthStore) SetUser(ctx context.Context, user domain.User) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.session == nil {
		return domain.ErrNotAuthenticated
	}
	if user.ID != "" && user.ID != a.session.UserID {
		return fmt.Errorf("cannot replace user %s with %s in session", a.session.UserID, user.ID)
	}
	updated := *a.session
	if user.Username != "" {
		updated.Username = user.Username
	}
	updated.DisplayName = user.DisplayName
	updated.AvatarURL = user.AvatarURL
	updated.IsStaff = user.IsStaff
	if err := a.manager.storage.Save(ctx, &updated, a.manager.ttl); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	a.session = &updated
	return nil
}
