package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Bernard-Murphy/dbay-public/internal/domain"
	"github.com/Bernard-Murphy/dbay-public/internal/platform/logger"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(storage Storage) *Manager {
	return NewManager(storage, NewCookieCodec("test-secret", time.Hour, false), time.Hour, logger.NewNop())
}

// reload replays the cookies set on a previous response, as a browser would.
func reload(t *testing.T, m *Manager, prev *httptest.ResponseRecorder) (*AuthStore, *httptest.ResponseRecorder) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range prev.Result().Cookies() {
		if c.MaxAge >= 0 {
			req.AddCookie(c)
		}
	}
	rec := httptest.NewRecorder()
	return m.Load(rec, req), rec
}

func sessionLifecycle(t *testing.T, storage Storage) {
	ctx := context.Background()
	m := newTestManager(storage)

	rec := httptest.NewRecorder()
	store := m.Load(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, store.IsAuthenticated())

	user := domain.User{ID: "u-1", Username: "shibe", DisplayName: "Shibe", IsStaff: false}
	require.NoError(t, store.Login(ctx, user, Credentials{Token: "tok-123"}))
	assert.True(t, store.IsAuthenticated())

	restored, rec2 := reload(t, m, rec)
	require.True(t, restored.IsAuthenticated())
	sess := restored.Current()
	assert.Equal(t, "tok-123", sess.Token)
	assert.Equal(t, domain.ID("u-1"), sess.UserID)
	assert.Equal(t, "Shibe", sess.DisplayName)

	user.DisplayName = "Such Shibe"
	user.IsStaff = true
	require.NoError(t, restored.SetUser(ctx, user))
	again, _ := reload(t, m, rec)
	assert.Equal(t, "Such Shibe", again.Current().DisplayName)
	assert.True(t, again.Current().IsStaff)

	require.NoError(t, restored.Logout(ctx))
	assert.False(t, restored.IsAuthenticated())
	assert.Nil(t, restored.Current())

	expired := false
	for _, c := range rec2.Result().Cookies() {
		if c.Name == DefaultCookieName && c.MaxAge < 0 {
			expired = true
		}
	}
	assert.True(t, expired, "logout must expire the cookie")

	afterLogout, _ := reload(t, m, rec)
	assert.False(t, afterLogout.IsAuthenticated(), "old cookie must not restore a logged-out session")
	_, err := storage.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSessionLifecycle_Memory(t *testing.T) {
	sessionLifecycle(t, NewMemoryStorage())
}

func TestSessionLifecycle_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	sessionLifecycle(t, NewRedisStorage(client))
}

func TestLogin_ReplacesPreviousSession(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	m := newTestManager(storage)

	rec := httptest.NewRecorder()
	store := m.Load(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, store.Login(ctx, domain.User{ID: "a"}, Credentials{Token: "t1"}))
	first := store.Current().ID

	require.NoError(t, store.Login(ctx, domain.User{ID: "b"}, Credentials{Token: "t2"}))
	assert.NotEqual(t, first, store.Current().ID)
	_, err := storage.Get(ctx, first)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestLogin_RequiresUserAndToken(t *testing.T) {
	m := newTestManager(NewMemoryStorage())
	store := m.Load(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Error(t, store.Login(context.Background(), domain.User{}, Credentials{Token: "t"}))
	assert.Error(t, store.Login(context.Background(), domain.User{ID: "u"}, Credentials{}))
}

func TestSetUser_RequiresSession(t *testing.T) {
	m := newTestManager(NewMemoryStorage())
	store := m.Load(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.ErrorIs(t, store.SetUser(context.Background(), domain.User{ID: "u"}), domain.ErrNotAuthenticated)
}

func TestLoad_TamperedCookieIsIgnored(t *testing.T) {
	m := newTestManager(NewMemoryStorage())
	other := NewCookieCodec("other-secret", time.Hour, false)
	cookie, err := other.Encode("some-id")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	store := m.Load(rec, req)

	assert.False(t, store.IsAuthenticated())
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Less(t, cookies[0].MaxAge, 0)
}

func TestMemoryStorage_Expiry(t *testing.T) {
	s := NewMemoryStorage().(*memoryStorage)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Save(context.Background(), &domain.Session{ID: "s1", UserID: "u", Token: "t"}, time.Minute))
	_, err := s.Get(context.Background(), "s1")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = s.Get(context.Background(), "s1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestMemoryStorage_SweepsAbandonedSessions(t *testing.T) {
	s := NewMemoryStorage().(*memoryStorage)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	for _, id := range []string{"a1", "a2", "a3"} {
		require.NoError(t, s.Save(ctx, &domain.Session{ID: id, UserID: "u", Token: "t"}, time.Minute))
	}
	require.NoError(t, s.Save(ctx, &domain.Session{ID: "keep", UserID: "u", Token: "t"}, time.Hour))

	// Within the sweep interval nothing is purged yet.
	now = now.Add(30 * time.Second)
	require.NoError(t, s.Save(ctx, &domain.Session{ID: "b1", UserID: "u", Token: "t"}, time.Hour))
	assert.Len(t, s.entries, 5)

	now = now.Add(2 * time.Minute)
	require.NoError(t, s.Save(ctx, &domain.Session{ID: "b2", UserID: "u", Token: "t"}, time.Hour))
	assert.Len(t, s.entries, 3)
	assert.Contains(t, s.entries, "keep")
	assert.NotContains(t, s.entries, "a1")
}

func TestCookieCodec_ExpiredToken(t *testing.T) {
	codec := NewCookieCodec("secret", time.Minute, true)
	issued := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	codec.now = func() time.Time { return issued }
	cookie, err := codec.Encode("sid")
	require.NoError(t, err)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	id, err := codec.Decode(req)
	require.NoError(t, err)
	assert.Equal(t, "sid", id)

	codec.now = func() time.Time { return issued.Add(time.Hour) }
	_, err = codec.Decode(req)
	assert.Error(t, err)
}
