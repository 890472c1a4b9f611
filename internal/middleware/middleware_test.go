package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Bernard-Murphy/dbay-public/internal/domain"
	"github.com/Bernard-Murphy/dbay-public/internal/platform/logger"
	"github.com/Bernard-Murphy/dbay-public/internal/platform/metrics"
	"github.com/Bernard-Murphy/dbay-public/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager() *session.Manager {
	codec := session.NewCookieCodec("test-secret", time.Hour, false)
	return session.NewManager(session.NewMemoryStorage(), codec, time.Hour, logger.NewNop())
}

// loginCookies logs user in and returns the cookies a browser would keep.
func loginCookies(t *testing.T, m *session.Manager, user domain.User) []*http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	store := m.Load(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, store.Login(context.Background(), user, session.Credentials{Token: "tok-" + user.ID.String()}))
	return rec.Result().Cookies()
}

func newRouter(m *session.Manager, profile ProfileFunc) *chi.Mux {
	r := chi.NewRouter()
	r.Use(Session(m))
	r.Get("/", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Group(func(r chi.Router) {
		r.Use(RequireAuth)
		r.Get("/dashboard", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("dashboard for " + UserIDFrom(r.Context()).String()))
		})
	})
	r.Group(func(r chi.Router) {
		r.Use(RequireStaff(profile, logger.NewNop()))
		r.Get("/admin", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("admin"))
		})
	})
	return r
}

func get(h http.Handler, path string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func noProfile(t *testing.T) ProfileFunc {
	return func(context.Context, *domain.Session) (*domain.User, error) {
		t.Fatal("profile lookup should not be called")
		return nil, nil
	}
}

func TestRequireAuth(t *testing.T) {
	m := newManager()
	r := newRouter(m, noProfile(t))

	rec := get(r, "/dashboard", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	cookies := loginCookies(t, m, domain.User{ID: "u1", Username: "shibe"})
	rec = get(r, "/dashboard", cookies)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "dashboard for u1", rec.Body.String())
}

func TestRequireStaff_AnonymousRedirected(t *testing.T) {
	r := newRouter(newManager(), noProfile(t))
	rec := get(r, "/admin", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}

func TestRequireStaff_CachedFlagSkipsLookup(t *testing.T) {
	m := newManager()
	r := newRouter(m, noProfile(t))
	cookies := loginCookies(t, m, domain.User{ID: "u1", Username: "admin", IsStaff: true})

	rec := get(r, "/admin", cookies)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin", rec.Body.String())
}

func TestRequireStaff_ConfirmsWithProfileAndCaches(t *testing.T) {
	m := newManager()
	calls := 0
	profile := func(_ context.Context, sess *domain.Session) (*domain.User, error) {
		calls++
		assert.Equal(t, "tok-u1", sess.Token)
		return &domain.User{ID: "u1", Username: "mod", IsStaff: true}, nil
	}
	r := newRouter(m, profile)
	cookies := loginCookies(t, m, domain.User{ID: "u1", Username: "mod"})

	assert.Equal(t, http.StatusOK, get(r, "/admin", cookies).Code)
	assert.Equal(t, http.StatusOK, get(r, "/admin", cookies).Code)
	assert.Equal(t, 1, calls)
}

func TestRequireStaff_NonStaffRedirected(t *testing.T) {
	m := newManager()
	profile := func(context.Context, *domain.Session) (*domain.User, error) {
		return &domain.User{ID: "u1", Username: "shibe"}, nil
	}
	r := newRouter(m, profile)
	cookies := loginCookies(t, m, domain.User{ID: "u1", Username: "shibe"})

	rec := get(r, "/admin", cookies)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}

func TestRequireStaff_LookupFailureRedirected(t *testing.T) {
	m := newManager()
	profile := func(context.Context, *domain.Session) (*domain.User, error) {
		return nil, errors.New("user service unavailable")
	}
	r := newRouter(m, profile)
	cookies := loginCookies(t, m, domain.User{ID: "u1", Username: "shibe"})

	assert.Equal(t, http.StatusSeeOther, get(r, "/admin", cookies).Code)
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r.Context())
	}))

	rec := get(h, "/", nil)
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "6f1c2b9e-3f5a-4d39-9a8c-0d4c1f0e7b21")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "6f1c2b9e-3f5a-4d39-9a8c-0d4c1f0e7b21", seen)
}

func TestLogger_RecordsRoutePattern(t *testing.T) {
	m := metrics.NewMetricsManager("test")
	r := chi.NewRouter()
	r.Use(Logger(logger.NewNop(), m))
	r.Get("/listings/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	get(r, "/listings/42", nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PageRequestsTotal.WithLabelValues("/listings/{id}", http.MethodGet, "404")))
}
