package rate

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Bernard-Murphy/dbay-public/internal/platform/logger"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) Fetch(ctx context.Context) (float64, error) {
	args := m.Called(ctx)
	return args.Get(0).(float64), args.Error(1)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func TestCache_ReturnsFallbackImmediatelyAndRefreshesInBackground(t *testing.T) {
	fetcher := new(MockFetcher)
	fetcher.On("Fetch", mock.Anything).Return(0.12, nil).Once()
	clock := newClock()
	cache := NewCache(fetcher, 0.25, 5*time.Minute, logger.NewNop(), WithClock(clock.Now))

	assert.Equal(t, 0.25, cache.Rate())
	cache.Wait()

	assert.Equal(t, 0.12, cache.Rate())
	assert.False(t, cache.State().Stale)
	fetcher.AssertExpectations(t)
}

func TestCache_StaleReadReturnsOldValueAndTriggersRefresh(t *testing.T) {
	fetcher := new(MockFetcher)
	fetcher.On("Fetch", mock.Anything).Return(0.10, nil).Once()
	clock := newClock()
	cache := NewCache(fetcher, 0.25, 5*time.Minute, logger.NewNop(), WithClock(clock.Now))

	require.NoError(t, cache.Refresh(context.Background()))
	assert.Equal(t, 0.10, cache.Rate())

	clock.Advance(5*time.Minute + time.Second)
	fetcher.On("Fetch", mock.Anything).Return(0.20, nil).Once()

	assert.True(t, cache.State().Stale)
	assert.Equal(t, 0.10, cache.Rate(), "stale read must return the previous value synchronously")
	cache.Wait()

	assert.Equal(t, 0.20, cache.Rate())
	fetcher.AssertNumberOfCalls(t, "Fetch", 2)
}

func TestCache_FreshReadDoesNotFetch(t *testing.T) {
	fetcher := new(MockFetcher)
	fetcher.On("Fetch", mock.Anything).Return(0.10, nil).Once()
	clock := newClock()
	cache := NewCache(fetcher, 0.25, 5*time.Minute, logger.NewNop(), WithClock(clock.Now))
	require.NoError(t, cache.Refresh(context.Background()))

	clock.Advance(4 * time.Minute)
	for i := 0; i < 10; i++ {
		assert.Equal(t, 0.10, cache.Rate())
	}
	cache.Wait()
	fetcher.AssertNumberOfCalls(t, "Fetch", 1)
}

func TestCache_FailedRefreshKeepsPreviousValueAndRetriesNextRead(t *testing.T) {
	fetcher := new(MockFetcher)
	fetcher.On("Fetch", mock.Anything).Return(0.15, nil).Once()
	clock := newClock()
	cache := NewCache(fetcher, 0.25, 5*time.Minute, logger.NewNop(), WithClock(clock.Now))
	require.NoError(t, cache.Refresh(context.Background()))

	clock.Advance(10 * time.Minute)
	fetcher.On("Fetch", mock.Anything).Return(0.0, errors.New("feed down")).Once()

	assert.Equal(t, 0.15, cache.Rate())
	cache.Wait()

	st := cache.State()
	assert.Equal(t, 0.15, st.Rate)
	assert.True(t, st.Stale)
	assert.Equal(t, "feed down", st.Error)
	assert.False(t, st.Loading)
}

func TestCache_UsesFreshSharedSnapshot(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	shared := NewRedisStore(client, time.Hour)
	clock := newClock()

	require.NoError(t, shared.Save(context.Background(), Snapshot{Rate: 0.33, FetchedAt: clock.Now().Add(-time.Minute)}))

	fetcher := new(MockFetcher)
	cache := NewCache(fetcher, 0.25, 5*time.Minute, logger.NewNop(), WithClock(clock.Now), WithSharedStore(shared))
	require.NoError(t, cache.Refresh(context.Background()))

	assert.Equal(t, 0.33, cache.Rate())
	fetcher.AssertNotCalled(t, "Fetch", mock.Anything)
}

func TestCache_SavesFetchedRateToSharedStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	shared := NewRedisStore(client, time.Hour)
	clock := newClock()

	require.NoError(t, shared.Save(context.Background(), Snapshot{Rate: 0.33, FetchedAt: clock.Now().Add(-time.Hour)}))

	fetcher := new(MockFetcher)
	fetcher.On("Fetch", mock.Anything).Return(0.18, nil).Once()
	cache := NewCache(fetcher, 0.25, 5*time.Minute, logger.NewNop(), WithClock(clock.Now), WithSharedStore(shared))
	require.NoError(t, cache.Refresh(context.Background()))

	snap, err := shared.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 0.18, snap.Rate)
	assert.True(t, clock.Now().Equal(snap.FetchedAt))
}

func TestCoinGeckoFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "dogecoin", r.URL.Query().Get("ids"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"dogecoin":{"usd":0.1234}}`))
	}))
	defer srv.Close()

	f := NewCoinGeckoFetcher(srv.URL+"/api/v3/simple/price?ids=dogecoin&vs_currencies=usd", time.Second)
	v, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.1234, v)
}

func TestCoinGeckoFetcher_InvalidResponses(t *testing.T) {
	bodies := []string{`{"dogecoin":{}}`, `{"bitcoin":{"usd":1}}`, `not json`}
	for _, body := range bodies {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		}))
		_, err := NewCoinGeckoFetcher(srv.URL, time.Second).Fetch(context.Background())
		assert.ErrorIs(t, err, ErrInvalidRate, body)
		srv.Close()
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()
	_, err := NewCoinGeckoFetcher(srv.URL, time.Second).Fetch(context.Background())
	assert.Error(t, err)
}
