// Package rate caches the DOGE/USD exchange rate used for price displays.
package rate

import (
	"context"
	"sync"
	"time"

	"github.com/Bernard-Murphy/dbay-public/internal/platform/logger"
	"github.com/Bernard-Murphy/dbay-public/internal/platform/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultTTL      = 5 * time.Minute
	DefaultFallback = 0.25
	refreshTimeout  = 10 * time.Second
)

// State is a read-only view of the cache for rendering and diagnostics.
type State struct {
	Rate        float64   `json:"rate"`
	LastFetched time.Time `json:"last_fetched,omitempty"`
	Stale       bool      `json:"stale"`
	Loading     bool      `json:"loading"`
	Error       string    `json:"error,omitempty"`
}

// Cache holds one rate. Reads never block on the price feed: a stale read
// schedules a background refresh and returns the last known value.
type Cache struct {
	fetcher Fetcher
	shared  SharedStore
	ttl     time.Duration
	logger  *logger.Logger
	metrics *metrics.MetricsManager
	now     func() time.Time

	mu          sync.RWMutex
	rate        float64
	lastFetched time.Time
	loading     bool
	lastErr     error

	group singleflight.Group
	wg    sync.WaitGroup
}

type Option func(*Cache)

func WithSharedStore(s SharedStore) Option { return func(c *Cache) { c.shared = s } }

func WithMetrics(m *metrics.MetricsManager) Option { return func(c *Cache) { c.metrics = m } }

func WithClock(now func() time.Time) Option { return func(c *Cache) { c.now = now } }

func NewCache(fetcher Fetcher, fallback float64, ttl time.Duration, log *logger.Logger, opts ...Option) *Cache {
	if fallback <= 0 {
		fallback = DefaultFallback
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		fetcher: fetcher,
		ttl:     ttl,
		rate:    fallback,
		logger:  log.Named("rate"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Rate returns the cached rate immediately, scheduling a refresh if stale.
func (c *Cache) Rate() float64 {
	c.mu.RLock()
	rate := c.rate
	stale := c.staleLocked()
	c.mu.RUnlock()

	if stale {
		c.refreshInBackground()
	}
	return rate
}

// State returns the current cache state without triggering a refresh.
func (c *Cache) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st := State{
		Rate:        c.rate,
		LastFetched: c.lastFetched,
		Stale:       c.staleLocked(),
		Loading:     c.loading,
	}
	if c.lastErr != nil {
		st.Error = c.lastErr.Error()
	}
	return st
}

// Refresh fetches synchronously. Concurrent callers share one fetch.
func (c *Cache) Refresh(ctx context.Context) error {
	_, err, _ := c.group.Do("refresh", func() (any, error) {
		return nil, c.refresh(ctx)
	})
	return err
}

// Wait blocks until scheduled background refreshes have finished.
func (c *Cache) Wait() {
	c.wg.Wait()
}

func (c *Cache) staleLocked() bool {
	return c.lastFetched.IsZero() || c.now().Sub(c.lastFetched) >= c.ttl
}

func (c *Cache) refreshInBackground() {
	c.mu.Lock()
	if c.loading {
		c.mu.Unlock()
		return
	}
	c.loading = true
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		if err := c.Refresh(ctx); err != nil {
			c.logger.Warn("DOGE/USD rate refresh failed, keeping previous value", zap.Error(err))
		}
	}()
}

func (c *Cache) refresh(ctx context.Context) error {
	defer func() {
		c.mu.Lock()
		c.loading = false
		c.mu.Unlock()
	}()

	if snap := c.loadShared(ctx); snap != nil {
		c.apply(*snap)
		c.metrics.RateRefreshed("shared")
		return nil
	}

	value, err := c.fetcher.Fetch(ctx)
	if err != nil {
		c.mu.Lock()
		c.lastErr = err
		c.mu.Unlock()
		c.metrics.RateRefreshed("error")
		return err
	}

	snap := Snapshot{Rate: value, FetchedAt: c.now()}
	c.apply(snap)
	c.metrics.RateRefreshed("success")

	if c.shared != nil {
		if err := c.shared.Save(ctx, snap); err != nil {
			c.logger.Warn("failed to share DOGE/USD rate", zap.Error(err))
		}
	}
	c.logger.Debug("DOGE/USD rate refreshed", zap.Float64("rate", value))
	return nil
}

// loadShared returns a snapshot from the shared store only if it is fresh.
func (c *Cache) loadShared(ctx context.Context) *Snapshot {
	if c.shared == nil {
		return nil
	}
	snap, err := c.shared.Load(ctx)
	if err != nil {
		c.logger.Warn("failed to load shared DOGE/USD rate", zap.Error(err))
		return nil
	}
	if snap == nil || snap.Rate <= 0 || c.now().Sub(snap.FetchedAt) >= c.ttl {
		return nil
	}
	return snap
}

func (c *Cache) apply(snap Snapshot) {
	c.mu.Lock()
	c.rate = snap.Rate
	c.lastFetched = snap.FetchedAt
	c.lastErr = nil
	c.mu.Unlock()
}
