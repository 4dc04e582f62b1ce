// Package pricecache provides the embedding client's view of market prices: a
// TTL cache over the asset table plus a duplicate-suppressing sync trigger
// with a background freshness check.
package pricecache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/nexafin/marketsync/internal/app/domain/asset"
	"github.com/nexafin/marketsync/internal/app/domain/market"
	"github.com/nexafin/marketsync/internal/app/services/marketsync"
	"github.com/nexafin/marketsync/internal/app/system"
	"github.com/nexafin/marketsync/pkg/logger"
)

// State describes the trigger's lifecycle. It resets to idle at process start.
type State string

const (
	StateIdle    State = "idle"
	StateSyncing State = "syncing"
	StateSuccess State = "success"
	StateError   State = "error"
)

// Status is the observable sync state exposed to the UI.
type Status struct {
	State     State     `json:"state"`
	LastSync  time.Time `json:"last_sync"`
	LastError string    `json:"last_error,omitempty"`
}

// SyncFunc triggers one synchronization pass.
type SyncFunc func(ctx context.Context) (market.SyncResult, error)

// PriceReader lists assets so the cache can be refilled after a pass.
type PriceReader interface {
	ListAssets(ctx context.Context) ([]asset.Asset, error)
}

const (
	defaultTTL           = 30 * time.Second
	defaultRefreshEvery  = 15 * time.Second
	defaultStaleAfter    = time.Minute
	defaultInFlightLease = 30 * time.Second
)

// staticFallback prices are served before the first successful fetch so the
// dashboard renders something rather than zeros.
var staticFallback = map[string]float64{
	"BTC":     97000,
	"ETH":     3400,
	"SOL":     190,
	"EUR/USD": 1.09,
	"GBP/USD": 1.27,
	"USD/JPY": 149.50,
}

var _ system.Service = (*Cache)(nil)

// Cache caches per-symbol prices with a fixed TTL and deduplicates concurrent
// sync triggers. Only one sync is ever in flight; a second trigger while one
// is outstanding is a silent no-op. The in-flight flag carries a lease so a
// wedged pass cannot suppress refreshes forever.
type Cache struct {
	prices *gocache.Cache
	sync   SyncFunc
	reader PriceReader
	log    *logger.Logger

	ttl          time.Duration
	refreshEvery time.Duration
	staleAfter   time.Duration
	lease        time.Duration

	mu        sync.Mutex
	inFlight  bool
	startedAt time.Time
	status    Status

	lifecycle sync.Mutex
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	running   bool
}

// New constructs a cache around a sync trigger and a price reader.
func New(syncFn SyncFunc, reader PriceReader, log *logger.Logger) *Cache {
	if log == nil {
		log = logger.NewDefault("pricecache")
	}
	return &Cache{
		prices:       gocache.New(defaultTTL, 2*defaultTTL),
		sync:         syncFn,
		reader:       reader,
		log:          log,
		ttl:          defaultTTL,
		refreshEvery: defaultRefreshEvery,
		staleAfter:   defaultStaleAfter,
		lease:        defaultInFlightLease,
		status:       Status{State: StateIdle},
	}
}

// Price returns the cached price for a symbol, or a static fallback when the
// symbol was never fetched. It never blocks on the network.
func (c *Cache) Price(symbol string, assetType asset.Type) float64 {
	key := cacheKey(symbol, assetType)
	if v, ok := c.prices.Get(key); ok {
		return v.(float64)
	}
	if assetType == asset.TypeCrypto {
		if p, ok := staticFallback[strings.ToUpper(marketsync.BaseSymbol(symbol))]; ok {
			return p
		}
	}
	if p, ok := staticFallback[strings.ToUpper(symbol)]; ok {
		return p
	}
	return 0
}

// Status reports the current sync state.
func (c *Cache) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Refetch forces a new pass unless one is already outstanding, in which case
// it returns immediately without error. The triggered pass runs to completion
// before Refetch returns.
func (c *Cache) Refetch(ctx context.Context) {
	if !c.tryAcquire() {
		return
	}
	defer c.release()

	result, err := c.sync(ctx)
	if err != nil {
		if errors.Is(err, marketsync.ErrSyncInFlight) {
			// Another client's pass is running; its results will land in
			// storage and the next reload picks them up.
			c.setStatus(StateIdle, "")
			return
		}
		c.log.WithError(err).Warn("price refetch failed")
		c.setStatus(StateError, err.Error())
		return
	}

	c.reload(ctx)
	c.mu.Lock()
	c.status = Status{State: StateSuccess, LastSync: result.Timestamp}
	c.mu.Unlock()
}

// reload refills the cache from storage after a pass.
func (c *Cache) reload(ctx context.Context) {
	if c.reader == nil {
		return
	}
	assets, err := c.reader.ListAssets(ctx)
	if err != nil {
		c.log.WithError(err).Warn("price cache reload failed")
		return
	}
	for _, a := range assets {
		if a.CurrentPrice > 0 {
			c.prices.Set(cacheKey(a.Symbol, a.Type), a.CurrentPrice, c.ttl)
		}
	}
}

// Name implements system.Service.
func (c *Cache) Name() string { return "pricecache-refresh" }

// Start launches the background freshness check. The timer is a fallback for
// a stalled feed, not an independent trigger path: it only fires a sync when
// the last successful pass is older than the stale threshold.
func (c *Cache) Start(ctx context.Context) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	if c.running {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.running = true

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.refreshEvery)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if c.isStale() {
					c.Refetch(runCtx)
				}
			}
		}
	}()
	return nil
}

// Stop halts the background refresh.
func (c *Cache) Stop(ctx context.Context) error {
	c.lifecycle.Lock()
	if !c.running {
		c.lifecycle.Unlock()
		return nil
	}
	cancel := c.cancel
	c.running = false
	c.cancel = nil
	c.lifecycle.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (c *Cache) isStale() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status.State == StateSyncing {
		return false
	}
	return c.status.LastSync.IsZero() || time.Since(c.status.LastSync) > c.staleAfter
}

func (c *Cache) tryAcquire() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight && time.Since(c.startedAt) < c.lease {
		return false
	}
	c.inFlight = true
	c.startedAt = time.Now()
	c.status.State = StateSyncing
	return true
}

func (c *Cache) release() {
	c.mu.Lock()
	c.inFlight = false
	if c.status.State == StateSyncing {
		c.status.State = StateIdle
	}
	c.mu.Unlock()
}

func (c *Cache) setStatus(state State, errMsg string) {
	c.mu.Lock()
	c.status.State = state
	c.status.LastError = errMsg
	c.mu.Unlock()
}

func cacheKey(symbol string, assetType asset.Type) string {
	return string(assetType) + ":" + strings.ToUpper(symbol)
}
