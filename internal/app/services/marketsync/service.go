package marketsync

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/nexafin/marketsync/internal/app/domain/asset"
	"github.com/nexafin/marketsync/internal/app/domain/market"
	"github.com/nexafin/marketsync/internal/app/metrics"
	"github.com/nexafin/marketsync/internal/app/storage"
	"github.com/nexafin/marketsync/pkg/logger"
)

// ErrSyncInFlight is returned when a pass is already running and its lease has
// not expired. Callers treat it as a no-op, not a failure.
var ErrSyncInFlight = errors.New("price sync already in progress")

// defaultSyncLease bounds how long an in-flight pass blocks new ones. A pass
// wedged on a hung upstream stops shadowing future syncs once the lease runs
// out.
const defaultSyncLease = 30 * time.Second

// defaultFetchTimeout caps each upstream call within a pass.
const defaultFetchTimeout = 5 * time.Second

// SnapshotFetcher produces symbol -> price for one provider family. A fetch
// that resolves nothing returns an empty or nil map.
type SnapshotFetcher interface {
	Fetch(ctx context.Context) map[string]float64
}

// SnapshotFetcherFunc adapts a function to the SnapshotFetcher interface.
type SnapshotFetcherFunc func(ctx context.Context) map[string]float64

func (f SnapshotFetcherFunc) Fetch(ctx context.Context) map[string]float64 {
	if f == nil {
		return nil
	}
	return f(ctx)
}

// ProfitRecomputer recalculates dependent trade profits after a pass.
type ProfitRecomputer interface {
	Recompute(ctx context.Context) (int, error)
}

// Service orchestrates one synchronization pass: fetch both providers
// concurrently, match fetched prices to stored assets, persist per-asset
// best-effort, then trigger profit recomputation exactly once.
type Service struct {
	assets  storage.AssetStore
	crypto  SnapshotFetcher
	forex   SnapshotFetcher
	profits ProfitRecomputer
	log     *logger.Logger

	fetchTimeout time.Duration
	lease        time.Duration

	mu        sync.Mutex
	syncing   bool
	startedAt time.Time
}

// New constructs a synchronizer. Either fetcher may be nil; that provider then
// contributes nothing to a pass.
func New(assets storage.AssetStore, crypto, forex SnapshotFetcher, profits ProfitRecomputer, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("marketsync")
	}
	return &Service{
		assets:       assets,
		crypto:       crypto,
		forex:        forex,
		profits:      profits,
		log:          log,
		fetchTimeout: defaultFetchTimeout,
		lease:        defaultSyncLease,
	}
}

// Sync runs one pass and returns its summary. It returns ErrSyncInFlight when
// another pass holds the lease, and a terminal error only when the asset list
// cannot be read. Upstream failures, individual write failures, and recompute
// failures are absorbed into the summary and logs.
func (s *Service) Sync(ctx context.Context) (market.SyncResult, error) {
	if !s.tryAcquire() {
		return market.SyncResult{}, ErrSyncInFlight
	}
	defer s.release()

	start := time.Now()
	snapshot := s.fetchSnapshot(ctx)
	metrics.RecordProviderFetch("crypto", snapshot.CryptoCount())
	metrics.RecordProviderFetch("forex", snapshot.ForexCount())

	assets, err := s.assets.ListAssets(ctx)
	if err != nil {
		metrics.RecordSyncPass("error", time.Since(start))
		return market.SyncResult{}, fmt.Errorf("list assets: %w", err)
	}

	result := market.SyncResult{
		CryptoCount: snapshot.CryptoCount(),
		ForexCount:  snapshot.ForexCount(),
	}

	now := time.Now().UTC()
	for _, a := range assets {
		price, ok := resolvePrice(a, snapshot)
		if !ok {
			result.Skipped++
			continue
		}
		update := market.AssetUpdate{AssetID: a.ID, Symbol: a.Symbol, Price: price}
		if err := s.assets.UpdateAssetPrice(ctx, a.ID, price, now); err != nil {
			update.ErrorMsg = err.Error()
			s.log.WithError(err).
				WithField("asset_id", a.ID).
				WithField("symbol", a.Symbol).
				Warn("asset price update failed")
		} else {
			update.Updated = true
			result.Updated++
		}
		result.Updates = append(result.Updates, update)
	}

	// Ordered strictly after all per-asset attempts; its failure never fails
	// the pass.
	if s.profits != nil {
		if n, err := s.profits.Recompute(ctx); err != nil {
			s.log.WithError(err).Warn("profit recompute failed")
		} else {
			s.log.WithField("trades", n).Debug("profits recomputed")
		}
	}

	result.Timestamp = now
	metrics.RecordSyncPass("success", time.Since(start))
	metrics.RecordAssetsUpdated(result.Updated)

	s.log.WithField("crypto", result.CryptoCount).
		WithField("forex", result.ForexCount).
		WithField("updated", result.Updated).
		WithField("skipped", result.Skipped).
		Info("price sync completed")
	return result, nil
}

// fetchSnapshot issues both upstream calls together and waits for the slower
// one. Each call gets its own timeout so a hung provider cannot stall the pass
// past the lease.
func (s *Service) fetchSnapshot(ctx context.Context) market.Snapshot {
	var snapshot market.Snapshot
	var wg sync.WaitGroup

	if s.crypto != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
			defer cancel()
			snapshot.Crypto = s.crypto.Fetch(fetchCtx)
		}()
	}
	if s.forex != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
			defer cancel()
			snapshot.Forex = s.forex.Fetch(fetchCtx)
		}()
	}
	wg.Wait()
	return snapshot
}

// resolvePrice matches an asset to its snapshot entry. Crypto assets match on
// the base symbol before the slash, forex assets on the full pair. A price is
// only accepted when positive and finite; otherwise the asset keeps its prior
// value.
func resolvePrice(a asset.Asset, snapshot market.Snapshot) (float64, bool) {
	var price float64
	var ok bool
	switch a.Type {
	case asset.TypeCrypto:
		price, ok = snapshot.Crypto[strings.ToUpper(BaseSymbol(a.Symbol))]
	case asset.TypeForex:
		price, ok = snapshot.Forex[strings.ToUpper(a.Symbol)]
	}
	if !ok || price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return 0, false
	}
	return price, true
}

func (s *Service) tryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.syncing && time.Since(s.startedAt) < s.lease {
		return false
	}
	s.syncing = true
	s.startedAt = time.Now()
	return true
}

func (s *Service) release() {
	s.mu.Lock()
	s.syncing = false
	s.mu.Unlock()
}
