package marketsync

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nexafin/marketsync/internal/app/domain/asset"
	"github.com/nexafin/marketsync/internal/app/domain/market"
	"github.com/nexafin/marketsync/internal/app/storage/memory"
)

type staticFetcher struct {
	prices map[string]float64
	calls  int64
}

func (f *staticFetcher) Fetch(context.Context) map[string]float64 {
	atomic.AddInt64(&f.calls, 1)
	return f.prices
}

type blockingFetcher struct {
	release chan struct{}
	calls   int64
}

func (f *blockingFetcher) Fetch(ctx context.Context) map[string]float64 {
	atomic.AddInt64(&f.calls, 1)
	select {
	case <-f.release:
	case <-ctx.Done():
	}
	return map[string]float64{"BTC": 50000}
}

type countingRecomputer struct {
	calls int64
	err   error
}

func (r *countingRecomputer) Recompute(context.Context) (int, error) {
	atomic.AddInt64(&r.calls, 1)
	return 0, r.err
}

type failingAssetLister struct {
	*memory.Store
}

func (failingAssetLister) ListAssets(context.Context) ([]asset.Asset, error) {
	return nil, errors.New("storage down")
}

func seedAssets(t *testing.T, store *memory.Store, assets ...asset.Asset) map[string]asset.Asset {
	t.Helper()
	created := make(map[string]asset.Asset, len(assets))
	for _, a := range assets {
		got, err := store.CreateAsset(context.Background(), a)
		if err != nil {
			t.Fatalf("seed asset %s: %v", a.Symbol, err)
		}
		created[got.Symbol] = got
	}
	return created
}

func TestSyncUpdatesMatchedAssets(t *testing.T) {
	store := memory.New()
	seeded := seedAssets(t, store,
		asset.Asset{Symbol: "BTC/USDT", Type: asset.TypeCrypto},
		asset.Asset{Symbol: "EUR/USD", Type: asset.TypeForex},
		asset.Asset{Symbol: "OBSCURE/USDT", Type: asset.TypeCrypto},
	)

	crypto := &staticFetcher{prices: map[string]float64{"BTC": 97000}}
	forex := &staticFetcher{prices: map[string]float64{"EUR/USD": 1.09}}
	recomputer := &countingRecomputer{}

	svc := New(store, crypto, forex, recomputer, nil)
	result, err := svc.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}

	if result.CryptoCount != 1 || result.ForexCount != 1 {
		t.Errorf("counts = %d/%d, want 1/1", result.CryptoCount, result.ForexCount)
	}
	if result.Updated != 2 {
		t.Errorf("updated = %d, want 2", result.Updated)
	}
	if result.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", result.Skipped)
	}
	if result.Timestamp.IsZero() {
		t.Error("result timestamp not set")
	}

	btc, err := store.GetAsset(context.Background(), seeded["BTC/USDT"].ID)
	if err != nil {
		t.Fatal(err)
	}
	if btc.CurrentPrice != 97000 {
		t.Errorf("BTC price = %v", btc.CurrentPrice)
	}

	obscure, err := store.GetAsset(context.Background(), seeded["OBSCURE/USDT"].ID)
	if err != nil {
		t.Fatal(err)
	}
	if obscure.CurrentPrice != 0 {
		t.Errorf("unmatched asset must keep its prior price, got %v", obscure.CurrentPrice)
	}

	if n := atomic.LoadInt64(&recomputer.calls); n != 1 {
		t.Errorf("profit recompute ran %d times, want exactly 1", n)
	}
}

func TestSyncIdempotentWithUnchangedUpstream(t *testing.T) {
	store := memory.New()
	seeded := seedAssets(t, store, asset.Asset{Symbol: "BTC/USDT", Type: asset.TypeCrypto})

	crypto := &staticFetcher{prices: map[string]float64{"BTC": 97000}}
	svc := New(store, crypto, nil, nil, nil)

	if _, err := svc.Sync(context.Background()); err != nil {
		t.Fatalf("first pass: %v", err)
	}
	first, err := store.GetAsset(context.Background(), seeded["BTC/USDT"].ID)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Sync(context.Background()); err != nil {
		t.Fatalf("second pass: %v", err)
	}
	second, err := store.GetAsset(context.Background(), seeded["BTC/USDT"].ID)
	if err != nil {
		t.Fatal(err)
	}

	if second.CurrentPrice != first.CurrentPrice {
		t.Errorf("price changed across identical passes: %v -> %v", first.CurrentPrice, second.CurrentPrice)
	}
	if second.UpdatedAt.Before(first.UpdatedAt) {
		t.Errorf("updatedAt went backwards: %v -> %v", first.UpdatedAt, second.UpdatedAt)
	}
}

func TestSyncPartialProviderFailure(t *testing.T) {
	store := memory.New()
	seedAssets(t, store,
		asset.Asset{Symbol: "BTC/USDT", Type: asset.TypeCrypto},
		asset.Asset{Symbol: "EUR/USD", Type: asset.TypeForex},
	)

	// Crypto provider down: nil map, no error. The pass proceeds on forex.
	crypto := &staticFetcher{prices: nil}
	forex := &staticFetcher{prices: map[string]float64{"EUR/USD": 1.09}}

	svc := New(store, crypto, forex, nil, nil)
	result, err := svc.Sync(context.Background())
	if err != nil {
		t.Fatalf("partial failure must not fail the pass: %v", err)
	}
	if result.CryptoCount != 0 {
		t.Errorf("cryptoCount = %d, want 0", result.CryptoCount)
	}
	if result.ForexCount != 1 || result.Updated != 1 {
		t.Errorf("forexCount/updated = %d/%d, want 1/1", result.ForexCount, result.Updated)
	}
	if result.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", result.Skipped)
	}
}

func TestSyncNilFetchers(t *testing.T) {
	store := memory.New()
	seedAssets(t, store, asset.Asset{Symbol: "BTC/USDT", Type: asset.TypeCrypto})

	svc := New(store, nil, nil, nil, nil)
	result, err := svc.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if result.Updated != 0 || result.Skipped != 1 {
		t.Errorf("updated/skipped = %d/%d, want 0/1", result.Updated, result.Skipped)
	}
}

func TestSyncListAssetsFailureIsTerminal(t *testing.T) {
	crypto := &staticFetcher{prices: map[string]float64{"BTC": 97000}}
	svc := New(failingAssetLister{memory.New()}, crypto, nil, nil, nil)

	if _, err := svc.Sync(context.Background()); err == nil {
		t.Fatal("expected terminal error when assets cannot be listed")
	}
}

func TestSyncRecomputeFailureDoesNotFailPass(t *testing.T) {
	store := memory.New()
	seedAssets(t, store, asset.Asset{Symbol: "BTC/USDT", Type: asset.TypeCrypto})

	crypto := &staticFetcher{prices: map[string]float64{"BTC": 97000}}
	recomputer := &countingRecomputer{err: errors.New("recompute broke")}

	svc := New(store, crypto, nil, recomputer, nil)
	result, err := svc.Sync(context.Background())
	if err != nil {
		t.Fatalf("recompute failure must be absorbed: %v", err)
	}
	if result.Updated != 1 {
		t.Errorf("updated = %d, want 1", result.Updated)
	}
}

func TestSyncInFlightGuard(t *testing.T) {
	store := memory.New()
	seedAssets(t, store, asset.Asset{Symbol: "BTC/USDT", Type: asset.TypeCrypto})

	crypto := &blockingFetcher{release: make(chan struct{})}
	svc := New(store, crypto, nil, nil, nil)

	firstDone := make(chan error, 1)
	go func() {
		_, err := svc.Sync(context.Background())
		firstDone <- err
	}()

	// Wait until the first pass holds the lease inside its fetch.
	deadline := time.After(2 * time.Second)
	for atomic.LoadInt64(&crypto.calls) == 0 {
		select {
		case <-deadline:
			t.Fatal("first pass never reached its fetch")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if _, err := svc.Sync(context.Background()); !errors.Is(err, ErrSyncInFlight) {
		t.Fatalf("second trigger = %v, want ErrSyncInFlight", err)
	}

	close(crypto.release)
	if err := <-firstDone; err != nil {
		t.Fatalf("first pass: %v", err)
	}

	if n := atomic.LoadInt64(&crypto.calls); n != 1 {
		t.Errorf("fetch rounds = %d, want 1", n)
	}

	// Lease released: a fresh trigger runs again.
	if _, err := svc.Sync(context.Background()); err != nil {
		t.Fatalf("post-release sync: %v", err)
	}
}

func TestSyncExpiredLeaseAdmitsNewPass(t *testing.T) {
	svc := New(memory.New(), nil, nil, nil, nil)
	svc.lease = time.Millisecond

	if !svc.tryAcquire() {
		t.Fatal("initial acquire failed")
	}
	time.Sleep(5 * time.Millisecond)
	if !svc.tryAcquire() {
		t.Fatal("expired lease must not block a new pass")
	}
}

func TestResolvePriceRejectsInvalidValues(t *testing.T) {
	a := asset.Asset{Symbol: "BTC/USDT", Type: asset.TypeCrypto}
	cases := []float64{0, -5, math.NaN(), math.Inf(1), math.Inf(-1)}
	for _, bad := range cases {
		snapshot := market.Snapshot{Crypto: map[string]float64{"BTC": bad}}
		if _, ok := resolvePrice(a, snapshot); ok {
			t.Errorf("price %v accepted, want rejection", bad)
		}
	}

	good := market.Snapshot{Crypto: map[string]float64{"BTC": 97000}}
	price, ok := resolvePrice(a, good)
	if !ok || price != 97000 {
		t.Fatalf("resolvePrice = %v, %v", price, ok)
	}
}

func TestResolvePriceForexUsesFullPair(t *testing.T) {
	a := asset.Asset{Symbol: "eur/usd", Type: asset.TypeForex}
	snapshot := market.Snapshot{Forex: map[string]float64{"EUR/USD": 1.09}}
	price, ok := resolvePrice(a, snapshot)
	if !ok || price != 1.09 {
		t.Fatalf("resolvePrice = %v, %v", price, ok)
	}
}
