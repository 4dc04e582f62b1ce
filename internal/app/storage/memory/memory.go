package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nexafin/marketsync/internal/app/domain/asset"
	"github.com/nexafin/marketsync/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
type Store struct {
	mu     sync.RWMutex
	nextID int64
	assets map[string]asset.Asset
	trades map[string]asset.Trade
}

var _ storage.AssetStore = (*Store)(nil)
var _ storage.TradeStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID: 1,
		assets: make(map[string]asset.Asset),
		trades: make(map[string]asset.Trade),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

// AssetStore implementation --------------------------------------------------

func (s *Store) CreateAsset(_ context.Context, a asset.Asset) (asset.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID == "" {
		a.ID = s.nextIDLocked()
	} else if _, exists := s.assets[a.ID]; exists {
		return asset.Asset{}, fmt.Errorf("asset %s already exists", a.ID)
	}
	for _, existing := range s.assets {
		if strings.EqualFold(existing.Symbol, a.Symbol) {
			return asset.Asset{}, fmt.Errorf("asset with symbol %s already exists", a.Symbol)
		}
	}

	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	s.assets[a.ID] = a
	return a, nil
}

func (s *Store) GetAsset(_ context.Context, id string) (asset.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.assets[id]
	if !ok {
		return asset.Asset{}, fmt.Errorf("asset %s not found", id)
	}
	return a, nil
}

func (s *Store) GetAssetBySymbol(_ context.Context, symbol string) (asset.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.assets {
		if strings.EqualFold(a.Symbol, symbol) {
			return a, nil
		}
	}
	return asset.Asset{}, fmt.Errorf("asset with symbol %s not found", symbol)
}

func (s *Store) ListAssets(_ context.Context) ([]asset.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]asset.Asset, 0, len(s.assets))
	for _, a := range s.assets {
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Symbol < result[j].Symbol })
	return result, nil
}

func (s *Store) UpdateAssetPrice(_ context.Context, id string, price float64, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.assets[id]
	if !ok {
		return fmt.Errorf("asset %s not found", id)
	}
	a.CurrentPrice = price
	a.UpdatedAt = updatedAt.UTC()
	s.assets[id] = a
	return nil
}

// TradeStore implementation --------------------------------------------------

func (s *Store) CreateTrade(_ context.Context, t asset.Trade) (asset.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == "" {
		t.ID = s.nextIDLocked()
	} else if _, exists := s.trades[t.ID]; exists {
		return asset.Trade{}, fmt.Errorf("trade %s already exists", t.ID)
	}
	if _, ok := s.assets[t.AssetID]; !ok {
		return asset.Trade{}, fmt.Errorf("asset %s not found", t.AssetID)
	}

	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	s.trades[t.ID] = t
	return t, nil
}

func (s *Store) GetTrade(_ context.Context, id string) (asset.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.trades[id]
	if !ok {
		return asset.Trade{}, fmt.Errorf("trade %s not found", id)
	}
	return t, nil
}

func (s *Store) ListTrades(_ context.Context, accountID string) ([]asset.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []asset.Trade
	for _, t := range s.trades {
		if accountID == "" || t.AccountID == accountID {
			result = append(result, t)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *Store) ListOpenTrades(_ context.Context) ([]asset.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []asset.Trade
	for _, t := range s.trades {
		if t.Open {
			result = append(result, t)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *Store) UpdateTradeProfit(_ context.Context, id string, profit float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.trades[id]
	if !ok {
		return fmt.Errorf("trade %s not found", id)
	}
	t.Profit = profit
	t.UpdatedAt = time.Now().UTC()
	s.trades[id] = t
	return nil
}
