package storage

import (
	"context"
	"time"

	"github.com/nexafin/marketsync/internal/app/domain/asset"
)

// AssetStore persists tradeable assets. UpdateAssetPrice is a per-row atomic
// write touching only the price and its timestamp; concurrent writers converge
// to last-write-wins, which is acceptable for volatile market quotes.
type AssetStore interface {
	CreateAsset(ctx context.Context, a asset.Asset) (asset.Asset, error)
	GetAsset(ctx context.Context, id string) (asset.Asset, error)
	GetAssetBySymbol(ctx context.Context, symbol string) (asset.Asset, error)
	ListAssets(ctx context.Context) ([]asset.Asset, error)
	UpdateAssetPrice(ctx context.Context, id string, price float64, updatedAt time.Time) error
}

// TradeStore persists simulated trades and their recomputed profits.
type TradeStore interface {
	CreateTrade(ctx context.Context, t asset.Trade) (asset.Trade, error)
	GetTrade(ctx context.Context, id string) (asset.Trade, error)
	ListTrades(ctx context.Context, accountID string) ([]asset.Trade, error)
	ListOpenTrades(ctx context.Context) ([]asset.Trade, error)
	UpdateTradeProfit(ctx context.Context, id string, profit float64) error
}
