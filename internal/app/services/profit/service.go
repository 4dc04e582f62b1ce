package profit

import (
	"context"
	"fmt"

	"github.com/nexafin/marketsync/internal/app/domain/asset"
	"github.com/nexafin/marketsync/internal/app/storage"
	"github.com/nexafin/marketsync/pkg/logger"
)

// Service recomputes simulated trade profits from current asset prices. It is
// invoked once after every price synchronization pass so profit figures stay
// consistent even when prices did not move.
type Service struct {
	assets storage.AssetStore
	trades storage.TradeStore
	log    *logger.Logger
}

// New constructs a profit recompute service.
func New(assets storage.AssetStore, trades storage.TradeStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("profit")
	}
	return &Service{
		assets: assets,
		trades: trades,
		log:    log,
	}
}

// Recompute recalculates the profit of every open trade and persists each one
// best-effort. It returns the number of trades updated; individual write
// failures are logged and skipped, not propagated.
func (s *Service) Recompute(ctx context.Context) (int, error) {
	trades, err := s.trades.ListOpenTrades(ctx)
	if err != nil {
		return 0, fmt.Errorf("list open trades: %w", err)
	}

	updated := 0
	for _, t := range trades {
		a, err := s.assets.GetAsset(ctx, t.AssetID)
		if err != nil {
			s.log.WithError(err).WithField("trade_id", t.ID).Warn("profit recompute skipped trade with missing asset")
			continue
		}
		if a.CurrentPrice <= 0 {
			continue
		}

		p := Calculate(t, a.CurrentPrice)
		if p == t.Profit {
			continue
		}
		if err := s.trades.UpdateTradeProfit(ctx, t.ID, p); err != nil {
			s.log.WithError(err).WithField("trade_id", t.ID).Warn("profit update failed")
			continue
		}
		updated++
	}
	return updated, nil
}

// Calculate returns the unrealized profit of a trade at the given price.
// Short trades profit when the price falls.
func Calculate(t asset.Trade, currentPrice float64) float64 {
	p := (currentPrice - t.EntryPrice) * t.Amount
	if t.Side == asset.SideShort {
		p = -p
	}
	return p
}
