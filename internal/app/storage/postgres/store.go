package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/nexafin/marketsync/internal/app/domain/asset"
	"github.com/nexafin/marketsync/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ storage.AssetStore = (*Store)(nil)
var _ storage.TradeStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// --- AssetStore -------------------------------------------------------------

func (s *Store) CreateAsset(ctx context.Context, a asset.Asset) (asset.Asset, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO assets (id, symbol, name, asset_type, current_price, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, a.ID, a.Symbol, a.Name, a.Type, a.CurrentPrice, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return asset.Asset{}, err
	}
	return a, nil
}

func (s *Store) GetAsset(ctx context.Context, id string) (asset.Asset, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, symbol, name, asset_type, current_price, created_at, updated_at
		FROM assets
		WHERE id = $1
	`, id)
	return scanAsset(row)
}

func (s *Store) GetAssetBySymbol(ctx context.Context, symbol string) (asset.Asset, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, symbol, name, asset_type, current_price, created_at, updated_at
		FROM assets
		WHERE upper(symbol) = upper($1)
	`, symbol)
	return scanAsset(row)
}

func (s *Store) ListAssets(ctx context.Context) ([]asset.Asset, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, symbol, name, asset_type, current_price, created_at, updated_at
		FROM assets
		ORDER BY symbol
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []asset.Asset
	for rows.Next() {
		var a asset.Asset
		if err := rows.Scan(&a.ID, &a.Symbol, &a.Name, &a.Type, &a.CurrentPrice, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

// UpdateAssetPrice writes only the price columns so concurrent passes stay
// independent per row.
func (s *Store) UpdateAssetPrice(ctx context.Context, id string, price float64, updatedAt time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE assets
		SET current_price = $2, updated_at = $3
		WHERE id = $1
	`, id, price, updatedAt.UTC())
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func scanAsset(row *sql.Row) (asset.Asset, error) {
	var a asset.Asset
	if err := row.Scan(&a.ID, &a.Symbol, &a.Name, &a.Type, &a.CurrentPrice, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return asset.Asset{}, err
	}
	return a, nil
}

// --- TradeStore -------------------------------------------------------------

func (s *Store) CreateTrade(ctx context.Context, t asset.Trade) (asset.Trade, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trades (id, account_id, asset_id, side, amount, entry_price, profit, open, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, t.ID, t.AccountID, t.AssetID, t.Side, t.Amount, t.EntryPrice, t.Profit, t.Open, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return asset.Trade{}, err
	}
	return t, nil
}

func (s *Store) GetTrade(ctx context.Context, id string) (asset.Trade, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, account_id, asset_id, side, amount, entry_price, profit, open, created_at, updated_at
		FROM trades
		WHERE id = $1
	`, id)

	var t asset.Trade
	if err := row.Scan(&t.ID, &t.AccountID, &t.AssetID, &t.Side, &t.Amount, &t.EntryPrice, &t.Profit, &t.Open, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return asset.Trade{}, err
	}
	return t, nil
}

func (s *Store) ListTrades(ctx context.Context, accountID string) ([]asset.Trade, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, asset_id, side, amount, entry_price, profit, open, created_at, updated_at
		FROM trades
		WHERE $1 = '' OR account_id = $1
		ORDER BY created_at
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTrades(rows)
}

func (s *Store) ListOpenTrades(ctx context.Context) ([]asset.Trade, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, asset_id, side, amount, entry_price, profit, open, created_at, updated_at
		FROM trades
		WHERE open
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTrades(rows)
}

func (s *Store) UpdateTradeProfit(ctx context.Context, id string, profit float64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE trades
		SET profit = $2, updated_at = $3
		WHERE id = $1
	`, id, profit, time.Now().UTC())
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func collectTrades(rows *sql.Rows) ([]asset.Trade, error) {
	var result []asset.Trade
	for rows.Next() {
		var t asset.Trade
		if err := rows.Scan(&t.ID, &t.AccountID, &t.AssetID, &t.Side, &t.Amount, &t.EntryPrice, &t.Profit, &t.Open, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}
