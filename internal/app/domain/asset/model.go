package asset

import "time"

// Type discriminates which price source applies to an asset. It is immutable
// after creation.
type Type string

const (
	TypeCrypto Type = "crypto"
	TypeForex  Type = "forex"
)

// Asset represents a tradeable instrument with its last known market price.
// CurrentPrice is denominated in USD for crypto assets and as a direct or
// cross exchange rate for forex pairs. Only the price synchronizer mutates
// CurrentPrice and its UpdatedAt timestamp.
type Asset struct {
	ID           string
	Symbol       string
	Name         string
	Type         Type
	CurrentPrice float64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Side indicates the direction of a simulated trade.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Trade is a simulated position whose profit is recomputed after every price
// synchronization pass.
type Trade struct {
	ID         string
	AccountID  string
	AssetID    string
	Side       Side
	Amount     float64
	EntryPrice float64
	Profit     float64
	Open       bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
