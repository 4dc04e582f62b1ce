package market

import "time"

// Snapshot is the in-memory result of one synchronization pass: resolved
// prices keyed by internal symbol, split per provider family. It lives only
// for the duration of a single pass.
type Snapshot struct {
	Crypto map[string]float64
	Forex  map[string]float64
}

// CryptoCount reports how many crypto symbols were resolved.
func (s Snapshot) CryptoCount() int { return len(s.Crypto) }

// ForexCount reports how many forex pairs were resolved.
func (s Snapshot) ForexCount() int { return len(s.Forex) }

// AssetUpdate records the outcome of a single per-asset price write.
type AssetUpdate struct {
	AssetID  string  `json:"asset_id"`
	Symbol   string  `json:"symbol"`
	Price    float64 `json:"price"`
	Updated  bool    `json:"updated"`
	ErrorMsg string  `json:"error,omitempty"`
}

// SyncResult summarizes one end-to-end synchronization pass.
type SyncResult struct {
	CryptoCount int           `json:"cryptoCount"`
	ForexCount  int           `json:"forexCount"`
	Updated     int           `json:"updated"`
	Skipped     int           `json:"skipped"`
	Updates     []AssetUpdate `json:"updates"`
	Timestamp   time.Time     `json:"timestamp"`
}
