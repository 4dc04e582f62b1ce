package marketsync

import "strings"

// coinIDs maps internal crypto base symbols to the price provider's coin ids.
// The tracked set is fixed; symbols outside it are excluded from a pass rather
// than treated as errors.
var coinIDs = map[string]string{
	"BTC":   "bitcoin",
	"ETH":   "ethereum",
	"BNB":   "binancecoin",
	"SOL":   "solana",
	"XRP":   "ripple",
	"ADA":   "cardano",
	"DOGE":  "dogecoin",
	"DOT":   "polkadot",
	"MATIC": "matic-network",
	"LTC":   "litecoin",
	"AVAX":  "avalanche-2",
	"LINK":  "chainlink",
	"UNI":   "uniswap",
	"ATOM":  "cosmos",
	"TRX":   "tron",
}

// CoinID resolves an internal crypto base symbol to the provider coin id.
// The second return is false when the symbol is not tracked.
func CoinID(symbol string) (string, bool) {
	id, ok := coinIDs[strings.ToUpper(strings.TrimSpace(symbol))]
	return id, ok
}

// trackedCoinIDs returns every provider id in a stable order for the batched
// fetch request.
func trackedCoinIDs() []string {
	ids := make([]string, 0, len(coinIDs))
	for _, symbol := range []string{"BTC", "ETH", "BNB", "SOL", "XRP", "ADA", "DOGE", "DOT", "MATIC", "LTC", "AVAX", "LINK", "UNI", "ATOM", "TRX"} {
		ids = append(ids, coinIDs[symbol])
	}
	return ids
}

// BaseSymbol extracts the portion of a pair symbol before the slash, e.g.
// "BTC/USDT" -> "BTC". A symbol without a slash is returned unchanged.
func BaseSymbol(pair string) string {
	if i := strings.Index(pair, "/"); i >= 0 {
		return pair[:i]
	}
	return pair
}

// pairKind declares how a forex pair price derives from USD-relative rates.
type pairKind string

const (
	// kindDirect: USD is the base, the pair quotes foreign units per USD, so
	// the fetched rate applies unchanged.
	kindDirect pairKind = "direct"
	// kindReciprocal: USD is the quote; market convention quotes these pairs
	// against USD, so the fetched rate is inverted.
	kindReciprocal pairKind = "reciprocal"
	// kindCross: neither leg is USD; derived as the ratio of the two
	// USD-relative rates via the USD bridge.
	kindCross pairKind = "cross"
)

// pairRule binds a pair symbol to its derivation kind and currency legs. The
// direct/reciprocal split follows market quoting practice and must not be
// collapsed into a uniform reciprocal.
type pairRule struct {
	Pair  string
	Kind  pairKind
	Base  string
	Quote string
}

// pairRules enumerates every supported forex pair. Tests enumerate this table
// against the declared kinds.
var pairRules = []pairRule{
	{Pair: "USD/JPY", Kind: kindDirect, Base: "USD", Quote: "JPY"},
	{Pair: "USD/CHF", Kind: kindDirect, Base: "USD", Quote: "CHF"},
	{Pair: "USD/CAD", Kind: kindDirect, Base: "USD", Quote: "CAD"},
	{Pair: "EUR/USD", Kind: kindReciprocal, Base: "EUR", Quote: "USD"},
	{Pair: "GBP/USD", Kind: kindReciprocal, Base: "GBP", Quote: "USD"},
	{Pair: "AUD/USD", Kind: kindReciprocal, Base: "AUD", Quote: "USD"},
	{Pair: "NZD/USD", Kind: kindReciprocal, Base: "NZD", Quote: "USD"},
	{Pair: "EUR/GBP", Kind: kindCross, Base: "EUR", Quote: "GBP"},
	{Pair: "EUR/JPY", Kind: kindCross, Base: "EUR", Quote: "JPY"},
	{Pair: "GBP/JPY", Kind: kindCross, Base: "GBP", Quote: "JPY"},
}

// forexBaseline holds approximate prices used when the rate provider is
// unreachable, so forex assets never stay unpriced indefinitely.
var forexBaseline = map[string]float64{
	"USD/JPY": 149.50,
	"USD/CHF": 0.88,
	"USD/CAD": 1.36,
	"EUR/USD": 1.09,
	"GBP/USD": 1.27,
	"AUD/USD": 0.66,
	"NZD/USD": 0.61,
	"EUR/GBP": 0.86,
	"EUR/JPY": 162.90,
	"GBP/JPY": 189.80,
}
