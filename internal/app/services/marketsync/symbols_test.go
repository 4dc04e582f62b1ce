package marketsync

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCoinID(t *testing.T) {
	id, ok := CoinID("BTC")
	if !ok || id != "bitcoin" {
		t.Fatalf("CoinID(BTC) = %q, %v", id, ok)
	}

	id, ok = CoinID(" eth ")
	if !ok || id != "ethereum" {
		t.Fatalf("CoinID(eth) should normalise case and whitespace, got %q, %v", id, ok)
	}

	if _, ok := CoinID("SHIB"); ok {
		t.Fatal("untracked symbol should not resolve")
	}
}

func TestBaseSymbol(t *testing.T) {
	cases := map[string]string{
		"BTC/USDT": "BTC",
		"EUR/USD":  "EUR",
		"SOL":      "SOL",
		"":         "",
	}
	for in, want := range cases {
		if got := BaseSymbol(in); got != want {
			t.Errorf("BaseSymbol(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTrackedCoinIDsStableOrder(t *testing.T) {
	first := trackedCoinIDs()
	require.Len(t, first, len(coinIDs))
	for i := 0; i < 5; i++ {
		require.Equal(t, first, trackedCoinIDs())
	}
}

// Every supported pair must have exactly one rule, a kind consistent with its
// legs, and a baseline price for provider outages.
func TestPairRuleTable(t *testing.T) {
	seen := make(map[string]bool)
	for _, rule := range pairRules {
		require.False(t, seen[rule.Pair], "duplicate rule for %s", rule.Pair)
		seen[rule.Pair] = true

		require.Equal(t, rule.Base+"/"+rule.Quote, rule.Pair, "legs must spell the pair")

		switch rule.Kind {
		case kindDirect:
			require.Equal(t, "USD", rule.Base, "%s: direct pairs quote against a USD base", rule.Pair)
		case kindReciprocal:
			require.Equal(t, "USD", rule.Quote, "%s: reciprocal pairs quote USD", rule.Pair)
		case kindCross:
			require.NotEqual(t, "USD", rule.Base, "%s: cross pairs have no USD leg", rule.Pair)
			require.NotEqual(t, "USD", rule.Quote, "%s: cross pairs have no USD leg", rule.Pair)
		default:
			t.Fatalf("%s: unknown kind %q", rule.Pair, rule.Kind)
		}

		baseline, ok := forexBaseline[rule.Pair]
		require.True(t, ok, "%s has no baseline price", rule.Pair)
		require.Greater(t, baseline, 0.0)
	}
	require.Len(t, forexBaseline, len(pairRules), "baseline table must cover exactly the rule set")
}
