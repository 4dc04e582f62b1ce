package marketsync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/nexafin/marketsync/pkg/logger"
)

// ForexFetcher retrieves all USD-relative rates in one request and derives the
// supported pair set from them. When the provider is unreachable it falls back
// to a static baseline table so forex assets never stay unpriced indefinitely.
type ForexFetcher struct {
	client   *http.Client
	endpoint *url.URL
	apiKey   string
	limiter  *rate.Limiter
	log      *logger.Logger
}

// NewForexFetcher constructs a fetcher for an exchange-rate endpoint returning
// {"rates": {code: rate}} relative to USD.
func NewForexFetcher(client *http.Client, endpoint, apiKey string, log *logger.Logger) (*ForexFetcher, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("forex endpoint required")
	}
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse forex endpoint: %w", err)
	}
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	if log == nil {
		log = logger.NewDefault("forex-fetcher")
	}
	return &ForexFetcher{
		client:   client,
		endpoint: parsed,
		apiKey:   strings.TrimSpace(apiKey),
		limiter:  rate.NewLimiter(rate.Every(2*time.Second), 5),
		log:      log,
	}, nil
}

// Fetch returns pair symbol -> derived price for every rule whose legs were
// present in the response. On upstream failure the baseline table is returned.
func (f *ForexFetcher) Fetch(ctx context.Context) map[string]float64 {
	rates, err := f.fetchRates(ctx)
	if err != nil {
		f.log.WithError(err).Warn("forex rate fetch failed, using baseline prices")
		return baselinePairs()
	}
	return DerivePairs(rates)
}

func (f *ForexFetcher) fetchRates(ctx context.Context) (map[string]float64, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	requestURL := *f.endpoint
	q := requestURL.Query()
	q.Set("base", "USD")
	requestURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build forex rate request: %w", err)
	}
	if f.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.apiKey)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("forex rate request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("forex rate source status %d", resp.StatusCode)
	}

	var payload struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode forex rate response: %w", err)
	}
	if len(payload.Rates) == 0 {
		return nil, fmt.Errorf("forex rate response contained no rates")
	}
	return payload.Rates, nil
}

// DerivePairs applies the pair rule table to a set of USD-relative rates.
// Direct pairs take the fetched rate unchanged, reciprocal pairs invert it,
// and cross pairs divide the quote leg's rate by the base leg's rate. Pairs
// with a missing or non-positive leg are omitted.
func DerivePairs(rates map[string]float64) map[string]float64 {
	pairs := make(map[string]float64, len(pairRules))
	for _, rule := range pairRules {
		switch rule.Kind {
		case kindDirect:
			if r, ok := rates[rule.Quote]; ok && r > 0 {
				pairs[rule.Pair] = r
			}
		case kindReciprocal:
			if r, ok := rates[rule.Base]; ok && r > 0 {
				pairs[rule.Pair] = 1 / r
			}
		case kindCross:
			base, okBase := rates[rule.Base]
			quote, okQuote := rates[rule.Quote]
			if okBase && okQuote && base > 0 && quote > 0 {
				pairs[rule.Pair] = quote / base
			}
		}
	}
	return pairs
}

func baselinePairs() map[string]float64 {
	pairs := make(map[string]float64, len(forexBaseline))
	for pair, price := range forexBaseline {
		pairs[pair] = price
	}
	return pairs
}
