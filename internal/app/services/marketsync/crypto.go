package marketsync

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/nexafin/marketsync/pkg/logger"
)

// CryptoFetcher retrieves USD prices for the tracked coin set in a single
// batched request per pass. A failed fetch yields an empty map, never an
// error: the pass proceeds with whatever the other provider returned, and the
// next scheduled pass retries naturally.
type CryptoFetcher struct {
	client   *http.Client
	endpoint *url.URL
	apiKey   string
	limiter  *rate.Limiter
	log      *logger.Logger
}

// NewCryptoFetcher constructs a fetcher for a CoinGecko-compatible endpoint.
func NewCryptoFetcher(client *http.Client, endpoint, apiKey string, log *logger.Logger) (*CryptoFetcher, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("crypto endpoint required")
	}
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse crypto endpoint: %w", err)
	}
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	if log == nil {
		log = logger.NewDefault("crypto-fetcher")
	}
	return &CryptoFetcher{
		client:   client,
		endpoint: parsed,
		apiKey:   strings.TrimSpace(apiKey),
		// Public tier allows roughly 30 calls/min; one batched call per pass
		// stays far below that even with a generous burst.
		limiter: rate.NewLimiter(rate.Every(2*time.Second), 5),
		log:     log,
	}, nil
}

// Fetch returns internal base symbol -> USD price. Entries absent from the
// response are omitted, not defaulted.
func (f *CryptoFetcher) Fetch(ctx context.Context) map[string]float64 {
	if err := f.limiter.Wait(ctx); err != nil {
		f.log.WithError(err).Warn("crypto fetch aborted waiting for rate limiter")
		return nil
	}

	requestURL := *f.endpoint
	q := requestURL.Query()
	q.Set("ids", strings.Join(trackedCoinIDs(), ","))
	q.Set("vs_currencies", "usd")
	requestURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL.String(), nil)
	if err != nil {
		f.log.WithError(err).Warn("build crypto price request")
		return nil
	}
	if f.apiKey != "" {
		req.Header.Set("x-cg-api-key", f.apiKey)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		f.log.WithError(err).Warn("crypto price request failed")
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		f.log.WithField("status", resp.StatusCode).Warn("crypto price source returned non-success status")
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		f.log.WithError(err).Warn("read crypto price response")
		return nil
	}

	// Response keys are provider coin ids, so extraction goes through the
	// mapping table rather than a fixed struct.
	prices := make(map[string]float64)
	for symbol, coinID := range coinIDs {
		value := gjson.GetBytes(body, coinID+".usd")
		if !value.Exists() {
			continue
		}
		price := value.Float()
		if price <= 0 {
			continue
		}
		prices[symbol] = price
	}

	f.log.WithField("resolved", len(prices)).Debug("crypto prices fetched")
	return prices
}
