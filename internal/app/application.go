package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/nexafin/marketsync/internal/app/pricecache"
	"github.com/nexafin/marketsync/internal/app/services/marketsync"
	"github.com/nexafin/marketsync/internal/app/services/profit"
	"github.com/nexafin/marketsync/internal/app/storage"
	"github.com/nexafin/marketsync/internal/app/storage/memory"
	"github.com/nexafin/marketsync/internal/app/system"
	"github.com/nexafin/marketsync/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Assets storage.AssetStore
	Trades storage.TradeStore
}

// Options carries external-collaborator configuration. Empty fields fall back
// to environment variables so a bare deployment still works.
type Options struct {
	CryptoEndpoint string
	CryptoAPIKey   string
	ForexEndpoint  string
	ForexAPIKey    string
	SyncSchedule   string
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Sync   *marketsync.Service
	Profit *profit.Service
	Prices *pricecache.Cache
	Assets storage.AssetStore
	Trades storage.TradeStore
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Assets == nil {
		stores.Assets = mem
	}
	if stores.Trades == nil {
		stores.Trades = mem
	}

	if opts.CryptoEndpoint == "" {
		opts.CryptoEndpoint = strings.TrimSpace(os.Getenv("CRYPTO_PRICE_URL"))
	}
	if opts.CryptoAPIKey == "" {
		opts.CryptoAPIKey = os.Getenv("CRYPTO_PRICE_KEY")
	}
	if opts.ForexEndpoint == "" {
		opts.ForexEndpoint = strings.TrimSpace(os.Getenv("FOREX_RATE_URL"))
	}
	if opts.ForexAPIKey == "" {
		opts.ForexAPIKey = os.Getenv("FOREX_RATE_KEY")
	}

	manager := system.NewManager()
	httpClient := &http.Client{Timeout: 10 * time.Second}

	profitService := profit.New(stores.Assets, stores.Trades, log)

	var crypto, forex marketsync.SnapshotFetcher
	if opts.CryptoEndpoint != "" {
		fetcher, err := marketsync.NewCryptoFetcher(httpClient, opts.CryptoEndpoint, opts.CryptoAPIKey, log)
		if err != nil {
			log.WithError(err).Warn("configure crypto price fetcher")
		} else {
			crypto = fetcher
		}
	} else {
		log.Warn("CRYPTO_PRICE_URL not set; crypto prices disabled")
	}
	if opts.ForexEndpoint != "" {
		fetcher, err := marketsync.NewForexFetcher(httpClient, opts.ForexEndpoint, opts.ForexAPIKey, log)
		if err != nil {
			log.WithError(err).Warn("configure forex rate fetcher")
		} else {
			forex = fetcher
		}
	} else {
		log.Warn("FOREX_RATE_URL not set; forex rates disabled")
	}

	syncService := marketsync.New(stores.Assets, crypto, forex, profitService, log)
	prices := pricecache.New(syncService.Sync, stores.Assets, log)

	services := []system.Service{
		marketsync.NewRefresher(syncService, opts.SyncSchedule, log),
		prices,
	}
	for _, svc := range services {
		if err := manager.Register(svc); err != nil {
			return nil, fmt.Errorf("register %s: %w", svc.Name(), err)
		}
	}

	return &Application{
		manager: manager,
		log:     log,
		Sync:    syncService,
		Profit:  profitService,
		Prices:  prices,
		Assets:  stores.Assets,
		Trades:  stores.Trades,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
