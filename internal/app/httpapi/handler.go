package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	app "github.com/nexafin/marketsync/internal/app"
	"github.com/nexafin/marketsync/internal/app/domain/asset"
	"github.com/nexafin/marketsync/internal/app/metrics"
	"github.com/nexafin/marketsync/internal/app/services/marketsync"
	"github.com/nexafin/marketsync/internal/middleware"
	"github.com/nexafin/marketsync/pkg/logger"
)

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app *app.Application
}

// NewHandler returns a mux exposing the core REST API. Authentication is
// applied by the router, not here.
func NewHandler(application *app.Application) http.Handler {
	h := &handler{app: application}
	mux := http.NewServeMux()
	mux.HandleFunc("/sync", h.sync)
	mux.HandleFunc("/prices", h.prices)
	mux.HandleFunc("/prices/", h.priceBySymbol)
	mux.HandleFunc("/assets", h.assets)
	mux.HandleFunc("/trades", h.trades)
	return mux
}

// RouterConfig carries the cross-cutting concerns the router composes around
// the handler.
type RouterConfig struct {
	JWTSecret      []byte
	SyncSecret     string
	AllowedOrigins []string
	Log            *logger.Logger
}

// NewRouter wraps the API handler with CORS, authentication, metrics
// instrumentation, and the unauthenticated health/metrics endpoints.
func NewRouter(application *app.Application, cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	auth := middleware.NewAuthMiddleware(cfg.JWTSecret, cfg.SyncSecret, cfg.Log, []string{"/healthz", "/metrics"})
	cors := middleware.NewCORSMiddleware(cfg.AllowedOrigins)

	mux.Handle("/", auth.Handler(NewHandler(application)))
	return metrics.InstrumentHandler(cors.Handler(mux))
}

// sync triggers one synchronization pass. Authorization already happened in
// the middleware, so no fetch or storage work precedes it.
func (h *handler) sync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	result, err := h.app.Sync.Sync(r.Context())
	if err != nil {
		if errors.Is(err, marketsync.ErrSyncInFlight) {
			// Duplicate triggers are a no-op, not a failure.
			writeJSON(w, http.StatusOK, map[string]any{
				"success":   true,
				"message":   "sync already in progress",
				"timestamp": time.Now().UTC(),
			})
			return
		}
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"message":     "prices synchronized",
		"cryptoCount": result.CryptoCount,
		"forexCount":  result.ForexCount,
		"updated":     result.Updated,
		"skipped":     result.Skipped,
		"updates":     result.Updates,
		"timestamp":   result.Timestamp,
	})
}

type priceView struct {
	Symbol    string    `json:"symbol"`
	AssetType string    `json:"asset_type"`
	Price     float64   `json:"price"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (h *handler) prices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	assets, err := h.app.Assets.ListAssets(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	views := make([]priceView, 0, len(assets))
	for _, a := range assets {
		views = append(views, priceView{
			Symbol:    a.Symbol,
			AssetType: string(a.Type),
			Price:     a.CurrentPrice,
			UpdatedAt: a.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *handler) priceBySymbol(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	raw := strings.Trim(strings.TrimPrefix(r.URL.Path, "/prices"), "/")
	symbol, err := url.PathUnescape(raw)
	if err != nil || symbol == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	a, err := h.app.Assets.GetAssetBySymbol(r.Context(), symbol)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, priceView{
		Symbol:    a.Symbol,
		AssetType: string(a.Type),
		Price:     a.CurrentPrice,
		UpdatedAt: a.UpdatedAt,
	})
}

func (h *handler) assets(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var payload struct {
			Symbol string `json:"symbol"`
			Name   string `json:"name"`
			Type   string `json:"asset_type"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		assetType := asset.Type(strings.ToLower(strings.TrimSpace(payload.Type)))
		if assetType != asset.TypeCrypto && assetType != asset.TypeForex {
			writeError(w, http.StatusBadRequest, fmt.Errorf("asset_type must be crypto or forex"))
			return
		}
		symbol := strings.ToUpper(strings.TrimSpace(payload.Symbol))
		if symbol == "" {
			writeError(w, http.StatusBadRequest, fmt.Errorf("symbol is required"))
			return
		}

		created, err := h.app.Assets.CreateAsset(r.Context(), asset.Asset{
			Symbol: symbol,
			Name:   strings.TrimSpace(payload.Name),
			Type:   assetType,
		})
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)

	case http.MethodGet:
		assets, err := h.app.Assets.ListAssets(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, assets)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) trades(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var payload struct {
			AssetID    string  `json:"asset_id"`
			Side       string  `json:"side"`
			Amount     float64 `json:"amount"`
			EntryPrice float64 `json:"entry_price"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		side := asset.Side(strings.ToLower(strings.TrimSpace(payload.Side)))
		if side == "" {
			side = asset.SideLong
		}
		if side != asset.SideLong && side != asset.SideShort {
			writeError(w, http.StatusBadRequest, fmt.Errorf("side must be long or short"))
			return
		}
		if payload.Amount <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("amount must be positive"))
			return
		}
		if payload.EntryPrice <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("entry_price must be positive"))
			return
		}

		created, err := h.app.Trades.CreateTrade(r.Context(), asset.Trade{
			AccountID:  middleware.GetUserID(r.Context()),
			AssetID:    payload.AssetID,
			Side:       side,
			Amount:     payload.Amount,
			EntryPrice: payload.EntryPrice,
			Open:       true,
		})
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)

	case http.MethodGet:
		trades, err := h.app.Trades.ListTrades(r.Context(), r.URL.Query().Get("account_id"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, trades)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": err.Error()})
}
