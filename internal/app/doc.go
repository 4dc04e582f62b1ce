// Package app provides the application composition layer for marketsync.
//
// It wires the domain services together and owns their lifecycle; business
// logic lives in internal/app/services/.
//
//	internal/app/
//	├── application.go      # Application struct, wiring, and lifecycle
//	├── domain/             # Domain models (pure data structures)
//	│   ├── asset/          # Assets and simulated trades
//	│   └── market/         # Price snapshots and sync summaries
//	├── storage/            # Storage interfaces and implementations
//	│   ├── interfaces.go   # AssetStore, TradeStore
//	│   ├── memory/         # In-memory implementation for testing
//	│   └── postgres/       # PostgreSQL implementation for production
//	├── services/
//	│   ├── marketsync/     # Price fetchers and the synchronizer
//	│   └── profit/         # Trade profit recomputation
//	├── pricecache/         # Client-side TTL cache and sync trigger
//	├── httpapi/            # HTTP handlers and routing
//	├── system/             # Lifecycle management
//	└── metrics/            # Prometheus collectors
package app
