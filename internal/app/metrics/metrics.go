package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "marketsync",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marketsync",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "marketsync",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	syncPasses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marketsync",
			Subsystem: "sync",
			Name:      "passes_total",
			Help:      "Total number of price synchronization passes.",
		},
		[]string{"status"},
	)

	syncDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "marketsync",
			Subsystem: "sync",
			Name:      "pass_duration_seconds",
			Help:      "Duration of price synchronization passes.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		},
		[]string{"status"},
	)

	providerResolved = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "marketsync",
			Subsystem: "sync",
			Name:      "provider_resolved_prices",
			Help:      "Prices resolved per provider in the last pass.",
		},
		[]string{"provider"},
	)

	assetsUpdated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "marketsync",
			Subsystem: "sync",
			Name:      "assets_updated_total",
			Help:      "Total number of per-asset price writes.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		syncPasses,
		syncDuration,
		providerResolved,
		assetsUpdated,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordSyncPass records the outcome and duration of one pass.
func RecordSyncPass(status string, duration time.Duration) {
	if duration <= 0 {
		duration = time.Millisecond
	}
	syncPasses.WithLabelValues(status).Inc()
	syncDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordProviderFetch records how many prices a provider resolved.
func RecordProviderFetch(provider string, resolved int) {
	providerResolved.WithLabelValues(provider).Set(float64(resolved))
}

// RecordAssetsUpdated adds to the running asset write counter.
func RecordAssetsUpdated(n int) {
	if n > 0 {
		assetsUpdated.Add(float64(n))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func canonicalPath(raw string) string {
	if raw == "" || raw == "/" {
		return "/"
	}
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	if len(parts) == 1 {
		return "/" + parts[0]
	}
	switch parts[0] {
	case "prices":
		return "/prices/:symbol"
	case "assets":
		return "/assets/:id"
	case "trades":
		return "/trades/:id"
	}
	return "/" + parts[0]
}
