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
			Namespace: "tunebank",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tunebank",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tunebank",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	economicOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tunebank",
			Subsystem: "treasury",
			Name:      "operations_total",
			Help:      "Total number of economic operations by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	creditsSold = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tunebank",
			Subsystem: "treasury",
			Name:      "credits_sold_total",
			Help:      "Whole credits sold through buy operations.",
		},
	)

	creditsRedeemed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tunebank",
			Subsystem: "treasury",
			Name:      "credits_redeemed_total",
			Help:      "Whole credits redeemed back to reserve.",
		},
	)

	catalogSongs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tunebank",
			Subsystem: "catalog",
			Name:      "songs",
			Help:      "Current number of songs in the catalog.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		economicOperations,
		creditsSold,
		creditsRedeemed,
		catalogSongs,
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

// RecordOperation records the outcome of an economic operation.
func RecordOperation(kind string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	economicOperations.WithLabelValues(kind, outcome).Inc()
}

// RecordCreditsSold adds whole credits sold.
func RecordCreditsSold(credits float64) {
	if credits > 0 {
		creditsSold.Add(credits)
	}
}

// RecordCreditsRedeemed adds whole credits redeemed.
func RecordCreditsRedeemed(credits float64) {
	if credits > 0 {
		creditsRedeemed.Add(credits)
	}
}

// SetCatalogSize publishes the current song count.
func SetCatalogSize(n int) {
	catalogSongs.Set(float64(n))
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
	switch parts[0] {
	case "accounts":
		if len(parts) == 1 {
			return "/accounts"
		}
		if len(parts) == 2 {
			return "/accounts/:account"
		}
		return "/accounts/:account/" + parts[2]
	case "songs":
		if len(parts) == 1 {
			return "/songs"
		}
		return "/songs/:slot"
	default:
		return "/" + parts[0]
	}
}
