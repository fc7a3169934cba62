package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cookingcrypto_backend_build_info",
			Help: "Build information of the backend",
		},
		[]string{"version", "commit", "date"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cookingcrypto_backend_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cookingcrypto_backend_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cookingcrypto_backend_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Payout metrics
	PayoutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cookingcrypto_backend_payouts_total",
			Help: "Total number of payout attempts by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	PayoutDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cookingcrypto_backend_payout_duration_seconds",
			Help:    "Duration of payout attempts in seconds, submission and confirmation included",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~410s
		},
		[]string{"kind"},
	)

	TreasuryLamports = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cookingcrypto_backend_treasury_lamports",
			Help: "Last observed native balance of the treasury wallet in lamports",
		},
	)

	// Lottery metrics
	LotteryTicketsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cookingcrypto_backend_lottery_tickets_total",
			Help: "Total number of lottery tickets issued",
		},
	)
)

// Middleware returns a chi middleware that records HTTP metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		HTTPRequestsInFlight.Inc()
		defer HTTPRequestsInFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		// Use the route pattern if available, otherwise use the path
		path := chi.RouteContext(r.Context()).RoutePattern()
		if path == "" {
			path = r.URL.Path
		}

		status := strconv.Itoa(ww.Status())
		duration := time.Since(start).Seconds()

		HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// RecordPayout records a completed payout attempt.
func RecordPayout(kind, outcome string, duration time.Duration) {
	PayoutsTotal.WithLabelValues(kind, outcome).Inc()
	PayoutDuration.WithLabelValues(kind).Observe(duration.Seconds())
}
