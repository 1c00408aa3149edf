// Package observability provides logging, metrics, and tracing.
//
// It integrates with OpenTelemetry for system monitoring.
// The package provides comprehensive observability features
// including metrics collection, distributed tracing, and logging.
package observability

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// HTTPRequestsTotal counts HTTP requests by route, method, and status label.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	// HTTPRequestDuration records request durations by route and method.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)

	// WorkersRunning is a gauge of live Workers per game and state, sourced
	// from Supervisor.Snapshot.
	WorkersRunning = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "harvester_workers_running",
			Help: "Number of Workers currently in each state, by game",
		},
		[]string{"game", "state"},
	)

	// InventoryDepth is a gauge of unissued codes per game in the durable
	// tier, feeding the operator dashboard.
	InventoryDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "inventory_depth",
			Help: "Unissued codes currently held in the durable tier, by game",
		},
		[]string{"game"},
	)

	// CodesMintedTotal counts codes successfully persisted by the Harvester.
	CodesMintedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_codes_minted_total",
			Help: "Total codes minted and persisted, by game",
		},
		[]string{"game"},
	)

	// UpstreamFaultsTotal counts classified promo-API faults by kind.
	UpstreamFaultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_upstream_faults_total",
			Help: "Classified upstream promo API faults, by game and kind",
		},
		[]string{"game", "kind"},
	)

	// IssuanceOutcomesTotal counts Issuance Engine outcomes by category.
	IssuanceOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "issuance_outcomes_total",
			Help: "Issuance Engine request outcomes, by outcome category",
		},
		[]string{"outcome"},
	)

	// CodesIssuedTotal counts codes actually handed out to users, by game.
	CodesIssuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "issuance_codes_issued_total",
			Help: "Total codes issued to users, by game",
		},
		[]string{"game"},
	)

	// NotificationsSentTotal counts notifications enqueued by the operator
	// console's admin handlers, by kind (user or broadcast).
	NotificationsSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Total notifications sent, by kind",
		},
		[]string{"kind"},
	)
)

// InitMetrics registers all Prometheus metrics with the default registry.
func InitMetrics() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(WorkersRunning)
	prometheus.MustRegister(InventoryDepth)
	prometheus.MustRegister(CodesMintedTotal)
	prometheus.MustRegister(UpstreamFaultsTotal)
	prometheus.MustRegister(IssuanceOutcomesTotal)
	prometheus.MustRegister(CodesIssuedTotal)
	prometheus.MustRegister(NotificationsSentTotal)
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()
		// Route pattern may be unavailable outside chi router; guard nil
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			route = r.URL.Path
		}
		method := r.Method
		status := ww.Status()
		HTTPRequestsTotal.WithLabelValues(route, method, http.StatusText(status)).Inc()
		HTTPRequestDuration.WithLabelValues(route, method).Observe(dur)
	})
}

// RecordCodeMinted increments the minted-codes counter for game.
func RecordCodeMinted(game string) {
	CodesMintedTotal.WithLabelValues(game).Inc()
}

// RecordUpstreamFault increments the upstream-fault counter for game and kind.
func RecordUpstreamFault(game, kind string) {
	UpstreamFaultsTotal.WithLabelValues(game, kind).Inc()
}

// RecordIssuanceOutcome increments the issuance-outcome counter for outcome.
func RecordIssuanceOutcome(outcome string) {
	IssuanceOutcomesTotal.WithLabelValues(outcome).Inc()
}

// RecordCodesIssued increments the issued-codes counter for game by n.
func RecordCodesIssued(game string, n int) {
	CodesIssuedTotal.WithLabelValues(game).Add(float64(n))
}

// RecordNotificationSent increments the notifications counter for kind.
func RecordNotificationSent(kind string) {
	NotificationsSentTotal.WithLabelValues(kind).Inc()
}

// SetWorkersRunning sets the running-workers gauge for (game, state).
func SetWorkersRunning(game, state string, n int) {
	WorkersRunning.WithLabelValues(game, state).Set(float64(n))
}

// SetInventoryDepth sets the inventory-depth gauge for game.
func SetInventoryDepth(game string, n int64) {
	InventoryDepth.WithLabelValues(game).Set(float64(n))
}
