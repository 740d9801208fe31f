package metric

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "boxstore"

// Checkout results.
const (
	ResultAcquired = "acquired"
	ResultFresh    = "fresh"
	ResultTimeout  = "timeout"
	ResultCanceled = "canceled"
	ResultError    = "error"
)

// Registry holds all application metrics.
type Registry struct {
	registry *prometheus.Registry

	CheckoutsTotal   *prometheus.CounterVec
	CheckoutAttempts prometheus.Histogram
	CheckoutWait     prometheus.Histogram
	CheckinsTotal    *prometheus.CounterVec
	BackendErrors    *prometheus.CounterVec

	CommandsTotal     *prometheus.CounterVec
	ConnectionsActive prometheus.Gauge
}

// NewRegistry creates a registry with every boxstore metric registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,
		CheckoutsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkouts_total",
			Help:      "Session checkouts by result",
		}, []string{"result"}),
		CheckoutAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "checkout_attempts",
			Help:      "Swaps needed per checkout",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 200},
		}),
		CheckoutWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "checkout_wait_seconds",
			Help:      "Time spent waiting for a checked-out session",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2, 5},
		}),
		CheckinsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkins_total",
			Help:      "Session checkins by operation (set or delete)",
		}, []string{"op"}),
		BackendErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_errors_total",
			Help:      "Failed backend calls by store operation",
		}, []string{"op"}),
		CommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "commands_total",
			Help:      "RESP commands handled by the server",
		}, []string{"command", "status"}),
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "connections_active",
			Help:      "Open RESP client connections",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.CheckoutsTotal,
		r.CheckoutAttempts,
		r.CheckoutWait,
		r.CheckinsTotal,
		r.BackendErrors,
		r.CommandsTotal,
		r.ConnectionsActive,
	)

	return r
}

// Registerer exposes the underlying registry for additional collectors.
func (r *Registry) Registerer() prometheus.Registerer {
	return r.registry
}

// Gatherer exposes the underlying registry for scraping in tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Handler returns the /metrics handler.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// ObserveCheckout records one checkout outcome.
func (r *Registry) ObserveCheckout(result string, attempts int, waited time.Duration) {
	r.CheckoutsTotal.WithLabelValues(result).Inc()
	if attempts > 0 {
		r.CheckoutAttempts.Observe(float64(attempts))
	}
	r.CheckoutWait.Observe(waited.Seconds())
}

// ObserveCheckin records one checkin.
func (r *Registry) ObserveCheckin(op string) {
	r.CheckinsTotal.WithLabelValues(op).Inc()
}

// ObserveBackendError records a failed backend call.
func (r *Registry) ObserveBackendError(op string) {
	r.BackendErrors.WithLabelValues(op).Inc()
}

// ObserveCommand records one server command.
func (r *Registry) ObserveCommand(command string, ok bool) {
	status := "ok"
	if !ok {
		status = "error"
	}
	r.CommandsTotal.WithLabelValues(command, status).Inc()
}

// ObserveConnection tracks open server connections.
func (r *Registry) ObserveConnection(open bool) {
	if open {
		r.ConnectionsActive.Inc()
		return
	}
	r.ConnectionsActive.Dec()
}
