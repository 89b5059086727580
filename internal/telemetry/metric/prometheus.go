package metric

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yndnr/meshkv/internal/core/domain"
)

const namespace = "meshkv"

// Status label values for meshkv_commands_total.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Registry holds all application metrics.
type Registry struct {
	registry *prometheus.Registry

	CommandsTotal     *prometheus.CounterVec
	CommandDuration   *prometheus.HistogramVec
	ConnectionsActive prometheus.Gauge
	ConnectionsTotal  prometheus.Counter
	RateLimited       prometheus.Counter
	ExpiredKeys       prometheus.Counter
	Publishes         prometheus.Counter
	Deliveries        prometheus.Counter
	Transactions      *prometheus.CounterVec
}

// NewRegistry creates a registry with the meshkv instruments plus the Go
// runtime and process collectors.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := &Registry{
		registry: reg,
		CommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands executed, by command name and result status.",
		}, []string{"command", "status"}),
		CommandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Command execution time under key locks.",
			Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05, .1},
		}, []string{"command"}),
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Open client connections.",
		}),
		ConnectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Client connections accepted.",
		}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Commands rejected by the per-client rate limiter.",
		}),
		ExpiredKeys: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expired_keys_total",
			Help:      "Keys removed by the background expiry sweep.",
		}),
		Publishes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pubsub_published_total",
			Help:      "Messages published.",
		}),
		Deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pubsub_deliveries_total",
			Help:      "Messages handed to subscriptions.",
		}),
		Transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_total",
			Help:      "Finished transactions, by outcome.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		r.CommandsTotal,
		r.CommandDuration,
		r.ConnectionsActive,
		r.ConnectionsTotal,
		r.RateLimited,
		r.ExpiredKeys,
		r.Publishes,
		r.Deliveries,
		r.Transactions,
	)
	return r
}

var (
	globalOnce     sync.Once
	globalRegistry *Registry
)

// Global returns the process-wide registry.
func Global() *Registry {
	globalOnce.Do(func() {
		globalRegistry = NewRegistry()
	})
	return globalRegistry
}

// MustRegister adds extra collectors, such as a Collector, to the registry.
func (r *Registry) MustRegister(cs ...prometheus.Collector) {
	r.registry.MustRegister(cs...)
}

// Gatherer exposes the underlying registry for tests and custom exporters.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Handler returns the /metrics handler for this registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// CommandDone records one executed command.
func (r *Registry) CommandDone(name string, elapsed time.Duration, err error) {
	r.CommandsTotal.WithLabelValues(name, statusOf(err)).Inc()
	r.CommandDuration.WithLabelValues(name).Observe(elapsed.Seconds())
}

// KeysExpired records keys removed by an expiry sweep.
func (r *Registry) KeysExpired(n int) {
	r.ExpiredKeys.Add(float64(n))
}

// TransactionDone records a finished transaction.
func (r *Registry) TransactionDone(result string) {
	r.Transactions.WithLabelValues(result).Inc()
}

// Published records one publish and its receiver count.
func (r *Registry) Published(_ string, receivers int) {
	r.Publishes.Inc()
	r.Deliveries.Add(float64(receivers))
}

// ConnOpened records an accepted connection.
func (r *Registry) ConnOpened() {
	r.ConnectionsTotal.Inc()
	r.ConnectionsActive.Inc()
}

// ConnClosed records a closed connection.
func (r *Registry) ConnClosed() {
	r.ConnectionsActive.Dec()
}

// CommandRateLimited records a command rejected by the rate limiter.
func (r *Registry) CommandRateLimited() {
	r.RateLimited.Inc()
}

// statusOf maps an error to a bounded label value: "ok", the domain error
// code, or "error".
func statusOf(err error) string {
	if err == nil {
		return StatusOK
	}
	var de *domain.DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return StatusError
}
