// Package metrics exposes Prometheus counters for the shadow store.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stevemurr/dashstate/shadow"
)

const namespace = "dashstate"

// Shadow implements shadow.Recorder with Prometheus counters.
type Shadow struct {
	Loads         *prometheus.CounterVec
	Recoveries    *prometheus.CounterVec
	WriteFailures *prometheus.CounterVec
}

var _ shadow.Recorder = (*Shadow)(nil)

// NewShadow creates the counters and registers them with registry.
func NewShadow(registry prometheus.Registerer) *Shadow {
	m := &Shadow{
		Loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "shadow",
			Name:      "loads_total",
			Help:      "Collection loads by the slot the value came from",
		}, []string{"collection", "source"}),

		Recoveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "shadow",
			Name:      "recoveries_total",
			Help:      "Collection loads served from the backup slot",
		}, []string{"collection", "branch"}),

		WriteFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "shadow",
			Name:      "write_failures_total",
			Help:      "Collection writes the slot store refused",
		}, []string{"collection"}),
	}

	registry.MustRegister(m.Loads, m.Recoveries, m.WriteFailures)
	return m
}

func (m *Shadow) Loaded(collection string, source shadow.Source) {
	m.Loads.WithLabelValues(collection, string(source)).Inc()
}

func (m *Shadow) Recovered(collection string, branch shadow.Branch) {
	m.Recoveries.WithLabelValues(collection, string(branch)).Inc()
}

func (m *Shadow) WriteFailed(collection string) {
	m.WriteFailures.WithLabelValues(collection).Inc()
}

// Handler serves the registry in the Prometheus text format.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
