// Package metrics exposes Prometheus counters for the delivery pipeline.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Transport label values.
const (
	TransportDirect = "direct"
	TransportRelay  = "relay"
)

// Outcome label values.
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)

// Metrics holds the pipeline's counters, registered on a single registry
// that the gateway serves at /metrics.
type Metrics struct {
	Deliveries       *prometheus.CounterVec
	Suppressed       prometheus.Counter
	ImageResolutions *prometheus.CounterVec
}

// New creates and registers the pipeline metrics.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "postgram",
			Name:      "deliveries_total",
			Help:      "Delivery attempts by transport and outcome.",
		}, []string{"transport", "outcome"}),
		Suppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "postgram",
			Name:      "suppressed_events_total",
			Help:      "Publish events suppressed by the at-most-once gate.",
		}),
		ImageResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "postgram",
			Name:      "image_resolutions_total",
			Help:      "Featured image resolutions by outcome (attached, absent).",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.Deliveries, m.Suppressed, m.ImageResolutions)
	return m
}
