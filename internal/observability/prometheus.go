package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"liveview/pkg/safety"
)

// Compile-time contract assertion.
var _ safety.ObservationRecorder = (*PrometheusRecorder)(nil)

// PrometheusRecorder exports callback and unsafe-change counters through a
// Prometheus registry.
type PrometheusRecorder struct {
	callbacks *prometheus.CounterVec
	unsafe    prometheus.Counter
}

// NewPrometheusRecorder registers the counters with the supplied registerer.
// A nil registerer falls back to the default one.
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	callbacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "liveview_delegate_callbacks_total",
		Help: "Delegate callbacks forwarded through the safety controller, by kind.",
	}, []string{"kind"})
	unsafe := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "liveview_unsafe_changes_total",
		Help: "Structural change callbacks delivered outside a will/did-change bracket.",
	})
	for _, collector := range []prometheus.Collector{callbacks, unsafe} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}
	return &PrometheusRecorder{callbacks: callbacks, unsafe: unsafe}, nil
}

// RecordCallback counts one forwarded delegate callback of the given kind.
func (r *PrometheusRecorder) RecordCallback(kind string) {
	if kind == "" {
		return
	}
	r.callbacks.WithLabelValues(kind).Inc()
}

// RecordUnsafe counts one structural change delivered outside a bracket.
func (r *PrometheusRecorder) RecordUnsafe() {
	r.unsafe.Inc()
}
