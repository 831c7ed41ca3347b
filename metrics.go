package isodep

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

// Metrics groups the Prometheus collectors updated by depletion drivers.
type Metrics struct {
	Registry *prometheus.Registry

	steps     *prometheus.CounterVec
	stepTime  *prometheus.HistogramVec
	solves    *prometheus.CounterVec
	cramClamp prometheus.Counter
}

// NewMetrics registers a fresh set of collectors on a new registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		steps: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "isodep_steps_total",
			Help: "Depletion steps solved by method and mode",
		}, []string{"method", "mode"}),
		stepTime: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "isodep_step_seconds",
			Help:    "Wall time per depletion step in seconds",
			Buckets: prometheus.ExponentialBuckets(1e-5, 4, 12),
		}, []string{"method"}),
		solves: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "isodep_solves_total",
			Help: "Complete solves by mode and outcome",
		}, []string{"mode", "outcome"}),
		cramClamp: factory.NewCounter(prometheus.CounterOpts{
			Name: "isodep_cram_clamped_total",
			Help: "Concentrations set to zero after a CRAM solve",
		}),
	}
}

// DefaultMetrics is used by drivers created without WithMetrics.
var DefaultMetrics = NewMetrics()

// WriteMetrics writes every metric family of the registry in the text exposition format.
func (m *Metrics) WriteMetrics(w io.Writer) error {
	families, err := m.Registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
