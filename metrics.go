package trainhmm

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SamplerMetrics holds Prometheus instruments for a
// Sampler.
//
// A nil *SamplerMetrics is valid and records nothing.
type SamplerMetrics struct {
	Proposals  prometheus.Counter
	Accepted   prometheus.Counter
	Degenerate prometheus.Counter
	Likelihood prometheus.Gauge
}

// NewSamplerMetrics creates the instruments and registers
// them with reg.
// If reg is nil, the instruments are not registered.
func NewSamplerMetrics(reg prometheus.Registerer) *SamplerMetrics {
	factory := promauto.With(reg)
	return &SamplerMetrics{
		Proposals: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "trainhmm",
			Subsystem: "sampler",
			Name:      "proposals_total",
			Help:      "Number of proposed switch assignments.",
		}),
		Accepted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "trainhmm",
			Subsystem: "sampler",
			Name:      "accepted_total",
			Help:      "Number of accepted proposals.",
		}),
		Degenerate: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "trainhmm",
			Subsystem: "sampler",
			Name:      "degenerate_total",
			Help:      "Number of proposals rejected due to a zero denominator.",
		}),
		Likelihood: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "trainhmm",
			Subsystem: "sampler",
			Name:      "likelihood",
			Help:      "Likelihood of the current switch assignment.",
		}),
	}
}

func (s *SamplerMetrics) proposed() {
	if s != nil {
		s.Proposals.Inc()
	}
}

func (s *SamplerMetrics) accepted(likelihood float64) {
	if s != nil {
		s.Accepted.Inc()
		s.Likelihood.Set(likelihood)
	}
}

func (s *SamplerMetrics) degenerate() {
	if s != nil {
		s.Degenerate.Inc()
	}
}

func (s *SamplerMetrics) setLikelihood(likelihood float64) {
	if s != nil {
		s.Likelihood.Set(likelihood)
	}
}
