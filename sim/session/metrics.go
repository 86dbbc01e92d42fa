package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/inference-sim/bouncer/sim"
)

// Metrics holds the Prometheus collectors updated by a Runner.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Decisions *prometheus.CounterVec
	Admitted  prometheus.Gauge
	Rejected  prometheus.Gauge
	Threshold prometheus.Gauge
	Deficit   *prometheus.GaugeVec
	Frequency *prometheus.GaugeVec
	Recent    *prometheus.GaugeVec
	Games     *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Decisions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bouncer_decisions_total",
				Help: "Admission decisions by outcome and reason",
			},
			[]string{"decision", "reason"},
		),
		Admitted: f.NewGauge(prometheus.GaugeOpts{
			Name: "bouncer_admitted",
			Help: "Candidates admitted in the current run",
		}),
		Rejected: f.NewGauge(prometheus.GaugeOpts{
			Name: "bouncer_rejected",
			Help: "Candidates rejected in the current run",
		}),
		Threshold: f.NewGauge(prometheus.GaugeOpts{
			Name: "bouncer_threshold",
			Help: "Last score threshold applied by the adaptive policy",
		}),
		Deficit: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bouncer_deficit",
				Help: "Admissions still needed per constrained attribute",
			},
			[]string{"attribute"},
		),
		Frequency: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bouncer_estimated_frequency",
				Help: "Online frequency estimate per attribute",
			},
			[]string{"attribute"},
		),
		Recent: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bouncer_recent_admitted_share",
				Help: "Share of recent admits carrying each attribute",
			},
			[]string{"attribute"},
		),
		Games: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bouncer_games_total",
				Help: "Finished runs by outcome",
			},
			[]string{"outcome"},
		),
	}
}

func (m *Metrics) observeDecision(d sim.Decision, s *sim.RunState) {
	if m == nil {
		return
	}
	label := "reject"
	if d.Accept {
		label = "accept"
	}
	m.Decisions.WithLabelValues(label, string(d.Reason)).Inc()
	m.Admitted.Set(float64(s.AdmittedTotal))
	m.Rejected.Set(float64(s.RejectedTotal))
	if d.Threshold != 0 {
		m.Threshold.Set(d.Threshold)
	}
	for id, constrained := range s.Constrained {
		name := s.Attributes.Name(id)
		m.Frequency.WithLabelValues(name).Set(s.Frequency(id))
		m.Recent.WithLabelValues(name).Set(s.Estimator.RecentAcceptedRate(id))
		if constrained {
			m.Deficit.WithLabelValues(name).Set(float64(s.Need(id)))
		}
	}
}

func (m *Metrics) observeOutcome(o *Outcome) {
	if m == nil {
		return
	}
	m.Games.WithLabelValues(string(o.Kind)).Inc()
}
