// Package metrics exposes Prometheus instrumentation for the decision
// path and the validation pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	io_prometheus_client "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog/log"

	"github.com/quantward/edgegate/internal/gate"
)

// Registry holds all edgegate Prometheus metrics.
type Registry struct {
	Decisions      *prometheus.CounterVec
	BlockReasons   *prometheus.CounterVec
	BlockRate      prometheus.Gauge
	EdgePercentile prometheus.Histogram
	QualityScore   prometheus.Histogram

	BacktestRuns     *prometheus.CounterVec
	WalkforwardRuns  *prometheus.CounterVec
	Admissions       *prometheus.CounterVec
	ApprovedVersions prometheus.Gauge

	EvaluateDuration prometheus.Histogram
}

// New creates and registers the metric set. A nil registerer uses the
// process default.
func New(reg prometheus.Registerer) *Registry {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	r := &Registry{
		Decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edgegate_decisions_total",
				Help: "Total gate decisions by resulting state",
			},
			[]string{"state"},
		),

		BlockReasons: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edgegate_block_reasons_total",
				Help: "Total BLOCK decisions by rule that fired",
			},
			[]string{"rule"},
		),

		BlockRate: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "edgegate_block_rate",
				Help: "Fraction of decisions blocked (0.0 to 1.0)",
			},
		),

		EdgePercentile: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "edgegate_edge_percentile",
				Help:    "Distribution of evaluated edge percentiles",
				Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.75, 0.9, 1.0},
			},
		),

		QualityScore: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "edgegate_quality_score",
				Help:    "Distribution of composite trade quality scores",
				Buckets: []float64{20, 30, 40, 50, 60, 70, 80, 90, 100},
			},
		),

		BacktestRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edgegate_backtest_runs_total",
				Help: "Total backtest runs by outcome",
			},
			[]string{"outcome"},
		),

		WalkforwardRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edgegate_walkforward_runs_total",
				Help: "Total walk-forward validations by outcome",
			},
			[]string{"outcome"},
		),

		Admissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edgegate_admissions_total",
				Help: "Total admission decisions by result",
			},
			[]string{"decision"},
		),

		ApprovedVersions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "edgegate_approved_versions",
				Help: "Number of strategy versions currently approved for live",
			},
		),

		EvaluateDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "edgegate_evaluate_duration_seconds",
				Help:    "Duration of a full signal evaluation",
				Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1},
			},
		),
	}

	reg.MustRegister(
		r.Decisions,
		r.BlockReasons,
		r.BlockRate,
		r.EdgePercentile,
		r.QualityScore,
		r.BacktestRuns,
		r.WalkforwardRuns,
		r.Admissions,
		r.ApprovedVersions,
		r.EvaluateDuration,
	)
	return r
}

// RecordDecision counts one gate decision and refreshes the block-rate
// gauge.
func (r *Registry) RecordDecision(state gate.State, blockRule string) {
	r.Decisions.WithLabelValues(string(state)).Inc()
	if state == gate.Block && blockRule != "" {
		r.BlockReasons.WithLabelValues(blockRule).Inc()
	}
	r.updateBlockRate()
}

// RecordBacktest counts a backtest run.
func (r *Registry) RecordBacktest(passed bool) {
	r.BacktestRuns.WithLabelValues(outcome(passed)).Inc()
}

// RecordWalkforward counts a walk-forward validation.
func (r *Registry) RecordWalkforward(passed bool) {
	r.WalkforwardRuns.WithLabelValues(outcome(passed)).Inc()
}

// RecordAdmission counts an admission decision.
func (r *Registry) RecordAdmission(decision string) {
	r.Admissions.WithLabelValues(decision).Inc()
}

func outcome(passed bool) string {
	if passed {
		return "passed"
	}
	return "failed"
}

// updateBlockRate recomputes the gauge from the decision counters.
func (r *Registry) updateBlockRate() {
	states := []gate.State{gate.Block, gate.ProbeSmall, gate.ProbeMedium, gate.Full}
	var total, blocked float64
	for _, s := range states {
		c, err := r.Decisions.GetMetricWithLabelValues(string(s))
		if err != nil {
			log.Warn().Err(err).Msg("block rate readout failed")
			return
		}
		m := &io_prometheus_client.Metric{}
		if err := c.Write(m); err != nil {
			log.Warn().Err(err).Msg("block rate readout failed")
			return
		}
		v := m.GetCounter().GetValue()
		total += v
		if s == gate.Block {
			blocked = v
		}
	}
	if total > 0 {
		r.BlockRate.Set(blocked / total)
	}
}
