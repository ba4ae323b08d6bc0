// Package pipeline wires the online decision path: percentile lookup,
// gate evaluation, quality and blacklist filters, edge recording and
// diagnostics, in that order.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quantward/edgegate/internal/diagnostics"
	"github.com/quantward/edgegate/internal/edgestats"
	"github.com/quantward/edgegate/internal/failure"
	"github.com/quantward/edgegate/internal/gate"
	"github.com/quantward/edgegate/internal/market"
	"github.com/quantward/edgegate/internal/metrics"
	"github.com/quantward/edgegate/internal/quality"
)

// Block rule labels used for metrics.
const (
	RuleEdge       = "non_positive_edge"
	RuleConfidence = "low_confidence"
	RulePercentile = "low_percentile"
	RuleQuality    = "quality_score"
	RuleBlacklist  = "blacklist"
)

// SignalInput is one incoming signal to evaluate.
type SignalInput struct {
	Symbol     string  `json:"symbol"`
	Direction  string  `json:"direction"`
	Timeframe  string  `json:"timeframe"`
	NetEdge    float64 `json:"net_edge"`
	Confidence float64 `json:"confidence"`

	// Optional context for the secondary filters. Zero values skip
	// the corresponding filter.
	StrategyID        string        `json:"strategy_id,omitempty"`
	StrategyType      string        `json:"strategy_type,omitempty"`
	State             *market.State `json:"state,omitempty"`
	HistoricalWinRate *float64      `json:"historical_win_rate,omitempty"`
	RiskReward        *float64      `json:"risk_reward,omitempty"`
}

// Evaluation is the full outcome of one signal evaluation.
type Evaluation struct {
	Decision gate.Decision `json:"decision"`

	// Percentile is the empirical-CDF value used by the gate;
	// PercentileKnown is false when the key had too few samples and
	// the conservative default was substituted.
	Percentile      float64 `json:"percentile"`
	PercentileKnown bool    `json:"percentile_known"`
	SampleCount     int     `json:"sample_count"`

	Quality *quality.Result `json:"quality,omitempty"`
}

// Evaluator is the online decision service. All dependencies are
// injected; recorder and metrics may be nil.
type Evaluator struct {
	tracker   *edgestats.Tracker
	gate      *gate.Gate
	scorer    *quality.Scorer
	blacklist *failure.Blacklist
	recorder  *diagnostics.Recorder
	metrics   *metrics.Registry
}

// NewEvaluator wires the decision path. Tracker and gate are
// mandatory; the rest are optional filters and observers.
func NewEvaluator(tracker *edgestats.Tracker, g *gate.Gate, scorer *quality.Scorer, bl *failure.Blacklist, rec *diagnostics.Recorder, m *metrics.Registry) *Evaluator {
	return &Evaluator{
		tracker:   tracker,
		gate:      g,
		scorer:    scorer,
		blacklist: bl,
		recorder:  rec,
		metrics:   m,
	}
}

// Evaluate runs the full decision path for one signal. The sample is
// recorded before the trade outcome can be known, so the history never
// contains look-ahead information. An invalid key rejects only this
// request. Diagnostics and metrics failures never alter the decision.
func (e *Evaluator) Evaluate(ctx context.Context, in SignalInput) (Evaluation, error) {
	start := time.Now()

	key := edgestats.Key{Symbol: in.Symbol, Direction: in.Direction, Timeframe: in.Timeframe}
	if err := key.Validate(); err != nil {
		return Evaluation{}, err
	}

	ev := Evaluation{SampleCount: e.tracker.Count(key)}
	rule := ""

	percentile, err := e.tracker.Percentile(key, in.NetEdge)
	switch {
	case err == nil:
		ev.Percentile = percentile
		ev.PercentileKnown = true
		ev.Decision = e.gate.Evaluate(in.NetEdge, in.Confidence, percentile)
	case err == edgestats.ErrInsufficientData:
		// Scarce data routes to the smallest probe, never a hard block.
		ev.Decision = e.gate.EvaluateInsufficient(in.NetEdge, in.Confidence)
	default:
		return Evaluation{}, fmt.Errorf("percentile lookup: %w", err)
	}

	if ev.Decision.State == gate.Block {
		rule = blockRule(ev.Decision.Reason)
	}

	// Secondary filters only tighten a pass, never loosen a block.
	if ev.Decision.State != gate.Block && e.scorer != nil && in.StrategyType != "" {
		regime := market.Unknown
		if in.State != nil {
			regime = in.State.Regime
		}
		res := e.scorer.Score(quality.Input{
			Confidence:        in.Confidence,
			Regime:            regime,
			StrategyType:      in.StrategyType,
			HistoricalWinRate: in.HistoricalWinRate,
			RiskReward:        in.RiskReward,
		})
		ev.Quality = &res
		if e.metrics != nil {
			e.metrics.QualityScore.Observe(res.Score)
		}
		if !res.Allowed {
			ev.Decision = gate.Decision{
				State:  gate.Block,
				Reason: fmt.Sprintf("quality score %.1f below threshold", res.Score),
			}
			rule = RuleQuality
		}
	}

	if ev.Decision.State != gate.Block && e.blacklist != nil && in.StrategyID != "" && in.State != nil {
		vol := in.State.Volatility24h
		allowed, reason := e.blacklist.Check(in.StrategyID, in.State.Regime, &vol)
		if !allowed {
			ev.Decision = gate.Decision{State: gate.Block, Reason: reason}
			rule = RuleBlacklist
		}
	}

	// Causal ordering: the sample lands in the history now, before
	// any trade outcome exists.
	if err := e.tracker.Record(ctx, key, in.NetEdge); err != nil {
		log.Error().Err(err).Str("key", key.String()).Msg("edge record failed")
	}

	if e.recorder != nil {
		e.recorder.Record(diagnostics.Record{
			Symbol:             in.Symbol,
			State:              ev.Decision.State,
			Reason:             ev.Decision.Reason,
			NetEdge:            in.NetEdge,
			Confidence:         in.Confidence,
			Percentile:         ev.Percentile,
			PositionMultiplier: ev.Decision.PositionMultiplier,
		})
	}
	if e.metrics != nil {
		e.metrics.RecordDecision(ev.Decision.State, rule)
		if ev.PercentileKnown {
			e.metrics.EdgePercentile.Observe(ev.Percentile)
		}
		e.metrics.EvaluateDuration.Observe(time.Since(start).Seconds())
	}

	log.Debug().Str("key", key.String()).Str("state", string(ev.Decision.State)).
		Float64("net_edge", in.NetEdge).Float64("percentile", ev.Percentile).
		Bool("percentile_known", ev.PercentileKnown).
		Msg("signal evaluated")
	return ev, nil
}

// blockRule classifies which primary gate rule fired, for metrics.
func blockRule(reason string) string {
	switch {
	case strings.HasPrefix(reason, "non-positive"):
		return RuleEdge
	case strings.HasPrefix(reason, "confidence"):
		return RuleConfidence
	default:
		return RulePercentile
	}
}
