// Package gate implements the edge admission gate: a pure decision
// function mapping (net edge, confidence, historical percentile) to a
// position state and sizing multiplier. Each call is independent; no
// state is carried between evaluations.
package gate

import "fmt"

// State labels the gate outcome. It is the returned decision label,
// not persistent component state.
type State string

const (
	Block       State = "BLOCK"
	ProbeSmall  State = "PROBE_SMALL"
	ProbeMedium State = "PROBE_MEDIUM"
	Full        State = "FULL"
)

// Config holds the gate thresholds. Band edges are half-open on the
// low side and inclusive on the high side.
type Config struct {
	MinConfidence        float64 `yaml:"min_confidence"`
	ProbeSmallThreshold  float64 `yaml:"probe_small_threshold"`
	ProbeMediumThreshold float64 `yaml:"probe_medium_threshold"`
	FullThreshold        float64 `yaml:"full_threshold"`

	ProbeSmallMultiplier  float64 `yaml:"probe_small_multiplier"`
	ProbeMediumMultiplier float64 `yaml:"probe_medium_multiplier"`
	FullMultiplier        float64 `yaml:"full_multiplier"`

	// ProbeStopTightening scales stop distance for PROBE entries.
	// Advisory for the caller, never enforced here.
	ProbeStopTightening float64 `yaml:"probe_stop_tightening"`
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() *Config {
	return &Config{
		MinConfidence:         0.55,
		ProbeSmallThreshold:   0.60,
		ProbeMediumThreshold:  0.75,
		FullThreshold:         0.90,
		ProbeSmallMultiplier:  0.10,
		ProbeMediumMultiplier: 0.25,
		FullMultiplier:        1.00,
		ProbeStopTightening:   0.70,
	}
}

// Decision is the gate output, produced fresh per call.
type Decision struct {
	State              State   `json:"state"`
	PositionMultiplier float64 `json:"position_multiplier"`
	Reason             string  `json:"reason"`

	// StopTightening and AllowPyramiding advise the executor on risk
	// handling for PROBE entries.
	StopTightening  float64 `json:"stop_tightening"`
	AllowPyramiding bool    `json:"allow_pyramiding"`
}

// Gate evaluates signals against configured thresholds.
type Gate struct {
	cfg *Config
}

// New builds a gate. A nil config uses the defaults.
func New(cfg *Config) *Gate {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Gate{cfg: cfg}
}

// Evaluate applies the block rules in strict order, short-circuiting at
// the first match, then maps percentile to a sizing band. Callers
// holding an insufficient-sample sentinel must substitute the
// probe-small threshold as the percentile before calling, so scarce
// data routes to the smallest probe instead of a hard block.
func (g *Gate) Evaluate(netEdge, confidence, percentile float64) Decision {
	if netEdge <= 0 {
		return Decision{
			State:  Block,
			Reason: "non-positive edge",
		}
	}
	if confidence < g.cfg.MinConfidence {
		return Decision{
			State: Block,
			Reason: fmt.Sprintf("confidence %.2f below threshold %.2f",
				confidence, g.cfg.MinConfidence),
		}
	}
	if percentile < g.cfg.ProbeSmallThreshold {
		return Decision{
			State: Block,
			Reason: fmt.Sprintf("edge percentile %.2f below historical floor %.2f",
				percentile, g.cfg.ProbeSmallThreshold),
		}
	}

	switch {
	case percentile >= g.cfg.FullThreshold:
		return Decision{
			State:              Full,
			PositionMultiplier: g.cfg.FullMultiplier,
			Reason:             fmt.Sprintf("edge percentile %.2f in full band", percentile),
			StopTightening:     1.0,
			AllowPyramiding:    true,
		}
	case percentile >= g.cfg.ProbeMediumThreshold:
		return Decision{
			State:              ProbeMedium,
			PositionMultiplier: g.cfg.ProbeMediumMultiplier,
			Reason:             fmt.Sprintf("edge percentile %.2f in medium probe band", percentile),
			StopTightening:     g.cfg.ProbeStopTightening,
			AllowPyramiding:    false,
		}
	default:
		return Decision{
			State:              ProbeSmall,
			PositionMultiplier: g.cfg.ProbeSmallMultiplier,
			Reason:             fmt.Sprintf("edge percentile %.2f in small probe band", percentile),
			StopTightening:     g.cfg.ProbeStopTightening,
			AllowPyramiding:    false,
		}
	}
}

// EvaluateInsufficient handles the scarce-data path: the percentile is
// unknown, so the gate runs with the conservative default and the
// result is forced down to the smallest probe unless blocked.
func (g *Gate) EvaluateInsufficient(netEdge, confidence float64) Decision {
	d := g.Evaluate(netEdge, confidence, g.cfg.ProbeSmallThreshold)
	if d.State == Block {
		return d
	}
	return Decision{
		State:              ProbeSmall,
		PositionMultiplier: g.cfg.ProbeSmallMultiplier,
		Reason:             "insufficient samples, probe trial",
		StopTightening:     g.cfg.ProbeStopTightening,
		AllowPyramiding:    false,
	}
}
