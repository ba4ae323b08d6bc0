package admission

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/quantward/edgegate/internal/market"
	"github.com/quantward/edgegate/internal/registry"
)

// Decision labels written to the audit trail.
const (
	DecisionApproved = "APPROVED"
	DecisionRejected = "REJECTED"
	DecisionEnabled  = "ENABLED"
	DecisionDisabled = "DISABLED"
)

// Config holds the live-approval requirements.
type Config struct {
	Requirements registry.Requirements `yaml:"requirements"`
}

// DefaultConfig returns the standard requirements.
func DefaultConfig() *Config {
	return &Config{Requirements: registry.DefaultRequirements()}
}

// Gate is the paper-to-live admission gate. Every approval, rejection
// and lifecycle change lands in the audit log; audit failures are
// logged and never alter the decision.
type Gate struct {
	cfg      *Config
	registry *registry.Registry
	audit    *AuditLog
}

// NewGate builds a gate. A nil config uses the defaults; audit may be
// nil to skip the trail (tests).
func NewGate(cfg *Config, reg *registry.Registry, audit *AuditLog) *Gate {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Gate{cfg: cfg, registry: reg, audit: audit}
}

func (g *Gate) record(strategyID, version, decision, reason string) {
	if g.audit == nil {
		return
	}
	if err := g.audit.Append(strategyID, version, decision, reason); err != nil {
		log.Error().Err(err).Str("strategy", strategyID).
			Str("decision", decision).Msg("audit append failed")
	}
}

// RequestApproval runs the multi-stage check: backtest pass, then
// walk-forward pass, then registry metrics against the requirements.
// The outcome is recorded in the registry and the audit trail.
func (g *Gate) RequestApproval(ctx context.Context, strategyID, version string, backtestPassed, walkforwardPassed bool) (bool, string, error) {
	if _, err := g.registry.Get(strategyID, version); err != nil {
		return false, "", err
	}
	if err := g.registry.SetValidation(ctx, strategyID, version, backtestPassed, walkforwardPassed); err != nil {
		return false, "", err
	}

	if !backtestPassed {
		reason := "backtest validation failed"
		g.record(strategyID, version, DecisionRejected, reason)
		return false, reason, nil
	}
	if !walkforwardPassed {
		reason := "walk-forward validation failed"
		g.record(strategyID, version, DecisionRejected, reason)
		return false, reason, nil
	}

	ok, shortfalls, err := g.registry.Approve(ctx, strategyID, version, g.cfg.Requirements)
	if err != nil {
		return false, "", err
	}
	if !ok {
		reason := "requirements not met: " + strings.Join(shortfalls, ", ")
		g.record(strategyID, version, DecisionRejected, reason)
		return false, reason, nil
	}

	reason := "all validation stages passed"
	g.record(strategyID, version, DecisionApproved, reason)
	log.Info().Str("strategy", strategyID).Str("version", version).
		Msg("strategy approved for live trading")
	return true, reason, nil
}

// Enable turns on live trading for an approved version.
func (g *Gate) Enable(ctx context.Context, strategyID, version string) error {
	if err := g.registry.Enable(ctx, strategyID, version); err != nil {
		return err
	}
	g.record(strategyID, version, DecisionEnabled, "live trading enabled")
	return nil
}

// Disable turns off live trading, keeping approval state.
func (g *Gate) Disable(ctx context.Context, strategyID, version, reason string) error {
	if err := g.registry.Disable(ctx, strategyID, version, reason); err != nil {
		return err
	}
	g.record(strategyID, version, DecisionDisabled, reason)
	return nil
}

// CheckLive reports whether the version may trade right now, including
// an optional market-state compatibility check.
func (g *Gate) CheckLive(strategyID, version string, state *market.State) (bool, string) {
	m, err := g.registry.Get(strategyID, version)
	if err != nil {
		return false, fmt.Sprintf("strategy %s v%s not found in registry", strategyID, version)
	}
	if !m.ApprovedLive {
		return false, "strategy not approved for live trading"
	}
	if !m.LiveEnabled {
		return false, "strategy approved but not enabled"
	}
	if state != nil {
		if state.Regime == market.Volatile && state.RegimeConfidence > 0.8 {
			return false, "market too volatile"
		}
		if state.Regime == market.Unknown {
			return false, "market regime unknown"
		}
	}
	return true, "strategy approved and enabled"
}
