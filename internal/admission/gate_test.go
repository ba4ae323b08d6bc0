package admission

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantward/edgegate/internal/backtest"
	"github.com/quantward/edgegate/internal/market"
	"github.com/quantward/edgegate/internal/registry"
)

func strongTrades() []backtest.TradeRecord {
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	trades := make([]backtest.TradeRecord, 0, 35)
	for i := 0; i < 20; i++ {
		trades = append(trades, backtest.TradeRecord{PnL: 40, Win: true, EntryTime: base, ExitTime: base.Add(time.Hour)})
	}
	for i := 0; i < 15; i++ {
		trades = append(trades, backtest.TradeRecord{PnL: -25, EntryTime: base, ExitTime: base.Add(time.Hour)})
	}
	return trades
}

func newGate(t *testing.T) (*Gate, *registry.Registry, *AuditLog) {
	t.Helper()
	audit, err := NewAuditLog(filepath.Join(t.TempDir(), "audit.jsonl"))
	require.NoError(t, err)
	reg := registry.New(nil)
	return NewGate(nil, reg, audit), reg, audit
}

func TestRequestApproval_FullPath(t *testing.T) {
	ctx := context.Background()
	g, reg, audit := newGate(t)

	reg.Register(ctx, "momentum", "2.0")
	reg.UpdateMetrics(ctx, "momentum", "2.0", strongTrades(), 10000)

	ok, reason, err := g.RequestApproval(ctx, "momentum", "2.0", true, true)
	require.NoError(t, err)
	assert.True(t, ok, reason)

	m, err := reg.Get("momentum", "2.0")
	require.NoError(t, err)
	assert.True(t, m.ApprovedLive)

	entries, err := audit.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, DecisionApproved, entries[0].Decision)
	assert.NotEmpty(t, entries[0].ID)
}

func TestRequestApproval_BacktestFailureShortCircuits(t *testing.T) {
	ctx := context.Background()
	g, reg, audit := newGate(t)
	reg.Register(ctx, "s1", "1.0")
	reg.UpdateMetrics(ctx, "s1", "1.0", strongTrades(), 10000)

	ok, reason, err := g.RequestApproval(ctx, "s1", "1.0", false, true)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "backtest validation failed", reason)

	entries, _ := audit.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, DecisionRejected, entries[0].Decision)
}

func TestRequestApproval_WeakMetricsRejected(t *testing.T) {
	ctx := context.Background()
	g, reg, audit := newGate(t)
	reg.Register(ctx, "weak", "1.0")
	// Five trades is far under the 30-trade requirement.
	reg.UpdateMetrics(ctx, "weak", "1.0", strongTrades()[:5], 10000)

	ok, reason, err := g.RequestApproval(ctx, "weak", "1.0", true, true)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, reason, "requirements not met")
	assert.Contains(t, reason, "trades")

	entries, _ := audit.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, DecisionRejected, entries[0].Decision)
}

func TestRequestApproval_UnknownStrategy(t *testing.T) {
	g, _, _ := newGate(t)
	_, _, err := g.RequestApproval(context.Background(), "ghost", "1.0", true, true)
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func TestCheckLive_Lifecycle(t *testing.T) {
	ctx := context.Background()
	g, reg, audit := newGate(t)
	reg.Register(ctx, "s1", "2.0")
	reg.UpdateMetrics(ctx, "s1", "2.0", strongTrades(), 10000)

	allowed, reason := g.CheckLive("s1", "2.0", nil)
	assert.False(t, allowed)
	assert.Contains(t, reason, "not approved")

	ok, _, err := g.RequestApproval(ctx, "s1", "2.0", true, true)
	require.NoError(t, err)
	require.True(t, ok)

	allowed, reason = g.CheckLive("s1", "2.0", nil)
	assert.False(t, allowed)
	assert.Contains(t, reason, "not enabled")

	require.NoError(t, g.Enable(ctx, "s1", "2.0"))
	allowed, _ = g.CheckLive("s1", "2.0", nil)
	assert.True(t, allowed)

	require.NoError(t, g.Disable(ctx, "s1", "2.0", "drawdown review"))
	allowed, _ = g.CheckLive("s1", "2.0", nil)
	assert.False(t, allowed)

	entries, err := audit.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, DecisionApproved, entries[0].Decision)
	assert.Equal(t, DecisionEnabled, entries[1].Decision)
	assert.Equal(t, DecisionDisabled, entries[2].Decision)
	assert.Equal(t, "drawdown review", entries[2].Reason)
}

func TestCheckLive_MarketStateGuards(t *testing.T) {
	ctx := context.Background()
	g, reg, _ := newGate(t)
	reg.Register(ctx, "s1", "1.0")
	reg.UpdateMetrics(ctx, "s1", "1.0", strongTrades(), 10000)
	ok, _, err := g.RequestApproval(ctx, "s1", "1.0", true, true)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, g.Enable(ctx, "s1", "1.0"))

	volatile := &market.State{Regime: market.Volatile, RegimeConfidence: 0.95}
	allowed, reason := g.CheckLive("s1", "1.0", volatile)
	assert.False(t, allowed)
	assert.Contains(t, reason, "volatile")

	unknown := &market.State{Regime: market.Unknown}
	allowed, _ = g.CheckLive("s1", "1.0", unknown)
	assert.False(t, allowed)

	calm := &market.State{Regime: market.TrendingUp, RegimeConfidence: 0.7}
	allowed, _ = g.CheckLive("s1", "1.0", calm)
	assert.True(t, allowed)
}
