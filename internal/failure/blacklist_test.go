package failure

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quantward/edgegate/internal/market"
)

func TestClassifyVolatility(t *testing.T) {
	assert.Equal(t, VolLow, ClassifyVolatility(0.005))
	assert.Equal(t, VolMedium, ClassifyVolatility(0.01))
	assert.Equal(t, VolMedium, ClassifyVolatility(0.029))
	assert.Equal(t, VolHigh, ClassifyVolatility(0.03))
}

func TestBlacklist_BlocksLowWinRate(t *testing.T) {
	b := NewBlacklist(nil)
	vol := 0.02

	allowed, _ := b.Check("mean_rev", market.Volatile, &vol)
	assert.True(t, allowed)

	for i := 0; i < 10; i++ {
		b.RecordOutcome("mean_rev", market.Volatile, &vol, -20)
	}

	allowed, reason := b.Check("mean_rev", market.Volatile, &vol)
	assert.False(t, allowed)
	assert.Contains(t, reason, "win rate")

	// Other combinations stay clean.
	allowed, _ = b.Check("mean_rev", market.Ranging, &vol)
	assert.True(t, allowed)
	allowed, _ = b.Check("trend", market.Volatile, &vol)
	assert.True(t, allowed)
}

func TestBlacklist_RequiresMinimumSample(t *testing.T) {
	b := NewBlacklist(nil)
	for i := 0; i < 9; i++ {
		b.RecordOutcome("s1", market.Ranging, nil, -100)
	}
	allowed, _ := b.Check("s1", market.Ranging, nil)
	assert.True(t, allowed, "nine trades must not trigger a block")

	b.RecordOutcome("s1", market.Ranging, nil, -100)
	allowed, _ = b.Check("s1", market.Ranging, nil)
	assert.False(t, allowed)
}

func TestBlacklist_BlocksNegativeEV(t *testing.T) {
	b := NewBlacklist(nil)
	// 40% win rate survives the rate check but bleeds money.
	for i := 0; i < 4; i++ {
		b.RecordOutcome("s1", market.TrendingUp, nil, 1)
	}
	for i := 0; i < 6; i++ {
		b.RecordOutcome("s1", market.TrendingUp, nil, -100)
	}
	allowed, reason := b.Check("s1", market.TrendingUp, nil)
	assert.False(t, allowed)
	assert.Contains(t, reason, "expected value")
}

func TestBlacklist_BlocksPoorProfitFactor(t *testing.T) {
	b := NewBlacklist(nil)
	for i := 0; i < 5; i++ {
		b.RecordOutcome("s1", market.Quiet, nil, 10)
	}
	for i := 0; i < 5; i++ {
		b.RecordOutcome("s1", market.Quiet, nil, -13)
	}
	allowed, reason := b.Check("s1", market.Quiet, nil)
	assert.False(t, allowed)
	assert.Contains(t, reason, "profit factor")
}

func TestBlacklist_GeneralKeyBlocksSpecificChecks(t *testing.T) {
	b := NewBlacklist(nil)
	// Outcomes recorded without volatility land on the general key.
	for i := 0; i < 10; i++ {
		b.RecordOutcome("s1", market.Ranging, nil, -10)
	}
	vol := 0.02
	allowed, _ := b.Check("s1", market.Ranging, &vol)
	assert.False(t, allowed, "general block must also stop specific checks")
}

func TestBlacklist_Disabled(t *testing.T) {
	cfg := DefaultBlacklistConfig()
	cfg.Enabled = false
	b := NewBlacklist(cfg)
	for i := 0; i < 20; i++ {
		b.RecordOutcome("s1", market.Ranging, nil, -100)
	}
	allowed, _ := b.Check("s1", market.Ranging, nil)
	assert.True(t, allowed)
}

func TestBlacklist_BlockedListing(t *testing.T) {
	b := NewBlacklist(nil)
	for i := 0; i < 10; i++ {
		b.RecordOutcome("s1", market.Ranging, nil, -10)
	}
	entries := b.Blocked()
	assert.Len(t, entries, 1)
	assert.Equal(t, "s1|RANGING", entries[0].Key)
}
