package diagnostics

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantward/edgegate/internal/gate"
)

func rec(state gate.State, reason string, percentile float64) Record {
	return Record{
		Symbol:     "BTCUSDT",
		State:      state,
		Reason:     reason,
		NetEdge:    12.5,
		Confidence: 0.7,
		Percentile: percentile,
	}
}

func TestRecorder_Summary(t *testing.T) {
	r := NewRecorder(100)
	r.Record(rec(gate.Block, "non-positive edge", 0))
	r.Record(rec(gate.Block, "non-positive edge", 0))
	r.Record(rec(gate.Block, "confidence 0.40 below threshold 0.55", 0.80))
	r.Record(rec(gate.ProbeSmall, "", 0.65))
	r.Record(rec(gate.ProbeMedium, "", 0.80))
	r.Record(rec(gate.Full, "", 0.95))

	s := r.Summary()
	assert.Equal(t, 6, s.TotalDecisions)
	assert.Equal(t, 3, s.StateCounts[gate.Block])
	assert.Equal(t, 2, s.BlockReasons["non-positive edge"])
	assert.InDelta(t, 0.5, s.BlockRate, 1e-9)
	assert.InDelta(t, 1.0/3.0, s.ProbeRate, 1e-9)
	assert.InDelta(t, 1.0/6.0, s.FullRate, 1e-9)
}

func TestRecorder_RecentBlocks(t *testing.T) {
	r := NewRecorder(100)
	for i := 0; i < 5; i++ {
		r.Record(rec(gate.Block, "non-positive edge", 0))
	}
	r.Record(rec(gate.Full, "", 0.95))

	blocks := r.RecentBlocks(3)
	assert.Len(t, blocks, 3)
	for _, b := range blocks {
		assert.Equal(t, gate.Block, b.State)
	}
}

func TestRecorder_WindowBound(t *testing.T) {
	r := NewRecorder(10)
	for i := 0; i < 25; i++ {
		r.Record(rec(gate.Full, "", 0.95))
	}
	// Counters are unbounded; the distribution window is not.
	assert.Equal(t, 25, r.Summary().TotalDecisions)
	assert.Equal(t, 10, r.Histogram().Count)
}

func TestRecorder_Histogram(t *testing.T) {
	r := NewRecorder(100)
	for _, p := range []float64{0.10, 0.50, 0.62, 0.70, 0.80, 0.85, 0.92, 0.99} {
		r.Record(rec(gate.ProbeSmall, "", p))
	}

	h := r.Histogram()
	assert.Equal(t, 8, h.Count)
	assert.Equal(t, 0.10, h.Min)
	assert.Equal(t, 0.99, h.Max)
	assert.Equal(t, 2, h.Below60)
	assert.Equal(t, 2, h.Band60)
	assert.Equal(t, 2, h.Band75)
	assert.Equal(t, 2, h.Above90)
}

func TestJSONLSink_WritesRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decisions.jsonl")
	sink, err := NewJSONLSink(path, 0)
	require.NoError(t, err)

	r := NewRecorder(100).WithSink(sink)
	r.Record(rec(gate.Full, "", 0.95))
	r.Record(rec(gate.Block, "non-positive edge", 0))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []Record
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var out Record
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &out))
		lines = append(lines, out)
	}
	require.Len(t, lines, 2)
	assert.Equal(t, gate.Full, lines[0].State)
	assert.Equal(t, "BTCUSDT", lines[0].Symbol)
	assert.False(t, lines[0].Timestamp.IsZero())
}

func TestJSONLSink_RateCapDropsFromFileOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decisions.jsonl")
	sink, err := NewJSONLSink(path, 1)
	require.NoError(t, err)

	r := NewRecorder(1000).WithSink(sink)
	for i := 0; i < 100; i++ {
		r.Record(rec(gate.Full, "", 0.95))
	}

	assert.Equal(t, 100, r.Summary().TotalDecisions)
	assert.Positive(t, sink.Dropped())
}
