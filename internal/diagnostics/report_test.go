package diagnostics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantward/edgegate/internal/gate"
)

func TestReadJSONL_RoundTripAndCorruptLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decisions.jsonl")
	sink, err := NewJSONLSink(path, 0)
	require.NoError(t, err)

	require.NoError(t, sink.Write(Record{Symbol: "BTCUSDT", State: gate.Full, Percentile: 0.95}))
	require.NoError(t, sink.Write(Record{Symbol: "ETHUSDT", State: gate.Block, Reason: "non-positive edge"}))

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("{not json}\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	records, err := ReadJSONL(path)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "BTCUSDT", records[0].Symbol)
	assert.Equal(t, gate.Block, records[1].State)
}

func TestReadJSONL_MissingFile(t *testing.T) {
	_, err := ReadJSONL(filepath.Join(t.TempDir(), "absent.jsonl"))
	require.Error(t, err)
}

func TestRenderReport(t *testing.T) {
	r := NewRecorder(100)
	r.Record(Record{State: gate.Full, Percentile: 0.95})
	r.Record(Record{State: gate.Block, Reason: "non-positive edge"})
	r.Record(Record{State: gate.Block, Reason: "non-positive edge"})
	r.Record(Record{State: gate.ProbeSmall, Percentile: 0.65})

	out := RenderReport(r.Summary(), r.Histogram())

	assert.Contains(t, out, "Decisions: 4")
	assert.Contains(t, out, "2  non-positive edge")
	assert.Contains(t, out, "BLOCK")
	assert.Contains(t, out, "Bands:")
}
