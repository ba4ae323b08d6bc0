package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	io_prometheus_client "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantward/edgegate/internal/gate"
)

func counterValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	c, err := vec.GetMetricWithLabelValues(labels...)
	require.NoError(t, err)
	m := &io_prometheus_client.Metric{}
	require.NoError(t, c.Write(m))
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	m := &io_prometheus_client.Metric{}
	require.NoError(t, g.Write(m))
	return m.GetGauge().GetValue()
}

func TestRecordDecision(t *testing.T) {
	r := New(prometheus.NewRegistry())

	r.RecordDecision(gate.Block, "non-positive edge")
	r.RecordDecision(gate.Block, "non-positive edge")
	r.RecordDecision(gate.ProbeSmall, "")
	r.RecordDecision(gate.Full, "")

	assert.Equal(t, 2.0, counterValue(t, r.Decisions, "BLOCK"))
	assert.Equal(t, 1.0, counterValue(t, r.Decisions, "FULL"))
	assert.Equal(t, 2.0, counterValue(t, r.BlockReasons, "non-positive edge"))
	assert.InDelta(t, 0.5, gaugeValue(t, r.BlockRate), 1e-9)
}

func TestRecordRunOutcomes(t *testing.T) {
	r := New(prometheus.NewRegistry())

	r.RecordBacktest(true)
	r.RecordBacktest(false)
	r.RecordBacktest(false)
	r.RecordWalkforward(true)
	r.RecordAdmission("APPROVED")

	assert.Equal(t, 1.0, counterValue(t, r.BacktestRuns, "passed"))
	assert.Equal(t, 2.0, counterValue(t, r.BacktestRuns, "failed"))
	assert.Equal(t, 1.0, counterValue(t, r.WalkforwardRuns, "passed"))
	assert.Equal(t, 1.0, counterValue(t, r.Admissions, "APPROVED"))
}
