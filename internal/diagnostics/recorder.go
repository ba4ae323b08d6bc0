// Package diagnostics keeps an append-only record of every gate
// decision and answers summary and distribution queries over it, to
// diagnose "no orders" situations.
package diagnostics

import (
	"sort"
	"sync"
	"time"

	"github.com/quantward/edgegate/internal/gate"
)

// Record is one gate decision as observed on the live path.
type Record struct {
	Timestamp          time.Time  `json:"timestamp"`
	Symbol             string     `json:"symbol"`
	State              gate.State `json:"state"`
	Reason             string     `json:"reason"`
	NetEdge            float64    `json:"net_edge"`
	Confidence         float64    `json:"confidence"`
	Percentile         float64    `json:"percentile"`
	PositionMultiplier float64    `json:"position_multiplier"`
}

// Summary aggregates decision counts.
type Summary struct {
	TotalDecisions int                 `json:"total_decisions"`
	StateCounts    map[gate.State]int  `json:"state_counts"`
	BlockReasons   map[string]int      `json:"block_reasons"`
	BlockRate      float64             `json:"block_rate"`
	ProbeRate      float64             `json:"probe_rate"`
	FullRate       float64             `json:"full_rate"`
}

// PercentileHistogram buckets recent decisions by edge percentile,
// aligned with the gate's sizing bands.
type PercentileHistogram struct {
	Count   int     `json:"count"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	P50     float64 `json:"p50"`
	P90     float64 `json:"p90"`
	Below60 int     `json:"below_60"`
	Band60  int     `json:"60_to_75"`
	Band75  int     `json:"75_to_90"`
	Above90 int     `json:"above_90"`
}

// Sink receives each record after it is counted. Sink errors must not
// reach the caller; a failed flush never alters a decision.
type Sink interface {
	Write(Record) error
}

// Recorder accumulates decision records in a bounded in-memory window
// plus running counters. Safe for concurrent use.
type Recorder struct {
	mu           sync.Mutex
	recent       []Record
	maxRecent    int
	stateCounts  map[gate.State]int
	blockReasons map[string]int
	total        int
	sink         Sink
}

// NewRecorder keeps up to maxRecent records for distribution queries;
// counters are unbounded. A non-positive maxRecent keeps 10000.
func NewRecorder(maxRecent int) *Recorder {
	if maxRecent <= 0 {
		maxRecent = 10000
	}
	return &Recorder{
		maxRecent:    maxRecent,
		stateCounts:  make(map[gate.State]int),
		blockReasons: make(map[string]int),
	}
}

// WithSink forwards every record to the sink after counting.
func (r *Recorder) WithSink(s Sink) *Recorder {
	r.sink = s
	return r
}

// Record appends one decision.
func (r *Recorder) Record(rec Record) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	r.mu.Lock()
	r.total++
	r.stateCounts[rec.State]++
	if rec.State == gate.Block {
		r.blockReasons[rec.Reason]++
	}
	r.recent = append(r.recent, rec)
	if len(r.recent) > r.maxRecent {
		r.recent = r.recent[len(r.recent)-r.maxRecent:]
	}
	sink := r.sink
	r.mu.Unlock()

	if sink != nil {
		// Sink failures are the sink's problem to report.
		_ = sink.Write(rec)
	}
}

// Summary returns running decision counts.
func (r *Recorder) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Summary{
		TotalDecisions: r.total,
		StateCounts:    make(map[gate.State]int, len(r.stateCounts)),
		BlockReasons:   make(map[string]int, len(r.blockReasons)),
	}
	for k, v := range r.stateCounts {
		s.StateCounts[k] = v
	}
	for k, v := range r.blockReasons {
		s.BlockReasons[k] = v
	}
	if r.total > 0 {
		n := float64(r.total)
		s.BlockRate = float64(r.stateCounts[gate.Block]) / n
		s.ProbeRate = float64(r.stateCounts[gate.ProbeSmall]+r.stateCounts[gate.ProbeMedium]) / n
		s.FullRate = float64(r.stateCounts[gate.Full]) / n
	}
	return s
}

// RecentBlocks returns up to limit most recent BLOCK records, newest
// last.
func (r *Recorder) RecentBlocks(limit int) []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	var blocks []Record
	for _, rec := range r.recent {
		if rec.State == gate.Block {
			blocks = append(blocks, rec)
		}
	}
	if limit > 0 && len(blocks) > limit {
		blocks = blocks[len(blocks)-limit:]
	}
	return blocks
}

// Histogram summarizes the percentile distribution of the recent
// window.
func (r *Recorder) Histogram() PercentileHistogram {
	r.mu.Lock()
	defer r.mu.Unlock()

	var h PercentileHistogram
	if len(r.recent) == 0 {
		return h
	}

	sorted := make([]float64, len(r.recent))
	for i, rec := range r.recent {
		sorted[i] = rec.Percentile
	}
	sort.Float64s(sorted)

	h.Count = len(sorted)
	h.Min = sorted[0]
	h.Max = sorted[len(sorted)-1]
	h.P50 = sorted[len(sorted)/2]
	h.P90 = sorted[len(sorted)*9/10]
	for _, p := range sorted {
		switch {
		case p < 0.60:
			h.Below60++
		case p < 0.75:
			h.Band60++
		case p < 0.90:
			h.Band75++
		default:
			h.Above90++
		}
	}
	return h
}
