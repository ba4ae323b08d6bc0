package diagnostics

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// JSONLSink appends records to a JSONL file. A rate limiter caps disk
// writes under decision storms; excess records are dropped from the
// file (never from the in-memory counters) and counted.
type JSONLSink struct {
	mu      sync.Mutex
	path    string
	limiter *rate.Limiter
	dropped int64
}

// NewJSONLSink writes to path, creating parent directories. A
// non-positive maxPerSecond disables the cap.
func NewJSONLSink(path string, maxPerSecond float64) (*JSONLSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create diagnostics dir: %w", err)
	}
	s := &JSONLSink{path: path}
	if maxPerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(maxPerSecond), int(maxPerSecond)+1)
	}
	return s, nil
}

// Write appends one record, subject to the rate cap.
func (s *JSONLSink) Write(rec Record) error {
	if s.limiter != nil && !s.limiter.Allow() {
		s.mu.Lock()
		s.dropped++
		s.mu.Unlock()
		return nil
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal diagnostic record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Warn().Err(err).Msg("diagnostics sink open failed")
		return err
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		log.Warn().Err(err).Msg("diagnostics sink write failed")
		return err
	}
	return nil
}

// Dropped reports how many records the rate cap discarded.
func (s *JSONLSink) Dropped() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// ReadJSONL loads every parseable record from a sink file. Corrupt
// lines are skipped and counted in the log, not fatal.
func ReadJSONL(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open diagnostics file: %w", err)
	}
	defer f.Close()

	var records []Record
	corrupt := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			corrupt++
			continue
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan diagnostics file: %w", err)
	}
	if corrupt > 0 {
		log.Warn().Int("lines", corrupt).Str("path", path).Msg("corrupt diagnostic lines skipped")
	}
	return records, nil
}
