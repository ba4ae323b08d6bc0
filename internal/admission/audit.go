// Package admission promotes strategy versions from simulated to
// live-eligible status, combining backtest, walk-forward and registry
// evidence, with an append-only audit trail.
package admission

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// AuditEntry is one admission decision. Entries are only ever
// appended, never rewritten.
type AuditEntry struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	StrategyID string    `json:"strategy_id"`
	Version    string    `json:"version"`
	Decision   string    `json:"decision"` // APPROVED, REJECTED, ENABLED, DISABLED
	Reason     string    `json:"reason"`
}

// AuditLog appends admission decisions to a JSONL file. Failures are
// reported to the caller but must never block the decision itself.
type AuditLog struct {
	mu   sync.Mutex
	path string
}

// NewAuditLog appends to the given file, creating parent directories.
func NewAuditLog(path string) (*AuditLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}
	return &AuditLog{path: path}, nil
}

// Append writes one entry, assigning its ID and timestamp.
func (a *AuditLog) Append(strategyID, version, decision, reason string) error {
	entry := AuditEntry{
		ID:         uuid.NewString(),
		Timestamp:  time.Now().UTC(),
		StrategyID: strategyID,
		Version:    version,
		Decision:   decision,
		Reason:     reason,
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	f, err := os.OpenFile(a.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// Entries reads the full audit trail, oldest first. Corrupt lines are
// skipped with a warning.
func (a *AuditLog) Entries() ([]AuditEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	data, err := os.ReadFile(a.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}

	var entries []AuditEntry
	for _, line := range splitLines(data) {
		if len(line) == 0 {
			continue
		}
		var e AuditEntry
		if err := json.Unmarshal(line, &e); err != nil {
			log.Warn().Err(err).Msg("skipping corrupt audit entry")
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func splitLines(data []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range data {
		if b == '\n' {
			lines = append(lines, data[start:i])
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, data[start:])
	}
	return lines
}
