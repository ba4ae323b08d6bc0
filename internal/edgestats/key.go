package edgestats

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidKey marks a malformed (symbol, direction, timeframe) identity.
// It rejects the single request carrying it; other keys are unaffected.
var ErrInvalidKey = errors.New("invalid edge stats key")

// ErrInsufficientData is returned by percentile queries when a key holds
// fewer samples than the configured minimum. Callers must branch on it
// rather than treating it as a low percentile.
var ErrInsufficientData = errors.New("insufficient samples")

// Key identifies one rolling edge history. Buckets never share samples
// across keys.
type Key struct {
	Symbol    string `json:"symbol"`
	Direction string `json:"direction"` // "LONG" or "SHORT"
	Timeframe string `json:"timeframe"` // e.g. "5m", "15m", "1h"
}

// String renders the key in the canonical "SYMBOL:DIRECTION:TIMEFRAME" form.
func (k Key) String() string {
	return k.Symbol + ":" + k.Direction + ":" + k.Timeframe
}

// Validate checks the key's shape. Colons are reserved as the separator.
func (k Key) Validate() error {
	if k.Symbol == "" || k.Direction == "" || k.Timeframe == "" {
		return fmt.Errorf("%w: empty component in %q", ErrInvalidKey, k.String())
	}
	if k.Direction != "LONG" && k.Direction != "SHORT" {
		return fmt.Errorf("%w: direction %q must be LONG or SHORT", ErrInvalidKey, k.Direction)
	}
	for _, part := range []string{k.Symbol, k.Direction, k.Timeframe} {
		if strings.Contains(part, ":") {
			return fmt.Errorf("%w: component %q contains separator", ErrInvalidKey, part)
		}
	}
	return nil
}

// ParseKey parses the canonical string form produced by String.
func ParseKey(s string) (Key, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return Key{}, fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}
	k := Key{Symbol: parts[0], Direction: parts[1], Timeframe: parts[2]}
	if err := k.Validate(); err != nil {
		return Key{}, err
	}
	return k, nil
}
