package market

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
)

// Bar is a single OHLCV candle.
type Bar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// LoadBarsCSV reads bars from a CSV file with columns
// timestamp,open,high,low,close,volume. Timestamps are unix seconds.
// A header row is detected and skipped.
func LoadBarsCSV(path string) ([]Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open bars file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 6

	var bars []Bar
	first := true
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read bars csv: %w", err)
		}
		if first {
			first = false
			if _, convErr := strconv.ParseFloat(rec[0], 64); convErr != nil {
				continue // header row
			}
		}
		bar, err := parseBarRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("bad bar row %d: %w", len(bars)+1, err)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func parseBarRecord(rec []string) (Bar, error) {
	vals := make([]float64, 6)
	for i, s := range rec {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Bar{}, fmt.Errorf("column %d: %w", i, err)
		}
		vals[i] = v
	}
	return Bar{
		Timestamp: time.Unix(int64(vals[0]), 0).UTC(),
		Open:      vals[1],
		High:      vals[2],
		Low:       vals[3],
		Close:     vals[4],
		Volume:    vals[5],
	}, nil
}
