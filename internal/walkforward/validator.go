// Package walkforward validates strategy robustness with rolling
// out-of-sample train/test window pairs.
package walkforward

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quantward/edgegate/internal/backtest"
	"github.com/quantward/edgegate/internal/market"
)

// Config sizes the rolling windows, in bars.
type Config struct {
	TrainWindowSize int `yaml:"train_window_size"`
	TestWindowSize  int `yaml:"test_window_size"`
	StepSize        int `yaml:"step_size"`

	MinConsistency float64 `yaml:"min_consistency"`
	MaxDegradation float64 `yaml:"max_degradation"`
	MinTestWinRate float64 `yaml:"min_test_win_rate"`

	// Parallelism caps concurrent window simulations; 0 means one
	// worker per window.
	Parallelism int `yaml:"parallelism"`

	Backtest *backtest.Config `yaml:"backtest"`
}

// DefaultConfig returns the standard window sizes and pass criteria.
func DefaultConfig() *Config {
	return &Config{
		TrainWindowSize: 1000,
		TestWindowSize:  200,
		StepSize:        200,
		MinConsistency:  0.70,
		MaxDegradation:  0.50,
		MinTestWinRate:  0.40,
	}
}

// Window is one train/test pair with its outcomes.
type Window struct {
	ID int `json:"id"`

	TrainStart time.Time `json:"train_start"`
	TrainEnd   time.Time `json:"train_end"`
	TestStart  time.Time `json:"test_start"`
	TestEnd    time.Time `json:"test_end"`

	TrainResult backtest.Result `json:"train_result"`
	TestResult  backtest.Result `json:"test_result"`

	// Degradation is (train_pnl - test_pnl) / |train_pnl|; large
	// positive values indicate overfitting to the train period.
	Degradation float64 `json:"degradation"`
	Passed      bool    `json:"passed"`
}

// Report aggregates all windows for one strategy version.
type Report struct {
	StrategyID string `json:"strategy_id"`
	Version    string `json:"version"`

	Windows       []Window `json:"windows"`
	TotalWindows  int      `json:"total_windows"`
	PassedWindows int      `json:"passed_windows"`

	AvgTrainPnL    float64 `json:"avg_train_pnl"`
	AvgTestPnL     float64 `json:"avg_test_pnl"`
	AvgDegradation float64 `json:"avg_degradation"`

	// Consistency is the fraction of windows that passed.
	Consistency float64 `json:"consistency"`
	Passed      bool    `json:"passed"`
	FailReason  string  `json:"fail_reason,omitempty"`
}

// Validator runs the walk-forward procedure. Windows operate on
// disjoint result state and independent engines, so they execute
// concurrently.
type Validator struct {
	cfg *Config
}

// NewValidator builds a validator. A nil config uses the defaults.
func NewValidator(cfg *Config) *Validator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Validator{cfg: cfg}
}

// Validate partitions the bars into rolling train/test pairs, runs a
// fresh simulation per slice, and aggregates the pass consistency.
func (v *Validator) Validate(strategy backtest.StrategyFunc, bars []market.Bar, strategyID, version string) Report {
	rep := Report{StrategyID: strategyID, Version: version}

	need := v.cfg.TrainWindowSize + v.cfg.TestWindowSize
	if len(bars) < need {
		rep.FailReason = fmt.Sprintf("insufficient data: %d bars, need %d", len(bars), need)
		log.Warn().Str("strategy", strategyID).Int("bars", len(bars)).
			Int("need", need).Msg("walk-forward aborted")
		return rep
	}

	nWindows := 0
	for nWindows*v.cfg.StepSize+need <= len(bars) {
		nWindows++
	}
	rep.Windows = make([]Window, nWindows)

	log.Info().Str("strategy", strategyID).Str("version", version).
		Int("bars", len(bars)).Int("windows", nWindows).
		Msg("walk-forward validation starting")

	workers := v.cfg.Parallelism
	if workers <= 0 || workers > nWindows {
		workers = nWindows
	}
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				rep.Windows[id] = v.runWindow(id, strategy, bars, strategyID, version)
			}
		}()
	}
	for id := 0; id < nWindows; id++ {
		jobs <- id
	}
	close(jobs)
	wg.Wait()

	rep.TotalWindows = nWindows
	for _, w := range rep.Windows {
		if w.Passed {
			rep.PassedWindows++
		}
		rep.AvgTrainPnL += w.TrainResult.TotalPnL
		rep.AvgTestPnL += w.TestResult.TotalPnL
		rep.AvgDegradation += w.Degradation
	}
	n := float64(nWindows)
	rep.AvgTrainPnL /= n
	rep.AvgTestPnL /= n
	rep.AvgDegradation /= n
	rep.Consistency = float64(rep.PassedWindows) / n

	rep.Passed = rep.Consistency >= v.cfg.MinConsistency
	if !rep.Passed {
		rep.FailReason = fmt.Sprintf("consistency %.2f below %.2f (%d/%d windows passed)",
			rep.Consistency, v.cfg.MinConsistency, rep.PassedWindows, rep.TotalWindows)
	}

	log.Info().Str("strategy", strategyID).
		Int("passed_windows", rep.PassedWindows).Int("total_windows", rep.TotalWindows).
		Float64("consistency", rep.Consistency).Bool("passed", rep.Passed).
		Msg("walk-forward validation complete")
	return rep
}

func (v *Validator) runWindow(id int, strategy backtest.StrategyFunc, bars []market.Bar, strategyID, version string) Window {
	trainStart := id * v.cfg.StepSize
	trainEnd := trainStart + v.cfg.TrainWindowSize
	testEnd := trainEnd + v.cfg.TestWindowSize

	train := bars[trainStart:trainEnd]
	test := bars[trainEnd:testEnd]

	w := Window{
		ID:         id,
		TrainStart: train[0].Timestamp,
		TrainEnd:   train[len(train)-1].Timestamp,
		TestStart:  test[0].Timestamp,
		TestEnd:    test[len(test)-1].Timestamp,
	}

	w.TrainResult = backtest.NewEngine(v.cfg.Backtest).Run(strategy, train, strategyID, version)
	w.TestResult = backtest.NewEngine(v.cfg.Backtest).Run(strategy, test, strategyID, version)

	if w.TrainResult.TotalPnL != 0 {
		w.Degradation = (w.TrainResult.TotalPnL - w.TestResult.TotalPnL) /
			math.Abs(w.TrainResult.TotalPnL)
	}
	w.Passed = w.TestResult.TotalPnL > 0 &&
		w.Degradation < v.cfg.MaxDegradation &&
		w.TestResult.WinRate >= v.cfg.MinTestWinRate
	return w
}

// Render produces a human-readable report.
func Render(rep Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "walk-forward report for %s v%s\n", rep.StrategyID, rep.Version)
	fmt.Fprintf(&b, "windows passed: %d/%d (%.1f%%)\n",
		rep.PassedWindows, rep.TotalWindows, rep.Consistency*100)
	fmt.Fprintf(&b, "avg train pnl: %+.2f  avg test pnl: %+.2f  avg degradation: %+.1f%%\n",
		rep.AvgTrainPnL, rep.AvgTestPnL, rep.AvgDegradation*100)
	for _, w := range rep.Windows {
		status := "FAIL"
		if w.Passed {
			status = "PASS"
		}
		fmt.Fprintf(&b, "  window %d: train %+.2f test %+.2f degradation %+.1f%% [%s]\n",
			w.ID, w.TrainResult.TotalPnL, w.TestResult.TotalPnL, w.Degradation*100, status)
	}
	if rep.Passed {
		b.WriteString("overall: PASSED\n")
	} else {
		fmt.Fprintf(&b, "overall: FAILED (%s)\n", rep.FailReason)
	}
	return b.String()
}
