package lifetime

import (
	"fmt"
	"time"

	"github.com/andresuchdata/stocklife/internal/domain"
)

const (
	DefaultWindowDays        = 7
	DefaultSentinel          = 1000
	DefaultMaxSimulationDays = 100000
)

// Config tunes the estimator.
type Config struct {
	Mode              WindowMode
	WindowDays        int
	Sentinel          int // reported when the history has no usable recent demand
	MaxSimulationDays int // upper bound on a reported coverage
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{
		Mode:              WindowTrailing,
		WindowDays:        DefaultWindowDays,
		Sentinel:          DefaultSentinel,
		MaxSimulationDays: DefaultMaxSimulationDays,
	}
}

// Estimator computes days of stock coverage by replaying a demand window.
// It holds no mutable state and is safe for concurrent use.
type Estimator struct {
	cfg Config
}

// NewEstimator creates an estimator, filling zero config values with defaults.
func NewEstimator(cfg Config) *Estimator {
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = DefaultWindowDays
	}
	if cfg.Sentinel == 0 {
		cfg.Sentinel = DefaultSentinel
	}
	if cfg.MaxSimulationDays <= 0 {
		cfg.MaxSimulationDays = DefaultMaxSimulationDays
	}
	return &Estimator{cfg: cfg}
}

// Config returns the effective configuration.
func (e *Estimator) Config() Config {
	return e.cfg
}

// Estimate returns the number of days stock lasts as of ref under the
// material's demand pattern. A non-nil error is a skip reason.
func (e *Estimator) Estimate(ref time.Time, stock int64, series domain.DemandSeries) (int, error) {
	if stock < 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidStock, stock)
	}
	idx, err := indexSeries(series)
	if err != nil {
		return 0, err
	}
	ref = domain.Day(ref)

	window, err := e.selectWindow(ref, series, idx)
	if err != nil {
		return 0, err
	}
	if sum(window) == 0 {
		window, err = fallbackWindow(ref, series, idx)
		if err != nil {
			return 0, err
		}
	}

	if stock == 0 {
		return 0, nil
	}
	if len(window) == 0 {
		return 0, ErrEmptyWindow
	}
	// The whole tracked history ended up as the window: no usable recent demand.
	if len(window) == series.Len() || sum(window) <= 0 {
		return e.cfg.Sentinel, nil
	}
	return e.simulate(stock, window), nil
}

// simulate consumes stock day by day, cycling through window. Stock still
// left after MaxSimulationDays reports the cap as its coverage.
func (e *Estimator) simulate(stock int64, window []float64) int {
	remaining := float64(stock)
	days := 0
	cursor := 0
	for remaining > 0 && days < e.cfg.MaxSimulationDays {
		remaining -= window[cursor]
		cursor = (cursor + 1) % len(window)
		days++
	}
	return days
}

// Evaluate estimates one material and wraps the outcome in a Result.
// stocks is the cross-section for ref; a material missing from it is skipped.
func (e *Estimator) Evaluate(ref time.Time, stocks map[domain.MaterialID]int64, series domain.DemandSeries) domain.Result {
	res := domain.Result{MaterialID: series.MaterialID}
	stock, ok := stocks[series.MaterialID]
	if !ok {
		res.Outcome = domain.OutcomeSkipped
		res.SkipReason = ErrNoStock
		return res
	}
	days, err := e.Estimate(ref, stock, series)
	if err != nil {
		res.Outcome = domain.OutcomeSkipped
		res.SkipReason = err
		return res
	}
	res.Outcome = domain.OutcomeEstimated
	res.DaysOfCoverage = days
	return res
}

// Skipped builds the result for a material whose inputs could not be loaded.
func Skipped(id domain.MaterialID, reason error) domain.Result {
	return domain.Result{MaterialID: id, Outcome: domain.OutcomeSkipped, SkipReason: reason}
}
