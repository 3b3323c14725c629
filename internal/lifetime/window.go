package lifetime

import (
	"fmt"
	"math"
	"time"

	"github.com/andresuchdata/stocklife/internal/domain"
)

// WindowMode selects how the "typical week" is cut out of the demand history.
type WindowMode int

const (
	// WindowTrailing uses the WindowDays calendar days ending at the reference date.
	WindowTrailing WindowMode = iota
	// WindowLegacy reproduces the historical report, whose date range ran from the
	// reference date backwards and therefore always came out empty. The zero-window
	// fallback decides every estimate in this mode.
	WindowLegacy
)

// ParseWindowMode maps the configuration value to a WindowMode.
func ParseWindowMode(s string) (WindowMode, error) {
	switch s {
	case "", "trailing":
		return WindowTrailing, nil
	case "legacy":
		return WindowLegacy, nil
	}
	return WindowTrailing, fmt.Errorf("unknown window mode %q", s)
}

func (m WindowMode) String() string {
	if m == WindowLegacy {
		return "legacy"
	}
	return "trailing"
}

// demandIndex maps each tracked day to its demand.
type demandIndex map[time.Time]float64

// indexSeries validates the series and indexes it by day.
func indexSeries(series domain.DemandSeries) (demandIndex, error) {
	if series.Len() == 0 {
		return nil, ErrEmptySeries
	}
	idx := make(demandIndex, series.Len())
	var prev time.Time
	for i, p := range series.Points {
		day := domain.Day(p.Date)
		if i > 0 && !day.After(prev) {
			return nil, fmt.Errorf("%w: dates not strictly increasing at %s", ErrInvalidDemand, day.Format(domain.DateLayout))
		}
		if math.IsNaN(p.Demand) || math.IsInf(p.Demand, 0) || p.Demand < 0 {
			return nil, fmt.Errorf("%w: demand %v on %s", ErrInvalidDemand, p.Demand, day.Format(domain.DateLayout))
		}
		idx[day] = p.Demand
		prev = day
	}
	return idx, nil
}

// span returns the demand of every day in [from, to], in date order.
// Days before the first tracked day are outside the horizon and are left out;
// any other untracked day is an error.
func (idx demandIndex) span(series domain.DemandSeries, from, to time.Time) ([]float64, error) {
	first := domain.Day(series.Points[0].Date)
	if from.Before(first) {
		from = first
	}
	var out []float64
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		v, ok := idx[day]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingDemandDay, day.Format(domain.DateLayout))
		}
		out = append(out, v)
	}
	return out, nil
}

// selectWindow cuts the initial demand window for ref.
func (e *Estimator) selectWindow(ref time.Time, series domain.DemandSeries, idx demandIndex) ([]float64, error) {
	if e.cfg.Mode == WindowLegacy {
		return nil, nil
	}
	from := ref.AddDate(0, 0, -(e.cfg.WindowDays - 1))
	return idx.span(series, from, ref)
}

// fallbackWindow replaces an all-zero window with the demand from the last
// positive day of the series up to ref. A last positive day after ref yields an
// empty window. Without any positive day the whole history up to ref is used.
func fallbackWindow(ref time.Time, series domain.DemandSeries, idx demandIndex) ([]float64, error) {
	for i := series.Len() - 1; i >= 0; i-- {
		p := series.Points[i]
		if p.Demand <= 0 {
			continue
		}
		day := domain.Day(p.Date)
		if day.After(ref) {
			return nil, nil
		}
		return idx.span(series, day, ref)
	}

	var out []float64
	for _, p := range series.Points {
		if domain.Day(p.Date).After(ref) {
			break
		}
		out = append(out, p.Demand)
	}
	return out, nil
}

func sum(w []float64) float64 {
	var total float64
	for _, v := range w {
		total += v
	}
	return total
}
