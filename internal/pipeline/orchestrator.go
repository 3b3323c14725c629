package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/andresuchdata/stocklife/internal/domain"
)

// Orchestrator coordinates running the Runner over several reference dates.
type Orchestrator struct {
	runner *Runner
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(runner *Runner) *Orchestrator {
	return &Orchestrator{runner: runner}
}

// RunDates estimates materials for each distinct date, oldest first. The
// first date that cannot run stops the sequence.
func (o *Orchestrator) RunDates(ctx context.Context, dates []time.Time, materials []domain.MaterialID) ([]*Batch, error) {
	seen := make(map[time.Time]struct{}, len(dates))
	unique := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		d = domain.Day(d)
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		unique = append(unique, d)
	}
	sort.Slice(unique, func(i, j int) bool { return unique[i].Before(unique[j]) })

	batches := make([]*Batch, 0, len(unique))
	for _, date := range unique {
		batch, err := o.runner.Run(ctx, domain.LifetimeFilter{Date: date, Materials: materials})
		if err != nil {
			return batches, fmt.Errorf("failed to process batch for %s: %w", date.Format(domain.DateLayout), err)
		}
		batches = append(batches, batch)
	}
	return batches, nil
}

// DateRange returns every day from from to to inclusive.
func DateRange(from, to time.Time) []time.Time {
	from, to = domain.Day(from), domain.Day(to)
	var out []time.Time
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}
