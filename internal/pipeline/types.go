package pipeline

import (
	"context"
	"time"

	"github.com/andresuchdata/stocklife/internal/domain"
)

// StockSource answers point-in-time stock queries. stock.Store implements it.
type StockSource interface {
	StockAt(date time.Time) (map[domain.MaterialID]int64, error)
}

// RunRecorder persists run progress. postgres.RunRepository implements it.
type RunRecorder interface {
	StartRun(ctx context.Context, ref time.Time, windowMode string, materials int) (int64, error)
	FinishRun(ctx context.Context, id int64, results []domain.Result) error
	FailRun(ctx context.Context, id int64, cause error) error
}

// Config holds configuration for a Runner
type Config struct {
	WorkerCount int // Number of materials estimated concurrently
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{WorkerCount: 4}
}

// Batch is the outcome of one reference date.
type Batch struct {
	Date    time.Time
	Stock   map[domain.MaterialID]int64
	Results []domain.Result
	RunID   int64 // zero when runs are not recorded
}

// Estimates returns the successful results.
func (b *Batch) Estimates() []domain.Estimate {
	return domain.Estimates(b.Results)
}

// Summary builds the API view of the batch.
func (b *Batch) Summary() domain.LifetimeSummary {
	s := domain.LifetimeSummary{
		Date:      b.Date.Format(domain.DateLayout),
		Estimates: b.Estimates(),
		Skips:     make([]domain.Skip, 0),
	}
	for _, r := range b.Results {
		if r.Skipped() {
			s.Skips = append(s.Skips, domain.Skip{MaterialID: r.MaterialID, Reason: r.Reason()})
		}
	}
	s.Estimated = len(s.Estimates)
	s.Skipped = len(s.Skips)
	return s
}
