package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/andresuchdata/stocklife/internal/demand"
	"github.com/andresuchdata/stocklife/internal/domain"
	"github.com/andresuchdata/stocklife/internal/lifetime"
)

// Runner estimates every material in scope for a reference date.
type Runner struct {
	estimator *lifetime.Estimator
	stock     StockSource
	demand    demand.Store
	recorder  RunRecorder
	cfg       Config
}

// NewRunner creates a Runner. recorder may be nil.
func NewRunner(estimator *lifetime.Estimator, stock StockSource, demandStore demand.Store, recorder RunRecorder, cfg Config) *Runner {
	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = 1
	}
	return &Runner{
		estimator: estimator,
		stock:     stock,
		demand:    demandStore,
		recorder:  recorder,
		cfg:       cfg,
	}
}

// Run estimates the materials of filter (all materials with a demand series
// when empty) as of filter.Date. A failing material is recorded as skipped
// and never aborts the batch; only a missing stock snapshot, an unreadable
// material list or cancellation do.
func (r *Runner) Run(ctx context.Context, filter domain.LifetimeFilter) (*Batch, error) {
	start := time.Now()
	ref := domain.Day(filter.Date)

	stocks, err := r.stock.StockAt(ref)
	if err != nil {
		return nil, fmt.Errorf("failed to load stock for %s: %w", ref.Format(domain.DateLayout), err)
	}

	ids := uniqueMaterials(filter.Materials)
	if len(ids) == 0 {
		ids, err = r.demand.AllMaterialIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list materials: %w", err)
		}
	}

	batch := &Batch{Date: ref, Stock: stocks}
	if r.recorder != nil {
		batch.RunID, err = r.recorder.StartRun(ctx, ref, r.estimator.Config().Mode.String(), len(ids))
		if err != nil {
			return nil, fmt.Errorf("failed to create run: %w", err)
		}
	}

	results, err := r.estimateAll(ctx, ref, stocks, ids)
	if err != nil {
		if r.recorder != nil {
			if ferr := r.recorder.FailRun(context.WithoutCancel(ctx), batch.RunID, err); ferr != nil {
				log.Warn().Err(ferr).Int64("run_id", batch.RunID).Msg("failed to mark run as failed")
			}
		}
		return nil, err
	}
	batch.Results = results

	if r.recorder != nil {
		if err := r.recorder.FinishRun(ctx, batch.RunID, results); err != nil {
			log.Warn().Err(err).Int64("run_id", batch.RunID).Msg("failed to record run results")
			if ferr := r.recorder.FailRun(context.WithoutCancel(ctx), batch.RunID, err); ferr != nil {
				log.Warn().Err(ferr).Int64("run_id", batch.RunID).Msg("failed to mark run as failed")
			}
		}
	}

	estimated := len(batch.Estimates())
	log.Info().
		Str("date", ref.Format(domain.DateLayout)).
		Int("materials", len(ids)).
		Int("estimated", estimated).
		Int("skipped", len(results)-estimated).
		Dur("duration", time.Since(start)).
		Msg("stock lifetime estimated")
	return batch, nil
}

// uniqueMaterials drops repeated ids, keeping first-seen order.
func uniqueMaterials(ids []domain.MaterialID) []domain.MaterialID {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[domain.MaterialID]struct{}, len(ids))
	out := make([]domain.MaterialID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// estimateAll runs the per-material work in a bounded pool.
func (r *Runner) estimateAll(ctx context.Context, ref time.Time, stocks map[domain.MaterialID]int64, ids []domain.MaterialID) ([]domain.Result, error) {
	col := newCollector(len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.WorkerCount)

	for _, id := range ids {
		id := id
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := r.estimateOne(gctx, ref, stocks, id)
			if err != nil {
				return err
			}
			if res.Skipped() {
				log.Debug().Int64("material", int64(id)).Err(res.SkipReason).Msg("material skipped")
			}
			col.add(res)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return col.sorted(), nil
}

// estimateOne returns an error only when the whole batch must stop.
func (r *Runner) estimateOne(ctx context.Context, ref time.Time, stocks map[domain.MaterialID]int64, id domain.MaterialID) (domain.Result, error) {
	series, err := r.demand.SeriesFor(ctx, id)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return domain.Result{}, err
	case errors.Is(err, demand.ErrNotFound):
		return lifetime.Skipped(id, lifetime.ErrNoDemandSeries), nil
	case err != nil:
		return lifetime.Skipped(id, fmt.Errorf("%w: %v", lifetime.ErrInvalidDemand, err)), nil
	}
	series.MaterialID = id
	return r.estimator.Evaluate(ref, stocks, series), nil
}
