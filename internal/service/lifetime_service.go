package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/stocklife/internal/cache"
	"github.com/andresuchdata/stocklife/internal/domain"
	"github.com/andresuchdata/stocklife/internal/pipeline"
	"github.com/andresuchdata/stocklife/internal/report"
	"github.com/andresuchdata/stocklife/internal/stock"
	"github.com/andresuchdata/stocklife/internal/velocity"
)

// ErrNoSnapshots means no stock export has been ingested yet.
var ErrNoSnapshots = errors.New("no stock snapshots loaded")

// BatchRunner runs one estimation. pipeline.Runner implements it.
type BatchRunner interface {
	Run(ctx context.Context, filter domain.LifetimeFilter) (*pipeline.Batch, error)
}

// ReportWriter persists a rendered report. report.XLSXWriter implements it.
type ReportWriter interface {
	Write(ctx context.Context, date time.Time, rows []domain.ReportRow) (string, error)
}

type LifetimeService struct {
	runner    BatchRunner
	stock     *stock.Store
	cache     cache.LifetimeCache
	assembler *report.Assembler
	writer    ReportWriter
	sapDir    string
}

func NewLifetimeService(runner BatchRunner, stockStore *stock.Store, cacheImpl cache.LifetimeCache, writer ReportWriter, sapDir string) *LifetimeService {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopLifetimeCache()
	}
	return &LifetimeService{
		runner:    runner,
		stock:     stockStore,
		cache:     cacheImpl,
		assembler: report.NewAssembler(),
		writer:    writer,
		sapDir:    sapDir,
	}
}

// ResolveDate returns date, or the latest snapshot date when date is zero.
func (s *LifetimeService) ResolveDate(date time.Time) (time.Time, error) {
	if !date.IsZero() {
		return domain.Day(date), nil
	}
	latest, ok := s.stock.Snapshot().Latest()
	if !ok {
		return time.Time{}, ErrNoSnapshots
	}
	return latest, nil
}

// GetSummary estimates filter, serving repeated requests from the cache.
func (s *LifetimeService) GetSummary(ctx context.Context, filter domain.LifetimeFilter) (*domain.LifetimeSummary, error) {
	date, err := s.ResolveDate(filter.Date)
	if err != nil {
		return nil, err
	}
	filter.Date = date

	if summary, ok, err := s.cache.GetSummary(ctx, filter); err == nil && ok {
		return summary, nil
	} else if err != nil {
		log.Warn().Err(err).Msg("stock lifetime: cache get summary failed")
	}

	batch, err := s.runner.Run(ctx, filter)
	if err != nil {
		return nil, err
	}
	summary := batch.Summary()

	if err := s.cache.SetSummary(ctx, filter, &summary); err != nil {
		log.Warn().Err(err).Msg("stock lifetime: cache set summary failed")
	}
	return &summary, nil
}

// BuildReport estimates the materials of filter (all when empty) as of
// filter.Date and joins stock and VMD. A missing VMD export leaves the VMD
// columns at zero.
func (s *LifetimeService) BuildReport(ctx context.Context, filter domain.LifetimeFilter) ([]domain.ReportRow, error) {
	date, err := s.ResolveDate(filter.Date)
	if err != nil {
		return nil, err
	}
	filter.Date = date
	batch, err := s.runner.Run(ctx, filter)
	if err != nil {
		return nil, err
	}

	vmd, err := velocity.Load(s.sapDir, date)
	if errors.Is(err, velocity.ErrNoVelocityFile) {
		log.Warn().Err(err).Str("date", date.Format(domain.DateLayout)).Msg("report without velocity data")
		vmd = velocity.Table{}
	} else if err != nil {
		return nil, fmt.Errorf("failed to load velocity: %w", err)
	}

	return s.assembler.Assemble(batch.Results, batch.Stock, vmd), nil
}

// GenerateReport builds the report for filter and saves it, returning its path.
func (s *LifetimeService) GenerateReport(ctx context.Context, filter domain.LifetimeFilter) (string, error) {
	if s.writer == nil {
		return "", fmt.Errorf("report writer not configured")
	}
	date, err := s.ResolveDate(filter.Date)
	if err != nil {
		return "", err
	}
	filter.Date = date
	rows, err := s.BuildReport(ctx, filter)
	if err != nil {
		return "", err
	}
	return s.writer.Write(ctx, date, rows)
}

// RenderReport streams the report workbook for filter to w.
func (s *LifetimeService) RenderReport(ctx context.Context, filter domain.LifetimeFilter, w io.Writer) error {
	rows, err := s.BuildReport(ctx, filter)
	if err != nil {
		return err
	}
	return report.Render(w, rows)
}

// Refresh reloads the stock exports and drops cached summaries.
func (s *LifetimeService) Refresh(ctx context.Context) error {
	if err := s.stock.Rebuild(); err != nil {
		return fmt.Errorf("failed to rebuild stock snapshot: %w", err)
	}
	if err := s.cache.InvalidateAll(ctx); err != nil {
		log.Warn().Err(err).Msg("stock lifetime: cache invalidation failed")
	}
	return nil
}
