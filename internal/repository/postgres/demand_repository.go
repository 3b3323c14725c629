package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/stocklife/internal/demand"
	"github.com/andresuchdata/stocklife/internal/domain"
)

var _ demand.Store = (*DemandRepository)(nil)

var demandColumns = []string{"material_id", "date", "demand"}

// DemandRepository serves demand series from the demand_history table.
type DemandRepository struct {
	pool *pgxpool.Pool
}

// NewDemandRepository builds the repository over pool.
func NewDemandRepository(pool *pgxpool.Pool) *DemandRepository {
	return &DemandRepository{pool: pool}
}

// SeriesFor returns the series of id ordered by date.
func (r *DemandRepository) SeriesFor(ctx context.Context, id domain.MaterialID) (domain.DemandSeries, error) {
	query := `
		SELECT date, demand
		FROM demand_history
		WHERE material_id = $1
		ORDER BY date`
	rows, err := r.pool.Query(ctx, query, int64(id))
	if err != nil {
		return domain.DemandSeries{}, fmt.Errorf("query demand series: %w", err)
	}
	points, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.DemandPoint, error) {
		var p domain.DemandPoint
		err := row.Scan(&p.Date, &p.Demand)
		p.Date = domain.Day(p.Date)
		return p, err
	})
	if err != nil {
		return domain.DemandSeries{}, fmt.Errorf("scan demand series: %w", err)
	}
	if len(points) == 0 {
		return domain.DemandSeries{}, fmt.Errorf("%w: material %d", demand.ErrNotFound, id)
	}
	return domain.DemandSeries{MaterialID: id, Points: points}, nil
}

// AllMaterialIDs lists the materials that have demand rows.
func (r *DemandRepository) AllMaterialIDs(ctx context.Context) ([]domain.MaterialID, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT material_id FROM demand_history ORDER BY material_id`)
	if err != nil {
		return nil, fmt.Errorf("query material ids: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("scan material ids: %w", err)
	}
	out := make([]domain.MaterialID, len(ids))
	for i, id := range ids {
		out[i] = domain.MaterialID(id)
	}
	return out, nil
}

// ImportSeries replaces the stored history of every material in series and
// bulk loads the new points with COPY. It returns the number of rows copied.
func (r *DemandRepository) ImportSeries(ctx context.Context, series []domain.DemandSeries) (int64, error) {
	if len(series) == 0 {
		return 0, nil
	}
	ids := make([]int64, len(series))
	for i, s := range series {
		ids[i] = int64(s.MaterialID)
	}
	rows := copyRows(series)

	var copied int64
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM demand_history WHERE material_id = ANY($1)`, ids); err != nil {
			return fmt.Errorf("clear demand history: %w", err)
		}
		n, err := tx.CopyFrom(ctx, pgx.Identifier{"demand_history"}, demandColumns, pgx.CopyFromRows(rows))
		if err != nil {
			return fmt.Errorf("copy demand history: %w", err)
		}
		copied = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	log.Info().Int("materials", len(series)).Int64("rows", copied).Msg("demand history imported")
	return copied, nil
}

// copyRows flattens series into COPY rows.
func copyRows(series []domain.DemandSeries) [][]any {
	var rows [][]any
	for _, s := range series {
		for _, p := range s.Points {
			rows = append(rows, []any{int64(s.MaterialID), domain.Day(p.Date), p.Demand})
		}
	}
	return rows
}
