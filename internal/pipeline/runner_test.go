package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/stocklife/internal/demand"
	"github.com/andresuchdata/stocklife/internal/domain"
	"github.com/andresuchdata/stocklife/internal/lifetime"
)

var (
	ref         = time.Date(2023, 5, 31, 0, 0, 0, 0, time.UTC)
	errNoSnap   = errors.New("no snapshot")
	errDBBroken = errors.New("connection reset")
)

type fakeStock map[time.Time]map[domain.MaterialID]int64

func (f fakeStock) StockAt(date time.Time) (map[domain.MaterialID]int64, error) {
	s, ok := f[domain.Day(date)]
	if !ok {
		return nil, errNoSnap
	}
	return s, nil
}

type memoryDemand struct {
	series map[domain.MaterialID][]domain.DemandPoint
	broken map[domain.MaterialID]bool
}

func (m *memoryDemand) SeriesFor(ctx context.Context, id domain.MaterialID) (domain.DemandSeries, error) {
	if err := ctx.Err(); err != nil {
		return domain.DemandSeries{}, err
	}
	if m.broken[id] {
		return domain.DemandSeries{}, errDBBroken
	}
	points, ok := m.series[id]
	if !ok {
		return domain.DemandSeries{}, fmt.Errorf("%w: %d", demand.ErrNotFound, id)
	}
	return domain.DemandSeries{MaterialID: id, Points: points}, nil
}

func (m *memoryDemand) AllMaterialIDs(context.Context) ([]domain.MaterialID, error) {
	ids := make([]domain.MaterialID, 0, len(m.series))
	for id := range m.series {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

type fakeRecorder struct {
	mu        sync.Mutex
	started   int
	materials int
	finished  []domain.Result
	finishErr error
	failed    error
}

func (f *fakeRecorder) StartRun(_ context.Context, _ time.Time, mode string, materials int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started++
	f.materials = materials
	return int64(f.started), nil
}

func (f *fakeRecorder) FinishRun(_ context.Context, _ int64, results []domain.Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.finishErr != nil {
		return f.finishErr
	}
	f.finished = results
	return nil
}

func (f *fakeRecorder) FailRun(_ context.Context, _ int64, cause error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = cause
	return nil
}

// series builds consecutive daily points ending at end.
func series(end time.Time, values ...float64) []domain.DemandPoint {
	points := make([]domain.DemandPoint, len(values))
	first := end.AddDate(0, 0, -(len(values) - 1))
	for i, v := range values {
		points[i] = domain.DemandPoint{Date: first.AddDate(0, 0, i), Demand: v}
	}
	return points
}

func newTestRunner(d demand.Store, rec RunRecorder) *Runner {
	stock := fakeStock{ref: {1: 30, 2: 30, 3: 10, 4: 0}}
	est := lifetime.NewEstimator(lifetime.DefaultConfig())
	return NewRunner(est, stock, d, rec, Config{WorkerCount: 3})
}

func TestRunner_IsolatesFailingMaterials(t *testing.T) {
	d := &memoryDemand{
		series: map[domain.MaterialID][]domain.DemandPoint{
			1: series(ref, 1, 5, 5, 5, 5, 5, 5, 5),
			2: series(ref, 1, 5, -5, 5, 5, 5, 5, 5),
			4: series(ref, 2, 2, 2),
		},
		broken: map[domain.MaterialID]bool{5: true},
	}

	batch, err := newTestRunner(d, nil).Run(context.Background(), domain.LifetimeFilter{
		Date:      ref,
		Materials: []domain.MaterialID{5, 4, 3, 2, 1},
	})

	require.NoError(t, err)
	require.Len(t, batch.Results, 5)
	byID := make(map[domain.MaterialID]domain.Result)
	for _, r := range batch.Results {
		byID[r.MaterialID] = r
	}

	assert.Equal(t, domain.OutcomeEstimated, byID[1].Outcome)
	assert.Equal(t, 6, byID[1].DaysOfCoverage)
	assert.ErrorIs(t, byID[2].SkipReason, lifetime.ErrInvalidDemand)
	assert.ErrorIs(t, byID[3].SkipReason, lifetime.ErrNoDemandSeries)
	assert.Equal(t, domain.OutcomeEstimated, byID[4].Outcome, "zero stock estimates to 0")
	assert.Equal(t, 0, byID[4].DaysOfCoverage)
	assert.ErrorIs(t, byID[5].SkipReason, lifetime.ErrInvalidDemand)
	assert.ErrorContains(t, byID[5].SkipReason, "connection reset")

	// results come back sorted by material
	for i := 1; i < len(batch.Results); i++ {
		assert.Less(t, batch.Results[i-1].MaterialID, batch.Results[i].MaterialID)
	}
	assert.Equal(t, []domain.Estimate{{MaterialID: 1, DaysOfCoverage: 6}, {MaterialID: 4, DaysOfCoverage: 0}}, batch.Estimates())
}

func TestRunner_AllMaterialsWhenNoFilter(t *testing.T) {
	d := &memoryDemand{series: map[domain.MaterialID][]domain.DemandPoint{
		1: series(ref, 1, 5, 5, 5, 5, 5, 5, 5),
		9: series(ref, 1, 1, 1, 1, 1, 1, 1, 1),
	}}

	batch, err := newTestRunner(d, nil).Run(context.Background(), domain.LifetimeFilter{Date: ref})

	require.NoError(t, err)
	require.Len(t, batch.Results, 2)
	// 9 has demand but no stock row on the date
	assert.ErrorIs(t, batch.Results[1].SkipReason, lifetime.ErrNoStock)

	summary := batch.Summary()
	assert.Equal(t, "2023-05-31", summary.Date)
	assert.Equal(t, 1, summary.Estimated)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, domain.MaterialID(9), summary.Skips[0].MaterialID)
}

func TestRunner_MissingSnapshotFailsTheRun(t *testing.T) {
	d := &memoryDemand{series: map[domain.MaterialID][]domain.DemandPoint{1: series(ref, 1)}}

	_, err := newTestRunner(d, nil).Run(context.Background(), domain.LifetimeFilter{Date: ref.AddDate(0, 0, 1)})

	assert.ErrorIs(t, err, errNoSnap)
}

func TestRunner_RecordsRuns(t *testing.T) {
	d := &memoryDemand{series: map[domain.MaterialID][]domain.DemandPoint{1: series(ref, 1, 5, 5, 5, 5, 5, 5, 5)}}
	rec := &fakeRecorder{}

	batch, err := newTestRunner(d, rec).Run(context.Background(), domain.LifetimeFilter{Date: ref})

	require.NoError(t, err)
	assert.Equal(t, int64(1), batch.RunID)
	assert.Equal(t, batch.Results, rec.finished)
	assert.NoError(t, rec.failed)
}

func TestRunner_DuplicateMaterialsEstimatedOnce(t *testing.T) {
	d := &memoryDemand{series: map[domain.MaterialID][]domain.DemandPoint{1: series(ref, 1, 5, 5, 5, 5, 5, 5, 5)}}
	rec := &fakeRecorder{}

	batch, err := newTestRunner(d, rec).Run(context.Background(), domain.LifetimeFilter{
		Date:      ref,
		Materials: []domain.MaterialID{1, 1, 1},
	})

	require.NoError(t, err)
	assert.Equal(t, []domain.Estimate{{MaterialID: 1, DaysOfCoverage: 6}}, batch.Estimates())
	assert.Equal(t, 1, rec.materials)
	assert.Len(t, rec.finished, 1)
}

func TestRunner_FailedFinishMarksRunFailed(t *testing.T) {
	d := &memoryDemand{series: map[domain.MaterialID][]domain.DemandPoint{1: series(ref, 1, 5, 5, 5, 5, 5, 5, 5)}}
	rec := &fakeRecorder{finishErr: errDBBroken}

	batch, err := newTestRunner(d, rec).Run(context.Background(), domain.LifetimeFilter{Date: ref})

	require.NoError(t, err)
	assert.Len(t, batch.Results, 1)
	assert.ErrorIs(t, rec.failed, errDBBroken)
}

func TestUniqueMaterials(t *testing.T) {
	assert.Equal(t, []domain.MaterialID{3, 1, 2}, uniqueMaterials([]domain.MaterialID{3, 1, 3, 2, 1}))
	assert.Nil(t, uniqueMaterials(nil))
}

func TestRunner_CancelledContextFailsTheRun(t *testing.T) {
	d := &memoryDemand{series: map[domain.MaterialID][]domain.DemandPoint{1: series(ref, 1)}}
	rec := &fakeRecorder{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestRunner(d, rec).Run(ctx, domain.LifetimeFilter{Date: ref, Materials: []domain.MaterialID{1}})

	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, rec.failed, context.Canceled)
}

func TestRunner_Deterministic(t *testing.T) {
	d := &memoryDemand{series: map[domain.MaterialID][]domain.DemandPoint{
		1: series(ref, 3, 3, 10, 0, 0, 0, 0, 0, 0),
		2: series(ref, 1, 1, 6, 0, 0, 0, 0, 0, 0, 0, 0),
	}}
	r := newTestRunner(d, nil)

	first, err := r.Run(context.Background(), domain.LifetimeFilter{Date: ref})
	require.NoError(t, err)
	second, err := r.Run(context.Background(), domain.LifetimeFilter{Date: ref})
	require.NoError(t, err)

	assert.Equal(t, first.Results, second.Results)
}

func TestOrchestrator_RunDates(t *testing.T) {
	prev := ref.AddDate(0, 0, -1)
	stock := fakeStock{ref: {1: 30}, prev: {1: 35}}
	d := &memoryDemand{series: map[domain.MaterialID][]domain.DemandPoint{1: series(ref, 1, 1, 5, 5, 5, 5, 5, 5, 5)}}
	runner := NewRunner(lifetime.NewEstimator(lifetime.DefaultConfig()), stock, d, nil, DefaultConfig())

	batches, err := NewOrchestrator(runner).RunDates(context.Background(), []time.Time{ref, prev, ref.Add(3 * time.Hour)}, nil)

	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Equal(t, prev, batches[0].Date)
	assert.Equal(t, ref, batches[1].Date)
	assert.Equal(t, 9, batches[0].Results[0].DaysOfCoverage)
	assert.Equal(t, 6, batches[1].Results[0].DaysOfCoverage)

	_, err = NewOrchestrator(runner).RunDates(context.Background(), []time.Time{ref, ref.AddDate(0, 0, 5)}, nil)
	assert.ErrorIs(t, err, errNoSnap)
}

func TestDateRange(t *testing.T) {
	got := DateRange(ref.AddDate(0, 0, -2), ref)

	assert.Equal(t, []time.Time{ref.AddDate(0, 0, -2), ref.AddDate(0, 0, -1), ref}, got)
	assert.Empty(t, DateRange(ref, ref.AddDate(0, 0, -1)))
}
