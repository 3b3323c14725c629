package lifetime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/stocklife/internal/domain"
)

var refDate = time.Date(2023, 5, 31, 0, 0, 0, 0, time.UTC)

// seriesEndingAt builds a gapless series whose last value falls on end.
func seriesEndingAt(end time.Time, values ...float64) domain.DemandSeries {
	start := end.AddDate(0, 0, -(len(values) - 1))
	points := make([]domain.DemandPoint, len(values))
	for i, v := range values {
		points[i] = domain.DemandPoint{Date: start.AddDate(0, 0, i), Demand: v}
	}
	return domain.DemandSeries{MaterialID: 603035, Points: points}
}

func trailing() *Estimator {
	return NewEstimator(DefaultConfig())
}

func legacy() *Estimator {
	cfg := DefaultConfig()
	cfg.Mode = WindowLegacy
	return NewEstimator(cfg)
}

func TestEstimate_ZeroStockIsZeroDays(t *testing.T) {
	cases := map[string]domain.DemandSeries{
		"regular demand":  seriesEndingAt(refDate, 1, 1, 1, 5, 5, 5, 5, 5, 5, 5),
		"all zero demand": seriesEndingAt(refDate, 0, 0, 0, 0, 0),
		"short history":   seriesEndingAt(refDate, 4, 2),
	}
	for name, series := range cases {
		t.Run(name, func(t *testing.T) {
			for _, est := range []*Estimator{trailing(), legacy()} {
				days, err := est.Estimate(refDate, 0, series)
				require.NoError(t, err)
				assert.Equal(t, 0, days, "mode %s", est.Config().Mode)
			}
		})
	}
}

func TestEstimate_ExactDepletion(t *testing.T) {
	series := seriesEndingAt(refDate, 1, 1, 1, 5, 5, 5, 5, 5, 5, 5)

	days, err := trailing().Estimate(refDate, 30, series)

	require.NoError(t, err)
	assert.Equal(t, 6, days)
}

func TestEstimate_CyclesThroughZeroDays(t *testing.T) {
	series := seriesEndingAt(refDate, 3, 3, 10, 0, 0, 0, 0, 0, 0)

	days, err := trailing().Estimate(refDate, 25, series)

	require.NoError(t, err)
	// consumption on days 1, 8 and 15
	assert.Equal(t, 15, days)
}

func TestEstimate_Sentinel(t *testing.T) {
	series := seriesEndingAt(refDate, 0, 0, 0, 0, 0)

	for _, est := range []*Estimator{trailing(), legacy()} {
		t.Run(est.Config().Mode.String(), func(t *testing.T) {
			for _, stock := range []int64{1, 40, 100000} {
				days, err := est.Estimate(refDate, stock, series)
				require.NoError(t, err)
				assert.Equal(t, DefaultSentinel, days)
			}

			// zero stock takes precedence over the sentinel
			days, err := est.Estimate(refDate, 0, series)
			require.NoError(t, err)
			assert.Equal(t, 0, days)
		})
	}
}

func TestEstimate_SentinelWhenWindowCoversWholeHistory(t *testing.T) {
	// A 7-day history fills the trailing window completely.
	series := seriesEndingAt(refDate, 2, 2, 2, 2, 2, 2, 2)

	days, err := trailing().Estimate(refDate, 10, series)

	require.NoError(t, err)
	assert.Equal(t, DefaultSentinel, days)
}

func TestEstimate_CustomSentinel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sentinel = 9999
	series := seriesEndingAt(refDate, 0, 0, 0)

	days, err := NewEstimator(cfg).Estimate(refDate, 5, series)

	require.NoError(t, err)
	assert.Equal(t, 9999, days)
}

func TestEstimate_ZeroWindowFallsBackToLastPositiveDay(t *testing.T) {
	// Trailing week is all zero; the last positive day is 8 days before ref.
	series := seriesEndingAt(refDate, 1, 1, 6, 0, 0, 0, 0, 0, 0, 0, 0)

	days, err := trailing().Estimate(refDate, 13, series)

	require.NoError(t, err)
	// window is [6, 0 x 8]: consumption on days 1, 10 and 19
	assert.Equal(t, 19, days)
}

func TestEstimate_WindowModes(t *testing.T) {
	series := seriesEndingAt(refDate, 2, 2, 2, 3, 0, 0, 0, 4, 0, 0)

	t.Run("trailing uses the last seven days", func(t *testing.T) {
		// window [3,0,0,0,4,0,0]
		days, err := trailing().Estimate(refDate, 10, series)
		require.NoError(t, err)
		assert.Equal(t, 8, days)
	})

	t.Run("legacy always falls back", func(t *testing.T) {
		// empty window, fallback to [4,0,0]
		days, err := legacy().Estimate(refDate, 10, series)
		require.NoError(t, err)
		assert.Equal(t, 7, days)
	})
}

func TestEstimate_LastPositiveDayAfterReference(t *testing.T) {
	// The trailing week ending at ref is all zero and the last positive day
	// comes after ref, so the fallback window is empty.
	ref := refDate.AddDate(0, 0, -3)
	series := seriesEndingAt(refDate, 4, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 7)

	for _, est := range []*Estimator{trailing(), legacy()} {
		t.Run(est.Config().Mode.String(), func(t *testing.T) {
			_, err := est.Estimate(ref, 10, series)
			assert.ErrorIs(t, err, ErrEmptyWindow)

			days, err := est.Estimate(ref, 0, series)
			require.NoError(t, err)
			assert.Equal(t, 0, days)
		})
	}
}

func TestEstimate_ZeroDemandWithFutureDaysIsSentinel(t *testing.T) {
	ref := refDate.AddDate(0, 0, -1)
	series := seriesEndingAt(refDate, 0, 0, 0, 0)

	days, err := trailing().Estimate(ref, 3, series)

	require.NoError(t, err)
	assert.Equal(t, DefaultSentinel, days)
}

func TestEstimate_Deterministic(t *testing.T) {
	series := seriesEndingAt(refDate, 3, 1, 4, 1, 5, 9, 2, 6, 5, 3, 5)
	est := trailing()

	first, err := est.Estimate(refDate, 77, series)
	require.NoError(t, err)
	second, err := est.Estimate(refDate, 77, series)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestEstimate_TruncatesFractionalDemand(t *testing.T) {
	series := seriesEndingAt(refDate, 0, 0, 0, 1.5, 1.5, 1.5, 1.5, 1.5, 1.5, 1.5)

	days, err := trailing().Estimate(refDate, 4, series)

	require.NoError(t, err)
	assert.Equal(t, 3, days)
}

func TestEstimate_SkipReasons(t *testing.T) {
	gap := seriesEndingAt(refDate, 1, 2, 3, 4, 5, 6, 7, 8)
	gap.Points = append(gap.Points[:5], gap.Points[6:]...)

	unordered := seriesEndingAt(refDate, 1, 2, 3)
	unordered.Points[0], unordered.Points[1] = unordered.Points[1], unordered.Points[0]

	tests := []struct {
		name   string
		ref    time.Time
		stock  int64
		series domain.DemandSeries
		want   error
	}{
		{"empty series", refDate, 5, domain.DemandSeries{MaterialID: 1}, ErrEmptySeries},
		{"negative demand", refDate, 5, seriesEndingAt(refDate, 1, -1, 1), ErrInvalidDemand},
		{"unordered dates", refDate, 5, unordered, ErrInvalidDemand},
		{"gap inside window", refDate, 5, gap, ErrMissingDemandDay},
		{"reference after history", refDate.AddDate(0, 0, 3), 5, seriesEndingAt(refDate, 1, 2, 3, 4, 5, 6, 7, 8), ErrMissingDemandDay},
		{"reference before history", refDate.AddDate(0, 0, -30), 5, seriesEndingAt(refDate, 1, 2, 3), ErrEmptyWindow},
		{"negative stock", refDate, -1, seriesEndingAt(refDate, 1, 2, 3), ErrInvalidStock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := trailing().Estimate(tt.ref, tt.stock, tt.series)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, IsSkip(err))
		})
	}
}

func TestEstimate_CoverageCappedAtMaxSimulationDays(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxSimulationDays = 10
	series := seriesEndingAt(refDate, 0, 0, 0, 1, 1, 1, 1, 1, 1, 1)

	days, err := NewEstimator(cfg).Estimate(refDate, 50, series)

	require.NoError(t, err)
	assert.Equal(t, 10, days)
}

func TestEstimate_SlowDepletionReportsCap(t *testing.T) {
	// 200 units at 0.01 a week take 140000 days.
	series := seriesEndingAt(refDate, 1, 1, 1, 0.01, 0, 0, 0, 0, 0, 0)

	days, err := trailing().Estimate(refDate, 200, series)

	require.NoError(t, err)
	assert.Equal(t, DefaultMaxSimulationDays, days)
}

func TestEvaluate(t *testing.T) {
	est := trailing()
	series := seriesEndingAt(refDate, 1, 1, 1, 5, 5, 5, 5, 5, 5, 5)

	t.Run("estimated", func(t *testing.T) {
		res := est.Evaluate(refDate, map[domain.MaterialID]int64{series.MaterialID: 30}, series)
		assert.Equal(t, domain.OutcomeEstimated, res.Outcome)
		assert.Equal(t, 6, res.DaysOfCoverage)
		assert.NoError(t, res.SkipReason)
	})

	t.Run("missing stock", func(t *testing.T) {
		res := est.Evaluate(refDate, map[domain.MaterialID]int64{}, series)
		assert.True(t, res.Skipped())
		assert.ErrorIs(t, res.SkipReason, ErrNoStock)
	})
}

func TestParseWindowMode(t *testing.T) {
	mode, err := ParseWindowMode("legacy")
	require.NoError(t, err)
	assert.Equal(t, WindowLegacy, mode)

	mode, err = ParseWindowMode("")
	require.NoError(t, err)
	assert.Equal(t, WindowTrailing, mode)

	_, err = ParseWindowMode("reversed")
	assert.Error(t, err)
}
