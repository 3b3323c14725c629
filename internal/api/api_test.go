package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/stocklife/internal/domain"
	"github.com/andresuchdata/stocklife/internal/drive"
	"github.com/andresuchdata/stocklife/internal/report"
	"github.com/andresuchdata/stocklife/internal/repository/postgres"
	"github.com/andresuchdata/stocklife/internal/stock"
)

var latest = time.Date(2023, 5, 31, 0, 0, 0, 0, time.UTC)

type fakeLifetimeService struct {
	lastFilter   domain.LifetimeFilter
	reportFilter domain.LifetimeFilter
	refreshed    bool
}

func (f *fakeLifetimeService) ResolveDate(date time.Time) (time.Time, error) {
	if date.IsZero() {
		return latest, nil
	}
	return date, nil
}

func (f *fakeLifetimeService) GetSummary(_ context.Context, filter domain.LifetimeFilter) (*domain.LifetimeSummary, error) {
	f.lastFilter = filter
	date, _ := f.ResolveDate(filter.Date)
	if !date.Equal(latest) {
		return nil, fmt.Errorf("%w: %s", stock.ErrDateNotFound, date.Format(domain.DateLayout))
	}
	return &domain.LifetimeSummary{
		Date:      date.Format(domain.DateLayout),
		Estimated: 1,
		Estimates: []domain.Estimate{{MaterialID: 603035, DaysOfCoverage: 12}},
		Skips:     []domain.Skip{},
	}, nil
}

func (f *fakeLifetimeService) RenderReport(_ context.Context, filter domain.LifetimeFilter, w io.Writer) error {
	f.reportFilter = filter
	return report.Render(w, []domain.ReportRow{{MaterialID: 603035, DaysOfCoverage: 12}})
}

func (f *fakeLifetimeService) Refresh(context.Context) error {
	f.refreshed = true
	return nil
}

type fakeRunHistory struct {
	runs      map[int64]*postgres.Run
	estimates map[int64][]postgres.EstimateRecord
}

func (f *fakeRunHistory) GetRun(_ context.Context, id int64) (*postgres.Run, error) {
	run, ok := f.runs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return run, nil
}

func (f *fakeRunHistory) LatestRun(_ context.Context, ref time.Time) (*postgres.Run, error) {
	var latestRun *postgres.Run
	for _, run := range f.runs {
		if run.RefDate.Equal(ref) && run.Status == postgres.RunStatusCompleted && (latestRun == nil || run.ID > latestRun.ID) {
			latestRun = run
		}
	}
	return latestRun, nil
}

func (f *fakeRunHistory) ListEstimates(_ context.Context, runID int64) ([]postgres.EstimateRecord, error) {
	return f.estimates[runID], nil
}

func newTestRouter(svc *fakeLifetimeService, driveHandler *drive.Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter(&Services{Lifetime: svc, Drive: driveHandler}, []string{"*"})
}

func serve(router *gin.Engine, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestHealth(t *testing.T) {
	rec := serve(newTestRouter(&fakeLifetimeService{}, nil), http.MethodGet, "/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestGetLifetime(t *testing.T) {
	svc := &fakeLifetimeService{}
	router := newTestRouter(svc, nil)

	rec := serve(router, http.MethodGet, "/api/v1/stock_lifetime?date=2023-05-31&material=603035,12&material=12")

	require.Equal(t, http.StatusOK, rec.Code)
	var summary domain.LifetimeSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, "2023-05-31", summary.Date)
	assert.Equal(t, []domain.Estimate{{MaterialID: 603035, DaysOfCoverage: 12}}, summary.Estimates)
	assert.Equal(t, []domain.MaterialID{603035, 12}, svc.lastFilter.Materials)
}

func TestGetLifetime_Errors(t *testing.T) {
	router := newTestRouter(&fakeLifetimeService{}, nil)

	tests := []struct {
		name   string
		target string
		status int
	}{
		{"bad date", "/api/v1/stock_lifetime?date=31/05/2023", http.StatusBadRequest},
		{"bad material", "/api/v1/stock_lifetime?material=abc", http.StatusBadRequest},
		{"unknown date", "/api/v1/stock_lifetime?date=2023-06-01", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(router, http.MethodGet, tt.target)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestGetReport(t *testing.T) {
	rec := serve(newTestRouter(&fakeLifetimeService{}, nil), http.MethodGet, "/api/v1/stock_lifetime/report")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, report.ContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "Comprobacion_stock_20230531.xlsx")
	assert.NotZero(t, rec.Body.Len())
}

func TestGetReport_PassesMaterialFilter(t *testing.T) {
	svc := &fakeLifetimeService{}

	rec := serve(newTestRouter(svc, nil), http.MethodGet, "/api/v1/stock_lifetime/report?material=603035,7")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []domain.MaterialID{603035, 7}, svc.reportFilter.Materials)
	assert.Equal(t, latest, svc.reportFilter.Date)
}

func TestRunRoutes(t *testing.T) {
	history := &fakeRunHistory{
		runs: map[int64]*postgres.Run{
			1: {ID: 1, RefDate: latest, Status: postgres.RunStatusCompleted, Materials: 1, Estimated: 1},
			2: {ID: 2, RefDate: latest, Status: postgres.RunStatusFailed, Materials: 1},
		},
		estimates: map[int64][]postgres.EstimateRecord{
			1: {{RunID: 1, MaterialID: 603035, Outcome: "estimated", DaysOfCoverage: 12}},
		},
	}
	gin.SetMode(gin.TestMode)
	router := NewRouter(&Services{Lifetime: &fakeLifetimeService{}, Runs: history}, nil)

	rec := serve(router, http.MethodGet, "/api/v1/stock_lifetime/runs/latest?date=2023-05-31")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Run       postgres.Run              `json:"run"`
		Estimates []postgres.EstimateRecord `json:"estimates"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(1), body.Run.ID)
	assert.Equal(t, history.estimates[1], body.Estimates)

	rec = serve(router, http.MethodGet, "/api/v1/stock_lifetime/runs/2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"estimates":[]`)

	tests := []struct {
		name   string
		target string
		status int
	}{
		{"latest without date", "/api/v1/stock_lifetime/runs/latest", http.StatusBadRequest},
		{"latest none completed", "/api/v1/stock_lifetime/runs/latest?date=2023-06-01", http.StatusNotFound},
		{"bad id", "/api/v1/stock_lifetime/runs/abc", http.StatusBadRequest},
		{"unknown id", "/api/v1/stock_lifetime/runs/9", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, serve(router, http.MethodGet, tt.target).Code)
		})
	}
}

func TestRunRoutesRequireHistory(t *testing.T) {
	rec := serve(newTestRouter(&fakeLifetimeService{}, nil), http.MethodGet, "/api/v1/stock_lifetime/runs/1")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRefresh(t *testing.T) {
	svc := &fakeLifetimeService{}

	rec := serve(newTestRouter(svc, nil), http.MethodPost, "/api/v1/stock_lifetime/refresh")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, svc.refreshed)
}

type emptySource struct{}

func (emptySource) ListFiles(context.Context, string) ([]*drive.File, error) { return nil, nil }

func (emptySource) DownloadFile(context.Context, string, io.Writer) error { return nil }

func TestDriveRoutesMounted(t *testing.T) {
	h := drive.NewHandler(emptySource{}, "folder", func(context.Context) (*drive.SyncResult, error) {
		return &drive.SyncResult{Downloaded: []string{}, Unchanged: []string{}}, nil
	})
	router := newTestRouter(&fakeLifetimeService{}, h)

	rec := serve(router, http.MethodGet, "/api/drive/files")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = serve(router, http.MethodPost, "/api/drive/sync")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNormalizeAllowedOrigins(t *testing.T) {
	origins, all := normalizeAllowedOrigins([]string{"http://a.test, http://b.test", " "})
	assert.False(t, all)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, origins)

	_, all = normalizeAllowedOrigins([]string{"*"})
	assert.True(t, all)
}
