package handlers

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/stocklife/internal/domain"
	"github.com/andresuchdata/stocklife/internal/repository/postgres"
)

// RunHistory reads recorded runs. postgres.RunRepository implements it.
type RunHistory interface {
	GetRun(ctx context.Context, id int64) (*postgres.Run, error)
	LatestRun(ctx context.Context, ref time.Time) (*postgres.Run, error)
	ListEstimates(ctx context.Context, runID int64) ([]postgres.EstimateRecord, error)
}

type RunHandler struct {
	runs RunHistory
}

func NewRunHandler(runs RunHistory) *RunHandler {
	return &RunHandler{runs: runs}
}

type runResponse struct {
	Run       *postgres.Run             `json:"run"`
	Estimates []postgres.EstimateRecord `json:"estimates"`
}

// GetRun serves /runs/:id with the stored outcomes.
func (h *RunHandler) GetRun(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
		return
	}

	run, err := h.runs.GetRun(c.Request.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load run", "details": err.Error()})
		return
	}
	h.respond(c, run)
}

// GetLatestRun serves /runs/latest?date=YYYY-MM-DD, the last completed run
// for the date.
func (h *RunHandler) GetLatestRun(c *gin.Context) {
	raw := strings.TrimSpace(c.Query("date"))
	date, err := domain.ParseDay(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date query parameter (YYYY-MM-DD) is required"})
		return
	}

	run, err := h.runs.LatestRun(c.Request.Context(), date)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load run", "details": err.Error()})
		return
	}
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no completed run for " + date.Format(domain.DateLayout)})
		return
	}
	h.respond(c, run)
}

func (h *RunHandler) respond(c *gin.Context, run *postgres.Run) {
	records, err := h.runs.ListEstimates(c.Request.Context(), run.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load run estimates", "details": err.Error()})
		return
	}
	if records == nil {
		records = []postgres.EstimateRecord{}
	}
	c.JSON(http.StatusOK, runResponse{Run: run, Estimates: records})
}
