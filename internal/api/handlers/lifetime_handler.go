package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/stocklife/internal/domain"
	"github.com/andresuchdata/stocklife/internal/report"
	"github.com/andresuchdata/stocklife/internal/service"
	"github.com/andresuchdata/stocklife/internal/stock"
)

// LifetimeService is what the handler needs from service.LifetimeService.
type LifetimeService interface {
	GetSummary(ctx context.Context, filter domain.LifetimeFilter) (*domain.LifetimeSummary, error)
	RenderReport(ctx context.Context, filter domain.LifetimeFilter, w io.Writer) error
	ResolveDate(date time.Time) (time.Time, error)
	Refresh(ctx context.Context) error
}

type LifetimeHandler struct {
	service LifetimeService
}

func NewLifetimeHandler(service LifetimeService) *LifetimeHandler {
	return &LifetimeHandler{service: service}
}

// parseFilter accepts ?date=YYYY-MM-DD and materials as repeated
// ?material= params or a comma separated list.
func (h *LifetimeHandler) parseFilter(c *gin.Context) (domain.LifetimeFilter, error) {
	var filter domain.LifetimeFilter

	if raw := strings.TrimSpace(c.Query("date")); raw != "" {
		date, err := domain.ParseDay(raw)
		if err != nil {
			return filter, fmt.Errorf("invalid date %q", raw)
		}
		filter.Date = date
	}

	seen := make(map[domain.MaterialID]struct{})
	for _, v := range c.QueryArray("material") {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return filter, fmt.Errorf("invalid material %q", part)
			}
			if _, ok := seen[domain.MaterialID(id)]; ok {
				continue
			}
			seen[domain.MaterialID(id)] = struct{}{}
			filter.Materials = append(filter.Materials, domain.MaterialID(id))
		}
	}
	return filter, nil
}

func (h *LifetimeHandler) GetLifetime(c *gin.Context) {
	filter, err := h.parseFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	summary, err := h.service.GetSummary(c.Request.Context(), filter)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": "failed to estimate stock lifetime", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, summary)
}

func (h *LifetimeHandler) GetReport(c *gin.Context) {
	filter, err := h.parseFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	date, err := h.service.ResolveDate(filter.Date)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": "failed to build report", "details": err.Error()})
		return
	}

	filter.Date = date

	var buf bytes.Buffer
	if err := h.service.RenderReport(c.Request.Context(), filter, &buf); err != nil {
		c.JSON(statusFor(err), gin.H{"error": "failed to build report", "details": err.Error()})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", report.FileName(date)))
	c.Data(http.StatusOK, report.ContentType, buf.Bytes())
}

func (h *LifetimeHandler) Refresh(c *gin.Context) {
	if err := h.service.Refresh(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to refresh stock", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "refreshed"})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, stock.ErrDateNotFound), errors.Is(err, service.ErrNoSnapshots):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
