// internal/domain/models.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MaterialID identifies a tracked inventory item (SAP material number).
type MaterialID int64

// StockSnapshot is the stock on hand for one material on one day.
type StockSnapshot struct {
	MaterialID MaterialID `json:"material_id" db:"material_id"`
	Date       time.Time  `json:"date" db:"date"`
	Quantity   int64      `json:"quantity" db:"quantity"`
}

// DemandPoint is the demand registered for a single calendar day.
type DemandPoint struct {
	Date   time.Time `json:"date" db:"date"`
	Demand float64   `json:"demand" db:"demand"`
}

// DemandSeries is the ordered daily demand history of a material.
type DemandSeries struct {
	MaterialID MaterialID    `json:"material_id"`
	Points     []DemandPoint `json:"points"`
}

// Len returns the number of tracked days.
func (s DemandSeries) Len() int {
	return len(s.Points)
}

// Estimate is the days of coverage computed for a material.
type Estimate struct {
	MaterialID     MaterialID `json:"material_id" db:"material_id"`
	DaysOfCoverage int        `json:"days_of_coverage" db:"days_of_coverage"`
}

// Outcome tells whether a material was estimated or skipped.
type Outcome string

const (
	OutcomeEstimated Outcome = "estimated"
	OutcomeSkipped   Outcome = "skipped"
)

// Result is the per-material outcome of an estimation run.
type Result struct {
	MaterialID     MaterialID `json:"material_id"`
	Outcome        Outcome    `json:"outcome"`
	DaysOfCoverage int        `json:"days_of_coverage"`
	SkipReason     error      `json:"-"`
}

// Skipped reports whether the material was excluded from the estimates.
func (r Result) Skipped() bool {
	return r.Outcome == OutcomeSkipped
}

// Reason returns the skip reason as text, empty for estimated materials.
func (r Result) Reason() string {
	if r.SkipReason == nil {
		return ""
	}
	return r.SkipReason.Error()
}

// Estimates keeps only the successful results.
func Estimates(results []Result) []Estimate {
	out := make([]Estimate, 0, len(results))
	for _, r := range results {
		if r.Skipped() {
			continue
		}
		out = append(out, Estimate{MaterialID: r.MaterialID, DaysOfCoverage: r.DaysOfCoverage})
	}
	return out
}

// ReportRow is one line of the stock check report.
type ReportRow struct {
	MaterialID     MaterialID      `json:"material_id"`
	DaysOfCoverage int             `json:"days_of_coverage"`
	Stock          int64           `json:"stock"`
	VMD            decimal.Decimal `json:"vmd"`
	VMDCover       decimal.Decimal `json:"vmd_cover"` // stock / VMD, zero when VMD is zero
}

// LifetimeFilter scopes an estimation request.
type LifetimeFilter struct {
	Date      time.Time    `json:"date"`
	Materials []MaterialID `json:"materials"`
}

// LifetimeSummary is the API view of a finished run.
type LifetimeSummary struct {
	Date      string     `json:"date"`
	Estimated int        `json:"estimated"`
	Skipped   int        `json:"skipped"`
	Estimates []Estimate `json:"estimates"`
	Skips     []Skip     `json:"skips,omitempty"`
}

// Skip describes why a material got no estimate.
type Skip struct {
	MaterialID MaterialID `json:"material_id"`
	Reason     string     `json:"reason"`
}
