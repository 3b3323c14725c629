// Package report joins the estimates with stock and velocity into the stock
// check report.
package report

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/andresuchdata/stocklife/internal/domain"
	"github.com/andresuchdata/stocklife/internal/velocity"
)

// Assembler builds report rows. It has no state.
type Assembler struct{}

// NewAssembler returns an Assembler.
func NewAssembler() *Assembler {
	return &Assembler{}
}

// Assemble keeps one row per estimated material. Stock and VMD are left
// joined: a material missing from either side gets zero.
func (a *Assembler) Assemble(results []domain.Result, stock map[domain.MaterialID]int64, vmd velocity.Table) []domain.ReportRow {
	rows := make([]domain.ReportRow, 0, len(results))
	for _, r := range results {
		if r.Skipped() {
			continue
		}
		qty := stock[r.MaterialID]
		v := vmd.Of(r.MaterialID)
		rows = append(rows, domain.ReportRow{
			MaterialID:     r.MaterialID,
			DaysOfCoverage: r.DaysOfCoverage,
			Stock:          qty,
			VMD:            v,
			VMDCover:       coverByVelocity(qty, v),
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].MaterialID < rows[j].MaterialID })
	return rows
}

// coverByVelocity is the naive stock / VMD cover, zero when VMD is not positive.
func coverByVelocity(stock int64, vmd decimal.Decimal) decimal.Decimal {
	if !vmd.IsPositive() {
		return decimal.Zero
	}
	return decimal.NewFromInt(stock).DivRound(vmd, 2)
}
