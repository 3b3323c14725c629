// Package demand serves the daily demand history of each material.
package demand

import (
	"context"
	"errors"

	"github.com/andresuchdata/stocklife/internal/domain"
)

// ErrNotFound is returned by SeriesFor when a material has no demand history.
var ErrNotFound = errors.New("demand series not found")

// Store is the read side of the demand history.
type Store interface {
	// SeriesFor returns the ordered daily series of one material.
	SeriesFor(ctx context.Context, id domain.MaterialID) (domain.DemandSeries, error)
	// AllMaterialIDs lists every material that has a series, ascending.
	AllMaterialIDs(ctx context.Context) ([]domain.MaterialID, error)
}
