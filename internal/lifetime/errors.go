package lifetime

import "errors"

// Skip reasons. A material whose estimation fails with one of these is left
// out of the estimates; the rest of the batch is unaffected.
var (
	ErrNoDemandSeries   = errors.New("material skipped: no demand series")
	ErrEmptySeries      = errors.New("material skipped: demand series is empty")
	ErrInvalidDemand    = errors.New("material skipped: invalid demand data")
	ErrMissingDemandDay = errors.New("material skipped: demand missing for a day in the window")
	ErrEmptyWindow      = errors.New("material skipped: empty demand window")
	ErrNoStock          = errors.New("material skipped: no stock for reference date")
	ErrInvalidStock     = errors.New("material skipped: negative stock")
)

// IsSkip reports whether err is one of the per-material skip reasons.
func IsSkip(err error) bool {
	for _, target := range []error{
		ErrNoDemandSeries, ErrEmptySeries, ErrInvalidDemand, ErrMissingDemandDay,
		ErrEmptyWindow, ErrNoStock, ErrInvalidStock,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
