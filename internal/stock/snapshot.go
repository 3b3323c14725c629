package stock

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/stocklife/internal/domain"
)

var (
	// ErrDateNotFound means no material was observed on the requested date.
	ErrDateNotFound = errors.New("no stock snapshot for date")
	// ErrConflictingStock means two different quantities were reported for the
	// same material and day.
	ErrConflictingStock = errors.New("conflicting stock rows")
)

type rowKey struct {
	material domain.MaterialID
	date     time.Time
}

// Snapshot is an immutable, deduplicated stock table indexed by date.
type Snapshot struct {
	rows      []domain.StockSnapshot
	byDate    map[time.Time]map[domain.MaterialID]int64
	materials []domain.MaterialID
	dates     []time.Time
}

// NewSnapshot deduplicates rows (identical rows collapse to one) and indexes them.
func NewSnapshot(rows []domain.StockSnapshot) (*Snapshot, error) {
	s := &Snapshot{
		byDate: make(map[time.Time]map[domain.MaterialID]int64),
	}
	seen := make(map[rowKey]int64, len(rows))
	materials := make(map[domain.MaterialID]struct{})

	for _, r := range rows {
		r.Date = domain.Day(r.Date)
		key := rowKey{material: r.MaterialID, date: r.Date}
		if qty, ok := seen[key]; ok {
			if qty != r.Quantity {
				return nil, fmt.Errorf("%w: material %d on %s has %d and %d",
					ErrConflictingStock, r.MaterialID, r.Date.Format(domain.DateLayout), qty, r.Quantity)
			}
			continue
		}
		seen[key] = r.Quantity
		s.rows = append(s.rows, r)

		day, ok := s.byDate[r.Date]
		if !ok {
			day = make(map[domain.MaterialID]int64)
			s.byDate[r.Date] = day
			s.dates = append(s.dates, r.Date)
		}
		day[r.MaterialID] = r.Quantity
		materials[r.MaterialID] = struct{}{}
	}

	s.materials = make([]domain.MaterialID, 0, len(materials))
	for m := range materials {
		s.materials = append(s.materials, m)
	}
	sort.Slice(s.materials, func(i, j int) bool { return s.materials[i] < s.materials[j] })
	sort.Slice(s.dates, func(i, j int) bool { return s.dates[i].Before(s.dates[j]) })
	return s, nil
}

// StockAt returns the full cross-section for date: every material seen
// anywhere in the history, with 0 when it was not observed on date.
func (s *Snapshot) StockAt(date time.Time) (map[domain.MaterialID]int64, error) {
	date = domain.Day(date)
	observed, ok := s.byDate[date]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDateNotFound, date.Format(domain.DateLayout))
	}
	out := make(map[domain.MaterialID]int64, len(s.materials))
	for _, m := range s.materials {
		out[m] = observed[m]
	}
	return out, nil
}

// Dates returns the observed snapshot dates, oldest first.
func (s *Snapshot) Dates() []time.Time {
	return append([]time.Time(nil), s.dates...)
}

// Latest returns the most recent snapshot date.
func (s *Snapshot) Latest() (time.Time, bool) {
	if len(s.dates) == 0 {
		return time.Time{}, false
	}
	return s.dates[len(s.dates)-1], true
}

// Loader produces the raw stock rows a Store is built from.
type Loader func() ([]domain.StockSnapshot, error)

// DirLoader loads every export found in dir.
func DirLoader(dir string) Loader {
	return func() ([]domain.StockSnapshot, error) {
		return LoadDir(dir)
	}
}

// Store serves point-in-time stock queries from a snapshot captured at
// construction. Rebuild swaps in a fresh snapshot.
type Store struct {
	load Loader

	mu   sync.RWMutex
	snap *Snapshot
}

// NewStore loads and indexes the stock table once.
func NewStore(load Loader) (*Store, error) {
	s := &Store{load: load}
	if err := s.Rebuild(); err != nil {
		return nil, err
	}
	return s, nil
}

// Rebuild reloads the rows and replaces the snapshot. On failure the previous
// snapshot stays in place.
func (s *Store) Rebuild() error {
	rows, err := s.load()
	if err != nil {
		return err
	}
	snap, err := NewSnapshot(rows)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()

	log.Info().Int("rows", len(snap.rows)).Int("materials", len(snap.materials)).
		Int("dates", len(snap.dates)).Msg("stock snapshot built")
	return nil
}

// Snapshot returns the current read-only snapshot.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// StockAt delegates to the current snapshot.
func (s *Store) StockAt(date time.Time) (map[domain.MaterialID]int64, error) {
	return s.Snapshot().StockAt(date)
}
