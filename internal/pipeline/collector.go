package pipeline

import (
	"sort"
	"sync"

	"github.com/andresuchdata/stocklife/internal/domain"
)

// collector gathers per-material results from concurrent workers.
type collector struct {
	mu      sync.Mutex
	results []domain.Result
}

func newCollector(capacity int) *collector {
	return &collector{results: make([]domain.Result, 0, capacity)}
}

func (c *collector) add(r domain.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.results = append(c.results, r)
}

// sorted returns the results ordered by material id.
func (c *collector) sorted() []domain.Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := append([]domain.Result(nil), c.results...)
	sort.Slice(out, func(i, j int) bool { return out[i].MaterialID < out[j].MaterialID })
	return out
}
