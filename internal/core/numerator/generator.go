package numerator

import (
	"context"
	"sync"
	"time"
)

// Generator hands out monotonic numbers per series and period.
// Implementations must run the increment in the transaction found in ctx so
// that a number is never reused by a concurrent caller.
type Generator interface {
	NextNumber(ctx context.Context, cfg Config, period time.Time) (string, error)
	SetNextNumber(ctx context.Context, cfg Config, period time.Time, value int64) error
}

// MemoryGenerator keeps counters in process memory. Tests only.
type MemoryGenerator struct {
	mu       sync.Mutex
	counters map[string]int64
}

// NewMemoryGenerator creates an empty in-memory generator.
func NewMemoryGenerator() *MemoryGenerator {
	return &MemoryGenerator{counters: make(map[string]int64)}
}

func (g *MemoryGenerator) NextNumber(_ context.Context, cfg Config, period time.Time) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := cfg.Key(period)
	g.counters[key]++
	return cfg.Format(period, g.counters[key]), nil
}

func (g *MemoryGenerator) SetNextNumber(_ context.Context, cfg Config, period time.Time, value int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counters[cfg.Key(period)] = value - 1
	return nil
}

var _ Generator = (*MemoryGenerator)(nil)
