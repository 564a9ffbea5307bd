package numerator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigFormat(t *testing.T) {
	period := time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		cfg  Config
		n    int64
		want string
		key  string
	}{
		{"monthly order", MonthlyConfig("CMD"), 1, "CMD2026030001", "CMD_2026_03"},
		{"monthly bcg", MonthlyConfig("BCG"), 42, "BCG2026030042", "BCG_2026_03"},
		{"yearly with separator", Config{Prefix: "FAC", PadWidth: 5, ResetPeriod: ResetYear, Separator: "-"}, 7, "FAC-2026-00007", "FAC_2026"},
		{"never", Config{Prefix: "EMP", PadWidth: 3, ResetPeriod: ResetNever}, 12, "EMP012", "EMP"},
		{"overflow keeps digits", MonthlyConfig("CMD"), 12345, "CMD20260312345", "CMD_2026_03"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.Format(period, tt.n))
			assert.Equal(t, tt.key, tt.cfg.Key(period))
		})
	}
}

func TestMemoryGenerator_UniqueUnderConcurrency(t *testing.T) {
	g := NewMemoryGenerator()
	period := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	cfg := MonthlyConfig("CMD")

	const workers = 50
	var wg sync.WaitGroup
	results := make(chan string, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := g.NextNumber(context.Background(), cfg, period)
			require.NoError(t, err)
			results <- n
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[string]bool)
	for n := range results {
		assert.False(t, seen[n], "duplicate number %s", n)
		seen[n] = true
	}
	assert.Len(t, seen, workers)
}

func TestMemoryGenerator_ResetsPerMonth(t *testing.T) {
	g := NewMemoryGenerator()
	cfg := MonthlyConfig("BCG")
	ctx := context.Background()

	mar, _ := g.NextNumber(ctx, cfg, time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC))
	apr, _ := g.NextNumber(ctx, cfg, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, "BCG2026030001", mar)
	assert.Equal(t, "BCG2026040001", apr)
}
