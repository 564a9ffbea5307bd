// Package numerator defines document numbering contracts.
package numerator

import (
	"fmt"
	"strings"
	"time"
)

// Reset periods of a counter.
const (
	ResetMonth = "month"
	ResetYear  = "year"
	ResetNever = "never"
)

// Config describes one numbering series.
type Config struct {
	// Prefix of the series, e.g. "CMD" or "BCG".
	Prefix string

	// PadWidth is the zero-padded width of the sequence part.
	PadWidth int

	// ResetPeriod is one of ResetMonth, ResetYear, ResetNever.
	ResetPeriod string

	// Separator joins prefix, period and sequence. Empty gives CMD2026030001.
	Separator string
}

// MonthlyConfig returns the series used by orders and loadouts: PREFIX{YYYY}{MM}{seq4}.
func MonthlyConfig(prefix string) Config {
	return Config{
		Prefix:      prefix,
		PadWidth:    4,
		ResetPeriod: ResetMonth,
	}
}

// Key identifies the counter row for period.
func (c Config) Key(period time.Time) string {
	switch c.ResetPeriod {
	case ResetMonth:
		return c.Prefix + "_" + period.Format("2006_01")
	case ResetYear:
		return c.Prefix + "_" + period.Format("2006")
	default:
		return c.Prefix
	}
}

// Format renders the number for sequence value n.
func (c Config) Format(period time.Time, n int64) string {
	width := c.PadWidth
	if width <= 0 {
		width = 4
	}
	parts := []string{c.Prefix}
	switch c.ResetPeriod {
	case ResetMonth:
		parts = append(parts, period.Format("200601"))
	case ResetYear:
		parts = append(parts, period.Format("2006"))
	}
	parts = append(parts, fmt.Sprintf("%0*d", width, n))
	return strings.Join(parts, c.Separator)
}
