// Package types provides the fixed-point money type shared by all modules.
package types

import (
	"github.com/shopspring/decimal"
)

// Money is a monetary amount. Never use float64 for prices or totals.
type Money = decimal.Decimal

// VATRate is the standard Moroccan TVA rate applied to every order.
var VATRate = decimal.RequireFromString("0.20")

var hundred = decimal.NewFromInt(100)

// MustMoney parses s, panics on error. Constants and tests only.
func MustMoney(s string) Money {
	return decimal.RequireFromString(s)
}

// NewMoneyFromString parses a decimal string.
func NewMoneyFromString(s string) (Money, error) {
	return decimal.NewFromString(s)
}

// Zero returns zero Money value.
func Zero() Money {
	return decimal.Zero
}

// Qty converts an integer quantity to Money for multiplication.
func Qty(q int64) Money {
	return decimal.NewFromInt(q)
}

// Round2 rounds half away from zero to cents.
func Round2(m Money) Money {
	return m.Round(2)
}

// Percent returns m * pct / 100.
func Percent(m Money, pct Money) Money {
	return m.Mul(pct).Div(hundred)
}

// WithVAT returns the amount including VAT.
func WithVAT(ht Money) Money {
	return ht.Add(ht.Mul(VATRate))
}

// VAT returns the VAT part of a net amount.
func VAT(ht Money) Money {
	return ht.Mul(VATRate)
}
