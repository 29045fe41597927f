// Package core provides the ledger domain types: money, transactions,
// installment groups and subscription roles.
//
// This file contains the money helpers. Amounts are whole cents; decimal
// strings are only accepted at the edges and converted once.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

var maxCents = decimal.NewFromInt((1<<63 - 1) / 100)

// ParseDecimalToCents converts a decimal string to cents with proper rounding.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and performs
// half-up rounding on the third decimal place. The result is always positive cents.
//
// Examples:
//
//	ParseDecimalToCents("12.34") -> 1234, nil
//	ParseDecimalToCents("12,34") -> 1234, nil
//	ParseDecimalToCents("12.345") -> 1235, nil
//	ParseDecimalToCents("12.344") -> 1234, nil
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, invalid(ErrInvalidAmount)
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.ContainsAny(s, "eE") {
		return 0, invalid(ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, invalid(ErrInvalidAmount)
	}
	if d.GreaterThan(maxCents) {
		return 0, invalid(ErrInvalidAmount)
	}
	cents := d.Shift(2).Round(0).IntPart()
	if cents <= 0 {
		return 0, invalid(ErrInvalidAmount)
	}
	return cents, nil
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }
func (m Money) Neg() Money        { return Money{Cents: -m.Cents} }

func (m Money) Abs() Money {
	if m.Cents < 0 {
		return m.Neg()
	}
	return m
}

// Decimal returns the amount in currency units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String formats the amount with two decimals, e.g. "-33.34".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Float returns the amount as a float64 for display purposes.
// Use cents for calculations.
func (m Money) Float() float64 {
	return m.Decimal().InexactFloat64()
}
