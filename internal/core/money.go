package core

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxAmountCents is the largest accepted price, 100 million.
const MaxAmountCents int64 = 10_000_000_000

// maxWholeUnits keeps whole*100 inside int64.
const maxWholeUnits = (1<<63 - 1) / 100

// ParseDecimalToCents reads a positive price such as "12.34" or "12,34".
// Digits past the second decimal are rounded half-up on the third one.
// Signs, more than one separator, zero and amounts above MaxAmountCents
// are rejected.
//
//	"12.345" -> 1235
//	"12.344" -> 1234
//	",5"     -> 50
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	whole, frac, _ := strings.Cut(s, ".")
	if s == "" || strings.Contains(frac, ".") || !asciiDigits(whole) || !asciiDigits(frac) {
		return 0, ErrInvalidAmount
	}

	var units int64
	if whole != "" {
		v, err := strconv.ParseInt(whole, 10, 64)
		if err != nil || v > maxWholeUnits {
			return 0, ErrInvalidAmount
		}
		units = v
	}

	cents := units * 100
	for i, weight := range []int64{10, 1} {
		if i < len(frac) {
			cents += int64(frac[i]-'0') * weight
		}
	}
	if len(frac) > 2 && frac[2] >= '5' {
		cents++
	}
	if cents <= 0 || cents > MaxAmountCents {
		return 0, ErrInvalidAmount
	}
	return cents, nil
}

func asciiDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// ParseMoney is ParseDecimalToCents wrapped in a Money value.
func ParseMoney(s string) (Money, error) {
	cents, err := ParseDecimalToCents(s)
	if err != nil {
		return Money{}, err
	}
	return Money{Cents: cents}, nil
}

// Times returns the amount multiplied by a quantity.
func (m Money) Times(qty int) Money {
	return Money{Cents: m.Cents * int64(qty)}
}

// Add returns m + o.
func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

// Sub returns m - o. The result may be negative.
func (m Money) Sub(o Money) Money {
	return Money{Cents: m.Cents - o.Cents}
}

// Euros is for display only; arithmetic stays in cents.
func (m Money) Euros() float64 {
	return float64(m.Cents) / 100.0
}

// String renders the amount as a plain decimal, e.g. "12.50" or "-3.05".
func (m Money) String() string {
	sign := ""
	c := m.Cents
	if c < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%s%d.%02d", sign, c/100, c%100)
}
