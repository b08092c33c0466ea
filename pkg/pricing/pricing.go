// Package pricing turns a reputation score into the price of one reading,
// denominated in the ledger's smallest unit.
package pricing

import (
	"errors"
	"fmt"
	"math"

	"github.com/aona-labs/aona/pkg/reputation"
)

const (
	// DefaultFloor is the price charged by a provider with a score of 0.
	DefaultFloor uint64 = 100_000

	// DefaultCeiling is the price charged by a provider with a score of 100.
	DefaultCeiling uint64 = 1_000_000

	// DefaultDecimals matches a ledger whose display unit is 1e9 minimal units.
	DefaultDecimals uint8 = 9
)

// Curve is a linear price curve between Floor and Ceiling.
type Curve struct {
	Floor   uint64
	Ceiling uint64
}

// DefaultCurve returns the curve used when nothing is configured.
func DefaultCurve() Curve {
	return Curve{Floor: DefaultFloor, Ceiling: DefaultCeiling}
}

// Validate reports whether the curve can produce a positive, monotonic price.
func (c Curve) Validate() error {
	if c.Floor == 0 {
		return errors.New("pricing floor must be positive")
	}
	if c.Ceiling < c.Floor {
		return fmt.Errorf("pricing ceiling %d is below floor %d", c.Ceiling, c.Floor)
	}
	return nil
}

// Price returns the price for a score. Scores outside [0,100] are clamped.
// The result is never zero, even for a misconfigured curve.
func (c Curve) Price(score int) uint64 {
	floor := max(c.Floor, 1)
	ceiling := max(c.Ceiling, floor)

	score = max(0, min(score, reputation.MaxScore))

	span := ceiling - floor
	// span*score can overflow for absurd ceilings; fall back to float math there.
	if span > math.MaxUint64/reputation.MaxScore {
		return floor + uint64(float64(span)*float64(score)/reputation.MaxScore)
	}
	return floor + span*uint64(score)/reputation.MaxScore
}

// Denomination describes how minimal units are presented to humans.
type Denomination struct {
	Symbol   string
	Decimals uint8

	// USDRate is the USD value of one display unit. Zero disables USD quotes.
	USDRate float64
}

// Quote is a price rendered in every unit clients care about.
type Quote struct {
	Minimal uint64   `json:"minimal"`
	Display float64  `json:"display"`
	Symbol  string   `json:"symbol,omitempty"`
	USD     *float64 `json:"usd,omitempty"`
}

// Quote renders amount in d.
func (d Denomination) Quote(amount uint64) Quote {
	q := Quote{
		Minimal: amount,
		Display: d.ToDisplay(amount),
		Symbol:  d.Symbol,
	}
	if d.USDRate > 0 {
		usd := q.Display * d.USDRate
		q.USD = &usd
	}
	return q
}

// ToDisplay converts minimal units to display units.
func (d Denomination) ToDisplay(amount uint64) float64 {
	return float64(amount) / math.Pow10(int(d.Decimals))
}
