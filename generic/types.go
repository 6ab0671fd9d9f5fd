/*
Package generic provides the domain-agnostic primitives of the license engine.

PURPOSE:
  Calendar dates, business-day arithmetic, accounting periods, exact day
  quantities and the error vocabulary shared by every other package. Nothing
  in here knows what a leave category or a certificate is.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A quantity of days backed by decimal.Decimal

DESIGN PRINCIPLES:
  1. Precision: Day quantities that are divided (pro-rated entitlements)
     use decimal.Decimal, never float64
  2. Explicit rounding: Callers choose Floor() when converting to whole days

USAGE:
  worked := generic.NewAmountFromInt(64, generic.UnitDays)
  entitled := worked.Div(decimal.NewFromInt(20)).Floor()   // 3 days

SEE ALSO:
  - time.go: TimePoint and business-day helpers
  - period.go: Accounting periods
  - errors.go: Sentinel and structured errors
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Quantity with unit
// =============================================================================

type Amount struct {
	Value decimal.Decimal
	Unit  Unit
}

type Unit string

const (
	UnitDays Unit = "days"
)

func NewAmount(value float64, unit Unit) Amount {
	return Amount{Value: decimal.NewFromFloat(value), Unit: unit}
}

func NewAmountFromInt(value int, unit Unit) Amount {
	return Amount{Value: decimal.NewFromInt(int64(value)), Unit: unit}
}

func Days(n int) Amount { return NewAmountFromInt(n, UnitDays) }

func (a Amount) Add(b Amount) Amount          { return Amount{Value: a.Value.Add(b.Value), Unit: a.Unit} }
func (a Amount) Sub(b Amount) Amount          { return Amount{Value: a.Value.Sub(b.Value), Unit: a.Unit} }
func (a Amount) Div(s decimal.Decimal) Amount { return Amount{Value: a.Value.Div(s), Unit: a.Unit} }
func (a Amount) Floor() Amount                { return Amount{Value: a.Value.Floor(), Unit: a.Unit} }
func (a Amount) IsNegative() bool             { return a.Value.IsNegative() }
func (a Amount) GreaterThan(b Amount) bool    { return a.Value.GreaterThan(b.Value) }
func (a Amount) LessThan(b Amount) bool       { return a.Value.LessThan(b.Value) }

// Int truncates toward zero. Use Floor first when the value may be fractional.
func (a Amount) Int() int { return int(a.Value.IntPart()) }

// Float is for display only.
func (a Amount) Float() float64 {
	f, _ := a.Value.Float64()
	return f
}
