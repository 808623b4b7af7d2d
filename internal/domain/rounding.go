package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Decimal places used throughout the derivations.
const (
	ModelPlaces  int32 = 7 // heat-stress model output, "000.0000000"
	UnitPlaces   int32 = 2 // heat-unit fixed-point output, "1.00"
	OutputPlaces int32 = 1 // values written to derived tables, "000.0"
)

// OutputKind selects how a rounded value is represented.
type OutputKind int

const (
	KindDecimal OutputKind = iota
	KindFloat
	KindInt
	KindText
)

// Quantity is a value already rounded to a fixed decimal scale. A negative
// value that rounds to zero keeps its sign, so -0.04 at one place is "-0.0".
type Quantity struct {
	d   decimal.Decimal
	neg bool
}

// Decimal returns the exact rounded value.
func (q Quantity) Decimal() decimal.Decimal { return q.d }

// Float64 returns the nearest float to the rounded value.
func (q Quantity) Float64() float64 {
	if q.neg {
		return math.Copysign(0, -1)
	}
	f, _ := q.d.Float64()
	return f
}

// Int truncates the rounded value toward zero.
func (q Quantity) Int() int64 { return q.d.IntPart() }

// Text formats the value with exactly as many fractional digits as its scale.
func (q Quantity) Text() string {
	places := int32(0)
	if q.d.Exponent() < 0 {
		places = -q.d.Exponent()
	}
	s := q.d.StringFixed(places)
	if q.neg {
		return "-" + s
	}
	return s
}

// As returns the representation selected by kind.
func (q Quantity) As(kind OutputKind) any {
	switch kind {
	case KindFloat:
		return q.Float64()
	case KindInt:
		return q.Int()
	case KindText:
		return q.Text()
	default:
		return q.d
	}
}

// ScaleOf returns the number of fractional digits in a scale pattern such as
// "000.0000000" (7) or "1" (0).
func ScaleOf(pattern string) int32 {
	i := strings.IndexByte(pattern, '.')
	if i < 0 {
		return 0
	}
	return int32(len(pattern) - i - 1)
}

// Round quantizes d to places decimal places, rounding ties away from zero.
func Round(d decimal.Decimal, places int32) Quantity {
	return round(d, d.Sign() < 0, places)
}

func round(d decimal.Decimal, negative bool, places int32) Quantity {
	r := d.Round(places)
	return Quantity{d: r, neg: negative && r.IsZero()}
}

// RoundFloat rounds the exact binary value of f, so 2.675 (stored as
// 2.67499999...) rounds down at two places.
func RoundFloat(f float64, places int32) (Quantity, error) {
	d, err := exactDecimal(f)
	if err != nil {
		return Quantity{}, err
	}
	return round(d, math.Signbit(f), places), nil
}

// RoundPattern rounds f to the scale implied by pattern and returns the
// representation selected by kind.
func RoundPattern(f float64, pattern string, kind OutputKind) (any, error) {
	q, err := RoundFloat(f, ScaleOf(pattern))
	if err != nil {
		return nil, err
	}
	return q.As(kind), nil
}

// exactDecimal converts f with enough significant digits that no tie is
// invented or lost by the conversion.
func exactDecimal(f float64) (decimal.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Decimal{}, fmt.Errorf("round %v: %w", f, ErrMalformedNumeric)
	}
	return decimal.NewFromString(strconv.FormatFloat(f, 'e', 40, 64))
}
