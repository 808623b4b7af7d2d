package domain

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// ErrSineIndexOutOfRange reports an unclamped sine table position outside
// 0..100. Only the two-root branch can produce it, and only when the lower
// threshold is not below the upper one.
var ErrSineIndexOutOfRange = errors.New("sine table index out of range")

// SineTable holds the fraction of the half-amplitude spent above a threshold
// located at each percentile (0..100) of the diurnal range.
var SineTable = [101]float64{
	1.000, 0.981, 0.962, 0.944, 0.927, 0.910, 0.893, 0.876, 0.859, 0.843,
	0.827, 0.811, 0.796, 0.780, 0.765, 0.750, 0.735, 0.721, 0.706, 0.692,
	0.678, 0.664, 0.650, 0.636, 0.622, 0.609, 0.596, 0.583, 0.570, 0.557,
	0.544, 0.532, 0.519, 0.507, 0.495, 0.483, 0.471, 0.459, 0.448, 0.436,
	0.425, 0.413, 0.402, 0.391, 0.381, 0.370, 0.359, 0.349, 0.339, 0.328,
	0.318, 0.308, 0.299, 0.289, 0.279, 0.270, 0.261, 0.251, 0.242, 0.233,
	0.225, 0.216, 0.208, 0.199, 0.191, 0.183, 0.175, 0.167, 0.159, 0.152,
	0.144, 0.137, 0.130, 0.123, 0.116, 0.109, 0.102, 0.096, 0.090, 0.084,
	0.078, 0.072, 0.066, 0.061, 0.055, 0.050, 0.045, 0.040, 0.036, 0.031,
	0.027, 0.023, 0.019, 0.016, 0.013, 0.010, 0.007, 0.004, 0.002, 0.001,
	0.000,
}

// HeatUnits is a sine-wave degree-day estimate. Value is full precision;
// Fixed is rounded to UnitPlaces.
type HeatUnits struct {
	Value   float64
	Fixed   decimal.Decimal
	Missing bool
}

// MissingHeatUnits is returned when an input is a sentinel.
var MissingHeatUnits = HeatUnits{
	Value:   MissingValue,
	Fixed:   decimal.NewFromFloat(MissingValue),
	Missing: true,
}

// clampMode is how a sine position is forced into the table.
type clampMode int

const (
	clampNone  clampMode = iota // two-root branch
	clampUpper                  // upper-threshold-only branch, position already >= 0
	clampBoth                   // lower-threshold-only branch
)

// sinePosition locates threshold within [tmin, tmax] as a percentage. A day
// with no range puts every threshold at ±Inf by which side of tmin it is on,
// or at 0 when it equals tmin.
func sinePosition(threshold, tmin, tmax float64) float64 {
	span := tmax - tmin
	if span == 0 {
		switch {
		case threshold > tmin:
			return math.Inf(1)
		case threshold < tmin:
			return math.Inf(-1)
		default:
			return 0
		}
	}
	return (threshold - tmin) / span * 100
}

// sineIndex rounds a position half away from zero and applies mode. It is the
// only place table indices are produced.
func sineIndex(position float64, mode clampMode) (int, error) {
	switch mode {
	case clampUpper:
		position = math.Min(position, 100)
	case clampBoth:
		position = math.Max(0, math.Min(position, 100))
	}
	r := math.Round(position)
	if r < 0 || r > 100 || math.IsNaN(r) {
		return 0, fmt.Errorf("position %v: %w", position, ErrSineIndexOutOfRange)
	}
	return int(r), nil
}

// CalculateHeatUnits estimates heat units between lower and upper from the
// day's maximum and minimum air temperature with the single sine method.
func CalculateHeatUnits(tempMax, tempMin, upper, lower Reading) (HeatUnits, error) {
	if AnyMissing(tempMax, tempMin, upper, lower) {
		return MissingHeatUnits, nil
	}
	v, err := parseAll(tempMax, tempMin, upper, lower)
	if err != nil {
		return HeatUnits{}, err
	}
	hu, err := sineHeatUnits(v[0], v[1], v[2], v[3])
	if err != nil {
		return HeatUnits{}, err
	}
	fixed, err := RoundFloat(hu, UnitPlaces)
	if err != nil {
		return HeatUnits{}, err
	}
	return HeatUnits{Value: hu, Fixed: fixed.Decimal()}, nil
}

func sineHeatUnits(tmax, tmin, upper, lower float64) (float64, error) {
	mean := (tmax + tmin) / 2
	alpha := (tmax - tmin) / 2

	if tmax > upper {
		if tmin < lower {
			r1, err := sineIndex(sinePosition(lower, tmin, tmax), clampNone)
			if err != nil {
				return 0, err
			}
			r2, err := sineIndex(sinePosition(upper, tmin, tmax), clampNone)
			if err != nil {
				return 0, err
			}
			return alpha * (SineTable[r1] - SineTable[r2]), nil
		}
		pos := sinePosition(upper, tmin, tmax)
		if pos < 0 {
			return upper - lower, nil
		}
		r, err := sineIndex(pos, clampUpper)
		if err != nil {
			return 0, err
		}
		return (mean - lower) - SineTable[r]*alpha, nil
	}

	if tmin > lower {
		return mean - lower, nil
	}
	r, err := sineIndex(sinePosition(lower, tmin, tmax), clampBoth)
	if err != nil {
		return 0, err
	}
	return alpha * SineTable[r], nil
}

// CelsiusToFahrenheitUnits converts a heat-unit magnitude. Heat units are
// temperature differences, so there is no offset.
func CelsiusToFahrenheitUnits(c float64) float64 {
	return c * 1.8
}
