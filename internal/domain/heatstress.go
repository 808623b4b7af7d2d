package domain

import (
	"math"

	"github.com/shopspring/decimal"
)

// HeatStress is the cotton canopy heat-stress index for one observation.
// Celsius and Fahrenheit are rounded to ModelPlaces, or MissingValue when any
// input was a sentinel.
type HeatStress struct {
	Celsius    decimal.Decimal
	Fahrenheit decimal.Decimal
	Missing    bool
}

// MissingHeatStress is returned when an input is a sentinel.
var MissingHeatStress = HeatStress{
	Celsius:    decimal.NewFromFloat(MissingValue),
	Fahrenheit: decimal.NewFromFloat(MissingValue),
	Missing:    true,
}

// CalculateHeatStress computes the canopy heat-stress index from air
// temperature (°C), relative humidity (%), vapor pressure deficit (kPa) and
// total solar radiation (W/m²).
//
// With solar radiation present the canopy is assumed to transpire and the
// index falls with VPD; at night (radiation not above zero) it rises with
// actual vapor pressure instead.
func CalculateHeatStress(tempAir, relHumidity, vpd, solarRad Reading) (HeatStress, error) {
	if AnyMissing(tempAir, relHumidity, vpd, solarRad) {
		return MissingHeatStress, nil
	}
	v, err := parseAll(tempAir, relHumidity, vpd, solarRad)
	if err != nil {
		return HeatStress{}, err
	}
	t, rh, d, rad := v[0], v[1], v[2], v[3]

	ex := math.Exp(17.27 * t / (237.2 + t))
	ea := rh / 100 * 0.6108 * ex

	var c float64
	if rad > 0 {
		c = 0.53 + t - 1.43*d
	} else {
		c = -5.93 + t + 1.95*ea
	}

	celsius, err := RoundFloat(c, ModelPlaces)
	if err != nil {
		return HeatStress{}, err
	}
	fahrenheit, err := RoundFloat(CelsiusToFahrenheit(celsius.Float64()), ModelPlaces)
	if err != nil {
		return HeatStress{}, err
	}
	return HeatStress{Celsius: celsius.Decimal(), Fahrenheit: fahrenheit.Decimal()}, nil
}

// CelsiusToFahrenheit converts an absolute temperature.
func CelsiusToFahrenheit(c float64) float64 {
	return c*1.8 + 32.0
}
