package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DailyAccumulator collects everything known about one day across the hourly
// and daily scans. It is created on the first record for its day and owned by
// a single pipeline run.
type DailyAccumulator struct {
	ChillHours0C  int
	ChillHours7C  int
	ChillHours20C int

	// StressHours counts every hourly record folded into StressSumC and
	// StressSumF. A missing result adds MissingValue to both sums.
	StressHours int
	StressSumC  decimal.Decimal
	StressSumF  decimal.Decimal

	// Populated by the daily scan.
	HeatUnits       map[string]HeatUnits // keyed by band label
	DailyHeatStress HeatStress
	HasDaily        bool
}

// NewDailyAccumulator returns an empty accumulator.
func NewDailyAccumulator() *DailyAccumulator {
	return &DailyAccumulator{
		HeatUnits: make(map[string]HeatUnits, len(HeatUnitBands)),
	}
}

// AddHour folds one hourly observation into the day. tempAir drives the
// chill-hour counters, which are independent of each other.
func (a *DailyAccumulator) AddHour(tempAir Reading, stress HeatStress) error {
	a.StressHours++
	a.StressSumC = a.StressSumC.Add(stress.Celsius)
	a.StressSumF = a.StressSumF.Add(stress.Fahrenheit)

	if tempAir.Missing() {
		return nil
	}
	t, err := tempAir.Float()
	if err != nil {
		return err
	}
	if t < FreezingC {
		a.ChillHours0C++
	}
	if t < ChillC {
		a.ChillHours7C++
	}
	if t > WarmNightC {
		a.ChillHours20C++
	}
	return nil
}

// SetHeatUnits stores the result for a band.
func (a *DailyAccumulator) SetHeatUnits(band HeatUnitBand, hu HeatUnits) {
	a.HeatUnits[band.Label] = hu
}

// MeanHeatStress returns the mean hourly heat stress in °C and °F rounded to
// OutputPlaces. ok is false when the day had no hourly records.
func (a *DailyAccumulator) MeanHeatStress() (c, f Quantity, ok bool) {
	if a.StressHours == 0 {
		return Quantity{}, Quantity{}, false
	}
	n := decimal.NewFromInt(int64(a.StressHours))
	return Round(a.StressSumC.Div(n), OutputPlaces), Round(a.StressSumF.Div(n), OutputPlaces), true
}

// HeatUnitsText returns the °C and °F heat units for a band as table text.
// The °F value is derived from the rounded °C value, sentinel included, so a
// missing band reads -9999.0 and -17998.2. ok is false when the band was never
// computed for this day.
func (a *DailyAccumulator) HeatUnitsText(band HeatUnitBand) (celsius, fahrenheit string, ok bool, err error) {
	hu, ok := a.HeatUnits[band.Label]
	if !ok {
		return "", "", false, nil
	}
	c, err := RoundFloat(hu.Value, OutputPlaces)
	if err != nil {
		return "", "", false, fmt.Errorf("heat units %s: %w", band.Label, err)
	}
	f, err := RoundFloat(CelsiusToFahrenheitUnits(c.Float64()), OutputPlaces)
	if err != nil {
		return "", "", false, fmt.Errorf("heat units %s: %w", band.Label, err)
	}
	return c.Text(), f.Text(), true, nil
}
