package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDailyAccumulator_ChillHours(t *testing.T) {
	acc := NewDailyAccumulator()
	stress := HeatStress{Celsius: decimal.NewFromInt(10), Fahrenheit: decimal.NewFromInt(50)}

	for _, temp := range []string{"-1.5", "0", "3.2", "7.22222", "7.2", "20", "20.1", "25", "-9999.0"} {
		require.NoError(t, acc.AddHour(Classify(temp), stress))
	}

	assert.Equal(t, 1, acc.ChillHours0C)
	assert.Equal(t, 4, acc.ChillHours7C)
	assert.Equal(t, 2, acc.ChillHours20C)
	assert.Equal(t, 9, acc.StressHours)
}

func TestDailyAccumulator_MissingStressFolded(t *testing.T) {
	acc := NewDailyAccumulator()
	stress, err := CalculateHeatStress(Classify("30.0"), Classify("50"), Classify("2.0"), Classify("500"))
	require.NoError(t, err)
	require.NoError(t, acc.AddHour(Classify("30.0"), stress))
	require.NoError(t, acc.AddHour(Classify("-9999.0"), MissingHeatStress))

	assert.Equal(t, 2, acc.StressHours)
	assert.Equal(t, "-9971.3300000", acc.StressSumC.StringFixed(7))

	c, f, ok := acc.MeanHeatStress()
	require.True(t, ok)
	assert.Equal(t, "-4985.7", c.Text())
	assert.Equal(t, "-4958.6", f.Text())
}

func TestDailyAccumulator_MalformedTemperature(t *testing.T) {
	acc := NewDailyAccumulator()
	err := acc.AddHour(Classify("warm"), MissingHeatStress)
	assert.ErrorIs(t, err, ErrMalformedNumeric)
}

func TestDailyAccumulator_MeanHeatStress(t *testing.T) {
	acc := NewDailyAccumulator()
	var sum float64
	for h := 0; h < 24; h++ {
		c := 15 + float64(h)*0.37
		sum += c
		q, err := RoundFloat(c, ModelPlaces)
		require.NoError(t, err)
		f, err := RoundFloat(CelsiusToFahrenheit(q.Float64()), ModelPlaces)
		require.NoError(t, err)
		require.NoError(t, acc.AddHour(Classify("15"), HeatStress{Celsius: q.Decimal(), Fahrenheit: f.Decimal()}))
	}

	c, f, ok := acc.MeanHeatStress()
	require.True(t, ok)
	assert.InDelta(t, sum/24, c.Float64(), 0.05)
	assert.InDelta(t, CelsiusToFahrenheit(sum/24), f.Float64(), 0.05)
	assert.Len(t, c.Text(), len("19.3"))
}

func TestDailyAccumulator_HeatUnitsText(t *testing.T) {
	acc := NewDailyAccumulator()
	band := HeatUnitBands[0]

	_, _, ok, err := acc.HeatUnitsText(band)
	require.NoError(t, err)
	assert.False(t, ok)

	acc.SetHeatUnits(band, HeatUnits{Value: 12.34})
	c, f, ok, err := acc.HeatUnitsText(band)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "12.3", c)
	assert.Equal(t, "22.1", f)

	acc.SetHeatUnits(band, MissingHeatUnits)
	c, f, ok, err = acc.HeatUnitsText(band)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, MissingText, c)
	assert.Equal(t, "-17998.2", f)
}

func TestHeatUnitBands(t *testing.T) {
	labels := make([]string, 0, len(HeatUnitBands))
	for _, b := range HeatUnitBands {
		labels = append(labels, b.Label)
	}
	assert.Equal(t, []string{"13C", "10C", "7C", "3413C"}, labels)
}
