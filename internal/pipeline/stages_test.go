package pipeline_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/couchcryptid/agmet-derive/internal/domain"
	"github.com/couchcryptid/agmet-derive/internal/pipeline"
	"github.com/couchcryptid/agmet-derive/internal/table"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	day150 = domain.DayKey{Year: "2024", DOY: "150"}
	day151 = domain.DayKey{Year: "2024", DOY: "151"}
	day152 = domain.DayKey{Year: "2024", DOY: "152"}
)

func scanHourly(t *testing.T) *pipeline.HourlyAccumulation {
	t.Helper()
	acc, err := pipeline.ScanHourly(context.Background(), reader(t, "hourly_obs", hourlyObsCSV))
	require.NoError(t, err)
	return acc
}

func TestScanHourly(t *testing.T) {
	acc := scanHourly(t)

	assert.Equal(t, 6, acc.Stats.Rows)
	assert.Equal(t, 2, acc.Stats.Missing)
	assert.Len(t, acc.Hours, 6)
	assert.Len(t, acc.Days, 2)

	hs := acc.Hours[domain.HourKey{DayKey: day150, Hour: "100"}]
	assert.Equal(t, "27.6700000", hs.Celsius.StringFixed(7))
	assert.True(t, acc.Hours[domain.HourKey{DayKey: day150, Hour: "500"}].Missing)

	// The sentinel hour at 500 is folded into the count and sums.
	d := acc.Days[day150]
	assert.Equal(t, 5, d.StressHours)
	assert.Equal(t, 1, d.ChillHours0C)
	assert.Equal(t, 2, d.ChillHours7C)
	assert.Equal(t, 1, d.ChillHours20C)
	assert.Equal(t, "-9958.7232917", d.StressSumC.StringFixed(7))

	assert.Equal(t, 1, acc.Days[day151].StressHours)
	assert.Equal(t, "-9999.0000000", acc.Days[day151].StressSumC.StringFixed(7))
}

func TestScanHourly_MeanOfTwentyFourHours(t *testing.T) {
	var b strings.Builder
	b.WriteString("obs_year,obs_doy,obs_hour,obs_hrly_temp_air,obs_hrly_relative_humidity,obs_hrly_vpd,obs_hrly_sol_rad_total\n")
	var sumC float64
	for h := 0; h < 24; h++ {
		temp := fmt.Sprintf("%.1f", 12+float64(h)*0.8)
		rad := "0"
		if h >= 6 && h <= 18 {
			rad = "450"
		}
		fmt.Fprintf(&b, "2024,200,%d,%s,55,1.3,%s\n", h*100, temp, rad)

		hs, err := domain.CalculateHeatStress(domain.Classify(temp), domain.Classify("55"), domain.Classify("1.3"), domain.Classify(rad))
		require.NoError(t, err)
		c, _ := hs.Celsius.Float64()
		sumC += c
	}

	acc, err := pipeline.ScanHourly(context.Background(), reader(t, "hourly_obs", b.String()))
	require.NoError(t, err)

	day := acc.Days[domain.DayKey{Year: "2024", DOY: "200"}]
	require.Equal(t, 24, day.StressHours)
	mean, _, ok := day.MeanHeatStress()
	require.True(t, ok)
	assert.InDelta(t, sumC/24, mean.Float64(), 0.05)
}

func TestScanHourly_DuplicateHourLastWins(t *testing.T) {
	csv := "obs_year,obs_doy,obs_hour,obs_hrly_temp_air,obs_hrly_relative_humidity,obs_hrly_vpd,obs_hrly_sol_rad_total\n" +
		"2024,150,100,30.0,50,2.0,500\n" +
		"2024,150,100,20.0,80,0.5,0\n"
	acc, err := pipeline.ScanHourly(context.Background(), reader(t, "hourly_obs", csv))
	require.NoError(t, err)

	assert.Equal(t, 1, acc.Stats.Duplicates)
	assert.Equal(t, "17.7196231", acc.Hours[domain.HourKey{DayKey: day150, Hour: "100"}].Celsius.StringFixed(7))
	assert.Equal(t, 2, acc.Days[day150].StressHours)
}

func TestScanHourly_Errors(t *testing.T) {
	t.Run("malformed numeric", func(t *testing.T) {
		csv := "obs_year,obs_doy,obs_hour,obs_hrly_temp_air,obs_hrly_relative_humidity,obs_hrly_vpd,obs_hrly_sol_rad_total\n" +
			"2024,150,100,30.0,50,2.0,500\n" +
			"2024,150,200,hot,50,2.0,500\n"
		_, err := pipeline.ScanHourly(context.Background(), reader(t, "hourly_obs", csv))
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrMalformedNumeric)
		assert.Contains(t, err.Error(), "line 3")
	})

	t.Run("missing column", func(t *testing.T) {
		csv := "obs_year,obs_doy,obs_hour,obs_hrly_temp_air\n2024,150,100,30.0\n"
		_, err := pipeline.ScanHourly(context.Background(), reader(t, "hourly_obs", csv))
		assert.ErrorIs(t, err, table.ErrMissingColumn)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := pipeline.ScanHourly(ctx, reader(t, "hourly_obs", hourlyObsCSV))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestReconcileHourly(t *testing.T) {
	acc := scanHourly(t)
	out := &memWriter{}

	stats, err := pipeline.ReconcileHourly(context.Background(), acc, reader(t, "hourly_derived", hourlyDerivedCSV), out)
	require.NoError(t, err)

	assert.Equal(t, pipeline.PhaseStats{Rows: 4, Updated: 3, PassedThrough: 1}, stats)
	want := [][]string{
		{"2024", "150", "100", "maricopa", "27.7", "81.8"},
		{"2024", "150", "500", "maricopa", "-9999.0", "-9999.0"},
		{"2024", "150", "050", "maricopa", "1.0", "2.0"},
		{"2024", "150", "200", "maricopa", "17.7", "63.9"},
	}
	if diff := cmp.Diff(want, out.rows); diff != "" {
		t.Errorf("hourly output mismatch (-want +got):\n%s", diff)
	}
}

func TestScanDaily(t *testing.T) {
	hourly := scanHourly(t)
	daily, err := pipeline.ScanDaily(context.Background(), hourly, reader(t, "daily_obs", dailyObsCSV))
	require.NoError(t, err)

	assert.Equal(t, 2, daily.Stats.Rows)
	// day 152 has a missing max: four heat-unit bands go missing.
	assert.Equal(t, 4, daily.Stats.Missing)

	d := daily.Days[day150]
	require.True(t, d.HasDaily)
	assert.Equal(t, "19.8280000", d.DailyHeatStress.Celsius.StringFixed(7))
	assert.InDelta(t, 6.9426, d.HeatUnits["13C"].Value, 1e-9)
	assert.InDelta(t, 8.8844, d.HeatUnits["10C"].Value, 1e-9)
	assert.InDelta(t, 10.8661, d.HeatUnits["7C"].Value, 1e-9)
	assert.InDelta(t, 7.0756, d.HeatUnits["3413C"].Value, 1e-9)

	// Days seen only in daily observations still get an accumulator.
	require.Contains(t, daily.Days, day152)
	assert.True(t, daily.Days[day152].HeatUnits["13C"].Missing)
	assert.False(t, daily.Days[day151].HasDaily)
}

func TestReconcileDaily(t *testing.T) {
	hourly := scanHourly(t)
	daily, err := pipeline.ScanDaily(context.Background(), hourly, reader(t, "daily_obs", dailyObsCSV))
	require.NoError(t, err)

	processedAt := time.Date(2024, time.June, 1, 6, 0, 0, 0, time.UTC)
	out := &memWriter{}
	res, err := pipeline.ReconcileDaily(context.Background(), daily, reader(t, "daily_derived", dailyDerivedCSV), out, processedAt)
	require.NoError(t, err)

	assert.Equal(t, pipeline.PhaseStats{Rows: 4, Updated: 3, PassedThrough: 1}, res.Stats)
	assert.Equal(t, []domain.DayKey{day152}, res.ZeroHourDays)

	want := [][]string{
		{"2024", "150", "maricopa", "-1991.7", "-1959.7", "1", "2", "1", "1", "2", "1", "10.9", "8.9", "6.9", "7.1", "19.6", "16.0", "12.4", "12.8"},
		{"2024", "151", "maricopa", "-9999.0", "-9999.0", "0", "0", "0", "0", "0", "0", "p", "p", "p", "p", "p", "p", "p", "p"},
		{"2024", "152", "maricopa", "-9999.0", "-9999.0", "0", "0", "0", "0", "0", "0",
			"-9999.0", "-9999.0", "-9999.0", "-9999.0", "-17998.2", "-17998.2", "-17998.2", "-17998.2"},
		{"2024", "153", "maricopa", "x", "x", "x", "x", "x", "x", "x", "x", "x", "x", "x", "x", "x", "x", "x", "x"},
	}
	if diff := cmp.Diff(want, out.rows); diff != "" {
		t.Errorf("daily output mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, res.Summaries, 3)
	s := res.Summaries[0]
	assert.Equal(t, day150, s.Key())
	assert.Equal(t, "-1991.7", s.HeatStressMeanC)
	assert.Equal(t, 5, s.HoursObserved)
	assert.Equal(t, "19.8", s.DailyObsHeatStressC)
	assert.Equal(t, "12.4", s.HeatUnitsF[domain.ColHeatUnits55F])
	assert.Equal(t, processedAt, s.ProcessedAt)
	assert.Empty(t, res.Summaries[1].HeatUnitsC)
}

func TestReconcileDaily_FahrenheitChillHoursMirrorCelsius(t *testing.T) {
	hourly := scanHourly(t)
	daily, err := pipeline.ScanDaily(context.Background(), hourly, reader(t, "daily_obs", dailyObsCSV))
	require.NoError(t, err)

	out := &memWriter{}
	_, err = pipeline.ReconcileDaily(context.Background(), daily, reader(t, "daily_derived", dailyDerivedCSV), out, time.Time{})
	require.NoError(t, err)

	for _, row := range out.rows[:3] {
		assert.Equal(t, column(t, dailyDerivedHeader, row, domain.ColChillHours0C), column(t, dailyDerivedHeader, row, domain.ColChillHours32F))
		assert.Equal(t, column(t, dailyDerivedHeader, row, domain.ColChillHours7C), column(t, dailyDerivedHeader, row, domain.ColChillHours45F))
		assert.Equal(t, column(t, dailyDerivedHeader, row, domain.ColChillHours20C), column(t, dailyDerivedHeader, row, domain.ColChillHours68F))
	}
}

func TestReconcileDaily_MissingColumn(t *testing.T) {
	hourly := scanHourly(t)
	daily, err := pipeline.ScanDaily(context.Background(), hourly, reader(t, "daily_obs", dailyObsCSV))
	require.NoError(t, err)

	csv := "obs_year,obs_doy,obs_dyly_derived_heatstress_cotton_meanC\n2024,150,\n"
	_, err = pipeline.ReconcileDaily(context.Background(), daily, reader(t, "daily_derived", csv), &memWriter{}, time.Time{})
	assert.ErrorIs(t, err, table.ErrMissingColumn)
}
