package domain

// Key columns shared by all four tables.
const (
	ColYear = "obs_year"
	ColDOY  = "obs_doy"
	ColHour = "obs_hour"
)

// Hourly observation columns.
const (
	ColHourlyTempAir     = "obs_hrly_temp_air"
	ColHourlyRelHumidity = "obs_hrly_relative_humidity"
	ColHourlyVPD         = "obs_hrly_vpd"
	ColHourlySolarRad    = "obs_hrly_sol_rad_total"
)

// Hourly derived columns.
const (
	ColHourlyHeatStressC = "obs_hrly_derived_heatstress_cottonC"
	ColHourlyHeatStressF = "obs_hrly_derived_heatstress_cottonF"
)

// Daily observation columns.
const (
	ColDailyTempAirMean     = "obs_dyly_temp_air_mean"
	ColDailyTempAirMax      = "obs_dyly_temp_air_max"
	ColDailyTempAirMin      = "obs_dyly_temp_air_min"
	ColDailyRelHumidityMean = "obs_dyly_relative_humidity_mean"
	ColDailyVPDMean         = "obs_dyly_vpd_mean"
	ColDailySolarRad        = "obs_dyly_sol_rad_total"
)

// Daily derived columns. The Fahrenheit chill-hour columns carry the same
// counts as their Celsius twins under the equivalent threshold label.
const (
	ColDailyHeatStressMeanC = "obs_dyly_derived_heatstress_cotton_meanC"
	ColDailyHeatStressMeanF = "obs_dyly_derived_heatstress_cotton_meanF"

	ColChillHours0C  = "obs_dyly_derived_chill_hours_0C"
	ColChillHours7C  = "obs_dyly_derived_chill_hours_7C"
	ColChillHours20C = "obs_dyly_derived_chill_hours_20C"
	ColChillHours32F = "obs_dyly_derived_chill_hours_32F"
	ColChillHours45F = "obs_dyly_derived_chill_hours_45F"
	ColChillHours68F = "obs_dyly_derived_chill_hours_68F"

	ColHeatUnits7C    = "obs_dyly_derived_heat_units_7C"
	ColHeatUnits10C   = "obs_dyly_derived_heat_units_10C"
	ColHeatUnits13C   = "obs_dyly_derived_heat_units_13C"
	ColHeatUnits3413C = "obs_dyly_derived_heat_units_3413C"
	ColHeatUnits45F   = "obs_dyly_derived_heat_units_45F"
	ColHeatUnits50F   = "obs_dyly_derived_heat_units_50F"
	ColHeatUnits55F   = "obs_dyly_derived_heat_units_55F"
	ColHeatUnits9455F = "obs_dyly_derived_heat_units_9455F"
)

// Chill-hour thresholds in °C.
const (
	FreezingC  = 0.0
	ChillC     = 7.22222
	WarmNightC = 20.0
)

// HeatUnitBand is one fixed upper/lower threshold pair and the columns its
// result is written to.
type HeatUnitBand struct {
	Label            string
	Upper            string
	Lower            string
	CelsiusColumn    string
	FahrenheitColumn string
}

// HeatUnitBands are evaluated for every daily observation, in this order.
var HeatUnitBands = []HeatUnitBand{
	{Label: "13C", Upper: "30.0", Lower: "12.7778", CelsiusColumn: ColHeatUnits13C, FahrenheitColumn: ColHeatUnits55F},
	{Label: "10C", Upper: "30.0", Lower: "10.0", CelsiusColumn: ColHeatUnits10C, FahrenheitColumn: ColHeatUnits50F},
	{Label: "7C", Upper: "30.0", Lower: "7.22222", CelsiusColumn: ColHeatUnits7C, FahrenheitColumn: ColHeatUnits45F},
	{Label: "3413C", Upper: "34.4444", Lower: "12.7778", CelsiusColumn: ColHeatUnits3413C, FahrenheitColumn: ColHeatUnits9455F},
}
