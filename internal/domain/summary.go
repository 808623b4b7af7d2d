package domain

import "time"

// DailySummary is the published form of one updated daily-derived row.
type DailySummary struct {
	Year string `json:"year"`
	DOY  string `json:"doy"`

	HeatStressMeanC string `json:"heatstress_cotton_mean_c"`
	HeatStressMeanF string `json:"heatstress_cotton_mean_f"`
	HoursObserved   int    `json:"hours_observed"`

	// Heat stress from the daily mean observation, kept for comparison with
	// the hourly mean.
	DailyObsHeatStressC string `json:"daily_obs_heatstress_c,omitempty"`
	DailyObsHeatStressF string `json:"daily_obs_heatstress_f,omitempty"`

	ChillHours0C  int `json:"chill_hours_0c"`
	ChillHours7C  int `json:"chill_hours_7c"`
	ChillHours20C int `json:"chill_hours_20c"`

	// HeatUnitsC and HeatUnitsF are keyed by column name.
	HeatUnitsC map[string]string `json:"heat_units_c,omitempty"`
	HeatUnitsF map[string]string `json:"heat_units_f,omitempty"`

	RunID       string    `json:"run_id,omitempty"`
	ProcessedAt time.Time `json:"processed_at"`
}

// Key returns the day the summary describes.
func (s DailySummary) Key() DayKey {
	return DayKey{Year: s.Year, DOY: s.DOY}
}
