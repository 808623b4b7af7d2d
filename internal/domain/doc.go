// Package domain derives crop physiological indices from agrometeorological
// station observations.
//
// # Data Source
//
// Observations arrive as hourly and daily station tables keyed by obs_year,
// obs_doy and (hourly only) obs_hour. The station network also publishes
// derived tables with placeholder columns for the indices computed here; the
// pipeline fills those columns in and writes updated copies.
//
// # Missing Data
//
// Loggers mark missing or invalid measurements with one of three literals:
//
//	"-7999"    sensor fault
//	"-6999"    value out of range
//	"-9999.0"  not recorded
//
// Detection is exact text equality on the value as read, before parsing. A
// field spelled "-9999" or "-7999.0" is an ordinary number. When any input to
// a formula is missing the formula is not evaluated at all and its result is
// "-9999.0". Text that is neither a sentinel nor a number is a fatal error.
//
// # Cotton Heat Stress
//
// A canopy temperature estimate for irrigated cotton:
//
//	Ex = exp(17.27 T / (237.2 + T))
//	Ea = RH/100 * 0.6108 * Ex
//	HS = 0.53 + T - 1.43 VPD     solar radiation > 0
//	HS = -5.93 + T + 1.95 Ea     otherwise (night)
//
// Results are rounded to 7 places; °F is computed from the rounded °C value.
//
// # Heat Units
//
// Degree days between a lower and an upper threshold using the single sine
// method. The diurnal curve is a sine wave between the day's minimum and
// maximum; [SineTable] gives, for a threshold at each percentile of that
// range, the fraction of the half-amplitude the curve spends above it. Four
// threshold pairs are evaluated (see [HeatUnitBands]). Heat units are
// temperature differences, so °F units are °C units times 1.8 with no offset.
// A missing band is scaled too, so its °F columns read "-17998.2".
//
// The table index is clamped to 0..100 in the lower-threshold-only case, only
// from above in the upper-threshold-only case, and not at all when both
// thresholds fall inside the range. See [sineIndex].
//
// # Daily Means
//
// Every hourly record adds its heat stress to the day's sums and counts
// toward the hour count, including records whose result is "-9999.0". A day
// with no hourly records at all has no mean and is written as "-9999.0".
//
// # Chill Hours
//
// Hourly air temperature counts toward three independent counters: below
// 0 °C, below 7.22222 °C (45 °F) and above 20 °C (68 °F). Derived tables
// repeat each count under its °F label; the counts are not converted.
//
// # Rounding
//
// Every stored or written value is rounded half away from zero on its exact
// decimal value ([Round]). Intermediate arithmetic is float64. A negative
// value that rounds to zero keeps its sign ("-0.0").
package domain
