package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/couchcryptid/agmet-derive/internal/domain"
	"github.com/couchcryptid/agmet-derive/internal/table"
)

// PhaseStats counts what a phase did with its input table.
type PhaseStats struct {
	Rows          int
	Updated       int
	PassedThrough int
	Missing       int // model evaluations that returned the sentinel result
	Duplicates    int // keys seen more than once; the last row wins
}

// HourlyAccumulation is the output of the hourly scan: one heat-stress
// result per hour and one partially filled accumulator per day.
type HourlyAccumulation struct {
	Hours map[domain.HourKey]domain.HeatStress
	Days  map[domain.DayKey]*domain.DailyAccumulator
	Stats PhaseStats
}

// DailyAccumulation is the output of the daily scan. Every accumulator that
// had a daily observation now carries heat units and the daily-mean heat
// stress.
type DailyAccumulation struct {
	Days  map[domain.DayKey]*domain.DailyAccumulator
	Stats PhaseStats
}

// DailyReconciliation is the output of the final phase.
type DailyReconciliation struct {
	Summaries    []domain.DailySummary
	ZeroHourDays []domain.DayKey
	Stats        PhaseStats
}

func dayKey(row table.Row) (domain.DayKey, error) {
	year, err := row.Get(domain.ColYear)
	if err != nil {
		return domain.DayKey{}, err
	}
	doy, err := row.Get(domain.ColDOY)
	if err != nil {
		return domain.DayKey{}, err
	}
	return domain.DayKey{Year: year, DOY: doy}, nil
}

func hourKey(row table.Row) (domain.HourKey, error) {
	day, err := dayKey(row)
	if err != nil {
		return domain.HourKey{}, err
	}
	hour, err := row.Get(domain.ColHour)
	if err != nil {
		return domain.HourKey{}, err
	}
	return domain.HourKey{DayKey: day, Hour: hour}, nil
}

func readings(row table.Row, columns ...string) ([]domain.Reading, error) {
	out := make([]domain.Reading, len(columns))
	for i, c := range columns {
		raw, err := row.Get(c)
		if err != nil {
			return nil, err
		}
		out[i] = domain.Classify(raw)
	}
	return out, nil
}

// eachRow calls fn for every row of in, stopping on the first error or when
// ctx is cancelled.
func eachRow(ctx context.Context, in TableReader, fn func(table.Row) error) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		row, err := in.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(row); err != nil {
			return fmt.Errorf("%s line %d: %w", in.Name(), row.Line, err)
		}
	}
}

// ScanHourly computes heat stress for every hourly observation and folds it,
// together with the chill-hour thresholds, into per-day accumulators.
func ScanHourly(ctx context.Context, in TableReader) (*HourlyAccumulation, error) {
	acc := &HourlyAccumulation{
		Hours: make(map[domain.HourKey]domain.HeatStress),
		Days:  make(map[domain.DayKey]*domain.DailyAccumulator),
	}

	err := eachRow(ctx, in, func(row table.Row) error {
		acc.Stats.Rows++
		key, err := hourKey(row)
		if err != nil {
			return err
		}
		r, err := readings(row,
			domain.ColHourlyTempAir,
			domain.ColHourlyRelHumidity,
			domain.ColHourlyVPD,
			domain.ColHourlySolarRad,
		)
		if err != nil {
			return err
		}

		stress, err := domain.CalculateHeatStress(r[0], r[1], r[2], r[3])
		if err != nil {
			return fmt.Errorf("heat stress: %w", err)
		}
		if stress.Missing {
			acc.Stats.Missing++
		}
		if _, dup := acc.Hours[key]; dup {
			acc.Stats.Duplicates++
		}
		acc.Hours[key] = stress

		day, ok := acc.Days[key.Day()]
		if !ok {
			day = domain.NewDailyAccumulator()
			acc.Days[key.Day()] = day
		}
		return day.AddHour(r[0], stress)
	})
	if err != nil {
		return nil, err
	}
	return acc, nil
}

// ReconcileHourly writes every hourly-derived row to out, overwriting the
// heat-stress columns of rows whose hour was observed.
func ReconcileHourly(ctx context.Context, acc *HourlyAccumulation, in TableReader, out TableWriter) (PhaseStats, error) {
	var stats PhaseStats
	err := eachRow(ctx, in, func(row table.Row) error {
		stats.Rows++
		key, err := hourKey(row)
		if err != nil {
			return err
		}
		stress, ok := acc.Hours[key]
		if !ok {
			stats.PassedThrough++
			return out.Write(row)
		}

		if err := row.Set(domain.ColHourlyHeatStressC, domain.Round(stress.Celsius, domain.OutputPlaces).Text()); err != nil {
			return err
		}
		if err := row.Set(domain.ColHourlyHeatStressF, domain.Round(stress.Fahrenheit, domain.OutputPlaces).Text()); err != nil {
			return err
		}
		stats.Updated++
		return out.Write(row)
	})
	return stats, err
}

// ScanDaily evaluates the daily-mean heat stress and the four heat-unit bands
// for every daily observation. Days without hourly observations get a fresh
// accumulator.
func ScanDaily(ctx context.Context, acc *HourlyAccumulation, in TableReader) (*DailyAccumulation, error) {
	out := &DailyAccumulation{Days: acc.Days}
	seen := make(map[domain.DayKey]struct{})

	err := eachRow(ctx, in, func(row table.Row) error {
		out.Stats.Rows++
		key, err := dayKey(row)
		if err != nil {
			return err
		}
		if _, dup := seen[key]; dup {
			out.Stats.Duplicates++
		}
		seen[key] = struct{}{}

		r, err := readings(row,
			domain.ColDailyTempAirMean,
			domain.ColDailyRelHumidityMean,
			domain.ColDailyVPDMean,
			domain.ColDailySolarRad,
			domain.ColDailyTempAirMax,
			domain.ColDailyTempAirMin,
		)
		if err != nil {
			return err
		}

		day, ok := out.Days[key]
		if !ok {
			day = domain.NewDailyAccumulator()
			out.Days[key] = day
		}

		stress, err := domain.CalculateHeatStress(r[0], r[1], r[2], r[3])
		if err != nil {
			return fmt.Errorf("daily heat stress: %w", err)
		}
		if stress.Missing {
			out.Stats.Missing++
		}
		day.DailyHeatStress = stress
		day.HasDaily = true

		for _, band := range domain.HeatUnitBands {
			hu, err := domain.CalculateHeatUnits(r[4], r[5], domain.Classify(band.Upper), domain.Classify(band.Lower))
			if err != nil {
				return fmt.Errorf("heat units %s: %w", band.Label, err)
			}
			if hu.Missing {
				out.Stats.Missing++
			}
			day.SetHeatUnits(band, hu)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReconcileDaily writes every daily-derived row to out, filling in the mean
// heat stress, chill hours and heat units of days that were observed.
func ReconcileDaily(ctx context.Context, acc *DailyAccumulation, in TableReader, out TableWriter, processedAt time.Time) (*DailyReconciliation, error) {
	res := &DailyReconciliation{}

	err := eachRow(ctx, in, func(row table.Row) error {
		res.Stats.Rows++
		key, err := dayKey(row)
		if err != nil {
			return err
		}
		day, ok := acc.Days[key]
		if !ok {
			res.Stats.PassedThrough++
			return out.Write(row)
		}

		summary, err := applyDay(row, key, day)
		if err != nil {
			return err
		}
		if day.StressHours == 0 {
			res.ZeroHourDays = append(res.ZeroHourDays, key)
		}
		summary.ProcessedAt = processedAt
		res.Summaries = append(res.Summaries, summary)
		res.Stats.Updated++
		return out.Write(row)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

type columnValue struct {
	column string
	value  string
}

// applyDay overwrites the derived columns of row from day and returns the
// matching summary.
func applyDay(row table.Row, key domain.DayKey, day *domain.DailyAccumulator) (domain.DailySummary, error) {
	s := domain.DailySummary{
		Year:          key.Year,
		DOY:           key.DOY,
		HoursObserved: day.StressHours,
		ChillHours0C:  day.ChillHours0C,
		ChillHours7C:  day.ChillHours7C,
		ChillHours20C: day.ChillHours20C,
	}

	s.HeatStressMeanC, s.HeatStressMeanF = domain.MissingText, domain.MissingText
	if c, f, ok := day.MeanHeatStress(); ok {
		s.HeatStressMeanC, s.HeatStressMeanF = c.Text(), f.Text()
	}
	if day.HasDaily {
		s.DailyObsHeatStressC = domain.Round(day.DailyHeatStress.Celsius, domain.OutputPlaces).Text()
		s.DailyObsHeatStressF = domain.Round(day.DailyHeatStress.Fahrenheit, domain.OutputPlaces).Text()
	}

	set := []columnValue{
		{domain.ColDailyHeatStressMeanC, s.HeatStressMeanC},
		{domain.ColDailyHeatStressMeanF, s.HeatStressMeanF},
		{domain.ColChillHours0C, strconv.Itoa(day.ChillHours0C)},
		{domain.ColChillHours7C, strconv.Itoa(day.ChillHours7C)},
		{domain.ColChillHours20C, strconv.Itoa(day.ChillHours20C)},
		{domain.ColChillHours32F, strconv.Itoa(day.ChillHours0C)},
		{domain.ColChillHours45F, strconv.Itoa(day.ChillHours7C)},
		{domain.ColChillHours68F, strconv.Itoa(day.ChillHours20C)},
	}

	for _, band := range domain.HeatUnitBands {
		c, f, ok, err := day.HeatUnitsText(band)
		if err != nil {
			return domain.DailySummary{}, err
		}
		if !ok {
			continue
		}
		set = append(set, columnValue{band.CelsiusColumn, c}, columnValue{band.FahrenheitColumn, f})
		if s.HeatUnitsC == nil {
			s.HeatUnitsC = make(map[string]string, len(domain.HeatUnitBands))
			s.HeatUnitsF = make(map[string]string, len(domain.HeatUnitBands))
		}
		s.HeatUnitsC[band.CelsiusColumn] = c
		s.HeatUnitsF[band.FahrenheitColumn] = f
	}

	for _, cv := range set {
		if err := row.Set(cv.column, cv.value); err != nil {
			return domain.DailySummary{}, err
		}
	}
	return s, nil
}
