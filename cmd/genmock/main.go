// Command genmock writes a synthetic set of the four station tables for
// exercising the derive command end to end. Values follow a diurnal sine
// curve with seeded noise, and a fraction of observations is replaced by
// sentinel codes so the missing-value paths are covered.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock -year 2024 -start-doy 150 -days 14
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"

	"github.com/couchcryptid/agmet-derive/internal/domain"
	"github.com/couchcryptid/agmet-derive/internal/table"
)

var sentinels = []string{"-9999.0", "-7999", "-6999"}

var (
	hourlyObsColumns = []string{
		domain.ColYear, domain.ColDOY, domain.ColHour,
		domain.ColHourlyTempAir, domain.ColHourlyRelHumidity, domain.ColHourlyVPD, domain.ColHourlySolarRad,
	}
	hourlyDerivedColumns = []string{
		domain.ColYear, domain.ColDOY, domain.ColHour,
		domain.ColHourlyHeatStressC, domain.ColHourlyHeatStressF,
	}
	dailyObsColumns = []string{
		domain.ColYear, domain.ColDOY,
		domain.ColDailyTempAirMean, domain.ColDailyTempAirMax, domain.ColDailyTempAirMin,
		domain.ColDailyRelHumidityMean, domain.ColDailyVPDMean, domain.ColDailySolarRad,
	}
)

var dailyDerivedColumns = buildDailyDerivedColumns()

func buildDailyDerivedColumns() []string {
	cols := []string{
		domain.ColYear, domain.ColDOY,
		domain.ColDailyHeatStressMeanC, domain.ColDailyHeatStressMeanF,
		domain.ColChillHours0C, domain.ColChillHours7C, domain.ColChillHours20C,
		domain.ColChillHours32F, domain.ColChillHours45F, domain.ColChillHours68F,
	}
	for _, band := range domain.HeatUnitBands {
		cols = append(cols, band.CelsiusColumn)
	}
	for _, band := range domain.HeatUnitBands {
		cols = append(cols, band.FahrenheitColumn)
	}
	return cols
}

type options struct {
	out         string
	year        int
	startDOY    int
	days        int
	seed        uint64
	missingRate float64
}

type counts struct {
	hours         int
	days          int
	missingHourly int
	missingDaily  int
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	var opts options
	flag.StringVar(&opts.out, "out", "", "directory for the generated tables")
	flag.IntVar(&opts.year, "year", 2024, "observation year")
	flag.IntVar(&opts.startDOY, "start-doy", 150, "first day of year")
	flag.IntVar(&opts.days, "days", 14, "number of days")
	flag.Uint64Var(&opts.seed, "seed", 1, "random seed")
	flag.Float64Var(&opts.missingRate, "missing-rate", 0.02, "fraction of observations replaced by sentinels")
	flag.Parse()

	if opts.out == "" || opts.days <= 0 {
		flag.Usage()
		return fmt.Errorf("missing required flags: -out, -days > 0")
	}
	if err := os.MkdirAll(opts.out, 0o755); err != nil {
		return err
	}

	c, err := generate(opts)
	if err != nil {
		return err
	}

	fmt.Println("\n=== Generated tables ===")
	fmt.Printf("Days: %d, hours: %d\n", c.days, c.hours)
	fmt.Printf("Sentinel observations: hourly=%d, daily=%d\n", c.missingHourly, c.missingDaily)
	return nil
}

// outputs holds the four table writers so they commit or abort together.
type outputs struct {
	hourlyObs, hourlyDerived, dailyObs, dailyDerived *table.Writer
}

func (o *outputs) all() []*table.Writer {
	return []*table.Writer{o.hourlyObs, o.hourlyDerived, o.dailyObs, o.dailyDerived}
}

func create(dir string) (*outputs, error) {
	var o outputs
	var err error
	for _, f := range []struct {
		dst  **table.Writer
		name string
		cols []string
	}{
		{&o.hourlyObs, "hourly_obs.csv", hourlyObsColumns},
		{&o.hourlyDerived, "hourly_derived.csv", hourlyDerivedColumns},
		{&o.dailyObs, "daily_obs.csv", dailyObsColumns},
		{&o.dailyDerived, "daily_derived.csv", dailyDerivedColumns},
	} {
		*f.dst, err = table.Create(filepath.Join(dir, f.name), f.cols)
		if err != nil {
			o.abort()
			return nil, err
		}
	}
	return &o, nil
}

func (o *outputs) abort() {
	for _, w := range o.all() {
		if w != nil {
			_ = w.Abort()
		}
	}
}

func generate(opts options) (counts, error) {
	out, err := create(opts.out)
	if err != nil {
		return counts{}, err
	}
	defer out.abort()

	rng := rand.New(rand.NewPCG(opts.seed, opts.seed^0x9e3779b97f4a7c15))
	var c counts
	year := strconv.Itoa(opts.year)

	for d := range opts.days {
		doy := strconv.Itoa(opts.startDOY + d)
		base := 18 + 6*rng.Float64()
		swing := 6 + 6*rng.Float64()

		var sum, high, low float64
		high, low = math.Inf(-1), math.Inf(1)
		for h := 1; h <= 24; h++ {
			// Minimum near 0500, maximum near 1700.
			temp := base + swing*math.Sin(2*math.Pi*(float64(h)-11)/24) + rng.NormFloat64()*0.5
			rh := clamp(70-1.5*(temp-base)+rng.NormFloat64()*3, 5, 100)
			vpd := math.Max(0, 0.6108*math.Exp(17.27*temp/(temp+237.3))*(1-rh/100))
			rad := math.Max(0, 3.2*math.Sin(math.Pi*(float64(h)-6)/14))

			sum += temp
			high, low = math.Max(high, temp), math.Min(low, temp)

			hour := strconv.Itoa(h * 100)
			fields := []string{year, doy, hour,
				value(rng, opts.missingRate, temp, 1, &c.missingHourly),
				value(rng, opts.missingRate, rh, 1, &c.missingHourly),
				value(rng, opts.missingRate, vpd, 2, &c.missingHourly),
				value(rng, opts.missingRate, rad, 2, &c.missingHourly),
			}
			if err := write(out.hourlyObs, hourlyObsColumns, fields); err != nil {
				return c, err
			}
			if err := write(out.hourlyDerived, hourlyDerivedColumns, []string{year, doy, hour, "", ""}); err != nil {
				return c, err
			}
			c.hours++
		}

		mean := sum / 24
		fields := []string{year, doy,
			value(rng, opts.missingRate, mean, 1, &c.missingDaily),
			value(rng, opts.missingRate, high, 1, &c.missingDaily),
			value(rng, opts.missingRate, low, 1, &c.missingDaily),
			value(rng, opts.missingRate, clamp(70+rng.NormFloat64()*5, 5, 100), 1, &c.missingDaily),
			value(rng, opts.missingRate, 1+rng.Float64(), 2, &c.missingDaily),
			value(rng, opts.missingRate, 20+10*rng.Float64(), 2, &c.missingDaily),
		}
		if err := write(out.dailyObs, dailyObsColumns, fields); err != nil {
			return c, err
		}
		derived := make([]string, len(dailyDerivedColumns))
		derived[0], derived[1] = year, doy
		if err := write(out.dailyDerived, dailyDerivedColumns, derived); err != nil {
			return c, err
		}
		c.days++
	}

	for _, w := range out.all() {
		if err := w.Commit(); err != nil {
			return c, err
		}
		log.Printf("wrote %s", w.Path())
	}
	return c, nil
}

func write(w *table.Writer, columns, fields []string) error {
	row, err := table.NewRow(table.NewSchema(columns), fields)
	if err != nil {
		return err
	}
	return w.Write(row)
}

// value formats v, or a random sentinel code with probability rate.
func value(rng *rand.Rand, rate, v float64, places int, missing *int) string {
	if rng.Float64() < rate {
		*missing++
		return sentinels[rng.IntN(len(sentinels))]
	}
	return strconv.FormatFloat(v, 'f', places, 64)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
