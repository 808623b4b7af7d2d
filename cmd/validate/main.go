// Command validate checks the updated tables written by derive against the
// derived tables they were produced from. It verifies row and key parity,
// that only derived columns changed, and that every derived value is either
// the missing-data sentinel or a one-decimal number consistent with its
// Fahrenheit or Celsius mirror.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -hourly-derived data/mock/hourly_derived.csv \
//	  -daily-derived data/mock/daily_derived.csv
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/couchcryptid/agmet-derive/internal/domain"
	"github.com/couchcryptid/agmet-derive/internal/table"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// mirror is a Celsius column and the Fahrenheit column derived from it.
type mirror struct {
	celsius, fahrenheit string
	// offset is 32 for temperatures and 0 for differences such as heat units.
	offset    float64
	tolerance float64
	// averaged pairs are daily means. Sentinel hours are folded into both
	// sums, which breaks the linear relation, so only the format is checked.
	averaged bool
}

// Temperatures are rounded independently in both units, so the mirror can
// drift by up to 0.05*1.8 + 0.05. Heat units are converted after rounding.
const (
	temperatureTolerance = 0.14 + 1e-9
	unitTolerance        = 0.05 + 1e-9
)

var hourlyMirrors = []mirror{
	{domain.ColHourlyHeatStressC, domain.ColHourlyHeatStressF, 32, temperatureTolerance, false},
}

var dailyMirrors = func() []mirror {
	m := []mirror{{domain.ColDailyHeatStressMeanC, domain.ColDailyHeatStressMeanF, 32, temperatureTolerance, true}}
	for _, band := range domain.HeatUnitBands {
		m = append(m, mirror{band.CelsiusColumn, band.FahrenheitColumn, 0, unitTolerance, false})
	}
	return m
}()

// chillPairs are counts that must agree in both units.
var chillPairs = [][2]string{
	{domain.ColChillHours0C, domain.ColChillHours32F},
	{domain.ColChillHours7C, domain.ColChillHours45F},
	{domain.ColChillHours20C, domain.ColChillHours68F},
}

func main() {
	hourlyDerived := flag.String("hourly-derived", "", "hourly derived table given to derive")
	dailyDerived := flag.String("daily-derived", "", "daily derived table given to derive")
	flag.Parse()

	if *hourlyDerived == "" || *dailyDerived == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(os.Stdout, *hourlyDerived, *dailyDerived); code != 0 {
		os.Exit(code)
	}
}

func run(out io.Writer, hourlyDerived, dailyDerived string) int {
	fmt.Fprintln(out, "=== Derived Table Validation ===")

	hourlyIn, err := loadTable(hourlyDerived)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}
	hourlyOut, err := loadTable(domain.UpdatedPath(hourlyDerived))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}
	dailyIn, err := loadTable(dailyDerived)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}
	dailyOut, err := loadTable(domain.UpdatedPath(dailyDerived))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	hourlyColumns := []string{domain.ColHourlyHeatStressC, domain.ColHourlyHeatStressF}
	dailyColumns := dailyDerivedColumns()

	phases := []*phase{
		validateParity("Hourly row parity", hourlyIn, hourlyOut, hourlyColumns),
		validateParity("Daily row parity", dailyIn, dailyOut, dailyColumns),
		validateMirrors("Hourly heat stress values", hourlyIn, hourlyOut, hourlyMirrors),
		validateMirrors("Daily heat stress and heat unit values", dailyIn, dailyOut, dailyMirrors),
		validateChill(dailyIn, dailyOut),
	}

	fmt.Fprintln(out)
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Rows: %d hourly, %d daily\n", len(hourlyOut.rows), len(dailyOut.rows))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

func dailyDerivedColumns() []string {
	cols := []string{
		domain.ColDailyHeatStressMeanC, domain.ColDailyHeatStressMeanF,
		domain.ColChillHours0C, domain.ColChillHours7C, domain.ColChillHours20C,
		domain.ColChillHours32F, domain.ColChillHours45F, domain.ColChillHours68F,
	}
	for _, band := range domain.HeatUnitBands {
		cols = append(cols, band.CelsiusColumn, band.FahrenheitColumn)
	}
	return cols
}

// ── Data loading ──

type loadedTable struct {
	path    string
	columns []string
	rows    []table.Row
}

func loadTable(path string) (*loadedTable, error) {
	r, err := table.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	t := &loadedTable{path: path, columns: r.Schema().Columns()}
	for {
		row, err := r.Next()
		if errors.Is(err, io.EOF) {
			return t, nil
		}
		if err != nil {
			return nil, err
		}
		t.rows = append(t.rows, row)
	}
}

// ── Validation phases ──

// validateParity checks that out has the same header and rows as in, with
// differences only in the derived columns.
func validateParity(name string, in, out *loadedTable, derived []string) *phase {
	p := &phase{name: name}
	if !slices.Equal(in.columns, out.columns) {
		p.errorf("header mismatch: %s has %v, %s has %v", in.path, in.columns, out.path, out.columns)
		return p
	}
	if len(in.rows) != len(out.rows) {
		p.errorf("row count: %s has %d, %s has %d", in.path, len(in.rows), out.path, len(out.rows))
		return p
	}
	for i := range in.rows {
		before, after := in.rows[i].Values(), out.rows[i].Values()
		for j, col := range in.columns {
			if slices.Contains(derived, col) || before[j] == after[j] {
				continue
			}
			p.errorf("row %d column %s changed from %q to %q", i+1, col, before[j], after[j])
		}
	}
	return p
}

// changed returns the output values of a column pair in row i, and whether
// either differs from the input. Unchanged pairs were passed through.
func changed(in, out *loadedTable, i int, a, b string) (string, string, bool) {
	oa, _ := out.rows[i].Get(a)
	ob, _ := out.rows[i].Get(b)
	if i >= len(in.rows) {
		return oa, ob, true
	}
	ia, _ := in.rows[i].Get(a)
	ib, _ := in.rows[i].Get(b)
	return oa, ob, oa != ia || ob != ib
}

func hasColumns(t *loadedTable, cols ...string) bool {
	for _, c := range cols {
		if !slices.Contains(t.columns, c) {
			return false
		}
	}
	return true
}

// validateMirrors checks every rewritten mirror pair: both missing, or both
// one-decimal numbers that agree. A missing heat-unit band is scaled like any
// other value, so -9999.0 pairs with -17998.2.
func validateMirrors(name string, in, out *loadedTable, mirrors []mirror) *phase {
	p := &phase{name: name}
	for _, m := range mirrors {
		if !hasColumns(out, m.celsius, m.fahrenheit) {
			continue
		}
		for i := range out.rows {
			c, f, ok := changed(in, out, i, m.celsius, m.fahrenheit)
			if !ok {
				continue
			}
			if err := checkMirror(c, f, m); err != nil {
				p.errorf("row %d %s/%s: %v", i+1, m.celsius, m.fahrenheit, err)
			}
		}
	}
	return p
}

func checkMirror(c, f string, m mirror) error {
	if m.offset != 0 {
		cMissing, fMissing := c == domain.MissingText, f == domain.MissingText
		if cMissing || fMissing {
			if cMissing != fMissing {
				return fmt.Errorf("only one of %q and %q is missing", c, f)
			}
			return nil
		}
	}
	cv, err := parseOneDecimal(c)
	if err != nil {
		return err
	}
	fv, err := parseOneDecimal(f)
	if err != nil {
		return err
	}
	if m.averaged {
		return nil
	}
	if want := cv*1.8 + m.offset; math.Abs(fv-want) > m.tolerance {
		return fmt.Errorf("%s does not mirror %s (want about %.2f)", f, c, want)
	}
	return nil
}

func parseOneDecimal(s string) (float64, error) {
	dot := strings.IndexByte(s, '.')
	if dot < 0 || len(s)-dot-1 != 1 {
		return 0, fmt.Errorf("%q is not a one-decimal value", s)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not numeric", s)
	}
	return v, nil
}

// validateChill checks that chill counts are non-negative integers and that
// each Celsius count equals its Fahrenheit twin.
func validateChill(in, out *loadedTable) *phase {
	p := &phase{name: "Daily chill hour counts"}
	for _, pair := range chillPairs {
		if !hasColumns(out, pair[0], pair[1]) {
			continue
		}
		for i := range out.rows {
			c, f, ok := changed(in, out, i, pair[0], pair[1])
			if !ok {
				continue
			}
			if c != f {
				p.errorf("row %d %s=%q but %s=%q", i+1, pair[0], c, pair[1], f)
				continue
			}
			n, err := strconv.Atoi(c)
			if err != nil || n < 0 {
				p.errorf("row %d %s=%q is not an hour count", i+1, pair[0], c)
			}
		}
	}
	return p
}
