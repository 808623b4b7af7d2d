package domain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MissingText is the value written in place of a derived result when any of
// its inputs is missing.
const MissingText = "-9999.0"

// MissingValue is MissingText as a number.
const MissingValue = -9999.0

// ErrMalformedNumeric reports field text that is neither a sentinel nor a
// finite number.
var ErrMalformedNumeric = errors.New("malformed numeric value")

// sentinels are compared against the text exactly as read. "-9999" or
// "-6999.0" are ordinary numbers.
var sentinels = map[string]struct{}{
	"-7999":   {},
	"-6999":   {},
	"-9999.0": {},
}

// IsSentinel reports whether raw is one of the missing-data literals.
func IsSentinel(raw string) bool {
	_, ok := sentinels[raw]
	return ok
}

// Reading is a raw field value classified before any arithmetic touches it.
type Reading struct {
	raw     string
	missing bool
}

// Classify tags a raw field value as missing or present. Present values are
// not parsed until Float is called.
func Classify(raw string) Reading {
	return Reading{raw: raw, missing: IsSentinel(raw)}
}

// Raw returns the text as read.
func (r Reading) Raw() string { return r.raw }

// Missing reports whether the value is a sentinel.
func (r Reading) Missing() bool { return r.missing }

// Float parses the value. Calling it on a missing reading is an error.
func (r Reading) Float() (float64, error) {
	if r.missing {
		return 0, fmt.Errorf("parse %q: value is missing", r.raw)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(r.raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("parse %q: %w", r.raw, ErrMalformedNumeric)
	}
	return v, nil
}

// AnyMissing reports whether at least one reading is a sentinel.
func AnyMissing(readings ...Reading) bool {
	for _, r := range readings {
		if r.missing {
			return true
		}
	}
	return false
}

// parseAll parses every reading, failing on the first malformed one. Callers
// must check AnyMissing first so a record is never partially computed.
func parseAll(readings ...Reading) ([]float64, error) {
	out := make([]float64, len(readings))
	for i, r := range readings {
		v, err := r.Float()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
