package domain

import (
	"path/filepath"
	"regexp"
)

// UpdatedSuffix is spliced into derived-table paths to name their outputs.
const UpdatedSuffix = "_updated"

var extensionRe = regexp.MustCompile(`^(.+)(\.\w+)$`)

// UpdatedPath names the output written beside a derived table:
// "daily_derived.csv" -> "daily_derived_updated.csv". A name without an
// extension gets the suffix appended.
func UpdatedPath(path string) string {
	dir, base := filepath.Split(path)
	if m := extensionRe.FindStringSubmatch(base); m != nil {
		return dir + m[1] + UpdatedSuffix + m[2]
	}
	return path + UpdatedSuffix
}
