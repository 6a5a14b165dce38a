package models

import (
	"strings"

	"golang.org/x/text/cases"
)

// The folding Caser is stateless and safe for concurrent use.
var folder = cases.Fold()

// NormalizeName returns the key used for case-insensitive name uniqueness.
func NormalizeName(name string) string {
	return folder.String(strings.TrimSpace(name))
}
