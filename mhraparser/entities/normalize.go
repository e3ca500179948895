// Package entities holds the catalog records extracted from the MHRA products site
// and the validated constructors used to build them.
package entities

import (
	"errors"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// ErrInvalidRecord is returned by the constructors when a record is structurally unusable.
var ErrInvalidRecord = errors.New("invalid record")

var whitespaceRegex = regexp.MustCompile(`\s+`)

// NormalizeWhitespace collapses runs of whitespace and trims the result.
func NormalizeWhitespace(value string) string {
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(value, " "))
}

// NormalizeKey returns the comparison form of a name: NFKC, case folded, whitespace collapsed.
func NormalizeKey(value string) string {
	value = norm.NFKC.String(value)
	value = cases.Fold().String(value)
	return NormalizeWhitespace(value)
}
