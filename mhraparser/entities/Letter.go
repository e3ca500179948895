package entities

import (
	"fmt"
	"slices"
	"strings"
)

// Letters is the fixed enumeration of the substance index, in traversal order.
var Letters = []string{
	"A", "B", "C", "D", "E", "F", "G", "H", "I", "J", "K", "L", "M",
	"N", "O", "P", "Q", "R", "S", "T", "U", "V", "W", "X", "Y", "Z",
	"0", "1", "2", "3", "4", "5", "6", "7", "8", "9",
}

// Letter is one node of the alphabetical substance index.
type Letter struct {
	ID string `json:"letter"`
}

// IsKnownLetter reports whether id belongs to the index enumeration.
func IsKnownLetter(id string) bool {
	return slices.Contains(Letters, strings.ToUpper(strings.TrimSpace(id)))
}

// NewLetter validates id against the enumeration.
func NewLetter(id string) (Letter, error) {
	id = strings.ToUpper(strings.TrimSpace(id))
	if !slices.Contains(Letters, id) {
		return Letter{}, fmt.Errorf("%w: unknown letter %q", ErrInvalidRecord, id)
	}
	return Letter{ID: id}, nil
}
