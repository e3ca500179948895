package entities

import "fmt"

// Substance is an active ingredient grouping listed under a Letter.
type Substance struct {
	Name      string `json:"name"`
	SourceURL string `json:"substance_url"`
	LetterID  string `json:"-"`
}

// NewSubstance normalises the fields and rejects a substance without a name.
func NewSubstance(name, sourceURL, letterID string) (Substance, error) {
	name = NormalizeWhitespace(name)
	if name == "" {
		return Substance{}, fmt.Errorf("%w: substance without name (url %q)", ErrInvalidRecord, sourceURL)
	}
	return Substance{
		Name:      name,
		SourceURL: NormalizeWhitespace(sourceURL),
		LetterID:  letterID,
	}, nil
}

// Key is the sibling identity of the substance within its letter.
func (s Substance) Key() string {
	return NormalizeKey(s.Name)
}
