package entities

// Level identifies a depth in the catalog hierarchy.
type Level string

const (
	LevelLetter    Level = "letter"
	LevelSubstance Level = "substance"
	LevelProduct   Level = "product"
	LevelDocument  Level = "document"
)

func (l Level) String() string {
	return string(l)
}
