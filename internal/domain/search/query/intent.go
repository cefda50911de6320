// Package query turns typed search intents into Elasticsearch query DSL.
//
// Intents are plain structs passed by value; Build is pure and never talks to
// the engine. Field names are not checked against the index mapping.
package query

// Intent is one search intent. The set is closed: only types of this package
// implement it.
type Intent interface {
	intent()
}

// MatchAll matches every document.
type MatchAll struct{}

// Match is an analyzed full-text match on one field.
type Match struct {
	Field string
	Text  string
}

// Phrase matches the analyzed tokens of Text as a contiguous sequence.
type Phrase struct {
	Field string
	Text  string
}

// PhrasePrefix is a phrase match whose final token is matched as a prefix.
type PhrasePrefix struct {
	Field  string
	Prefix string
}

// MultiMatchType selects how per-field scores are combined.
type MultiMatchType string

// Multi-match strategies.
const (
	// BestFields scores each field on its own and keeps the best one.
	BestFields   MultiMatchType = "best_fields"
	MostFields   MultiMatchType = "most_fields"
	CrossFields  MultiMatchType = "cross_fields"
	PhraseFields MultiMatchType = "phrase"
	PrefixFields MultiMatchType = "phrase_prefix"
)

// IsValid checks if the type is one of the supported values.
func (t MultiMatchType) IsValid() bool {
	switch t {
	case BestFields, MostFields, CrossFields, PhraseFields, PrefixFields:
		return true
	}
	return false
}

// MultiMatch runs one text against several fields. Empty Type means BestFields.
type MultiMatch struct {
	Fields []string
	Text   string
	Type   MultiMatchType
}

// Intervals matches the tokens of Pattern within MaxGaps positions of each
// other. A negative MaxGaps means unbounded.
type Intervals struct {
	Field   string
	Pattern string
	MaxGaps int
	Ordered bool
}

// Comparator is a range operator.
type Comparator string

// Range comparators.
const (
	LT  Comparator = "lt"
	LTE Comparator = "lte"
	GT  Comparator = "gt"
	GTE Comparator = "gte"
)

// IsValid checks if the comparator is one of the supported values.
func (c Comparator) IsValid() bool {
	return c == LT || c == LTE || c == GT || c == GTE
}

// Range compares a numeric or date field with Bound.
type Range struct {
	Field      string
	Comparator Comparator
	Bound      any
}

// Term is an exact, non-analyzed match on a keyword or numeric field.
type Term struct {
	Field string
	Value any
}

// Nested runs Query against each sub-document under Path independently, so
// all conditions of Query must hold within one sub-document.
type Nested struct {
	Path  string
	Query Intent
}

// Bool requires every clause of Must to match.
type Bool struct {
	Must []Intent
}

func (MatchAll) intent()     {}
func (Match) intent()        {}
func (Phrase) intent()       {}
func (PhrasePrefix) intent() {}
func (MultiMatch) intent()   {}
func (Intervals) intent()    {}
func (Range) intent()        {}
func (Term) intent()         {}
func (Nested) intent()       {}
func (Bool) intent()         {}
