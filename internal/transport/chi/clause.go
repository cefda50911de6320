package chi

import (
	"github.com/kailas-cloud/moviedex/internal/domain"
	"github.com/kailas-cloud/moviedex/internal/domain/search/query"
	searchuc "github.com/kailas-cloud/moviedex/internal/usecase/search"
)

// Clause types accepted by the search endpoints.
const (
	clauseMatch      = "match"
	clausePhrase     = "phrase"
	clausePrefix     = "prefix"
	clauseIntervals  = "intervals"
	clauseMultiMatch = "multi_match"
	clauseTerm       = "term"
	clauseRange      = "range"
	clauseNested     = "nested"
)

// intentsFromClauses maps request clauses to query intents. A range clause
// with several bounds expands to one intent per bound.
func intentsFromClauses(cs []Clause) ([]query.Intent, error) {
	out := make([]query.Intent, 0, len(cs))
	for _, c := range cs {
		in, err := intentsFromClause(c)
		if err != nil {
			return nil, err
		}
		out = append(out, in...)
	}
	return out, nil
}

func intentsFromClause(c Clause) ([]query.Intent, error) {
	switch c.Type {
	case clauseMatch:
		return one(query.Match{Field: c.Field, Text: c.Text})
	case clausePhrase:
		return one(query.Phrase{Field: c.Field, Text: c.Text})
	case clausePrefix:
		return one(query.PhrasePrefix{Field: c.Field, Prefix: c.Text})
	case clauseIntervals:
		gaps := searchuc.DefaultIntervalGaps
		if c.MaxGaps != nil {
			gaps = *c.MaxGaps
		}
		ordered := true
		if c.Ordered != nil {
			ordered = *c.Ordered
		}
		return one(query.Intervals{Field: c.Field, Pattern: c.Text, MaxGaps: gaps, Ordered: ordered})
	case clauseMultiMatch:
		typ := query.BestFields
		if c.Mode != "" {
			typ = query.MultiMatchType(c.Mode)
		}
		return one(query.MultiMatch{Fields: c.Fields, Text: c.Text, Type: typ})
	case clauseTerm:
		return one(query.Term{Field: c.Field, Value: c.Value})
	case clauseRange:
		return rangeIntents(c)
	case clauseNested:
		must, err := intentsFromClauses(c.Must)
		if err != nil {
			return nil, err
		}
		return one(query.Nested{Path: c.Path, Query: query.Bool{Must: must}})
	case "":
		return nil, domain.NewQueryError("clause type is required")
	default:
		return nil, domain.NewQueryError("unknown clause type %q", c.Type)
	}
}

func rangeIntents(c Clause) ([]query.Intent, error) {
	bounds := []struct {
		cmp query.Comparator
		v   *float64
	}{
		{query.GT, c.Gt}, {query.GTE, c.Gte}, {query.LT, c.Lt}, {query.LTE, c.Lte},
	}
	var out []query.Intent
	for _, b := range bounds {
		if b.v != nil {
			out = append(out, query.Range{Field: c.Field, Comparator: b.cmp, Bound: *b.v})
		}
	}
	if len(out) == 0 {
		return nil, domain.NewQueryError("range on %q: at least one of gt, gte, lt, lte is required", c.Field)
	}
	return out, nil
}

func one(in query.Intent) ([]query.Intent, error) { return []query.Intent{in}, nil }
