package query

import (
	"strings"

	"github.com/kailas-cloud/moviedex/internal/domain"
)

// MaxBoolClauses mirrors the engine's default indices.query.bool.max_clause_count.
const MaxBoolClauses = 1024

// Node is one query DSL clause, e.g. {"match":{"title":{"query":"toy"}}}.
type Node map[string]any

// Build translates an intent into a query node.
// Invalid intents fail with *domain.QueryError.
func Build(in Intent) (Node, error) {
	switch q := in.(type) {
	case nil:
		return nil, domain.NewQueryError("query is required")
	case MatchAll:
		return Node{"match_all": map[string]any{}}, nil
	case Match:
		return fieldQuery("match", q.Field, q.Text, "text")
	case Phrase:
		return fieldQuery("match_phrase", q.Field, q.Text, "text")
	case PhrasePrefix:
		return fieldQuery("match_phrase_prefix", q.Field, q.Prefix, "prefix")
	case MultiMatch:
		return buildMultiMatch(q)
	case Intervals:
		return buildIntervals(q)
	case Range:
		return buildRange(q)
	case Term:
		if err := requireField("term", q.Field); err != nil {
			return nil, err
		}
		if q.Value == nil {
			return nil, domain.NewQueryError("term: value is required for field %q", q.Field)
		}
		return Node{"term": map[string]any{q.Field: map[string]any{"value": q.Value}}}, nil
	case Nested:
		return buildNested(q)
	case Bool:
		return buildBool(q)
	default:
		return nil, domain.NewQueryError("unsupported intent %T", in)
	}
}

func requireField(kind, field string) error {
	if strings.TrimSpace(field) == "" {
		return domain.NewQueryError("%s: field is required", kind)
	}
	return nil
}

func fieldQuery(kind, field, text, what string) (Node, error) {
	if err := requireField(kind, field); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, domain.NewQueryError("%s: %s is required for field %q", kind, what, field)
	}
	return Node{kind: map[string]any{field: map[string]any{"query": text}}}, nil
}

func buildMultiMatch(q MultiMatch) (Node, error) {
	if len(q.Fields) == 0 {
		return nil, domain.NewQueryError("multi_match: at least one field is required")
	}
	for _, f := range q.Fields {
		if err := requireField("multi_match", f); err != nil {
			return nil, err
		}
	}
	if strings.TrimSpace(q.Text) == "" {
		return nil, domain.NewQueryError("multi_match: text is required")
	}
	t := q.Type
	if t == "" {
		t = BestFields
	}
	if !t.IsValid() {
		return nil, domain.NewQueryError("multi_match: invalid type %q", t)
	}
	fields := make([]string, len(q.Fields))
	copy(fields, q.Fields)
	return Node{"multi_match": map[string]any{
		"query":  q.Text,
		"fields": fields,
		"type":   string(t),
	}}, nil
}

func buildIntervals(q Intervals) (Node, error) {
	if err := requireField("intervals", q.Field); err != nil {
		return nil, err
	}
	if strings.TrimSpace(q.Pattern) == "" {
		return nil, domain.NewQueryError("intervals: pattern is required for field %q", q.Field)
	}
	gaps := q.MaxGaps
	if gaps < 0 {
		gaps = -1
	}
	return Node{"intervals": map[string]any{
		q.Field: map[string]any{
			"match": map[string]any{
				"query":    q.Pattern,
				"max_gaps": gaps,
				"ordered":  q.Ordered,
			},
		},
	}}, nil
}

func buildRange(q Range) (Node, error) {
	if err := requireField("range", q.Field); err != nil {
		return nil, err
	}
	if !q.Comparator.IsValid() {
		return nil, domain.NewQueryError("range: unknown comparator %q", q.Comparator)
	}
	if q.Bound == nil {
		return nil, domain.NewQueryError("range: bound is required for field %q", q.Field)
	}
	return Node{"range": map[string]any{
		q.Field: map[string]any{string(q.Comparator): q.Bound},
	}}, nil
}

func buildNested(q Nested) (Node, error) {
	if err := requireField("nested", q.Path); err != nil {
		return nil, err
	}
	if q.Query == nil {
		return nil, domain.NewQueryError("nested: query is required for path %q", q.Path)
	}
	child, err := Build(q.Query)
	if err != nil {
		return nil, err
	}
	return Node{"nested": map[string]any{"path": q.Path, "query": child}}, nil
}

func buildBool(q Bool) (Node, error) {
	if len(q.Must) == 0 {
		return nil, domain.NewQueryError("bool: at least one must clause is required")
	}
	if len(q.Must) > MaxBoolClauses {
		return nil, domain.NewQueryError("bool: too many clauses (max %d)", MaxBoolClauses)
	}
	must := make([]Node, 0, len(q.Must))
	for i, c := range q.Must {
		if c == nil {
			return nil, domain.NewQueryError("bool: must[%d] is nil", i)
		}
		n, err := Build(c)
		if err != nil {
			return nil, err
		}
		must = append(must, n)
	}
	return Node{"bool": map[string]any{"must": must}}, nil
}
