package dbtest

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/kailas-cloud/moviedex/internal/db"
)

// scope is the document a query clause runs against. Inside a nested clause
// doc is one sub-document and prefix is the nested path plus a dot.
// nested holds every nested-typed path of the index mapping.
type scope struct {
	doc    map[string]any
	prefix string
	nested map[string]bool
}

// nestedPaths collects the dotted paths of nested fields in m.
func nestedPaths(m *db.Mapping) map[string]bool {
	out := make(map[string]bool)
	if m == nil {
		return out
	}
	var walk func(prefix string, fields []db.MappingField)
	walk = func(prefix string, fields []db.MappingField) {
		for _, f := range fields {
			path := prefix + f.Name
			if f.Type == db.FieldNested {
				out[path] = true
			}
			walk(path+".", f.Properties)
		}
	}
	walk("", m.Fields)
	return out
}

// values resolves field against the scope document. Sub-documents of a
// nested path are only reachable from a nested clause on that path, so a
// field below a foreign nested path resolves to nothing.
func (s scope) values(field string) []any {
	if s.prefix != "" {
		field = strings.TrimPrefix(field, s.prefix)
	}
	parts := strings.Split(field, ".")
	full := strings.TrimSuffix(s.prefix, ".")
	cur := []any{s.doc}
	for i, part := range parts {
		if full == "" {
			full = part
		} else {
			full += "." + part
		}
		if i < len(parts)-1 && s.nested[full] {
			return nil
		}
		var next []any
		for _, c := range cur {
			m, ok := c.(map[string]any)
			if !ok {
				continue
			}
			switch v := m[part].(type) {
			case nil:
			case []any:
				next = append(next, v...)
			default:
				next = append(next, v)
			}
		}
		cur = next
	}
	return cur
}

func asDocs(v any) []map[string]any {
	switch t := v.(type) {
	case map[string]any:
		return []map[string]any{t}
	case []any:
		out := make([]map[string]any, 0, len(t))
		for _, e := range t {
			if m, ok := e.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

func tokens(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func eval(node map[string]any, s scope) (bool, error) {
	if len(node) != 1 {
		return false, fmt.Errorf("query clause must have exactly one key, got %d", len(node))
	}
	for kind, raw := range node {
		body, ok := raw.(map[string]any)
		if !ok {
			return false, fmt.Errorf("[%s] query malformed", kind)
		}
		switch kind {
		case "match_all":
			return true, nil
		case "match":
			return evalField(body, s, "query", matchAny)
		case "match_phrase":
			return evalField(body, s, "query", func(vals []any, q any) bool { return phrase(vals, q, false) })
		case "match_phrase_prefix":
			return evalField(body, s, "query", func(vals []any, q any) bool { return phrase(vals, q, true) })
		case "term":
			return evalField(body, s, "value", equalsAny)
		case "multi_match":
			return evalMultiMatch(body, s)
		case "intervals":
			return evalIntervals(body, s)
		case "range":
			return evalRange(body, s)
		case "bool":
			return evalBool(body, s)
		case "nested":
			return evalNested(body, s)
		default:
			return false, fmt.Errorf("unknown query [%s]", kind)
		}
	}
	return false, nil
}

// evalField handles the {field: {key: q}} and {field: q} shapes.
func evalField(body map[string]any, s scope, key string, pred func([]any, any) bool) (bool, error) {
	if len(body) != 1 {
		return false, fmt.Errorf("query must target exactly one field")
	}
	for field, spec := range body {
		q := spec
		if m, ok := spec.(map[string]any); ok {
			v, ok := m[key]
			if !ok {
				return false, fmt.Errorf("[%s] is required for field [%s]", key, field)
			}
			q = v
		}
		return pred(s.values(field), q), nil
	}
	return false, nil
}

func matchAny(vals []any, q any) bool {
	qs, ok := q.(string)
	if !ok {
		return equalsAny(vals, q)
	}
	want := tokens(qs)
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			if equalsAny([]any{v}, q) {
				return true
			}
			continue
		}
		for _, have := range tokens(str) {
			for _, w := range want {
				if have == w {
					return true
				}
			}
		}
	}
	return false
}

func phrase(vals []any, q any, prefixLast bool) bool {
	qs, ok := q.(string)
	if !ok {
		return false
	}
	want := tokens(qs)
	if len(want) == 0 {
		return false
	}
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		have := tokens(str)
		for start := 0; start+len(want) <= len(have); start++ {
			if phraseAt(have[start:], want, prefixLast) {
				return true
			}
		}
	}
	return false
}

func phraseAt(have, want []string, prefixLast bool) bool {
	for i, w := range want {
		if prefixLast && i == len(want)-1 {
			return strings.HasPrefix(have[i], w)
		}
		if have[i] != w {
			return false
		}
	}
	return true
}

func equalsAny(vals []any, q any) bool {
	for _, v := range vals {
		if a, ok := number(v); ok {
			if b, ok := number(q); ok && a == b {
				return true
			}
			continue
		}
		if fmt.Sprint(v) == fmt.Sprint(q) {
			return true
		}
	}
	return false
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

func evalMultiMatch(body map[string]any, s scope) (bool, error) {
	q, _ := body["query"].(string)
	rawFields, _ := body["fields"].([]any)
	if len(rawFields) == 0 {
		return false, fmt.Errorf("[multi_match] requires fields")
	}
	typ, _ := body["type"].(string)
	for _, rf := range rawFields {
		field, _ := rf.(string)
		vals := s.values(field)
		var ok bool
		switch typ {
		case "phrase":
			ok = phrase(vals, q, false)
		case "phrase_prefix":
			ok = phrase(vals, q, true)
		default:
			ok = matchAny(vals, q)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func evalIntervals(body map[string]any, s scope) (bool, error) {
	if len(body) != 1 {
		return false, fmt.Errorf("[intervals] must target exactly one field")
	}
	for field, spec := range body {
		rule, _ := spec.(map[string]any)
		m, ok := rule["match"].(map[string]any)
		if !ok {
			return false, fmt.Errorf("[intervals] only the match rule is supported")
		}
		q, _ := m["query"].(string)
		maxGaps := -1
		if g, ok := number(m["max_gaps"]); ok {
			maxGaps = int(g)
		}
		ordered, _ := m["ordered"].(bool)
		want := tokens(q)
		if len(want) == 0 {
			return false, nil
		}
		for _, v := range s.values(field) {
			str, ok := v.(string)
			if ok && intervalMatch(tokens(str), want, maxGaps, ordered) {
				return true, nil
			}
		}
	}
	return false, nil
}

// intervalMatch reports whether every term of want occurs at a distinct
// position of have with at most maxGaps unmatched positions in the span.
func intervalMatch(have, want []string, maxGaps int, ordered bool) bool {
	used := make([]bool, len(have))
	var try func(i, lo, minPos, maxPos int) bool
	try = func(i, lo, minPos, maxPos int) bool {
		if i == len(want) {
			return maxGaps < 0 || (maxPos-minPos+1)-len(want) <= maxGaps
		}
		for p := lo; p < len(have); p++ {
			if used[p] || have[p] != want[i] {
				continue
			}
			used[p] = true
			next := 0
			if ordered {
				next = p + 1
			}
			if try(i+1, next, min(minPos, p), max(maxPos, p)) {
				return true
			}
			used[p] = false
		}
		return false
	}
	return try(0, 0, len(have), -1)
}

func evalRange(body map[string]any, s scope) (bool, error) {
	if len(body) != 1 {
		return false, fmt.Errorf("[range] must target exactly one field")
	}
	for field, spec := range body {
		bounds, ok := spec.(map[string]any)
		if !ok || len(bounds) == 0 {
			return false, fmt.Errorf("[range] requires bounds for field [%s]", field)
		}
		for _, v := range s.values(field) {
			n, ok := number(v)
			if ok && inRange(n, bounds) {
				return true, nil
			}
		}
	}
	return false, nil
}

func inRange(n float64, bounds map[string]any) bool {
	for op, raw := range bounds {
		b, ok := number(raw)
		if !ok {
			return false
		}
		switch op {
		case "gt":
			if n <= b {
				return false
			}
		case "gte":
			if n < b {
				return false
			}
		case "lt":
			if n >= b {
				return false
			}
		case "lte":
			if n > b {
				return false
			}
		}
	}
	return true
}

func evalBool(body map[string]any, s scope) (bool, error) {
	for _, key := range []string{"must", "filter"} {
		clauses, _ := body[key].([]any)
		for _, c := range clauses {
			node, ok := c.(map[string]any)
			if !ok {
				return false, fmt.Errorf("[bool] clause malformed")
			}
			matched, err := eval(node, s)
			if err != nil || !matched {
				return false, err
			}
		}
	}
	return true, nil
}

func evalNested(body map[string]any, s scope) (bool, error) {
	path, _ := body["path"].(string)
	q, ok := body["query"].(map[string]any)
	if path == "" || !ok {
		return false, fmt.Errorf("[nested] requires path and query")
	}
	if !s.nested[path] {
		return false, fmt.Errorf("[nested] failed to find nested object under path [%s]", path)
	}
	for _, sub := range s.values(path) {
		doc, ok := sub.(map[string]any)
		if !ok {
			continue
		}
		matched, err := eval(q, scope{doc: doc, prefix: path + ".", nested: s.nested})
		if err != nil || matched {
			return matched, err
		}
	}
	return false, nil
}
