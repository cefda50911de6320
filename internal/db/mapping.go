package db

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// FieldType is an Elasticsearch field datatype.
type FieldType string

const (
	// FieldLong is a signed 64-bit integer.
	FieldLong FieldType = "long"
	// FieldDouble is a double-precision float.
	FieldDouble FieldType = "double"
	// FieldText is analyzed full text.
	FieldText FieldType = "text"
	// FieldKeyword is an exact-match token.
	FieldKeyword FieldType = "keyword"
	// FieldNested is an array of sub-documents indexed as separate hidden documents.
	FieldNested FieldType = "nested"
	// FieldObject is a flattened sub-document. Listed so live mappings can be read back.
	FieldObject FieldType = "object"
)

// HasProperties reports whether the type carries its own sub-field mapping.
func (t FieldType) HasProperties() bool { return t == FieldNested || t == FieldObject }

// MappingField describes one field; Properties is only set for nested/object fields.
type MappingField struct {
	Name       string
	Type       FieldType
	Properties []MappingField
}

// Mapping is an ordered set of top-level fields.
type Mapping struct {
	Fields []MappingField
}

// Validate checks that the mapping is well-formed.
func (m *Mapping) Validate() error {
	if len(m.Fields) == 0 {
		return errors.New("at least one field is required")
	}
	return validateFields(m.Fields, "")
}

func validateFields(fields []MappingField, prefix string) error {
	seen := make(map[string]bool, len(fields))
	for i := range fields {
		f := &fields[i]
		if f.Name == "" {
			return fmt.Errorf("field name is required at %s[%d]", pathOrRoot(prefix), i)
		}
		if strings.Contains(f.Name, ".") {
			return fmt.Errorf("field name %q must not contain dots", prefix+f.Name)
		}
		if seen[f.Name] {
			return fmt.Errorf("duplicate field name: %s", prefix+f.Name)
		}
		seen[f.Name] = true

		switch f.Type {
		case FieldLong, FieldDouble, FieldText, FieldKeyword:
			if len(f.Properties) > 0 {
				return fmt.Errorf("field %s of type %s cannot have properties", prefix+f.Name, f.Type)
			}
		case FieldNested, FieldObject:
			if len(f.Properties) == 0 {
				return fmt.Errorf("%s field %s requires properties", f.Type, prefix+f.Name)
			}
			if err := validateFields(f.Properties, prefix+f.Name+"."); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown type %q for field %s", f.Type, prefix+f.Name)
		}
	}
	return nil
}

func pathOrRoot(prefix string) string {
	if prefix == "" {
		return "root"
	}
	return strings.TrimSuffix(prefix, ".")
}

// Lookup finds a field by dotted path (e.g. "ratings.userId").
func (m *Mapping) Lookup(path string) (MappingField, bool) {
	fields := m.Fields
	parts := strings.Split(path, ".")
	for i, p := range parts {
		var found *MappingField
		for j := range fields {
			if fields[j].Name == p {
				found = &fields[j]
				break
			}
		}
		if found == nil {
			return MappingField{}, false
		}
		if i == len(parts)-1 {
			return *found, true
		}
		fields = found.Properties
	}
	return MappingField{}, false
}

// FieldConflict is a field whose live type differs from the requested one.
type FieldConflict struct {
	Field string
	Have  FieldType
	Want  FieldType
}

// Conflicts lists fields of m that already exist in live with a different type.
// Fields missing from live are extensions, not conflicts.
func (m *Mapping) Conflicts(live *Mapping) []FieldConflict {
	if live == nil {
		return nil
	}
	var out []FieldConflict
	collectConflicts(m.Fields, live, "", &out)
	return out
}

func collectConflicts(fields []MappingField, live *Mapping, prefix string, out *[]FieldConflict) {
	for i := range fields {
		f := &fields[i]
		path := prefix + f.Name
		have, ok := live.Lookup(path)
		if !ok {
			continue
		}
		if have.Type != f.Type {
			*out = append(*out, FieldConflict{Field: path, Have: have.Type, Want: f.Type})
			continue
		}
		if f.Type.HasProperties() {
			collectConflicts(f.Properties, live, path+".", out)
		}
	}
}

// Properties renders the mapping as an Elasticsearch "properties" object.
func (m *Mapping) Properties() map[string]any {
	return renderProperties(m.Fields)
}

func renderProperties(fields []MappingField) map[string]any {
	props := make(map[string]any, len(fields))
	for i := range fields {
		f := &fields[i]
		def := map[string]any{"type": string(f.Type)}
		if f.Type.HasProperties() {
			def["properties"] = renderProperties(f.Properties)
		}
		props[f.Name] = def
	}
	return props
}

// ParseProperties builds a Mapping from an Elasticsearch "properties" object.
// A definition without "type" but with "properties" is an object field.
// Fields are sorted by name since JSON objects carry no order.
func ParseProperties(props map[string]any) (*Mapping, error) {
	fields, err := parseFields(props, "")
	if err != nil {
		return nil, err
	}
	return &Mapping{Fields: fields}, nil
}

func parseFields(props map[string]any, prefix string) ([]MappingField, error) {
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]MappingField, 0, len(names))
	for _, name := range names {
		def, ok := props[name].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field %s: definition is not an object", prefix+name)
		}
		f := MappingField{Name: name}
		if t, ok := def["type"].(string); ok {
			f.Type = FieldType(t)
		}
		if sub, ok := def["properties"].(map[string]any); ok {
			if f.Type == "" {
				f.Type = FieldObject
			}
			children, err := parseFields(sub, prefix+name+".")
			if err != nil {
				return nil, err
			}
			f.Properties = children
		}
		fields = append(fields, f)
	}
	return fields, nil
}

// IsValidIndexName reports whether s is usable as an Elasticsearch index name:
// lowercase, no reserved characters, not starting with -, _ or +, not "." or "..".
func IsValidIndexName(s string) bool {
	if s == "" || s == "." || s == ".." || len(s) > 255 {
		return false
	}
	switch s[0] {
	case '-', '_', '+':
		return false
	}
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			return false
		}
		if strings.ContainsRune(`\/*?"<>| ,#:`, r) {
			return false
		}
	}
	return true
}
