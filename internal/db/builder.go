package db

// MappingBuilder is a fluent builder for index mappings.
type MappingBuilder struct {
	fields []MappingField
}

// NewMapping starts building a mapping.
func NewMapping() *MappingBuilder {
	return &MappingBuilder{}
}

// Long adds a long field.
func (b *MappingBuilder) Long(name string) *MappingBuilder {
	return b.add(name, FieldLong)
}

// Double adds a double field.
func (b *MappingBuilder) Double(name string) *MappingBuilder {
	return b.add(name, FieldDouble)
}

// Text adds an analyzed text field.
func (b *MappingBuilder) Text(name string) *MappingBuilder {
	return b.add(name, FieldText)
}

// Keyword adds an exact-match keyword field.
func (b *MappingBuilder) Keyword(name string) *MappingBuilder {
	return b.add(name, FieldKeyword)
}

// Nested adds a nested field whose sub-fields are declared by fn.
func (b *MappingBuilder) Nested(name string, fn func(*MappingBuilder)) *MappingBuilder {
	sub := NewMapping()
	fn(sub)
	b.fields = append(b.fields, MappingField{
		Name:       name,
		Type:       FieldNested,
		Properties: sub.fields,
	})
	return b
}

func (b *MappingBuilder) add(name string, t FieldType) *MappingBuilder {
	b.fields = append(b.fields, MappingField{Name: name, Type: t})
	return b
}

// Build validates and returns the mapping.
func (b *MappingBuilder) Build() (*Mapping, error) {
	m := &Mapping{Fields: b.fields}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// MustBuild calls Build and panics on error.
func (b *MappingBuilder) MustBuild() *Mapping {
	m, err := b.Build()
	if err != nil {
		panic(err)
	}
	return m
}
