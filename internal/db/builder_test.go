package db

import (
	"strings"
	"testing"
)

func TestMappingBuilder_Simple(t *testing.T) {
	m := NewMapping().
		Long("movieId").
		Text("title").
		Keyword("genres").
		MustBuild()

	if len(m.Fields) != 3 {
		t.Fatalf("fields count = %d, want 3", len(m.Fields))
	}
	if m.Fields[0].Name != "movieId" || m.Fields[0].Type != FieldLong {
		t.Errorf("field[0] = %+v, want movieId long", m.Fields[0])
	}
	if m.Fields[1].Type != FieldText {
		t.Errorf("field[1] type = %q, want text", m.Fields[1].Type)
	}
	if m.Fields[2].Type != FieldKeyword {
		t.Errorf("field[2] type = %q, want keyword", m.Fields[2].Type)
	}
}

func TestMappingBuilder_Nested(t *testing.T) {
	m := NewMapping().
		Long("movieId").
		Nested("ratings", func(b *MappingBuilder) {
			b.Long("userId").Double("rating")
		}).
		MustBuild()

	f, ok := m.Lookup("ratings")
	if !ok {
		t.Fatal("ratings not found")
	}
	if f.Type != FieldNested {
		t.Errorf("ratings type = %q, want nested", f.Type)
	}
	sub, ok := m.Lookup("ratings.rating")
	if !ok || sub.Type != FieldDouble {
		t.Errorf("ratings.rating = %+v, %v", sub, ok)
	}
}

func TestMappingBuilder_EmptyNestedFails(t *testing.T) {
	_, err := NewMapping().Nested("ratings", func(*MappingBuilder) {}).Build()
	if err == nil {
		t.Fatal("expected error for nested field without properties")
	}
	if !strings.Contains(err.Error(), "requires properties") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestMappingBuilder_MustBuildPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for empty mapping")
		}
	}()
	NewMapping().MustBuild()
}

func TestMovieMapping(t *testing.T) {
	m := MovieMapping()
	for path, want := range map[string]FieldType{
		"movieId":        FieldLong,
		"title":          FieldText,
		"genres":         FieldKeyword,
		"ratings":        FieldNested,
		"ratings.userId": FieldLong,
		"ratings.rating": FieldDouble,
		"tags":           FieldNested,
		"tags.tag":       FieldKeyword,
	} {
		f, ok := m.Lookup(path)
		if !ok {
			t.Errorf("%s missing", path)
			continue
		}
		if f.Type != want {
			t.Errorf("%s: type = %s, want %s", path, f.Type, want)
		}
	}
}
