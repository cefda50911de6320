package query

import (
	"strings"

	"github.com/kailas-cloud/moviedex/internal/domain"
)

// MovieTemplateID is the stored template for single-field movie matches.
const MovieTemplateID = "query-script"

// TemplateScript is a mustache search template to store under ID.
type TemplateScript struct {
	ID     string
	Source string
}

// Validate checks that the script can be registered.
func (t TemplateScript) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return domain.NewQueryError("template: id is required")
	}
	if strings.TrimSpace(t.Source) == "" {
		return domain.NewQueryError("template %q: source is required", t.ID)
	}
	return nil
}

// MovieTemplate matches {{value}} against the field named by {{field}}.
func MovieTemplate() TemplateScript {
	return TemplateScript{
		ID:     MovieTemplateID,
		Source: `{"query":{"match":{"{{field}}":"{{value}}"}}}`,
	}
}

// Template invokes a stored template with parameter bindings.
type Template struct {
	ID     string
	Params map[string]any
}

// Validate checks that the invocation names a template.
func (t Template) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return domain.NewQueryError("template: id is required")
	}
	return nil
}
