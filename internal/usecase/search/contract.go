package search

import (
	"context"

	"github.com/kailas-cloud/moviedex/internal/db"
)

// Engine runs searches and stores search templates.
type Engine interface {
	Search(ctx context.Context, index string, body []byte) (*db.SearchResult, error)
	SearchTemplate(ctx context.Context, index string, req *db.TemplateRequest) (*db.SearchResult, error)
	PutScript(ctx context.Context, id string, s db.Script) error
}
