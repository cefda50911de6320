package index

import (
	"context"

	"github.com/kailas-cloud/moviedex/internal/db"
)

// Engine is the index-management surface of the search engine.
type Engine interface {
	IndexExists(ctx context.Context, index string) (bool, error)
	CreateIndex(ctx context.Context, index string) error
	DeleteIndex(ctx context.Context, index string) error
	Refresh(ctx context.Context, index string) error
	GetMapping(ctx context.Context, index string) (*db.Mapping, error)
	PutMapping(ctx context.Context, index string, m *db.Mapping) error
}
