package update

import (
	"context"

	"github.com/kailas-cloud/moviedex/internal/db"
	"github.com/kailas-cloud/moviedex/internal/repository/checkpoint"
)

// Engine stores the append script and runs it against documents.
type Engine interface {
	PutScript(ctx context.Context, id string, s db.Script) error
	UpdateByScript(ctx context.Context, req *db.UpdateRequest) error
}

var _ CheckpointStore = checkpoint.Nop{}

// CheckpointStore persists stream progress between runs.
type CheckpointStore interface {
	Load(ctx context.Context, index, stream string) (checkpoint.Cursor, error)
	Save(ctx context.Context, index string, c checkpoint.Cursor) error
	Reset(ctx context.Context, index, stream string) error
}
