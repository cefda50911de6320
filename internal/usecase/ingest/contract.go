package ingest

import (
	"context"

	"github.com/kailas-cloud/moviedex/internal/db"
)

// BulkWriter sends many index actions in one round trip.
type BulkWriter interface {
	Bulk(ctx context.Context, index string, ops []db.BulkOp) (*db.BulkResult, error)
}
