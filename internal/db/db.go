package db

import (
	"context"
	"time"
)

// Engine is the search-engine facade combining all sub-interfaces.
//
//nolint:interfacebloat // consumers depend on the narrow sub-interfaces
type Engine interface {
	Pinger
	IndexManager
	MappingManager
	BulkWriter
	ScriptedUpdater
	ScriptStore
	Searcher
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks engine connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// IndexManager provides index lifecycle operations.
type IndexManager interface {
	IndexExists(ctx context.Context, index string) (bool, error)
	CreateIndex(ctx context.Context, index string) error
	DeleteIndex(ctx context.Context, index string) error
	Refresh(ctx context.Context, index string) error
}

// MappingManager reads and extends index mappings.
type MappingManager interface {
	GetMapping(ctx context.Context, index string) (*Mapping, error)
	PutMapping(ctx context.Context, index string, m *Mapping) error
}

// BulkWriter sends many document writes in one round trip.
type BulkWriter interface {
	Bulk(ctx context.Context, index string, ops []BulkOp) (*BulkResult, error)
}

// ScriptedUpdater mutates one document in place with a server-side script.
type ScriptedUpdater interface {
	UpdateByScript(ctx context.Context, req *UpdateRequest) error
}

// ScriptStore registers named scripts (painless mutations, mustache templates).
type ScriptStore interface {
	PutScript(ctx context.Context, id string, s Script) error
}

// Searcher runs query-DSL and stored-template searches.
type Searcher interface {
	Search(ctx context.Context, index string, body []byte) (*SearchResult, error)
	SearchTemplate(ctx context.Context, index string, req *TemplateRequest) (*SearchResult, error)
}

// KV is a plain key-value store used for pipeline bookkeeping.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value; ttl 0 means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}
