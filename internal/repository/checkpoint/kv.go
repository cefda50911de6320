package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/moviedex/internal/db"
)

// kv is the consumer interface for key-value persistence (ISP).
type kv interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// KVStore keeps cursors as JSON values under <prefix>checkpoint:<index>:<stream>.
type KVStore struct {
	store  kv
	prefix string
	ttl    time.Duration
}

// NewKVStore creates a key-value backed store. ttl 0 keeps cursors forever.
func NewKVStore(s kv, prefix string, ttl time.Duration) *KVStore {
	return &KVStore{store: s, prefix: prefix, ttl: ttl}
}

func (s *KVStore) key(index, stream string) string {
	return s.prefix + "checkpoint:" + index + ":" + stream
}

// Load reads the cursor of a stream.
func (s *KVStore) Load(ctx context.Context, index, stream string) (Cursor, error) {
	data, err := s.store.Get(ctx, s.key(index, stream))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return Cursor{Stream: stream}, nil
		}
		return Cursor{}, fmt.Errorf("load checkpoint %s/%s: %w", index, stream, err)
	}
	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return Cursor{}, fmt.Errorf("decode checkpoint %s/%s: %w", index, stream, err)
	}
	c.Stream = stream
	return c, nil
}

// Save writes the cursor, stamping UpdatedAt.
func (s *KVStore) Save(ctx context.Context, index string, c Cursor) error {
	c.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	if err := s.store.Set(ctx, s.key(index, c.Stream), data, s.ttl); err != nil {
		return fmt.Errorf("save checkpoint %s/%s: %w", index, c.Stream, err)
	}
	return nil
}

// Reset forgets the cursor of a stream.
func (s *KVStore) Reset(ctx context.Context, index, stream string) error {
	if err := s.store.Del(ctx, s.key(index, stream)); err != nil {
		return fmt.Errorf("reset checkpoint %s/%s: %w", index, stream, err)
	}
	return nil
}
