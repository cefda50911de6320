// Package redis implements db.KV on Redis or Valkey through rueidis.
package redis

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/moviedex/internal/db"
)

var _ db.KV = (*Store)(nil)

// Default connection settings.
const (
	DefaultClientName  = "moviedex"
	DefaultDialTimeout = 5 * time.Second
)

// Config holds connection parameters for a Redis store.
type Config struct {
	Addrs       []string
	Username    string
	Password    string
	DB          int
	DialTimeout time.Duration
}

// Store is a rueidis-backed key-value store for small bookkeeping values.
// Server-side client caching is off: every read goes to the server.
type Store struct {
	client rueidis.Client
}

// NewStore connects to the first reachable address of cfg.Addrs.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		ClientName:   DefaultClientName,
		Dialer:       net.Dialer{Timeout: cfg.DialTimeout},
		DisableCache: true,
	})
	if err != nil {
		return nil, unavailable(db.OpPing, err)
	}
	return newWithClient(client), nil
}

func newWithClient(c rueidis.Client) *Store {
	return &Store{client: c}
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Do(ctx, s.client.B().Ping().Build()).Error(); err != nil {
		return classify(db.OpPing, err)
	}
	return nil
}

// WaitForReady polls Ping until the server answers or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		if err := s.Ping(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for redis: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// Close shuts down the client.
func (s *Store) Close() {
	s.client.Close()
}

// Get returns the value at key, or db.ErrKeyNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Do(ctx, s.client.B().Get().Key(key).Build()).AsBytes()
	switch {
	case err == nil:
		return data, nil
	case rueidis.IsRedisNil(err):
		return nil, db.ErrKeyNotFound
	default:
		return nil, classify(db.OpGet, err)
	}
}

// Set stores value at key. A positive ttl sets an expiry in whole seconds;
// anything under a second is raised to one since EX 0 is rejected.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	set := s.client.B().Set().Key(key).Value(rueidis.BinaryString(value))
	var cmd rueidis.Completed
	if ttl > 0 {
		cmd = set.Ex(max(ttl, time.Second)).Build()
	} else {
		cmd = set.Build()
	}
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return classify(db.OpSet, err)
	}
	return nil
}

// Del removes key. Deleting a missing key is not an error.
func (s *Store) Del(ctx context.Context, key string) error {
	if err := s.client.Do(ctx, s.client.B().Del().Key(key).Build()).Error(); err != nil {
		return classify(db.OpDel, err)
	}
	return nil
}

// classify keeps server replies such as READONLY as plain db errors and
// reports everything else (dial, timeout, closed client) as unavailable.
func classify(op string, err error) error {
	if re, ok := rueidis.IsRedisErr(err); ok {
		return &db.Error{Op: op, Reason: re.Error(), Err: err}
	}
	return unavailable(op, err)
}

func unavailable(op string, err error) error {
	return &db.Error{Op: op, Err: fmt.Errorf("%w: %w", db.ErrUnavailable, err)}
}
