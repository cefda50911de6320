package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/kailas-cloud/moviedex/internal/db"
)

// IndexExists probes index existence with HEAD /{index}; 404 means absent.
func (s *Store) IndexExists(ctx context.Context, index string) (bool, error) {
	res, err := s.es.Indices.Exists([]string{index}, s.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return false, unavailable(db.OpIndexExists, err)
	}
	defer closeBody(res)

	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, decodeError(db.OpIndexExists, res)
	}
}

// CreateIndex creates an empty index; mappings are applied separately.
func (s *Store) CreateIndex(ctx context.Context, index string) error {
	res, err := s.es.Indices.Create(index, s.es.Indices.Create.WithContext(ctx))
	if err != nil {
		return unavailable(db.OpCreateIndex, err)
	}
	defer closeBody(res)
	if res.IsError() {
		return decodeError(db.OpCreateIndex, res)
	}
	return nil
}

// DeleteIndex removes an index with all its documents and mapping.
func (s *Store) DeleteIndex(ctx context.Context, index string) error {
	res, err := s.es.Indices.Delete([]string{index}, s.es.Indices.Delete.WithContext(ctx))
	if err != nil {
		return unavailable(db.OpDeleteIndex, err)
	}
	defer closeBody(res)
	if res.IsError() {
		e := decodeError(db.OpDeleteIndex, res)
		if res.StatusCode == http.StatusNotFound {
			return markIndexNotFound(e)
		}
		return e
	}
	return nil
}

// Refresh makes all operations performed since the last refresh searchable.
func (s *Store) Refresh(ctx context.Context, index string) error {
	res, err := s.es.Indices.Refresh(
		s.es.Indices.Refresh.WithIndex(index),
		s.es.Indices.Refresh.WithContext(ctx),
	)
	if err != nil {
		return unavailable(db.OpRefresh, err)
	}
	defer closeBody(res)
	if res.IsError() {
		e := decodeError(db.OpRefresh, res)
		if res.StatusCode == http.StatusNotFound {
			return markIndexNotFound(e)
		}
		return e
	}
	return nil
}

// GetMapping reads the live mapping of an index.
func (s *Store) GetMapping(ctx context.Context, index string) (*db.Mapping, error) {
	res, err := s.es.Indices.GetMapping(
		s.es.Indices.GetMapping.WithIndex(index),
		s.es.Indices.GetMapping.WithContext(ctx),
	)
	if err != nil {
		return nil, unavailable(db.OpGetMapping, err)
	}
	defer closeBody(res)
	if res.IsError() {
		e := decodeError(db.OpGetMapping, res)
		if res.StatusCode == http.StatusNotFound {
			return nil, markIndexNotFound(e)
		}
		return nil, e
	}

	// {"<index>": {"mappings": {"properties": {...}}}}; an alias resolves to one entry.
	var body map[string]struct {
		Mappings struct {
			Properties map[string]any `json:"properties"`
		} `json:"mappings"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, &db.Error{Op: db.OpGetMapping, Err: fmt.Errorf("decode response: %w", err)}
	}
	for _, entry := range body {
		m, err := db.ParseProperties(entry.Mappings.Properties)
		if err != nil {
			return nil, &db.Error{Op: db.OpGetMapping, Err: err}
		}
		return m, nil
	}
	return nil, &db.Error{Op: db.OpGetMapping, Status: res.StatusCode, Err: db.ErrIndexNotFound}
}

// PutMapping installs or extends the mapping of an existing index.
// The engine refuses type changes of mapped fields; those surface as ErrMappingConflict.
func (s *Store) PutMapping(ctx context.Context, index string, m *db.Mapping) error {
	body, err := json.Marshal(map[string]any{"properties": m.Properties()})
	if err != nil {
		return &db.Error{Op: db.OpPutMapping, Err: fmt.Errorf("encode mapping: %w", err)}
	}

	res, err := s.es.Indices.PutMapping(
		[]string{index}, bytes.NewReader(body),
		s.es.Indices.PutMapping.WithContext(ctx),
	)
	if err != nil {
		return unavailable(db.OpPutMapping, err)
	}
	defer closeBody(res)
	if res.IsError() {
		e := decodeError(db.OpPutMapping, res)
		switch {
		case res.StatusCode == http.StatusNotFound:
			e.Err = db.ErrIndexNotFound
		case e.Type == "illegal_argument_exception" || e.Type == "mapper_parsing_exception":
			e.Err = db.ErrMappingConflict
		}
		return e
	}
	return nil
}

// markIndexNotFound forces the sentinel on a 404 from an index-level API,
// where a bodyless 404 would otherwise classify as a missing document.
func markIndexNotFound(e *db.Error) *db.Error {
	e.Err = db.ErrIndexNotFound
	return e
}
