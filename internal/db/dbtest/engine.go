// Package dbtest provides an in-memory db.Engine for use-case tests.
//
// It keeps documents as decoded JSON and evaluates the subset of the query
// DSL the query builder emits: match_all, match, match_phrase,
// match_phrase_prefix, multi_match, intervals, term, range, bool.must and
// nested. Stored painless scripts are interpreted with the append contract
// (params.field, params.item); mustache templates by plain substitution.
package dbtest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/kailas-cloud/moviedex/internal/db"
)

var _ db.Engine = (*Engine)(nil)

type index struct {
	mapping *db.Mapping
	ids     []string
	docs    map[string]map[string]any
}

// Engine is a goroutine-safe in-memory search engine.
type Engine struct {
	mu      sync.Mutex
	indexes map[string]*index
	scripts map[string]db.Script
	fail    map[string]error
	calls   map[string]int
}

// New creates an empty engine.
func New() *Engine {
	return &Engine{
		indexes: make(map[string]*index),
		scripts: make(map[string]db.Script),
		fail:    make(map[string]error),
		calls:   make(map[string]int),
	}
}

// FailNext makes the next call of op (a db.Op* constant) return err.
func (e *Engine) FailNext(op string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fail[op] = err
}

// Calls returns how many times op was invoked.
func (e *Engine) Calls(op string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[op]
}

// Document returns a stored document by id.
func (e *Engine) Document(indexName, id string) (map[string]any, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx, ok := e.indexes[indexName]
	if !ok {
		return nil, false
	}
	doc, ok := idx.docs[id]
	return doc, ok
}

// Count returns the number of documents in an index.
func (e *Engine) Count(indexName string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if idx, ok := e.indexes[indexName]; ok {
		return len(idx.ids)
	}
	return 0
}

// Script returns a stored script by id.
func (e *Engine) Script(id string) (db.Script, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.scripts[id]
	return s, ok
}

// enter records the call and returns an injected failure; caller holds mu.
func (e *Engine) enter(op string) error {
	e.calls[op]++
	if err, ok := e.fail[op]; ok {
		delete(e.fail, op)
		return err
	}
	return nil
}

func (e *Engine) lookup(op, name string) (*index, error) {
	idx, ok := e.indexes[name]
	if !ok {
		return nil, &db.Error{
			Op: op, Status: http.StatusNotFound, Type: "index_not_found_exception",
			Reason: fmt.Sprintf("no such index [%s]", name), Err: db.ErrIndexNotFound,
		}
	}
	return idx, nil
}

// Ping implements db.Pinger.
func (e *Engine) Ping(_ context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enter(db.OpPing)
}

// WaitForReady returns immediately unless a ping failure is injected.
func (e *Engine) WaitForReady(ctx context.Context, _ time.Duration) error {
	return e.Ping(ctx)
}

// IndexExists implements db.IndexManager.
func (e *Engine) IndexExists(_ context.Context, name string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter(db.OpIndexExists); err != nil {
		return false, err
	}
	_, ok := e.indexes[name]
	return ok, nil
}

// CreateIndex implements db.IndexManager.
func (e *Engine) CreateIndex(_ context.Context, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter(db.OpCreateIndex); err != nil {
		return err
	}
	if _, ok := e.indexes[name]; ok {
		return &db.Error{
			Op: db.OpCreateIndex, Status: http.StatusBadRequest, Type: "resource_already_exists_exception",
			Reason: fmt.Sprintf("index [%s] already exists", name), Err: db.ErrIndexExists,
		}
	}
	e.indexes[name] = &index{mapping: &db.Mapping{}, docs: make(map[string]map[string]any)}
	return nil
}

// DeleteIndex implements db.IndexManager.
func (e *Engine) DeleteIndex(_ context.Context, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter(db.OpDeleteIndex); err != nil {
		return err
	}
	if _, err := e.lookup(db.OpDeleteIndex, name); err != nil {
		return err
	}
	delete(e.indexes, name)
	return nil
}

// Refresh implements db.IndexManager. Writes are visible immediately.
func (e *Engine) Refresh(_ context.Context, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter(db.OpRefresh); err != nil {
		return err
	}
	_, err := e.lookup(db.OpRefresh, name)
	return err
}

// GetMapping implements db.MappingManager.
func (e *Engine) GetMapping(_ context.Context, name string) (*db.Mapping, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter(db.OpGetMapping); err != nil {
		return nil, err
	}
	idx, err := e.lookup(db.OpGetMapping, name)
	if err != nil {
		return nil, err
	}
	return &db.Mapping{Fields: cloneFields(idx.mapping.Fields)}, nil
}

// PutMapping implements db.MappingManager: new fields are merged, type changes rejected.
func (e *Engine) PutMapping(_ context.Context, name string, m *db.Mapping) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter(db.OpPutMapping); err != nil {
		return err
	}
	idx, err := e.lookup(db.OpPutMapping, name)
	if err != nil {
		return err
	}
	if c := m.Conflicts(idx.mapping); len(c) > 0 {
		return &db.Error{
			Op: db.OpPutMapping, Status: http.StatusBadRequest, Type: "illegal_argument_exception",
			Reason: fmt.Sprintf("mapper [%s] cannot be changed from type [%s] to [%s]", c[0].Field, c[0].Have, c[0].Want),
			Err:    db.ErrMappingConflict,
		}
	}
	idx.mapping.Fields = mergeFields(idx.mapping.Fields, m.Fields)
	return nil
}

func cloneFields(fields []db.MappingField) []db.MappingField {
	out := make([]db.MappingField, len(fields))
	for i, f := range fields {
		out[i] = db.MappingField{Name: f.Name, Type: f.Type, Properties: cloneFields(f.Properties)}
	}
	return out
}

func mergeFields(have, add []db.MappingField) []db.MappingField {
	out := cloneFields(have)
	for _, f := range add {
		found := false
		for i := range out {
			if out[i].Name == f.Name {
				out[i].Properties = mergeFields(out[i].Properties, f.Properties)
				found = true
				break
			}
		}
		if !found {
			out = append(out, db.MappingField{Name: f.Name, Type: f.Type, Properties: cloneFields(f.Properties)})
		}
	}
	return out
}

// Bulk implements db.BulkWriter. Each op is checked against the long fields of
// the mapping; a mismatch fails only that item.
func (e *Engine) Bulk(_ context.Context, name string, ops []db.BulkOp) (*db.BulkResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter(db.OpBulk); err != nil {
		return nil, err
	}
	idx, ok := e.indexes[name]
	if !ok {
		// Elasticsearch auto-creates the index on bulk writes.
		idx = &index{mapping: &db.Mapping{}, docs: make(map[string]map[string]any)}
		e.indexes[name] = idx
	}

	res := &db.BulkResult{Items: make([]db.BulkItem, 0, len(ops))}
	for _, op := range ops {
		var doc map[string]any
		if err := json.Unmarshal(op.Doc, &doc); err != nil {
			res.Errors = true
			res.Items = append(res.Items, db.BulkItem{
				ID: op.ID, Status: http.StatusBadRequest, Type: "mapper_parsing_exception", Reason: err.Error(),
			})
			continue
		}
		if reason := checkTypes(idx.mapping.Fields, doc, ""); reason != "" {
			res.Errors = true
			res.Items = append(res.Items, db.BulkItem{
				ID: op.ID, Status: http.StatusBadRequest, Type: "mapper_parsing_exception", Reason: reason,
			})
			continue
		}
		result := "created"
		if _, exists := idx.docs[op.ID]; exists {
			result = "updated"
		} else {
			idx.ids = append(idx.ids, op.ID)
		}
		idx.docs[op.ID] = doc
		res.Items = append(res.Items, db.BulkItem{ID: op.ID, Status: http.StatusCreated, Result: result})
	}
	return res, nil
}

func checkTypes(fields []db.MappingField, doc map[string]any, prefix string) string {
	for _, f := range fields {
		v, ok := doc[f.Name]
		if !ok || v == nil {
			continue
		}
		switch f.Type {
		case db.FieldLong, db.FieldDouble:
			if _, ok := v.(float64); !ok {
				return fmt.Sprintf("failed to parse field [%s] of type [%s]", prefix+f.Name, f.Type)
			}
		case db.FieldNested, db.FieldObject:
			for _, sub := range asDocs(v) {
				if reason := checkTypes(f.Properties, sub, prefix+f.Name+"."); reason != "" {
					return reason
				}
			}
		}
	}
	return ""
}

// UpdateByScript implements db.ScriptedUpdater for append scripts.
func (e *Engine) UpdateByScript(_ context.Context, req *db.UpdateRequest) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter(db.OpUpdate); err != nil {
		return err
	}
	idx, err := e.lookup(db.OpUpdate, req.Index)
	if err != nil {
		return err
	}
	if _, ok := e.scripts[req.ScriptID]; !ok {
		return &db.Error{
			Op: db.OpUpdate, Status: http.StatusNotFound, Type: "resource_not_found_exception",
			Reason: fmt.Sprintf("unable to find script [%s]", req.ScriptID), Err: db.ErrBadRequest,
		}
	}
	doc, ok := idx.docs[req.ID]
	if !ok {
		return &db.Error{
			Op: db.OpUpdate, Status: http.StatusNotFound, Type: "document_missing_exception",
			Reason: fmt.Sprintf("[%s]: document missing", req.ID), Err: db.ErrDocumentNotFound,
		}
	}

	field, _ := req.Params["field"].(string)
	if field == "" {
		return &db.Error{
			Op: db.OpUpdate, Status: http.StatusBadRequest, Type: "illegal_argument_exception",
			Reason: "params.field is required", Err: db.ErrBadRequest,
		}
	}
	item, err := roundTrip(req.Params["item"])
	if err != nil {
		return &db.Error{Op: db.OpUpdate, Status: http.StatusBadRequest, Reason: err.Error(), Err: db.ErrBadRequest}
	}
	list, _ := doc[field].([]any)
	doc[field] = append(list, item)
	return nil
}

// roundTrip converts v to its decoded-JSON form, the shape stored documents use.
func roundTrip(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PutScript implements db.ScriptStore.
func (e *Engine) PutScript(_ context.Context, id string, s db.Script) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter(db.OpPutScript); err != nil {
		return err
	}
	e.scripts[id] = s
	return nil
}

// Search implements db.Searcher.
func (e *Engine) Search(_ context.Context, name string, body []byte) (*db.SearchResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter(db.OpSearch); err != nil {
		return nil, err
	}
	return e.search(db.OpSearch, name, body)
}

// SearchTemplate implements db.Searcher by substituting {{param}} placeholders.
func (e *Engine) SearchTemplate(_ context.Context, name string, req *db.TemplateRequest) (*db.SearchResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter(db.OpSearchTemplate); err != nil {
		return nil, err
	}
	s, ok := e.scripts[req.ScriptID]
	if !ok || s.Lang != db.LangMustache {
		return nil, &db.Error{
			Op: db.OpSearchTemplate, Status: http.StatusNotFound, Type: "resource_not_found_exception",
			Reason: fmt.Sprintf("unable to find script [%s] in cluster state", req.ScriptID), Err: db.ErrBadRequest,
		}
	}
	src := s.Source
	for k, v := range req.Params {
		src = strings.ReplaceAll(src, "{{"+k+"}}", fmt.Sprint(v))
	}
	return e.search(db.OpSearchTemplate, name, []byte(src))
}

type searchBody struct {
	Query map[string]any `json:"query"`
	Size  *int           `json:"size"`
	From  int            `json:"from"`
}

func (e *Engine) search(op, name string, body []byte) (*db.SearchResult, error) {
	idx, err := e.lookup(op, name)
	if err != nil {
		return nil, err
	}
	var req searchBody
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, badQuery(op, err.Error())
	}
	q := req.Query
	if q == nil {
		q = map[string]any{"match_all": map[string]any{}}
	}
	size := 10
	if req.Size != nil {
		size = *req.Size
	}

	res := &db.SearchResult{Hits: []db.Hit{}}
	nested := nestedPaths(idx.mapping)
	for _, id := range idx.ids {
		doc := idx.docs[id]
		ok, err := eval(q, scope{doc: doc, nested: nested})
		if err != nil {
			return nil, badQuery(op, err.Error())
		}
		if !ok {
			continue
		}
		res.Total++
		if res.Total <= req.From || len(res.Hits) >= size {
			continue
		}
		src, err := json.Marshal(doc)
		if err != nil {
			return nil, &db.Error{Op: op, Err: err}
		}
		res.Hits = append(res.Hits, db.Hit{ID: id, Score: 1, Source: src})
	}
	return res, nil
}

func badQuery(op, reason string) error {
	return &db.Error{
		Op: op, Status: http.StatusBadRequest, Type: "parsing_exception", Reason: reason, Err: db.ErrBadRequest,
	}
}
