package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/kailas-cloud/moviedex/internal/db"
)

// Search runs a query-DSL body against an index.
func (s *Store) Search(ctx context.Context, index string, body []byte) (*db.SearchResult, error) {
	res, err := s.es.Search(
		s.es.Search.WithIndex(index),
		s.es.Search.WithBody(bytes.NewReader(body)),
		s.es.Search.WithContext(ctx),
	)
	if err != nil {
		return nil, unavailable(db.OpSearch, err)
	}
	defer closeBody(res)
	return decodeSearch(db.OpSearch, res)
}

// SearchTemplate invokes a stored mustache template with the given params.
func (s *Store) SearchTemplate(ctx context.Context, index string, req *db.TemplateRequest) (*db.SearchResult, error) {
	body, err := json.Marshal(map[string]any{
		"id":     req.ScriptID,
		"params": req.Params,
	})
	if err != nil {
		return nil, &db.Error{Op: db.OpSearchTemplate, Err: fmt.Errorf("encode params: %w", err)}
	}

	res, err := s.es.SearchTemplate(
		bytes.NewReader(body),
		s.es.SearchTemplate.WithIndex(index),
		s.es.SearchTemplate.WithContext(ctx),
	)
	if err != nil {
		return nil, unavailable(db.OpSearchTemplate, err)
	}
	defer closeBody(res)
	return decodeSearch(db.OpSearchTemplate, res)
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID     string          `json:"_id"`
			Score  *float64        `json:"_score"`
			Source json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func decodeSearch(op string, res *esapi.Response) (*db.SearchResult, error) {
	if res.IsError() {
		e := decodeError(op, res)
		// A bodyless 404 on _search means the index is gone.
		if res.StatusCode == http.StatusNotFound && e.Type == "" {
			e.Err = db.ErrIndexNotFound
		}
		return nil, e
	}

	var raw searchResponse
	if err := json.NewDecoder(res.Body).Decode(&raw); err != nil {
		return nil, &db.Error{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}

	out := &db.SearchResult{
		Total: raw.Hits.Total.Value,
		Hits:  make([]db.Hit, 0, len(raw.Hits.Hits)),
	}
	for _, h := range raw.Hits.Hits {
		hit := db.Hit{ID: h.ID, Source: h.Source}
		if h.Score != nil {
			hit.Score = *h.Score
		}
		out.Hits = append(out.Hits, hit)
	}
	return out, nil
}
