package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/kailas-cloud/moviedex/internal/db"
)

// UpdateByScript runs a stored script against one document via _update/{id}.
// No upsert is sent, so a missing document fails with ErrDocumentNotFound and
// nothing is created.
func (s *Store) UpdateByScript(ctx context.Context, req *db.UpdateRequest) error {
	body, err := json.Marshal(map[string]any{
		"script": map[string]any{
			"id":     req.ScriptID,
			"params": req.Params,
		},
	})
	if err != nil {
		return &db.Error{Op: db.OpUpdate, Err: fmt.Errorf("encode script: %w", err)}
	}

	opts := []func(*esapi.UpdateRequest){s.es.Update.WithContext(ctx)}
	if req.RetryOnConflict > 0 {
		opts = append(opts, s.es.Update.WithRetryOnConflict(req.RetryOnConflict))
	}
	if req.Refresh {
		opts = append(opts, s.es.Update.WithRefresh("true"))
	}

	res, err := s.es.Update(req.Index, req.ID, bytes.NewReader(body), opts...)
	if err != nil {
		return unavailable(db.OpUpdate, err)
	}
	defer closeBody(res)
	if res.IsError() {
		return decodeError(db.OpUpdate, res)
	}
	return nil
}
