package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/moviedex/internal/db"
)

// Bulk sends all ops as index actions in one _bulk request.
// Per-item failures are reported in the result; they do not fail the call.
func (s *Store) Bulk(ctx context.Context, index string, ops []db.BulkOp) (*db.BulkResult, error) {
	if len(ops) == 0 {
		return &db.BulkResult{}, nil
	}

	body, err := encodeBulk(ops)
	if err != nil {
		return nil, &db.Error{Op: db.OpBulk, Err: err}
	}

	res, err := s.es.Bulk(
		bytes.NewReader(body),
		s.es.Bulk.WithIndex(index),
		s.es.Bulk.WithContext(ctx),
	)
	if err != nil {
		return nil, unavailable(db.OpBulk, err)
	}
	defer closeBody(res)
	if res.IsError() {
		return nil, decodeError(db.OpBulk, res)
	}

	var raw bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&raw); err != nil {
		return nil, &db.Error{Op: db.OpBulk, Err: fmt.Errorf("decode response: %w", err)}
	}
	return raw.toResult(), nil
}

// encodeBulk renders the NDJSON body: one action line and one source line per op.
func encodeBulk(ops []db.BulkOp) ([]byte, error) {
	var buf bytes.Buffer
	for i := range ops {
		action, err := json.Marshal(map[string]any{
			"index": map[string]string{"_id": ops[i].ID},
		})
		if err != nil {
			return nil, fmt.Errorf("encode action %s: %w", ops[i].ID, err)
		}
		buf.Write(action)
		buf.WriteByte('\n')
		// Source must sit on a single line.
		if err := json.Compact(&buf, ops[i].Doc); err != nil {
			return nil, fmt.Errorf("encode document %s: %w", ops[i].ID, err)
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

type bulkResponse struct {
	Took   int                           `json:"took"`
	Errors bool                          `json:"errors"`
	Items  []map[string]bulkItemResponse `json:"items"`
}

type bulkItemResponse struct {
	ID     string `json:"_id"`
	Status int    `json:"status"`
	Result string `json:"result"`
	Error  *struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
}

func (r *bulkResponse) toResult() *db.BulkResult {
	out := &db.BulkResult{
		Took:   r.Took,
		Errors: r.Errors,
		Items:  make([]db.BulkItem, 0, len(r.Items)),
	}
	for _, wrapped := range r.Items {
		// Each item is keyed by its action name ("index").
		for _, it := range wrapped {
			item := db.BulkItem{ID: it.ID, Status: it.Status, Result: it.Result}
			if it.Error != nil {
				item.Type = it.Error.Type
				item.Reason = it.Error.Reason
			}
			out.Items = append(out.Items, item)
		}
	}
	return out
}
