package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/moviedex/internal/db"
)

// PutScript stores a script under id, overwriting any previous version.
func (s *Store) PutScript(ctx context.Context, id string, sc db.Script) error {
	body, err := json.Marshal(map[string]any{
		"script": map[string]string{
			"lang":   sc.Lang,
			"source": sc.Source,
		},
	})
	if err != nil {
		return &db.Error{Op: db.OpPutScript, Err: fmt.Errorf("encode script: %w", err)}
	}

	res, err := s.es.PutScript(id, bytes.NewReader(body), s.es.PutScript.WithContext(ctx))
	if err != nil {
		return unavailable(db.OpPutScript, err)
	}
	defer closeBody(res)
	if res.IsError() {
		return decodeError(db.OpPutScript, res)
	}
	return nil
}
