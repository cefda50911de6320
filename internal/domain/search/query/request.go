package query

import (
	"encoding/json"

	"github.com/kailas-cloud/moviedex/internal/domain"
)

// Pagination limits.
const (
	DefaultSize = 10
	// MaxWindow is the engine's default index.max_result_window.
	MaxWindow = 10000
)

// Request is a full search: one query plus pagination. Zero Size means DefaultSize.
type Request struct {
	Query Intent
	Size  int
	From  int
}

// Body renders the _search request body.
func (r Request) Body() ([]byte, error) {
	if r.Size < 0 || r.From < 0 {
		return nil, domain.NewQueryError("size and from must not be negative")
	}
	size := r.Size
	if size == 0 {
		size = DefaultSize
	}
	if r.From+size > MaxWindow {
		return nil, domain.NewQueryError("from + size must not exceed %d", MaxWindow)
	}
	node, err := Build(r.Query)
	if err != nil {
		return nil, err
	}
	body := map[string]any{"query": node, "size": size}
	if r.From > 0 {
		body["from"] = r.From
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, &domain.QueryError{Reason: "encode request", Err: err}
	}
	return data, nil
}
