package db

import "encoding/json"

// BulkOp is one index (create-or-replace) action of a bulk request.
type BulkOp struct {
	ID  string
	Doc []byte
}

// BulkResult is the engine's answer to a bulk request, one item per op in order.
type BulkResult struct {
	Took   int
	Errors bool
	Items  []BulkItem
}

// BulkItem is the outcome of a single bulk op.
type BulkItem struct {
	ID     string
	Status int
	Result string // created, updated
	Type   string // error type, empty on success
	Reason string
}

// Failed reports whether the engine rejected the item.
func (i BulkItem) Failed() bool { return i.Type != "" || i.Status >= 300 }

// Script is a stored script body.
type Script struct {
	Lang   string // painless, mustache
	Source string
}

// Script languages.
const (
	LangPainless = "painless"
	LangMustache = "mustache"
)

// UpdateRequest runs a stored script against one document.
// RetryOnConflict is handed to the engine, which re-runs the script on version conflicts.
type UpdateRequest struct {
	Index           string
	ID              string
	ScriptID        string
	Params          map[string]any
	RetryOnConflict int
	Refresh         bool
}

// TemplateRequest invokes a stored search template.
type TemplateRequest struct {
	ScriptID string
	Params   map[string]any
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total int
	Hits  []Hit
}

// Hit is a single document hit; Source is the stored document as returned.
type Hit struct {
	ID     string
	Score  float64
	Source json.RawMessage
}
