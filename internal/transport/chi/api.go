package chi

import "github.com/kailas-cloud/moviedex/internal/domain"

// ErrorCode is a machine-readable error identifier.
type ErrorCode string

// Error codes.
const (
	ErrorCodeBadRequest        ErrorCode = "bad_request"
	ErrorCodeValidationFailed  ErrorCode = "validation_failed"
	ErrorCodeUnauthorized      ErrorCode = "unauthorized"
	ErrorCodeIndexNotFound     ErrorCode = "index_not_found"
	ErrorCodeEngineUnavailable ErrorCode = "engine_unavailable"
	ErrorCodeInternalError     ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// SearchResponse is one page of movies.
type SearchResponse struct {
	Items []SearchItem `json:"items"`
	Total int          `json:"total"`
}

// SearchItem is a single hit.
type SearchItem struct {
	ID    string       `json:"id"`
	Score float64      `json:"score"`
	Movie domain.Movie `json:"movie"`
}

// Clause is one condition of a compound search. Type selects which fields apply:
// match, phrase, prefix and intervals use Field and Text; multi_match uses
// Fields and Text; term uses Field and Value; range uses Field and the bounds;
// nested uses Path and Must.
type Clause struct {
	Type    string   `json:"type"`
	Field   string   `json:"field,omitempty"`
	Fields  []string `json:"fields,omitempty"`
	Text    string   `json:"text,omitempty"`
	Mode    string   `json:"mode,omitempty"` // multi_match type
	Value   any      `json:"value,omitempty"`
	MaxGaps *int     `json:"max_gaps,omitempty"`
	Ordered *bool    `json:"ordered,omitempty"`
	Gt      *float64 `json:"gt,omitempty"`
	Gte     *float64 `json:"gte,omitempty"`
	Lt      *float64 `json:"lt,omitempty"`
	Lte     *float64 `json:"lte,omitempty"`
	Path    string   `json:"path,omitempty"`
	Must    []Clause `json:"must,omitempty"`
}

// CompoundSearchRequest is the body of POST /v1/indexes/{index}/search.
// Every clause must match.
type CompoundSearchRequest struct {
	Must []Clause `json:"must"`
	Size int      `json:"size,omitempty"`
	From int      `json:"from,omitempty"`
}

// TemplateSearchRequest is the body of POST /v1/indexes/{index}/templates/{id}.
type TemplateSearchRequest struct {
	Params map[string]any `json:"params"`
}

// RegisterTemplateRequest is the body of PUT /v1/templates/{id}.
type RegisterTemplateRequest struct {
	Source string `json:"source"`
}

// HealthResponse reports component health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
