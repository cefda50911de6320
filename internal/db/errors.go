package db

import (
	"errors"
	"strconv"
)

// Sentinel errors for engine operations.
var (
	ErrIndexNotFound    = errors.New("db: index not found")
	ErrIndexExists      = errors.New("db: index already exists")
	ErrDocumentNotFound = errors.New("db: document not found")
	ErrMappingConflict  = errors.New("db: mapping conflict")
	ErrBadRequest       = errors.New("db: bad request")
	ErrUnavailable      = errors.New("db: engine unavailable")
	ErrKeyNotFound      = errors.New("db: key not found")
)

// Op constants name the Elasticsearch APIs for error context.
const (
	OpPing           = "ping"
	OpIndexExists    = "indices.exists"
	OpCreateIndex    = "indices.create"
	OpDeleteIndex    = "indices.delete"
	OpRefresh        = "indices.refresh"
	OpGetMapping     = "indices.get_mapping"
	OpPutMapping     = "indices.put_mapping"
	OpBulk           = "bulk"
	OpUpdate         = "update"
	OpPutScript      = "put_script"
	OpSearch         = "search"
	OpSearchTemplate = "search_template"

	OpGet = "GET"
	OpSet = "SET"
	OpDel = "DEL"
)

// Error wraps an underlying error with the operation name and, when the engine
// answered, its HTTP status and error type/reason.
type Error struct {
	Op     string
	Status int
	Type   string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Status != 0 {
		msg += " [" + strconv.Itoa(e.Status) + "]"
	}
	if e.Type != "" {
		msg += ": " + e.Type
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }
