package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrConnection signals that the search engine could not be reached.
	ErrConnection = errors.New("engine unreachable")
	// ErrSchema signals a mapping conflict or a missing index.
	ErrSchema = errors.New("schema error")
	// ErrBulkItem signals that one or more items of a bulk request failed.
	ErrBulkItem = errors.New("bulk item failed")
	// ErrTargetNotFound signals an incremental update against a missing document.
	ErrTargetNotFound = errors.New("target document not found")
	// ErrQuery signals a malformed query tree or a query the engine rejected.
	ErrQuery = errors.New("invalid query")
)

// ConnectionError wraps a transport failure with the operation that hit it.
type ConnectionError struct {
	Op  string
	Err error
}

// NewConnectionError creates a connection error for op.
func NewConnectionError(op string, err error) error {
	return &ConnectionError{Op: op, Err: err}
}

func (e *ConnectionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, ErrConnection)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, ErrConnection, e.Err)
}

// Is reports ErrConnection so callers can match on the sentinel.
func (e *ConnectionError) Is(target error) bool { return target == ErrConnection }

func (e *ConnectionError) Unwrap() error { return e.Err }

// SchemaError describes a rejected mapping operation.
// Field is empty when the failure is not tied to a single field (e.g. missing index).
type SchemaError struct {
	Index  string
	Field  string
	Reason string
	Err    error
}

func (e *SchemaError) Error() string {
	var b strings.Builder
	b.WriteString(ErrSchema.Error())
	b.WriteString(": index ")
	b.WriteString(strconv.Quote(e.Index))
	if e.Field != "" {
		b.WriteString(", field ")
		b.WriteString(strconv.Quote(e.Field))
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	return b.String()
}

// Is reports ErrSchema so callers can match on the sentinel.
func (e *SchemaError) Is(target error) bool { return target == ErrSchema }

func (e *SchemaError) Unwrap() error { return e.Err }

// BulkItemError is the failure of a single item in a bulk request.
// Status is the engine-reported HTTP status, 0 when the item never left the client.
type BulkItemError struct {
	ID     string
	Status int
	Type   string
	Reason string
}

func (e *BulkItemError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("item %s: %s", e.ID, e.Reason)
	}
	return fmt.Sprintf("item %s: %s: %s", e.ID, e.Type, e.Reason)
}

func (e *BulkItemError) Unwrap() error { return ErrBulkItem }

// BulkError aggregates every failed item of one or more bulk requests.
type BulkError struct {
	Items []BulkItemError
}

func (e *BulkError) Error() string {
	switch len(e.Items) {
	case 0:
		return ErrBulkItem.Error()
	case 1:
		return fmt.Sprintf("%s: %s", ErrBulkItem, e.Items[0].Error())
	default:
		return fmt.Sprintf("%s: %d items failed, first: %s", ErrBulkItem, len(e.Items), e.Items[0].Error())
	}
}

func (e *BulkError) Unwrap() error { return ErrBulkItem }

// TargetNotFoundError reports an append against a document that does not exist.
type TargetNotFoundError struct {
	Index string
	ID    int64
}

func (e *TargetNotFoundError) Error() string {
	return fmt.Sprintf("%s: index %q, id %d", ErrTargetNotFound, e.Index, e.ID)
}

func (e *TargetNotFoundError) Unwrap() error { return ErrTargetNotFound }

// QueryError reports a query that could not be built or was rejected by the engine.
type QueryError struct {
	Reason string
	Err    error
}

// NewQueryError creates a query error with a formatted reason.
func NewQueryError(format string, args ...any) error {
	return &QueryError{Reason: fmt.Sprintf(format, args...)}
}

func (e *QueryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrQuery, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrQuery, e.Reason)
}

// Is reports ErrQuery so callers can match on the sentinel.
func (e *QueryError) Is(target error) bool { return target == ErrQuery }

func (e *QueryError) Unwrap() error { return e.Err }
