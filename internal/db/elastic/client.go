package elastic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/kailas-cloud/moviedex/internal/db"
)

// Compile-time check: Store implements db.Engine.
var _ db.Engine = (*Store)(nil)

// Config holds connection parameters for an Elasticsearch cluster.
type Config struct {
	Addresses              []string
	Username               string
	Password               string
	APIKey                 string
	CACertPath             string // PEM file with the cluster CA
	CertificateFingerprint string // SHA256 hex of the CA, alternative to CACertPath
	Transport              http.RoundTripper
}

// Store implements db.Engine via go-elasticsearch.
type Store struct {
	es *elasticsearch.Client
}

// NewStore creates an Elasticsearch store. Transport-level retries are disabled:
// retry policy belongs to callers.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addresses) == 0 {
		return nil, fmt.Errorf("addresses is required")
	}

	esCfg := elasticsearch.Config{
		Addresses:              cfg.Addresses,
		Username:               cfg.Username,
		Password:               cfg.Password,
		APIKey:                 cfg.APIKey,
		CertificateFingerprint: cfg.CertificateFingerprint,
		Transport:              cfg.Transport,
		DisableRetry:           true,
	}
	if cfg.CACertPath != "" {
		ca, err := os.ReadFile(filepath.Clean(cfg.CACertPath))
		if err != nil {
			return nil, fmt.Errorf("read ca cert %s: %w", cfg.CACertPath, err)
		}
		esCfg.CACert = ca
	}

	client, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return &Store{es: client}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	res, err := s.es.Ping(s.es.Ping.WithContext(ctx))
	if err != nil {
		return unavailable(db.OpPing, err)
	}
	defer closeBody(res)
	if res.IsError() {
		return decodeError(db.OpPing, res)
	}
	return nil
}

// WaitForReady polls Ping until the cluster responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for elasticsearch: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

// errorBody is the standard Elasticsearch error envelope.
type errorBody struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
	Status int `json:"status"`
}

func unavailable(op string, err error) error {
	return &db.Error{Op: op, Err: fmt.Errorf("%w: %w", db.ErrUnavailable, err)}
}

// decodeError converts an error response into *db.Error, classifying it
// against the db sentinels by status and Elasticsearch error type.
func decodeError(op string, res *esapi.Response) *db.Error {
	e := &db.Error{Op: op, Status: res.StatusCode}

	var body errorBody
	if res.Body != nil {
		raw, _ := io.ReadAll(io.LimitReader(res.Body, 64<<10))
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &body); err != nil {
				// Some endpoints answer plain text or a bare error string.
				e.Reason = strings.TrimSpace(string(raw))
			}
		}
	}
	e.Type = body.Error.Type
	if body.Error.Reason != "" {
		e.Reason = body.Error.Reason
	}
	e.Err = classify(res.StatusCode, e.Type)
	return e
}

func classify(status int, errType string) error {
	switch errType {
	case "index_not_found_exception":
		return db.ErrIndexNotFound
	case "resource_already_exists_exception":
		return db.ErrIndexExists
	case "document_missing_exception":
		return db.ErrDocumentNotFound
	case "resource_not_found_exception":
		// e.g. "unable to find script [...]": the document is not the missing part.
		return db.ErrBadRequest
	}
	switch {
	case status == http.StatusNotFound && errType == "":
		return db.ErrDocumentNotFound
	case status == http.StatusBadGateway, status == http.StatusServiceUnavailable,
		status == http.StatusGatewayTimeout:
		return db.ErrUnavailable
	case status >= 400 && status < 500:
		return db.ErrBadRequest
	}
	return errors.New(http.StatusText(status))
}

func closeBody(res *esapi.Response) {
	if res != nil && res.Body != nil {
		_, _ = io.Copy(io.Discard, res.Body)
		_ = res.Body.Close()
	}
}
