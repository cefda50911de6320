package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/moviedex/internal/db"
	"github.com/kailas-cloud/moviedex/internal/domain"
	dombatch "github.com/kailas-cloud/moviedex/internal/domain/batch"
	"github.com/kailas-cloud/moviedex/internal/metrics"
)

// DefaultBatchSize is the number of movies sent per bulk request by IndexAll.
const DefaultBatchSize = 1000

// Error types of records rejected before they reach the engine.
const (
	errTypeValidation = "validation_exception"
	errTypeEncode     = "encode_exception"
)

// Service bulk-indexes movies. Indexing an existing id replaces the whole
// document, including its ratings and tags, so ingest must run before updates.
type Service struct {
	bulk      BulkWriter
	batchSize int
	logger    *zap.Logger
}

// New creates an ingest service.
func New(bulk BulkWriter, logger *zap.Logger) *Service {
	return &Service{bulk: bulk, batchSize: DefaultBatchSize, logger: logger}
}

// WithBatchSize configures the chunk size used by IndexAll.
func (s *Service) WithBatchSize(size int) *Service {
	if size > 0 {
		s.batchSize = size
	}
	return s
}

// IndexBatch indexes movies in a single bulk request, each under its movie id.
// Item failures do not stop the batch: they are collected in the report and
// the returned error stays nil. The error is only set when the request itself
// failed, in which case the report holds the client-side rejections.
func (s *Service) IndexBatch(ctx context.Context, index string, movies []domain.Movie) (dombatch.Report, error) {
	report := dombatch.Report{Total: len(movies)}
	if len(movies) == 0 {
		return report, nil
	}

	ops := make([]db.BulkOp, 0, len(movies))
	for i := range movies {
		m := movies[i]
		if m.ID <= 0 {
			s.reject(&report, index, domain.BulkItemError{
				ID: m.DocID(), Type: errTypeValidation, Reason: "movie id is required",
			})
			continue
		}
		m.Normalize()
		doc, err := json.Marshal(m)
		if err != nil {
			s.reject(&report, index, domain.BulkItemError{
				ID: m.DocID(), Type: errTypeEncode, Reason: err.Error(),
			})
			continue
		}
		ops = append(ops, db.BulkOp{ID: m.DocID(), Doc: doc})
	}
	if len(ops) == 0 {
		return report, nil
	}

	start := time.Now()
	res, err := s.bulk.Bulk(ctx, index, ops)
	metrics.BulkRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.logger.Error("bulk request failed",
			zap.String("index", index),
			zap.Int("items", len(ops)),
			zap.Error(err),
		)
		return report, translate(index, err)
	}

	for _, item := range res.Items {
		if item.Failed() {
			s.reject(&report, index, domain.BulkItemError{
				ID: item.ID, Status: item.Status, Type: item.Type, Reason: item.Reason,
			})
			continue
		}
		report.Indexed++
		metrics.BulkItemsTotal.WithLabelValues(string(dombatch.StatusOK)).Inc()
	}
	return report, nil
}

// IndexAll drains movies in chunks of the configured batch size, one bulk
// request per chunk. A source error sends the rows read so far, then stops the
// stream and is returned together with the merged report.
func (s *Service) IndexAll(ctx context.Context, index string, movies iter.Seq2[domain.Movie, error]) (dombatch.Report, error) {
	var total dombatch.Report
	chunk := make([]domain.Movie, 0, s.batchSize)

	flush := func() error {
		if len(chunk) == 0 {
			return nil
		}
		r, err := s.IndexBatch(ctx, index, chunk)
		total.Merge(r)
		chunk = chunk[:0]
		if err != nil {
			return err
		}
		s.logger.Info("bulk batch indexed",
			zap.String("index", index),
			zap.Int("indexed", total.Indexed),
			zap.Int("failed", total.Failed()),
		)
		return nil
	}

	for m, err := range movies {
		if err != nil {
			if ferr := flush(); ferr != nil {
				return total, ferr
			}
			return total, fmt.Errorf("read movies: %w", err)
		}
		chunk = append(chunk, m)
		if len(chunk) == s.batchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := flush(); err != nil {
		return total, err
	}
	return total, nil
}

func (s *Service) reject(report *dombatch.Report, index string, item domain.BulkItemError) {
	report.AddFailure(item)
	metrics.BulkItemsTotal.WithLabelValues(string(dombatch.StatusError)).Inc()
	s.logger.Warn("bulk item failed",
		zap.String("index", index),
		zap.String("id", item.ID),
		zap.Int("status", item.Status),
		zap.String("type", item.Type),
		zap.String("reason", item.Reason),
	)
}

func translate(index string, err error) error {
	if errors.Is(err, db.ErrUnavailable) {
		return domain.NewConnectionError(db.OpBulk, err)
	}
	if errors.Is(err, db.ErrIndexNotFound) {
		return &domain.SchemaError{Index: index, Reason: "index does not exist", Err: err}
	}
	return fmt.Errorf("bulk %s: %w", index, err)
}
