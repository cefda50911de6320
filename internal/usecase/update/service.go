package update

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/moviedex/internal/db"
	"github.com/kailas-cloud/moviedex/internal/domain"
	"github.com/kailas-cloud/moviedex/internal/metrics"
	"github.com/kailas-cloud/moviedex/internal/repository/checkpoint"
)

// Defaults for Config.
const (
	DefaultScriptID        = "append-to-collection"
	DefaultRetryOnConflict = 3
	DefaultProgressEvery   = 1000
	DefaultSaveEvery       = 1000
	DefaultWorkers         = 1
)

// AppendScript appends params.item to the list field named params.field,
// creating the list when the field is missing or null.
const AppendScript = `if (ctx._source[params.field] == null) { ctx._source[params.field] = []; } ` +
	`ctx._source[params.field].add(params.item);`

// Config tunes the update service. Zero values take the defaults above.
type Config struct {
	ScriptID        string
	RetryOnConflict int
	ProgressEvery   int
	SaveEvery       int
	Workers         int
}

func (c *Config) applyDefaults() {
	if c.ScriptID == "" {
		c.ScriptID = DefaultScriptID
	}
	if c.RetryOnConflict <= 0 {
		c.RetryOnConflict = DefaultRetryOnConflict
	}
	if c.ProgressEvery <= 0 {
		c.ProgressEvery = DefaultProgressEvery
	}
	if c.SaveEvery <= 0 {
		c.SaveEvery = DefaultSaveEvery
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
}

// Service appends ratings and tags to already indexed movies.
// Every append is one scripted update of one document; nothing is retried on
// the client and a missing movie is never created.
type Service struct {
	engine      Engine
	checkpoints CheckpointStore
	cfg         Config
	logger      *zap.Logger
}

// New creates an update service without checkpoints.
func New(engine Engine, cfg Config, logger *zap.Logger) *Service {
	cfg.applyDefaults()
	return &Service{engine: engine, checkpoints: checkpoint.Nop{}, cfg: cfg, logger: logger}
}

// WithCheckpoints enables resumable streams. Ignored with more than one
// worker, since rows then finish out of order.
func (s *Service) WithCheckpoints(store CheckpointStore) *Service {
	if s.cfg.Workers > 1 {
		s.logger.Warn("checkpoints disabled with parallel workers", zap.Int("workers", s.cfg.Workers))
		return s
	}
	if store != nil {
		s.checkpoints = store
	}
	return s
}

// RegisterScripts stores the append script. Re-registering overwrites it.
func (s *Service) RegisterScripts(ctx context.Context) error {
	err := s.engine.PutScript(ctx, s.cfg.ScriptID, db.Script{Lang: db.LangPainless, Source: AppendScript})
	if err != nil {
		if errors.Is(err, db.ErrUnavailable) {
			return domain.NewConnectionError(db.OpPutScript, err)
		}
		return fmt.Errorf("register script %s: %w", s.cfg.ScriptID, err)
	}
	s.logger.Info("append script registered", zap.String("script_id", s.cfg.ScriptID))
	return nil
}

// AppendRating adds r to the ratings of movie r.MovieID.
// A missing movie fails with *domain.TargetNotFoundError.
func (s *Service) AppendRating(ctx context.Context, index string, r domain.Rating) error {
	return s.appendItem(ctx, index, domain.FieldRatings, r.MovieID, r)
}

// AppendTag adds t to the tags of movie t.MovieID.
// A missing movie fails with *domain.TargetNotFoundError.
func (s *Service) AppendTag(ctx context.Context, index string, t domain.Tag) error {
	return s.appendItem(ctx, index, domain.FieldTags, t.MovieID, t)
}

func (s *Service) appendItem(ctx context.Context, index, field string, movieID int64, item any) error {
	err := s.engine.UpdateByScript(ctx, &db.UpdateRequest{
		Index:           index,
		ID:              domain.DocID(movieID),
		ScriptID:        s.cfg.ScriptID,
		Params:          map[string]any{"field": field, "item": item},
		RetryOnConflict: s.cfg.RetryOnConflict,
	})
	switch {
	case err == nil:
		metrics.UpdatesTotal.WithLabelValues(field, metrics.StatusOK).Inc()
		return nil
	case errors.Is(err, db.ErrDocumentNotFound):
		metrics.UpdatesTotal.WithLabelValues(field, metrics.StatusNotFound).Inc()
		return &domain.TargetNotFoundError{Index: index, ID: movieID}
	}

	metrics.UpdatesTotal.WithLabelValues(field, metrics.StatusError).Inc()
	switch {
	case errors.Is(err, db.ErrUnavailable):
		return domain.NewConnectionError(db.OpUpdate, err)
	case errors.Is(err, db.ErrIndexNotFound):
		return &domain.SchemaError{Index: index, Reason: "index does not exist", Err: err}
	default:
		return fmt.Errorf("append %s to movie %d: %w", field, movieID, err)
	}
}
