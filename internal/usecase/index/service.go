package index

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/moviedex/internal/db"
	"github.com/kailas-cloud/moviedex/internal/domain"
)

// Service manages index lifecycle and mappings.
// Lifecycle calls check existence first and are not atomic: callers must run
// at most one lifecycle operation per index at a time.
type Service struct {
	engine Engine
	logger *zap.Logger
}

// New creates an index service.
func New(engine Engine, logger *zap.Logger) *Service {
	return &Service{engine: engine, logger: logger}
}

// EnsureDeleted removes the index if it exists. An absent index is success.
func (s *Service) EnsureDeleted(ctx context.Context, name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	exists, err := s.engine.IndexExists(ctx, name)
	if err != nil {
		return translate(db.OpIndexExists, name, err)
	}
	if !exists {
		s.logger.Debug("index already absent", zap.String("index", name))
		return nil
	}
	if err := s.engine.DeleteIndex(ctx, name); err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			s.logger.Debug("index vanished before delete", zap.String("index", name))
			return nil
		}
		return translate(db.OpDeleteIndex, name, err)
	}
	s.logger.Info("index deleted", zap.String("index", name))
	return nil
}

// EnsureCreated creates the index if it does not exist. An existing index,
// its mapping and documents are left untouched.
func (s *Service) EnsureCreated(ctx context.Context, name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	exists, err := s.engine.IndexExists(ctx, name)
	if err != nil {
		return translate(db.OpIndexExists, name, err)
	}
	if exists {
		s.logger.Debug("index already exists", zap.String("index", name))
		return nil
	}
	if err := s.engine.CreateIndex(ctx, name); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			s.logger.Debug("index created concurrently", zap.String("index", name))
			return nil
		}
		return translate(db.OpCreateIndex, name, err)
	}
	s.logger.Info("index created", zap.String("index", name))
	return nil
}

// ApplyMapping installs or extends the mapping of an existing index.
// Re-applying a mapping that is already live is a no-op. Changing the type of
// a mapped field fails with *domain.SchemaError naming the field.
func (s *Service) ApplyMapping(ctx context.Context, name string, m *db.Mapping) error {
	if err := checkName(name); err != nil {
		return err
	}
	if m == nil {
		return &domain.SchemaError{Index: name, Reason: "mapping is required"}
	}
	if err := m.Validate(); err != nil {
		return &domain.SchemaError{Index: name, Reason: err.Error(), Err: err}
	}
	if err := checkCollections(name, m); err != nil {
		return err
	}

	exists, err := s.engine.IndexExists(ctx, name)
	if err != nil {
		return translate(db.OpIndexExists, name, err)
	}
	if !exists {
		return &domain.SchemaError{Index: name, Reason: "index does not exist", Err: db.ErrIndexNotFound}
	}

	live, err := s.engine.GetMapping(ctx, name)
	if err != nil {
		return translate(db.OpGetMapping, name, err)
	}
	if conflicts := m.Conflicts(live); len(conflicts) > 0 {
		c := conflicts[0]
		return &domain.SchemaError{
			Index:  name,
			Field:  c.Field,
			Reason: fmt.Sprintf("cannot change type from %s to %s", c.Have, c.Want),
			Err:    db.ErrMappingConflict,
		}
	}
	if covers(live, m.Fields, "") {
		s.logger.Debug("mapping already applied", zap.String("index", name))
		return nil
	}

	if err := s.engine.PutMapping(ctx, name, m); err != nil {
		return translate(db.OpPutMapping, name, err)
	}
	s.logger.Info("mapping applied", zap.String("index", name), zap.Int("fields", len(m.Fields)))
	return nil
}

// Rebuild drops and recreates the index with mapping m. All documents are lost.
func (s *Service) Rebuild(ctx context.Context, name string, m *db.Mapping) error {
	if err := s.EnsureDeleted(ctx, name); err != nil {
		return fmt.Errorf("rebuild %s: %w", name, err)
	}
	if err := s.EnsureCreated(ctx, name); err != nil {
		return fmt.Errorf("rebuild %s: %w", name, err)
	}
	if err := s.ApplyMapping(ctx, name, m); err != nil {
		return fmt.Errorf("rebuild %s: %w", name, err)
	}
	s.logger.Info("index rebuilt", zap.String("index", name))
	return nil
}

// Refresh makes all writes so far visible to search.
func (s *Service) Refresh(ctx context.Context, name string) error {
	if err := s.engine.Refresh(ctx, name); err != nil {
		return translate(db.OpRefresh, name, err)
	}
	return nil
}

func checkName(name string) error {
	if !db.IsValidIndexName(name) {
		return &domain.SchemaError{Index: name, Reason: "invalid index name"}
	}
	return nil
}

// checkCollections enforces that ratings and tags are nested whenever mapped.
func checkCollections(name string, m *db.Mapping) error {
	for _, field := range []string{domain.FieldRatings, domain.FieldTags} {
		f, ok := m.Lookup(field)
		if ok && f.Type != db.FieldNested {
			return &domain.SchemaError{
				Index:  name,
				Field:  field,
				Reason: fmt.Sprintf("must be %s, got %s", db.FieldNested, f.Type),
			}
		}
	}
	return nil
}

// covers reports whether every field of fields is already mapped in live.
func covers(live *db.Mapping, fields []db.MappingField, prefix string) bool {
	for _, f := range fields {
		path := prefix + f.Name
		if _, ok := live.Lookup(path); !ok {
			return false
		}
		if !covers(live, f.Properties, path+".") {
			return false
		}
	}
	return true
}

func translate(op, name string, err error) error {
	switch {
	case errors.Is(err, db.ErrUnavailable):
		return domain.NewConnectionError(op, err)
	case errors.Is(err, db.ErrIndexNotFound):
		return &domain.SchemaError{Index: name, Reason: "index does not exist", Err: err}
	case errors.Is(err, db.ErrMappingConflict):
		se := &domain.SchemaError{Index: name, Reason: "mapping rejected", Err: err}
		var de *db.Error
		if errors.As(err, &de) && de.Reason != "" {
			se.Reason = de.Reason
		}
		return se
	default:
		return fmt.Errorf("%s %s: %w", op, name, err)
	}
}
