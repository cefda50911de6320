package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/moviedex/internal/db"
	"github.com/kailas-cloud/moviedex/internal/domain"
	"github.com/kailas-cloud/moviedex/internal/domain/search/query"
	"github.com/kailas-cloud/moviedex/internal/domain/search/result"
	"github.com/kailas-cloud/moviedex/internal/metrics"
)

// DefaultIntervalGaps is the token gap allowed by Intervals.
const DefaultIntervalGaps = 10

// Service runs typed movie searches and decodes the hits.
type Service struct {
	engine      Engine
	defaultSize int
	logger      *zap.Logger
}

// New creates a search service.
func New(engine Engine, logger *zap.Logger) *Service {
	return &Service{engine: engine, defaultSize: query.DefaultSize, logger: logger}
}

// WithDefaultSize sets the page size used when a request leaves Size at zero.
func (s *Service) WithDefaultSize(size int) *Service {
	if size > 0 {
		s.defaultSize = size
	}
	return s
}

// Search runs req against index.
func (s *Service) Search(ctx context.Context, index string, req query.Request) (result.Page, error) {
	if req.Size == 0 {
		req.Size = s.defaultSize
	}
	body, err := req.Body()
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues(metrics.StatusError).Inc()
		return result.Page{}, err
	}
	res, err := s.engine.Search(ctx, index, body)
	return s.finish(index, db.OpSearch, res, err)
}

// FindAll returns up to size movies of index.
func (s *Service) FindAll(ctx context.Context, index string, size int) (result.Page, error) {
	return s.Search(ctx, index, query.Request{Query: query.MatchAll{}, Size: size})
}

// Match runs an analyzed match of text on field.
func (s *Service) Match(ctx context.Context, index, field, text string) (result.Page, error) {
	return s.Search(ctx, index, query.Request{Query: query.Match{Field: field, Text: text}})
}

// Phrase matches text on field as a contiguous phrase.
func (s *Service) Phrase(ctx context.Context, index, field, text string) (result.Page, error) {
	return s.Search(ctx, index, query.Request{Query: query.Phrase{Field: field, Text: text}})
}

// Prefix matches movies whose field has a token sequence starting with prefix.
func (s *Service) Prefix(ctx context.Context, index, field, prefix string) (result.Page, error) {
	return s.Search(ctx, index, query.Request{Query: query.PhrasePrefix{Field: field, Prefix: prefix}})
}

// MultiMatch runs text against every field and keeps the best field score.
func (s *Service) MultiMatch(ctx context.Context, index string, fields []string, text string) (result.Page, error) {
	return s.Search(ctx, index, query.Request{
		Query: query.MultiMatch{Fields: fields, Text: text, Type: query.BestFields},
	})
}

// Intervals matches the tokens of pattern in order, at most DefaultIntervalGaps apart.
func (s *Service) Intervals(ctx context.Context, index, field, pattern string) (result.Page, error) {
	return s.Search(ctx, index, query.Request{Query: query.Intervals{
		Field: field, Pattern: pattern, MaxGaps: DefaultIntervalGaps, Ordered: true,
	}})
}

// MatchWithMax matches text on field among movies whose rangeField is at most max.
func (s *Service) MatchWithMax(ctx context.Context, index, field, text, rangeField string, maxValue float64) (result.Page, error) {
	return s.Search(ctx, index, query.Request{Query: query.Bool{Must: []query.Intent{
		query.Match{Field: field, Text: text},
		query.Range{Field: rangeField, Comparator: query.LTE, Bound: maxValue},
	}}})
}

// RegisterTemplate stores a mustache search template. Re-registering overwrites it.
func (s *Service) RegisterTemplate(ctx context.Context, t query.TemplateScript) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if err := s.engine.PutScript(ctx, t.ID, db.Script{Lang: db.LangMustache, Source: t.Source}); err != nil {
		return translate(db.OpPutScript, "", err)
	}
	s.logger.Info("search template registered", zap.String("template_id", t.ID))
	return nil
}

// ByTemplate runs a stored template with its parameter bindings.
func (s *Service) ByTemplate(ctx context.Context, index string, t query.Template) (result.Page, error) {
	if err := t.Validate(); err != nil {
		metrics.SearchRequestsTotal.WithLabelValues(metrics.StatusError).Inc()
		return result.Page{}, err
	}
	res, err := s.engine.SearchTemplate(ctx, index, &db.TemplateRequest{ScriptID: t.ID, Params: t.Params})
	return s.finish(index, db.OpSearchTemplate, res, err)
}

func (s *Service) finish(index, op string, res *db.SearchResult, err error) (result.Page, error) {
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues(metrics.StatusError).Inc()
		return result.Page{}, translate(op, index, err)
	}
	page, err := decode(res)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues(metrics.StatusError).Inc()
		s.logger.Error("decode search hits", zap.String("index", index), zap.Error(err))
		return result.Page{}, err
	}
	metrics.SearchRequestsTotal.WithLabelValues(metrics.StatusOK).Inc()
	return page, nil
}

func decode(res *db.SearchResult) (result.Page, error) {
	page := result.Page{Total: res.Total, Results: make([]result.Result, 0, len(res.Hits))}
	for _, h := range res.Hits {
		var m domain.Movie
		if err := json.Unmarshal(h.Source, &m); err != nil {
			return result.Page{}, fmt.Errorf("decode hit %s: %w", h.ID, err)
		}
		page.Results = append(page.Results, result.New(h.ID, h.Score, m))
	}
	return page, nil
}

func translate(op, index string, err error) error {
	switch {
	case errors.Is(err, db.ErrUnavailable):
		return domain.NewConnectionError(op, err)
	case errors.Is(err, db.ErrIndexNotFound):
		return &domain.SchemaError{Index: index, Reason: "index does not exist", Err: err}
	case errors.Is(err, db.ErrBadRequest):
		qe := &domain.QueryError{Reason: "rejected by engine", Err: err}
		var de *db.Error
		if errors.As(err, &de) && de.Reason != "" {
			qe.Reason = de.Reason
		}
		return qe
	default:
		return fmt.Errorf("%s %s: %w", op, index, err)
	}
}
