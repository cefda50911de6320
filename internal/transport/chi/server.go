package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/moviedex/internal/domain"
	"github.com/kailas-cloud/moviedex/internal/domain/search/query"
	"github.com/kailas-cloud/moviedex/internal/domain/search/result"
	"github.com/kailas-cloud/moviedex/internal/logger"
	healthuc "github.com/kailas-cloud/moviedex/internal/usecase/health"
	searchuc "github.com/kailas-cloud/moviedex/internal/usecase/search"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server serves the movie search API.
type Server struct {
	search        *searchuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(search *searchuc.Service, health *healthuc.Service, logger *zap.Logger) *Server {
	s := &Server{search: search, health: health, logger: logger}
	s.errorHandlers = []errorHandler{
		queryErrorHandler,
		sentinelHandler(domain.ErrSchema, http.StatusNotFound, ErrorCodeIndexNotFound),
		sentinelHandler(domain.ErrConnection, http.StatusBadGateway, ErrorCodeEngineUnavailable),
	}
	return s
}

// Register mounts the API routes on r.
func (s *Server) Register(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Route("/v1", func(r chi.Router) {
		r.Put("/templates/{id}", s.RegisterTemplate)
		r.Route("/indexes/{index}", func(r chi.Router) {
			r.Get("/movies", s.ListMovies)
			r.Get("/search", s.SearchField)
			r.Post("/search", s.SearchCompound)
			r.Get("/search/multi", s.SearchMulti)
			r.Post("/templates/{id}", s.SearchTemplate)
		})
	})
}

// ListMovies handles GET /v1/indexes/{index}/movies.
func (s *Server) ListMovies(w http.ResponseWriter, r *http.Request) {
	index, ok := s.pathParam(w, r, "index")
	if !ok {
		return
	}
	var size, from int
	if !bindQuery(w, r, "size", false, &size) || !bindQuery(w, r, "from", false, &from) {
		return
	}
	s.run(w, r, index, query.Request{Query: query.MatchAll{}, Size: size, From: from})
}

// SearchField handles GET /v1/indexes/{index}/search?type=&field=&q=.
func (s *Server) SearchField(w http.ResponseWriter, r *http.Request) {
	index, ok := s.pathParam(w, r, "index")
	if !ok {
		return
	}
	var (
		c          = Clause{Type: clauseMatch}
		size, from int
		maxGaps    int
	)
	if !bindQuery(w, r, "type", false, &c.Type) ||
		!bindQuery(w, r, "field", true, &c.Field) ||
		!bindQuery(w, r, "q", true, &c.Text) ||
		!bindQuery(w, r, "size", false, &size) ||
		!bindQuery(w, r, "from", false, &from) {
		return
	}
	if r.URL.Query().Has("max_gaps") {
		if !bindQuery(w, r, "max_gaps", true, &maxGaps) {
			return
		}
		c.MaxGaps = &maxGaps
	}
	switch c.Type {
	case clauseMatch, clausePhrase, clausePrefix, clauseIntervals:
	default:
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed,
			fmt.Sprintf("type must be one of match, phrase, prefix, intervals, got %q", c.Type))
		return
	}
	intents, err := intentsFromClause(c)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	s.run(w, r, index, query.Request{Query: intents[0], Size: size, From: from})
}

// SearchMulti handles GET /v1/indexes/{index}/search/multi?fields=a,b&q=.
func (s *Server) SearchMulti(w http.ResponseWriter, r *http.Request) {
	index, ok := s.pathParam(w, r, "index")
	if !ok {
		return
	}
	var (
		fields     []string
		text, mode string
		size, from int
	)
	if !bindQuery(w, r, "fields", true, &fields) ||
		!bindQuery(w, r, "q", true, &text) ||
		!bindQuery(w, r, "mode", false, &mode) ||
		!bindQuery(w, r, "size", false, &size) ||
		!bindQuery(w, r, "from", false, &from) {
		return
	}
	intents, err := intentsFromClause(Clause{Type: clauseMultiMatch, Fields: fields, Text: text, Mode: mode})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	s.run(w, r, index, query.Request{Query: intents[0], Size: size, From: from})
}

// SearchCompound handles POST /v1/indexes/{index}/search.
func (s *Server) SearchCompound(w http.ResponseWriter, r *http.Request) {
	index, ok := s.pathParam(w, r, "index")
	if !ok {
		return
	}
	var req CompoundSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Must) == 0 {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "must requires at least one clause")
		return
	}
	must, err := intentsFromClauses(req.Must)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	var q query.Intent = query.Bool{Must: must}
	if len(must) == 1 {
		q = must[0]
	}
	s.run(w, r, index, query.Request{Query: q, Size: req.Size, From: req.From})
}

// SearchTemplate handles POST /v1/indexes/{index}/templates/{id}.
func (s *Server) SearchTemplate(w http.ResponseWriter, r *http.Request) {
	index, ok := s.pathParam(w, r, "index")
	if !ok {
		return
	}
	id, ok := s.pathParam(w, r, "id")
	if !ok {
		return
	}
	var req TemplateSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	r = r.WithContext(logger.With(r.Context(), zap.String("index", index), zap.String("template", id)))
	page, err := s.search.ByTemplate(r.Context(), index, query.Template{ID: id, Params: req.Params})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pageToResponse(page))
}

// RegisterTemplate handles PUT /v1/templates/{id}.
func (s *Server) RegisterTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathParam(w, r, "id")
	if !ok {
		return
	}
	var req RegisterTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := s.search.RegisterTemplate(r.Context(), query.TemplateScript{ID: id, Source: req.Source}); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{Status: string(report.Status), Checks: checks})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) run(w http.ResponseWriter, r *http.Request, index string, req query.Request) {
	r = r.WithContext(logger.With(r.Context(), zap.String("index", index)))
	page, err := s.search.Search(r.Context(), index, req)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pageToResponse(page))
}

func (s *Server) pathParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	var v string
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &v,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true})
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, fmt.Sprintf("Invalid format for parameter %s: %s", name, err))
		return "", false
	}
	return v, true
}

func bindQuery(w http.ResponseWriter, r *http.Request, name string, required bool, dest any) bool {
	if err := runtime.BindQueryParameter("form", false, required, name, r.URL.Query(), dest); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, fmt.Sprintf("Invalid format for parameter %s: %s", name, err))
		return false
	}
	return true
}

func pageToResponse(p result.Page) SearchResponse {
	items := make([]SearchItem, len(p.Results))
	for i := range p.Results {
		items[i] = SearchItem{ID: p.Results[i].ID(), Score: p.Results[i].Score(), Movie: p.Results[i].Movie()}
	}
	return SearchResponse{Items: items, Total: p.Total}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
// The response carries only the sentinel text.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, sentinel.Error())
		return true
	}
}

// queryErrorHandler maps query errors to 400 with the full reason.
func queryErrorHandler(w http.ResponseWriter, err error) bool {
	var qe *domain.QueryError
	if !errors.As(err, &qe) {
		return false
	}
	writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, qe.Error())
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())
	log.Warn("domain error", zap.Error(err))
	for _, h := range s.errorHandlers {
		if h(w, err) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}
