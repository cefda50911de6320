package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kailas-cloud/moviedex/internal/db"
	"github.com/kailas-cloud/moviedex/internal/db/dbtest"
	"github.com/kailas-cloud/moviedex/internal/domain"
	"github.com/kailas-cloud/moviedex/internal/metrics"
	healthuc "github.com/kailas-cloud/moviedex/internal/usecase/health"
	searchuc "github.com/kailas-cloud/moviedex/internal/usecase/search"
)

func TestMain(m *testing.M) {
	metrics.RegisterPipelineMetrics()
	os.Exit(m.Run())
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func seedEngine(t *testing.T) *dbtest.Engine {
	t.Helper()
	ctx := context.Background()
	e := dbtest.New()
	if err := e.CreateIndex(ctx, "movies"); err != nil {
		t.Fatal(err)
	}
	if err := e.PutMapping(ctx, "movies", db.MovieMapping()); err != nil {
		t.Fatal(err)
	}

	toy := domain.NewMovie(1, "Toy Story (1995)", []string{"Adventure", "Animation"})
	toy.Ratings = []domain.Rating{{MovieID: 1, UserID: 5, Score: 4.5}}
	toy2 := domain.NewMovie(2, "Toy Story 2 (1999)", []string{"Animation"})
	toy2.Ratings = []domain.Rating{{MovieID: 2, UserID: 6, Score: 2}}
	heat := domain.NewMovie(6, "Heat (1995)", []string{"Drama", "Thriller"})

	var ops []db.BulkOp
	for _, m := range []domain.Movie{toy, toy2, heat} {
		doc, err := json.Marshal(m)
		if err != nil {
			t.Fatal(err)
		}
		ops = append(ops, db.BulkOp{ID: m.DocID(), Doc: doc})
	}
	if _, err := e.Bulk(ctx, "movies", ops); err != nil {
		t.Fatal(err)
	}
	return e
}

func newTestRouter(t *testing.T, e *dbtest.Engine, es healthuc.Pinger, logger *zap.Logger) http.Handler {
	t.Helper()
	search := searchuc.New(e, logger)
	health := healthuc.New(es, nil, logger)
	return NewRouter(NewServer(search, health, logger), nil, logger)
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeSearch(t *testing.T, rr *httptest.ResponseRecorder) SearchResponse {
	t.Helper()
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var resp SearchResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp
}

func itemIDs(resp SearchResponse) []string {
	ids := make([]string, len(resp.Items))
	for i, it := range resp.Items {
		ids[i] = it.ID
	}
	return ids
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder, status int, code ErrorCode) ErrorResponse {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("status = %d, want %d, body = %s", rr.Code, status, rr.Body.String())
	}
	var resp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if resp.Code != code {
		t.Errorf("code = %s, want %s", resp.Code, code)
	}
	return resp
}

func TestListMovies(t *testing.T) {
	h := newTestRouter(t, seedEngine(t), stubPinger{}, zap.NewNop())

	resp := decodeSearch(t, do(t, h, http.MethodGet, "/v1/indexes/movies/movies?size=2", ""))
	if resp.Total != 3 || len(resp.Items) != 2 {
		t.Fatalf("total=%d items=%d", resp.Total, len(resp.Items))
	}
	if resp.Items[0].Movie.Title != "Toy Story (1995)" || len(resp.Items[0].Movie.Ratings) != 1 {
		t.Errorf("first movie = %+v", resp.Items[0].Movie)
	}

	resp = decodeSearch(t, do(t, h, http.MethodGet, "/v1/indexes/movies/movies?size=2&from=2", ""))
	if got := itemIDs(resp); len(got) != 1 || got[0] != "6" {
		t.Errorf("second page = %v", got)
	}
}

func TestSearchField(t *testing.T) {
	h := newTestRouter(t, seedEngine(t), stubPinger{}, zap.NewNop())

	tests := []struct {
		target string
		want   []string
	}{
		{"/v1/indexes/movies/search?field=title&q=heat", []string{"6"}},
		{"/v1/indexes/movies/search?type=prefix&field=title&q=Toy", []string{"1", "2"}},
		{"/v1/indexes/movies/search?type=phrase&field=title&q=story+2", []string{"2"}},
		{"/v1/indexes/movies/search?type=intervals&field=title&q=toy+1999&max_gaps=2", []string{"2"}},
		{"/v1/indexes/movies/search?type=intervals&field=title&q=toy+1999&max_gaps=0", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			got := itemIDs(decodeSearch(t, do(t, h, http.MethodGet, tt.target, "")))
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("ids = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSearchField_BadParams(t *testing.T) {
	h := newTestRouter(t, seedEngine(t), stubPinger{}, zap.NewNop())

	decodeError(t, do(t, h, http.MethodGet, "/v1/indexes/movies/search?field=title", ""),
		http.StatusBadRequest, ErrorCodeBadRequest)
	decodeError(t, do(t, h, http.MethodGet, "/v1/indexes/movies/search?field=title&q=x&size=ten", ""),
		http.StatusBadRequest, ErrorCodeBadRequest)
	decodeError(t, do(t, h, http.MethodGet, "/v1/indexes/movies/search?type=fuzzy&field=title&q=x", ""),
		http.StatusBadRequest, ErrorCodeValidationFailed)
	decodeError(t, do(t, h, http.MethodGet, "/v1/indexes/movies/search?field=title&q=x&size=20000", ""),
		http.StatusBadRequest, ErrorCodeValidationFailed)
}

func TestSearchMulti(t *testing.T) {
	h := newTestRouter(t, seedEngine(t), stubPinger{}, zap.NewNop())

	got := itemIDs(decodeSearch(t, do(t, h, http.MethodGet, "/v1/indexes/movies/search/multi?fields=title,genres&q=Thriller", "")))
	if strings.Join(got, ",") != "6" {
		t.Errorf("ids = %v", got)
	}

	decodeError(t, do(t, h, http.MethodGet, "/v1/indexes/movies/search/multi?fields=title&q=x&mode=fuzzy", ""),
		http.StatusBadRequest, ErrorCodeValidationFailed)
}

func TestSearchCompound(t *testing.T) {
	h := newTestRouter(t, seedEngine(t), stubPinger{}, zap.NewNop())

	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "match and range",
			body: `{"must":[{"type":"match","field":"title","text":"toy"},{"type":"range","field":"movieId","lte":1}]}`,
			want: "1",
		},
		{
			name: "nested conditions on one rating",
			body: `{"must":[{"type":"nested","path":"ratings","must":[
				{"type":"term","field":"ratings.userId","value":6},
				{"type":"range","field":"ratings.rating","lte":3}]}]}`,
			want: "2",
		},
		{
			name: "nested conditions split across ratings",
			body: `{"must":[{"type":"nested","path":"ratings","must":[
				{"type":"term","field":"ratings.userId","value":5},
				{"type":"range","field":"ratings.rating","lte":3}]}]}`,
			want: "",
		},
		{
			name: "single clause",
			body: `{"must":[{"type":"prefix","field":"title","text":"hea"}]}`,
			want: "6",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := itemIDs(decodeSearch(t, do(t, h, http.MethodPost, "/v1/indexes/movies/search", tt.body)))
			if strings.Join(got, ",") != tt.want {
				t.Errorf("ids = %v, want %q", got, tt.want)
			}
		})
	}
}

func TestSearchCompound_Invalid(t *testing.T) {
	h := newTestRouter(t, seedEngine(t), stubPinger{}, zap.NewNop())

	decodeError(t, do(t, h, http.MethodPost, "/v1/indexes/movies/search", `{"must":`),
		http.StatusBadRequest, ErrorCodeBadRequest)
	decodeError(t, do(t, h, http.MethodPost, "/v1/indexes/movies/search", `{"must":[]}`),
		http.StatusBadRequest, ErrorCodeValidationFailed)
	decodeError(t, do(t, h, http.MethodPost, "/v1/indexes/movies/search", `{"must":[{"type":"regexp"}]}`),
		http.StatusBadRequest, ErrorCodeValidationFailed)
	decodeError(t, do(t, h, http.MethodPost, "/v1/indexes/movies/search", `{"must":[{"type":"range","field":"movieId"}]}`),
		http.StatusBadRequest, ErrorCodeValidationFailed)
}

func TestTemplates(t *testing.T) {
	e := seedEngine(t)
	h := newTestRouter(t, e, stubPinger{}, zap.NewNop())

	rr := do(t, h, http.MethodPut, "/v1/templates/by-field", `{"source":"{\"query\":{\"match\":{\"{{field}}\":\"{{value}}\"}}}"}`)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("register status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if _, ok := e.Script("by-field"); !ok {
		t.Fatal("template not stored")
	}

	got := itemIDs(decodeSearch(t, do(t, h, http.MethodPost, "/v1/indexes/movies/templates/by-field",
		`{"params":{"field":"genres","value":"Drama"}}`)))
	if strings.Join(got, ",") != "6" {
		t.Errorf("ids = %v", got)
	}

	decodeError(t, do(t, h, http.MethodPut, "/v1/templates/empty", `{"source":""}`),
		http.StatusBadRequest, ErrorCodeValidationFailed)
	decodeError(t, do(t, h, http.MethodPost, "/v1/indexes/movies/templates/missing", `{"params":{}}`),
		http.StatusBadRequest, ErrorCodeValidationFailed)
}

func TestErrorMapping(t *testing.T) {
	e := seedEngine(t)
	h := newTestRouter(t, e, stubPinger{}, zap.NewNop())

	decodeError(t, do(t, h, http.MethodGet, "/v1/indexes/missing/movies", ""),
		http.StatusNotFound, ErrorCodeIndexNotFound)

	e.FailNext(db.OpSearch, &db.Error{Op: db.OpSearch, Err: db.ErrUnavailable})
	resp := decodeError(t, do(t, h, http.MethodGet, "/v1/indexes/movies/movies", ""),
		http.StatusBadGateway, ErrorCodeEngineUnavailable)
	if resp.Message != domain.ErrConnection.Error() {
		t.Errorf("message should not leak internals: %q", resp.Message)
	}

	e.FailNext(db.OpSearch, errors.New("boom"))
	decodeError(t, do(t, h, http.MethodGet, "/v1/indexes/movies/movies", ""),
		http.StatusInternalServerError, ErrorCodeInternalError)
}

func TestHealth(t *testing.T) {
	rr := do(t, newTestRouter(t, seedEngine(t), stubPinger{}, zap.NewNop()), http.MethodGet, "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "ok" || resp.Checks[healthuc.ComponentElastic] != "ok" {
		t.Errorf("health = %+v", resp)
	}

	rr = do(t, newTestRouter(t, seedEngine(t), stubPinger{err: errors.New("down")}, zap.NewNop()), http.MethodGet, "/health", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rr.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestRouter(t, seedEngine(t), stubPinger{}, zap.NewNop())
	do(t, h, http.MethodGet, "/v1/indexes/movies/movies", "")

	rr := do(t, h, http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "moviedex_http_requests_total") {
		t.Errorf("metrics status=%d", rr.Code)
	}
}

func TestWideEventLog(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	h := newTestRouter(t, seedEngine(t), stubPinger{}, zap.New(core))

	rr := do(t, h, http.MethodGet, "/v1/indexes/movies/movies", "")
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}

	entries := logs.FilterMessage("http_request").All()
	if len(entries) != 1 {
		t.Fatalf("expected one http_request line, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["status"] != int64(http.StatusOK) || fields["index"] != "movies" || fields["request_id"] == "" {
		t.Errorf("fields = %v", fields)
	}
}

func TestDomainErrorLogCarriesIndex(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	h := newTestRouter(t, seedEngine(t), stubPinger{}, zap.New(core))

	decodeError(t, do(t, h, http.MethodGet, "/v1/indexes/absent/movies", ""), http.StatusNotFound, ErrorCodeIndexNotFound)

	entries := logs.FilterMessage("domain error").All()
	if len(entries) != 1 {
		t.Fatalf("expected one domain error line, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["index"] != "absent" || fields["request_id"] == "" {
		t.Errorf("fields = %v", fields)
	}
}

func TestJSONRecoverer(t *testing.T) {
	h := JSONRecoverer(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	decodeError(t, rr, http.StatusInternalServerError, ErrorCodeInternalError)
}

func TestNotFoundRoute(t *testing.T) {
	h := newTestRouter(t, seedEngine(t), stubPinger{}, zap.NewNop())
	decodeError(t, do(t, h, http.MethodGet, "/v2/anything", ""), http.StatusNotFound, ErrorCodeBadRequest)
}
