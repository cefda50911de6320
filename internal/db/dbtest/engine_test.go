package dbtest

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/moviedex/internal/db"
)

func seed(t *testing.T, docs map[string]string) *Engine {
	t.Helper()
	e := New()
	ctx := context.Background()
	if err := e.CreateIndex(ctx, "movies"); err != nil {
		t.Fatalf("CreateIndex: %v", err)
	}
	if err := e.PutMapping(ctx, "movies", db.MovieMapping()); err != nil {
		t.Fatalf("PutMapping: %v", err)
	}
	ops := make([]db.BulkOp, 0, len(docs))
	for id, doc := range docs {
		ops = append(ops, db.BulkOp{ID: id, Doc: []byte(doc)})
	}
	res, err := e.Bulk(ctx, "movies", ops)
	if err != nil || res.Errors {
		t.Fatalf("Bulk: res=%+v err=%v", res, err)
	}
	return e
}

func ids(res *db.SearchResult) map[string]bool {
	out := make(map[string]bool, len(res.Hits))
	for _, h := range res.Hits {
		out[h.ID] = true
	}
	return out
}

func TestSearch_NestedIsolation(t *testing.T) {
	e := seed(t, map[string]string{
		"1": `{"movieId":1,"title":"A","ratings":[{"userId":5,"rating":9.0}]}`,
		"2": `{"movieId":2,"title":"B","ratings":[{"userId":5,"rating":9.0},{"userId":6,"rating":1.0}]}`,
	})
	body := `{"query":{"nested":{"path":"ratings","query":{"bool":{"must":[
		{"term":{"ratings.userId":{"value":5}}},
		{"range":{"ratings.rating":{"lte":1}}}
	]}}}}}`

	res, err := e.Search(context.Background(), "movies", []byte(body))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Total != 0 {
		t.Errorf("expected no hits across sub-documents, got %v", ids(res))
	}
}

func TestSearch_NestedFieldsOutsideNestedClause(t *testing.T) {
	e := seed(t, map[string]string{
		"1": `{"movieId":1,"title":"A","ratings":[{"userId":7,"rating":1.0}]}`,
		"2": `{"movieId":2,"title":"B","ratings":[{"userId":5,"rating":9.0},{"userId":6,"rating":1.0}]}`,
	})
	tests := []struct {
		name string
		body string
		want int
	}{
		{"top-level bool over nested fields", `{"query":{"bool":{"must":[
			{"term":{"ratings.userId":{"value":5}}},
			{"range":{"ratings.rating":{"lte":1}}}
		]}}}`, 0},
		{"top-level term on nested field", `{"query":{"term":{"ratings.userId":{"value":5}}}}`, 0},
		{"same conditions in nested clause", `{"query":{"nested":{"path":"ratings","query":{"bool":{"must":[
			{"term":{"ratings.userId":{"value":5}}},
			{"range":{"ratings.rating":{"gte":9}}}
		]}}}}}`, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.Search(context.Background(), "movies", []byte(tt.body))
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if res.Total != tt.want {
				t.Errorf("total = %d, want %d (hits %v)", res.Total, tt.want, ids(res))
			}
		})
	}
}

func TestSearch_NestedUnknownPath(t *testing.T) {
	e := seed(t, map[string]string{"1": `{"movieId":1,"title":"A"}`})
	_, err := e.Search(context.Background(), "movies",
		[]byte(`{"query":{"nested":{"path":"title","query":{"match_all":{}}}}}`))
	if !errors.Is(err, db.ErrBadRequest) {
		t.Errorf("err = %v, want ErrBadRequest", err)
	}
}

func TestSearch_PhrasePrefix(t *testing.T) {
	e := seed(t, map[string]string{
		"1": `{"movieId":1,"title":"Toy Story (1995)"}`,
		"2": `{"movieId":2,"title":"Bigtoys (2001)"}`,
		"3": `{"movieId":3,"title":"Toys (1992)"}`,
	})
	res, err := e.Search(context.Background(), "movies",
		[]byte(`{"query":{"match_phrase_prefix":{"title":{"query":"Toy"}}}}`))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	got := ids(res)
	if !got["1"] || !got["3"] || got["2"] {
		t.Errorf("hits = %v, want 1 and 3", got)
	}
}

func TestSearch_Intervals(t *testing.T) {
	e := seed(t, map[string]string{
		"1": `{"movieId":1,"title":"Star Wars"}`,
		"2": `{"movieId":2,"title":"Star and the long way to Wars"}`,
	})
	body := `{"query":{"intervals":{"title":{"match":{"query":"star wars","max_gaps":1,"ordered":true}}}}}`
	res, err := e.Search(context.Background(), "movies", []byte(body))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got := ids(res); !got["1"] || got["2"] {
		t.Errorf("hits = %v, want only 1", got)
	}
}

func TestSearch_SizeFrom(t *testing.T) {
	e := seed(t, map[string]string{
		"1": `{"movieId":1}`, "2": `{"movieId":2}`, "3": `{"movieId":3}`,
	})
	res, err := e.Search(context.Background(), "movies", []byte(`{"query":{"match_all":{}},"size":1,"from":1}`))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Total != 3 || len(res.Hits) != 1 {
		t.Errorf("total=%d hits=%d, want 3/1", res.Total, len(res.Hits))
	}
}

func TestSearch_UnknownQuery(t *testing.T) {
	e := seed(t, nil)
	_, err := e.Search(context.Background(), "movies", []byte(`{"query":{"mtch":{}}}`))
	if !errors.Is(err, db.ErrBadRequest) {
		t.Fatalf("expected ErrBadRequest, got %v", err)
	}
}

func TestBulk_TypeMismatchFailsOneItem(t *testing.T) {
	e := seed(t, nil)
	res, err := e.Bulk(context.Background(), "movies", []db.BulkOp{
		{ID: "1", Doc: []byte(`{"movieId":1}`)},
		{ID: "2", Doc: []byte(`{"movieId":"two"}`)},
	})
	if err != nil {
		t.Fatalf("Bulk: %v", err)
	}
	if !res.Errors || res.Items[0].Failed() || !res.Items[1].Failed() {
		t.Errorf("items = %+v", res.Items)
	}
	if e.Count("movies") != 1 {
		t.Errorf("count = %d, want 1", e.Count("movies"))
	}
}

func TestUpdateByScript_Append(t *testing.T) {
	e := seed(t, map[string]string{"1": `{"movieId":1,"ratings":[]}`})
	ctx := context.Background()
	if err := e.PutScript(ctx, "append", db.Script{Lang: db.LangPainless, Source: "..."}); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		err := e.UpdateByScript(ctx, &db.UpdateRequest{
			Index: "movies", ID: "1", ScriptID: "append",
			Params: map[string]any{"field": "ratings", "item": map[string]any{"userId": i}},
		})
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	doc, _ := e.Document("movies", "1")
	if n := len(doc["ratings"].([]any)); n != 3 {
		t.Errorf("ratings = %d, want 3", n)
	}
}

func TestUpdateByScript_MissingDocument(t *testing.T) {
	e := seed(t, nil)
	ctx := context.Background()
	_ = e.PutScript(ctx, "append", db.Script{Lang: db.LangPainless})
	err := e.UpdateByScript(ctx, &db.UpdateRequest{
		Index: "movies", ID: "9", ScriptID: "append",
		Params: map[string]any{"field": "ratings", "item": map[string]any{}},
	})
	if !errors.Is(err, db.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if _, ok := e.Document("movies", "9"); ok {
		t.Error("document must not be created")
	}
}

func TestSearchTemplate(t *testing.T) {
	e := seed(t, map[string]string{
		"1": `{"movieId":1,"title":"Toy Story"}`,
		"2": `{"movieId":2,"title":"Heat"}`,
	})
	ctx := context.Background()
	_ = e.PutScript(ctx, "query-script", db.Script{
		Lang:   db.LangMustache,
		Source: `{"query":{"match":{"{{field}}":"{{value}}"}}}`,
	})
	res, err := e.SearchTemplate(ctx, "movies", &db.TemplateRequest{
		ScriptID: "query-script", Params: map[string]any{"field": "title", "value": "toy"},
	})
	if err != nil {
		t.Fatalf("SearchTemplate: %v", err)
	}
	if got := ids(res); len(got) != 1 || !got["1"] {
		t.Errorf("hits = %v", got)
	}
}

func TestFailNext(t *testing.T) {
	e := New()
	boom := errors.New("boom")
	e.FailNext(db.OpPing, boom)
	if err := e.Ping(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
	if err := e.Ping(context.Background()); err != nil {
		t.Fatalf("failure must be consumed, got %v", err)
	}
	if e.Calls(db.OpPing) != 2 {
		t.Errorf("calls = %d", e.Calls(db.OpPing))
	}
}

func TestPutMapping_Conflict(t *testing.T) {
	e := seed(t, nil)
	err := e.PutMapping(context.Background(), "movies", db.NewMapping().Long("title").MustBuild())
	if !errors.Is(err, db.ErrMappingConflict) {
		t.Fatalf("expected ErrMappingConflict, got %v", err)
	}
}
