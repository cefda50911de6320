package cmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kailas-cloud/moviedex/internal/config"
	"github.com/kailas-cloud/moviedex/internal/db"
	"github.com/kailas-cloud/moviedex/internal/db/dbtest"
	"github.com/kailas-cloud/moviedex/internal/domain"
	"github.com/kailas-cloud/moviedex/internal/domain/search/query"
	"github.com/kailas-cloud/moviedex/internal/metrics"
	"github.com/kailas-cloud/moviedex/internal/repository/checkpoint"
	updateuc "github.com/kailas-cloud/moviedex/internal/usecase/update"
)

func TestMain(m *testing.M) {
	metrics.RegisterPipelineMetrics()
	os.Exit(m.Run())
}

const (
	moviesCSV = `movieId,title,genres
1,Toy Story (1995),Adventure|Animation|Children|Comedy|Fantasy
2,Jumanji (1995),Adventure|Children|Fantasy
3,"Grumpier Old Men, The (1995)",Comedy|Romance
oops,Broken (2000),Drama
`
	ratingsCSV = `userId,movieId,rating,timestamp
1,1,4.0,964982703
5,1,4.5,847434962
1,3,4.0,964981247
7,999,3.0,964981247
`
	tagsCSV = `userId,movieId,tag,timestamp
2,1,pixar,1445714994
2,2,"fantasy, board game",1445714995
`
)

type fixture struct {
	engine *dbtest.Engine
	cfg    config.Config
	cps    checkpoint.Store
	opts   ingestOptions
	logs   *observer.ObservedLogs
	logger *zap.Logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
		return p
	}

	var cfg config.Config
	cfg.ApplyDefaults()
	cfg.Ingest.BatchSize = 2

	core, logs := observer.New(zapcore.DebugLevel)
	return &fixture{
		engine: dbtest.New(),
		cfg:    cfg,
		cps:    checkpoint.NewFileStore(filepath.Join(dir, "checkpoints")),
		opts: ingestOptions{
			movies:  write("movies.csv", moviesCSV),
			ratings: write("ratings.csv", ratingsCSV),
			tags:    write("tags.csv", tagsCSV),
		},
		logs:   logs,
		logger: zap.New(core),
	}
}

func (f *fixture) run(t *testing.T, opts ingestOptions) ingestSummary {
	t.Helper()
	sum, err := newPipeline(f.engine, f.cfg, f.cps, f.logger).run(context.Background(), "movies", opts)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	return sum
}

func collection(t *testing.T, e *dbtest.Engine, id, field string) []any {
	t.Helper()
	doc, ok := e.Document("movies", id)
	if !ok {
		t.Fatalf("movie %s not indexed", id)
	}
	list, _ := doc[field].([]any)
	return list
}

func TestPipeline_FullRun(t *testing.T) {
	f := newFixture(t)
	sum := f.run(t, f.opts)

	if got := f.engine.Count("movies"); got != 3 {
		t.Fatalf("expected 3 movies, got %d", got)
	}
	if sum.Movies.Indexed != 3 || sum.Movies.Failed() != 0 {
		t.Errorf("unexpected movie report: %+v", sum.Movies)
	}
	if sum.SkippedRows != 1 {
		t.Errorf("expected 1 malformed row, got %d", sum.SkippedRows)
	}
	if sum.Ratings.Applied != 3 || sum.Ratings.Skipped != 1 {
		t.Errorf("unexpected ratings report: %+v", sum.Ratings)
	}
	if sum.Tags.Applied != 2 {
		t.Errorf("unexpected tags report: %+v", sum.Tags)
	}

	if got := len(collection(t, f.engine, "1", domain.FieldRatings)); got != 2 {
		t.Errorf("movie 1: expected 2 ratings, got %d", got)
	}
	if got := len(collection(t, f.engine, "2", domain.FieldRatings)); got != 0 {
		t.Errorf("movie 2: expected no ratings, got %d", got)
	}
	tags := collection(t, f.engine, "2", domain.FieldTags)
	if len(tags) != 1 || tags[0].(map[string]any)["tag"] != "fantasy, board game" {
		t.Errorf("movie 2: unexpected tags %v", tags)
	}

	if _, ok := f.engine.Script(query.MovieTemplateID); !ok {
		t.Error("search template was not stored")
	}
	if f.logs.FilterMessage("Skipping malformed row").Len() != 1 {
		t.Error("expected a warning for the malformed row")
	}
}

func TestPipeline_UpdatesOnlyResumes(t *testing.T) {
	f := newFixture(t)
	f.run(t, f.opts)

	opts := f.opts
	opts.updatesOnly = true
	sum := f.run(t, opts)

	if sum.Ratings.Applied != 0 || sum.Ratings.Resumed != 4 {
		t.Errorf("expected every rating to be resumed, got %+v", sum.Ratings)
	}
	if got := len(collection(t, f.engine, "1", domain.FieldRatings)); got != 2 {
		t.Errorf("movie 1: ratings were duplicated, got %d", got)
	}
	if calls := f.engine.Calls(db.OpCreateIndex); calls != 1 {
		t.Errorf("updates-only must keep the index, create called %d times", calls)
	}
}

func TestPipeline_ResetCheckpointReapplies(t *testing.T) {
	f := newFixture(t)
	f.run(t, f.opts)

	opts := f.opts
	opts.updatesOnly = true
	opts.resetCheckpoint = true
	sum := f.run(t, opts)

	if sum.Ratings.Applied != 3 {
		t.Errorf("expected ratings to be applied again, got %+v", sum.Ratings)
	}
	if got := len(collection(t, f.engine, "1", domain.FieldRatings)); got != 4 {
		t.Errorf("movie 1: expected 4 ratings after reapply, got %d", got)
	}
}

func TestPipeline_RebuildResetsCheckpoints(t *testing.T) {
	f := newFixture(t)
	f.run(t, f.opts)
	sum := f.run(t, f.opts)

	if sum.Ratings.Applied != 3 || sum.Ratings.Resumed != 0 {
		t.Errorf("a rebuilt index must start the streams over, got %+v", sum.Ratings)
	}
	if got := len(collection(t, f.engine, "1", domain.FieldRatings)); got != 2 {
		t.Errorf("movie 1: expected 2 ratings, got %d", got)
	}
}

func TestPipeline_SkipUpdates(t *testing.T) {
	f := newFixture(t)
	opts := f.opts
	opts.skipUpdates = true
	sum := f.run(t, opts)

	if sum.Ratings != (updateuc.StreamReport{}) || sum.Tags != (updateuc.StreamReport{}) {
		t.Errorf("expected no updates, got ratings %+v tags %+v", sum.Ratings, sum.Tags)
	}
	if calls := f.engine.Calls(db.OpUpdate); calls != 0 {
		t.Errorf("expected no update calls, got %d", calls)
	}
	if f.engine.Count("movies") != 3 {
		t.Error("movies were not indexed")
	}
}

func TestPipeline_MissingSource(t *testing.T) {
	f := newFixture(t)
	opts := f.opts
	opts.ratings = filepath.Join(t.TempDir(), "absent.csv")

	_, err := newPipeline(f.engine, f.cfg, f.cps, f.logger).run(context.Background(), "movies", opts)
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
	if f.engine.Count("movies") != 3 {
		t.Error("movies should be indexed before the ratings stage fails")
	}
}

func TestPipeline_EngineDown(t *testing.T) {
	f := newFixture(t)
	f.engine.FailNext(db.OpIndexExists, db.ErrUnavailable)

	_, err := newPipeline(f.engine, f.cfg, f.cps, f.logger).run(context.Background(), "movies", f.opts)
	if !errors.Is(err, domain.ErrConnection) {
		t.Fatalf("expected connection error, got %v", err)
	}
}
