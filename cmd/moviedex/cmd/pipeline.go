package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"

	"go.uber.org/zap"

	"github.com/kailas-cloud/moviedex/internal/config"
	"github.com/kailas-cloud/moviedex/internal/db"
	dombatch "github.com/kailas-cloud/moviedex/internal/domain/batch"
	"github.com/kailas-cloud/moviedex/internal/domain/search/query"
	"github.com/kailas-cloud/moviedex/internal/repository/checkpoint"
	"github.com/kailas-cloud/moviedex/internal/source"
	indexuc "github.com/kailas-cloud/moviedex/internal/usecase/index"
	ingestuc "github.com/kailas-cloud/moviedex/internal/usecase/ingest"
	searchuc "github.com/kailas-cloud/moviedex/internal/usecase/search"
	updateuc "github.com/kailas-cloud/moviedex/internal/usecase/update"
)

// ingestOptions selects the stages of one ingest run.
type ingestOptions struct {
	movies, ratings, tags string
	skipUpdates           bool
	updatesOnly           bool
	resetCheckpoint       bool
}

// ingestSummary is what one run did.
type ingestSummary struct {
	Movies      dombatch.Report
	Ratings     updateuc.StreamReport
	Tags        updateuc.StreamReport
	SkippedRows int
}

// pipeline is the composition root of the ingest flow.
type pipeline struct {
	index  *indexuc.Service
	ingest *ingestuc.Service
	update *updateuc.Service
	search *searchuc.Service
	logger *zap.Logger
}

func newPipeline(engine db.Engine, cfg config.Config, cps checkpoint.Store, logger *zap.Logger) *pipeline {
	return &pipeline{
		index:  indexuc.New(engine, logger),
		ingest: ingestuc.New(engine, logger).WithBatchSize(cfg.Ingest.BatchSize),
		update: updateuc.New(engine, updateuc.Config{
			ScriptID:        cfg.Update.ScriptID,
			RetryOnConflict: cfg.Update.RetryOnConflict,
			ProgressEvery:   cfg.Update.ProgressEvery,
			SaveEvery:       cfg.Checkpoint.SaveEvery,
			Workers:         cfg.Update.Workers,
		}, logger).WithCheckpoints(cps),
		search: searchuc.New(engine, logger).WithDefaultSize(cfg.Search.DefaultSize),
		logger: logger,
	}
}

// run executes rebuild, bulk load, refresh and the rating and tag appends, in
// that order. With updatesOnly the index is kept and the appends resume from
// their checkpoints.
func (p *pipeline) run(ctx context.Context, index string, opts ingestOptions) (ingestSummary, error) {
	var sum ingestSummary
	log := p.logger.With(zap.String("index", index))

	if !opts.updatesOnly {
		if err := p.index.Rebuild(ctx, index, db.MovieMapping()); err != nil {
			return sum, err
		}
		log.Info("Index was created and mapping applied")

		// A fresh index has nothing applied yet.
		if err := p.update.ResetCheckpoints(ctx, index); err != nil {
			return sum, err
		}

		report, err := withSource(opts.movies, func(f io.Reader) (dombatch.Report, error) {
			return p.ingest.IndexAll(ctx, index, skipBadRows(source.Movies(f), opts.movies, log, &sum.SkippedRows))
		})
		sum.Movies = report
		if err != nil {
			return sum, err
		}
		log.Info("Movies were indexed",
			zap.Int("total", report.Total),
			zap.Int("indexed", report.Indexed),
			zap.Int("failed", report.Failed()),
		)

		if err := p.index.Refresh(ctx, index); err != nil {
			return sum, err
		}
	} else if opts.resetCheckpoint {
		if err := p.update.ResetCheckpoints(ctx, index); err != nil {
			return sum, err
		}
		log.Info("Checkpoints reset")
	}

	if err := p.search.RegisterTemplate(ctx, query.MovieTemplate()); err != nil {
		return sum, err
	}

	if opts.skipUpdates {
		return sum, nil
	}

	if err := p.update.RegisterScripts(ctx); err != nil {
		return sum, err
	}

	var err error
	sum.Ratings, err = withSource(opts.ratings, func(f io.Reader) (updateuc.StreamReport, error) {
		return p.update.ApplyRatings(ctx, index, skipBadRows(source.Ratings(f), opts.ratings, log, &sum.SkippedRows))
	})
	if err != nil {
		return sum, err
	}
	log.Info("Ratings were indexed", zap.Int64("applied", sum.Ratings.Applied), zap.Int64("skipped", sum.Ratings.Skipped))

	sum.Tags, err = withSource(opts.tags, func(f io.Reader) (updateuc.StreamReport, error) {
		return p.update.ApplyTags(ctx, index, skipBadRows(source.Tags(f), opts.tags, log, &sum.SkippedRows))
	})
	if err != nil {
		return sum, err
	}
	log.Info("Tags were indexed", zap.Int64("applied", sum.Tags.Applied), zap.Int64("skipped", sum.Tags.Skipped))

	return sum, nil
}

func withSource[R any](path string, fn func(io.Reader) (R, error)) (R, error) {
	f, err := source.Open(path)
	if err != nil {
		var zero R
		return zero, err
	}
	defer f.Close()
	res, err := fn(f)
	if err != nil {
		return res, fmt.Errorf("%s: %w", path, err)
	}
	return res, nil
}

// skipBadRows drops malformed rows with a warning. Read errors pass through.
func skipBadRows[T any](seq iter.Seq2[T, error], file string, logger *zap.Logger, skipped *int) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for v, err := range seq {
			var re *source.RowError
			if errors.As(err, &re) {
				*skipped++
				logger.Warn("Skipping malformed row",
					zap.String("file", file),
					zap.Int("line", re.Line),
					zap.Error(re.Err),
				)
				continue
			}
			if !yield(v, err) {
				return
			}
		}
	}
}
