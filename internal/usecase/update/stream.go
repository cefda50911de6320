package update

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/moviedex/internal/domain"
)

// StreamReport summarizes one stream run.
// Resumed counts rows skipped because an earlier run already applied them.
type StreamReport struct {
	Applied int64
	Skipped int64
	Resumed int64
}

// ApplyRatings appends every rating of the stream. Ratings of missing movies
// are logged and skipped; any other failure stops the stream.
func (s *Service) ApplyRatings(ctx context.Context, index string, ratings iter.Seq2[domain.Rating, error]) (StreamReport, error) {
	return applyStream(ctx, s, index, domain.FieldRatings, ratings, func(r domain.Rating) int64 { return r.MovieID })
}

// ApplyTags appends every tag of the stream, with the same rules as ApplyRatings.
func (s *Service) ApplyTags(ctx context.Context, index string, tags iter.Seq2[domain.Tag, error]) (StreamReport, error) {
	return applyStream(ctx, s, index, domain.FieldTags, tags, func(t domain.Tag) int64 { return t.MovieID })
}

// ResetCheckpoints forgets stream progress for index, e.g. after a rebuild.
func (s *Service) ResetCheckpoints(ctx context.Context, index string) error {
	for _, stream := range []string{domain.FieldRatings, domain.FieldTags} {
		if err := s.checkpoints.Reset(ctx, index, stream); err != nil {
			return err
		}
	}
	return nil
}

func applyStream[T any](
	ctx context.Context, s *Service, index, field string,
	items iter.Seq2[T, error], movieID func(T) int64,
) (StreamReport, error) {
	if s.cfg.Workers > 1 {
		return applyParallel(ctx, s, index, field, items, movieID)
	}

	cur, err := s.checkpoints.Load(ctx, index, field)
	if err != nil {
		return StreamReport{}, err
	}
	if cur.Offset > 0 {
		s.logger.Info("resuming stream",
			zap.String("index", index),
			zap.String("stream", field),
			zap.Int64("offset", cur.Offset),
		)
	}

	var (
		report StreamReport
		row    int64
	)
	save := func(offset int64) error {
		cur.Offset = offset
		if err := s.checkpoints.Save(ctx, index, cur); err != nil {
			return fmt.Errorf("save %s checkpoint: %w", field, err)
		}
		return nil
	}

	for item, err := range items {
		if err != nil {
			return report, errors.Join(fmt.Errorf("read %s: %w", field, err), save(row))
		}
		row++
		if row <= cur.Offset {
			report.Resumed++
			continue
		}

		id := movieID(item)
		if err := s.appendItem(ctx, index, field, id, item); err != nil {
			if !errors.Is(err, domain.ErrTargetNotFound) {
				return report, errors.Join(err, save(row-1))
			}
			report.Skipped++
			cur.Skipped++
			s.logger.Warn("append target not found",
				zap.String("index", index),
				zap.String("stream", field),
				zap.Int64("movie_id", id),
			)
		} else {
			report.Applied++
			cur.Applied++
		}

		if row%int64(s.cfg.ProgressEvery) == 0 {
			s.logProgress(index, field, row, report)
		}
		if row%int64(s.cfg.SaveEvery) == 0 {
			if err := save(row); err != nil {
				return report, err
			}
		}
	}

	if err := save(row); err != nil {
		return report, err
	}
	s.logDone(index, field, report)
	return report, nil
}

func applyParallel[T any](
	ctx context.Context, s *Service, index, field string,
	items iter.Seq2[T, error], movieID func(T) int64,
) (StreamReport, error) {
	var applied, skipped, done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)

	var readErr error
	for item, err := range items {
		if err != nil {
			readErr = fmt.Errorf("read %s: %w", field, err)
			break
		}
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			id := movieID(item)
			err := s.appendItem(gctx, index, field, id, item)
			switch {
			case err == nil:
				applied.Add(1)
			case errors.Is(err, domain.ErrTargetNotFound):
				skipped.Add(1)
				s.logger.Warn("append target not found",
					zap.String("index", index),
					zap.String("stream", field),
					zap.Int64("movie_id", id),
				)
			default:
				return err
			}
			if n := done.Add(1); n%int64(s.cfg.ProgressEvery) == 0 {
				s.logProgress(index, field, n, StreamReport{Applied: applied.Load(), Skipped: skipped.Load()})
			}
			return nil
		})
	}

	err := g.Wait()
	report := StreamReport{Applied: applied.Load(), Skipped: skipped.Load()}
	if err != nil {
		return report, err
	}
	if readErr != nil {
		return report, readErr
	}
	s.logDone(index, field, report)
	return report, nil
}

func (s *Service) logProgress(index, field string, row int64, r StreamReport) {
	s.logger.Info("stream progress",
		zap.String("index", index),
		zap.String("stream", field),
		zap.Int64("rows", row),
		zap.Int64("applied", r.Applied),
		zap.Int64("skipped", r.Skipped),
	)
}

func (s *Service) logDone(index, field string, r StreamReport) {
	s.logger.Info("stream applied",
		zap.String("index", index),
		zap.String("stream", field),
		zap.Int64("applied", r.Applied),
		zap.Int64("skipped", r.Skipped),
		zap.Int64("resumed", r.Resumed),
	)
}
