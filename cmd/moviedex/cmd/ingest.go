package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newIngestCmd(a *app) *cobra.Command {
	var opts ingestOptions

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Rebuild the index and load movies, ratings and tags",
		Long: `Rebuild the index with the nested movie mapping, bulk load movies.csv,
then append every rating and tag to its movie with a stored script.

Rows that fail to parse are logged and skipped. Bulk items the engine rejects
are logged and counted; the run continues.

With --updates-only the index is kept and the rating and tag streams resume
from their checkpoints (see checkpoint.driver).

Examples:
  moviedex ingest
  moviedex ingest --movies data/movies.csv --ratings data/ratings_10k.csv --tags data/tags_10k.csv
  moviedex ingest --updates-only
  moviedex ingest --updates-only --reset-checkpoint`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if opts.movies == "" {
				opts.movies = a.cfg.Data.Movies
			}
			if opts.ratings == "" {
				opts.ratings = a.cfg.Data.Ratings
			}
			if opts.tags == "" {
				opts.tags = a.cfg.Data.Tags
			}

			engine, err := connectElastic(ctx, a.cfg, a.logger)
			if err != nil {
				return err
			}
			cps, err := openCheckpoints(ctx, a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer cps.Close()

			sum, err := newPipeline(engine, a.cfg, cps.store, a.logger).run(ctx, a.cfg.Index.Name, opts)
			if err != nil {
				a.logger.Error("Ingest failed", zap.Error(err))
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(),
				"movies: %d indexed, %d failed\nratings: %d applied, %d skipped, %d resumed\ntags: %d applied, %d skipped, %d resumed\nmalformed rows: %d\n",
				sum.Movies.Indexed, sum.Movies.Failed(),
				sum.Ratings.Applied, sum.Ratings.Skipped, sum.Ratings.Resumed,
				sum.Tags.Applied, sum.Tags.Skipped, sum.Tags.Resumed,
				sum.SkippedRows,
			)
			return err
		},
	}

	cmd.Flags().StringVar(&opts.movies, "movies", "", "Movies CSV (default data.movies)")
	cmd.Flags().StringVar(&opts.ratings, "ratings", "", "Ratings CSV (default data.ratings)")
	cmd.Flags().StringVar(&opts.tags, "tags", "", "Tags CSV (default data.tags)")
	cmd.Flags().BoolVar(&opts.skipUpdates, "skip-updates", false, "Stop after the bulk load")
	cmd.Flags().BoolVar(&opts.updatesOnly, "updates-only", false, "Keep the index and only apply ratings and tags")
	cmd.Flags().BoolVar(&opts.resetCheckpoint, "reset-checkpoint", false, "With --updates-only, start the streams from the first row")
	cmd.MarkFlagsMutuallyExclusive("skip-updates", "updates-only")

	return cmd
}
