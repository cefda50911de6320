// Package source streams MovieLens CSV files as typed records.
package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strconv"
	"strings"

	"github.com/kailas-cloud/moviedex/internal/domain"
)

// NoGenres is the MovieLens placeholder for a movie without genres.
const NoGenres = "(no genres listed)"

// Column layouts of the MovieLens files.
var (
	MovieColumns  = []string{"movieId", "title", "genres"}
	RatingColumns = []string{"userId", "movieId", "rating", "timestamp"}
	TagColumns    = []string{"userId", "movieId", "tag", "timestamp"}
)

// RowError is a malformed row. The stream continues after it.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }

func (e *RowError) Unwrap() error { return e.Err }

// IsRowError reports whether err is a recoverable row-level failure.
func IsRowError(err error) bool {
	var re *RowError
	return errors.As(err, &re)
}

// Open opens a CSV file for one of the readers below.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("open source %s: %w", path, err)
	}
	return f, nil
}

// Movies reads movieId,title,genres rows.
func Movies(r io.Reader) iter.Seq2[domain.Movie, error] {
	return rows(r, MovieColumns, parseMovie)
}

// Ratings reads userId,movieId,rating,timestamp rows.
func Ratings(r io.Reader) iter.Seq2[domain.Rating, error] {
	return rows(r, RatingColumns, parseRating)
}

// Tags reads userId,movieId,tag,timestamp rows.
func Tags(r io.Reader) iter.Seq2[domain.Tag, error] {
	return rows(r, TagColumns, parseTag)
}

// rows skips the header, yields one record per data row and a *RowError per
// malformed row. Read errors other than parse errors end the stream.
func rows[T any](r io.Reader, columns []string, parse func([]string) (T, error)) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		cr := csv.NewReader(r)
		cr.FieldsPerRecord = len(columns)
		cr.ReuseRecord = true

		header := true
		for {
			rec, err := cr.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				var pe *csv.ParseError
				if !errors.As(err, &pe) {
					yield(zero, fmt.Errorf("read csv: %w", err))
					return
				}
				header = false
				if !yield(zero, &RowError{Line: pe.Line, Err: pe.Err}) {
					return
				}
				continue
			}
			line, _ := cr.FieldPos(0)
			if header {
				header = false
				if isHeader(rec, columns) {
					continue
				}
			}
			v, err := parse(rec)
			if err != nil {
				if !yield(zero, &RowError{Line: line, Err: err}) {
					return
				}
				continue
			}
			if !yield(v, nil) {
				return
			}
		}
	}
}

func isHeader(rec, columns []string) bool {
	for i, c := range columns {
		if !strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(rec[i], "\ufeff")), c) {
			return false
		}
	}
	return true
}

func parseMovie(rec []string) (domain.Movie, error) {
	id, err := parseID("movieId", rec[0])
	if err != nil {
		return domain.Movie{}, err
	}
	title := strings.TrimSpace(rec[1])
	if title == "" {
		return domain.Movie{}, errors.New("empty title")
	}
	return domain.NewMovie(id, title, splitGenres(rec[2])), nil
}

func splitGenres(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || s == NoGenres {
		return []string{}
	}
	parts := strings.Split(s, "|")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseRating(rec []string) (domain.Rating, error) {
	user, err := parseID("userId", rec[0])
	if err != nil {
		return domain.Rating{}, err
	}
	movie, err := parseID("movieId", rec[1])
	if err != nil {
		return domain.Rating{}, err
	}
	score, err := strconv.ParseFloat(strings.TrimSpace(rec[2]), 64)
	if err != nil {
		return domain.Rating{}, fmt.Errorf("rating %q: %w", rec[2], err)
	}
	ts, err := parseTimestamp(rec[3])
	if err != nil {
		return domain.Rating{}, err
	}
	return domain.Rating{MovieID: movie, UserID: user, Score: score, Timestamp: ts}, nil
}

func parseTag(rec []string) (domain.Tag, error) {
	user, err := parseID("userId", rec[0])
	if err != nil {
		return domain.Tag{}, err
	}
	movie, err := parseID("movieId", rec[1])
	if err != nil {
		return domain.Tag{}, err
	}
	ts, err := parseTimestamp(rec[3])
	if err != nil {
		return domain.Tag{}, err
	}
	return domain.Tag{MovieID: movie, UserID: user, Label: rec[2], Timestamp: ts}, nil
}

func parseID(name, s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s %q: %w", name, s, err)
	}
	return id, nil
}

func parseTimestamp(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	ts, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("timestamp %q: %w", s, err)
	}
	return ts, nil
}
