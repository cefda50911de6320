package domain

import "strconv"

// Nested collection field names inside a movie document.
const (
	FieldRatings = "ratings"
	FieldTags    = "tags"
)

// Movie is the indexed entity. Ratings and Tags start empty at ingest and only
// grow through appends.
type Movie struct {
	ID      int64    `json:"movieId"`
	Title   string   `json:"title"`
	Genres  []string `json:"genres"`
	Ratings []Rating `json:"ratings"`
	Tags    []Tag    `json:"tags"`
}

// NewMovie creates a movie with empty nested collections.
func NewMovie(id int64, title string, genres []string) Movie {
	m := Movie{ID: id, Title: title, Genres: genres}
	m.Normalize()
	return m
}

// Normalize replaces nil collections with empty ones so that encoded documents
// always carry [] and never omit a collection.
func (m *Movie) Normalize() {
	if m.Genres == nil {
		m.Genres = []string{}
	}
	if m.Ratings == nil {
		m.Ratings = []Rating{}
	}
	if m.Tags == nil {
		m.Tags = []Tag{}
	}
}

// DocID is the engine document id for the movie.
func (m Movie) DocID() string { return DocID(m.ID) }

// DocID formats a movie id as an engine document id.
func DocID(id int64) string { return strconv.FormatInt(id, 10) }

// Rating is one user's score for a movie. Scores are stored as given.
type Rating struct {
	MovieID   int64   `json:"movieId"`
	UserID    int64   `json:"userId"`
	Score     float64 `json:"rating"`
	Timestamp int64   `json:"timestamp,omitempty"`
}

// Tag is one user's free-text label for a movie.
type Tag struct {
	MovieID   int64  `json:"movieId"`
	UserID    int64  `json:"userId"`
	Label     string `json:"tag"`
	Timestamp int64  `json:"timestamp,omitempty"`
}
