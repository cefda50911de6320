package result

import "github.com/kailas-cloud/moviedex/internal/domain"

// Result is a single search hit decoded into a movie.
type Result struct {
	id    string
	score float64
	movie domain.Movie
}

// New creates a search result. Missing collections of movie are set to empty.
func New(id string, score float64, movie domain.Movie) Result {
	movie.Normalize()
	return Result{id: id, score: score, movie: movie}
}

// ID returns the document identifier.
func (r *Result) ID() string { return r.id }

// Score returns the relevance score. Zero when the engine did not score the hit.
func (r *Result) Score() float64 { return r.score }

// Movie returns the stored movie.
func (r *Result) Movie() domain.Movie { return r.movie }

// Page is one page of results plus the total number of matching documents.
type Page struct {
	Total   int
	Results []Result
}

// Movies returns the movies of the page in hit order.
func (p Page) Movies() []domain.Movie {
	out := make([]domain.Movie, len(p.Results))
	for i := range p.Results {
		out[i] = p.Results[i].movie
	}
	return out
}
