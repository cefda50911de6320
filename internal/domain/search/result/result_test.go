package result

import (
	"testing"

	"github.com/kailas-cloud/moviedex/internal/domain"
)

func TestNew(t *testing.T) {
	m := domain.NewMovie(1, "Toy Story (1995)", []string{"Animation"})
	r := New("1", 1.5, m)

	if r.ID() != "1" {
		t.Errorf("ID() = %q", r.ID())
	}
	if r.Score() != 1.5 {
		t.Errorf("Score() = %f", r.Score())
	}
	if r.Movie().Title != "Toy Story (1995)" {
		t.Errorf("Movie() = %+v", r.Movie())
	}
}

func TestNew_NormalizesCollections(t *testing.T) {
	r := New("2", 0, domain.Movie{ID: 2, Title: "Jumanji"})
	m := r.Movie()
	if m.Ratings == nil || m.Tags == nil || m.Genres == nil {
		t.Errorf("collections must not be nil: %+v", m)
	}
}

func TestPage_Movies(t *testing.T) {
	p := Page{Total: 5, Results: []Result{
		New("1", 2, domain.NewMovie(1, "A", nil)),
		New("2", 1, domain.NewMovie(2, "B", nil)),
	}}
	ms := p.Movies()
	if len(ms) != 2 || ms[0].ID != 1 || ms[1].ID != 2 {
		t.Errorf("Movies() = %+v", ms)
	}
}
