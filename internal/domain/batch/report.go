package batch

import "github.com/kailas-cloud/moviedex/internal/domain"

// ItemStatus is the processing outcome of a single bulk item.
type ItemStatus string

// Bulk item status values, used as metric labels.
const (
	StatusOK    ItemStatus = "ok"
	StatusError ItemStatus = "error"
)

// Report summarizes one or more bulk requests.
// Total counts every record handed in, Indexed the ones the engine accepted.
type Report struct {
	Total    int
	Indexed  int
	Failures []domain.BulkItemError
}

// Failed returns the number of failed items.
func (r Report) Failed() int { return len(r.Failures) }

// AddFailure records a failed item.
func (r *Report) AddFailure(item domain.BulkItemError) {
	r.Failures = append(r.Failures, item)
}

// Merge folds another report into r.
func (r *Report) Merge(other Report) {
	r.Total += other.Total
	r.Indexed += other.Indexed
	r.Failures = append(r.Failures, other.Failures...)
}

// Err returns a *domain.BulkError listing every failed item, or nil.
func (r Report) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	items := make([]domain.BulkItemError, len(r.Failures))
	copy(items, r.Failures)
	return &domain.BulkError{Items: items}
}
