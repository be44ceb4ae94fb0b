package filter

import (
	"time"

	"delegate/api/internal/snapshot"
)

// Criteria combines every filter into one pipeline. Zero values disable a stage.
type Criteria struct {
	Status   string
	AgeDays  int
	Range    Range
	Search   string
	Page     int
	PageSize int
}

// Select applies status, age, date range and search in that order.
// The predicates are independent, so the order does not change the result.
func (c Criteria) Select(proposals []snapshot.Proposal, now time.Time) []snapshot.Proposal {
	out := ByStatus(proposals, c.Status)
	if c.AgeDays > 0 {
		out = ByAge(out, c.AgeDays, now)
	}
	out = ByDateRange(out, c.Range)
	return BySearchTerm(out, c.Search)
}

// Apply runs Select and paginates the result last.
func (c Criteria) Apply(proposals []snapshot.Proposal, now time.Time) Page[snapshot.Proposal] {
	return Paginate(c.Select(proposals, now), c.Page, c.PageSize)
}
