// Package filter holds the pure, order-preserving selections applied to
// proposal lists before they are rendered or summarised.
package filter

import (
	"strings"
	"time"

	"delegate/api/internal/snapshot"
)

// StatusAll bypasses the status filter.
const StatusAll = "all"

const secondsPerDay = 86400

// ByAge keeps proposals whose start lies at most days before now.
func ByAge(proposals []snapshot.Proposal, days int, now time.Time) []snapshot.Proposal {
	limit := int64(days) * secondsPerDay
	ref := now.Unix()
	return keep(proposals, func(p snapshot.Proposal) bool {
		return ref-p.Start <= limit
	})
}

// ByStatus keeps proposals in the given state. Empty or StatusAll keeps everything.
func ByStatus(proposals []snapshot.Proposal, status string) []snapshot.Proposal {
	status = strings.ToLower(strings.TrimSpace(status))
	if status == "" || status == StatusAll || status == "all-statuses" {
		return proposals
	}
	want := snapshot.ParseState(status)
	return keep(proposals, func(p snapshot.Proposal) bool {
		return p.State == want
	})
}

// Range bounds proposals by time. Nil bounds are ignored.
type Range struct {
	From *time.Time
	To   *time.Time
}

// IsZero reports whether neither bound is set.
func (r Range) IsZero() bool { return r.From == nil && r.To == nil }

// ByDateRange keeps proposals with start >= From and end <= To.
func ByDateRange(proposals []snapshot.Proposal, r Range) []snapshot.Proposal {
	if r.IsZero() {
		return proposals
	}
	return keep(proposals, func(p snapshot.Proposal) bool {
		if r.From != nil && p.Start < r.From.Unix() {
			return false
		}
		if r.To != nil && p.End > r.To.Unix() {
			return false
		}
		return true
	})
}

// BySearchTerm keeps proposals whose title or body contains term, ignoring case.
func BySearchTerm(proposals []snapshot.Proposal, term string) []snapshot.Proposal {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return proposals
	}
	return keep(proposals, func(p snapshot.Proposal) bool {
		return strings.Contains(strings.ToLower(p.Title), term) ||
			strings.Contains(strings.ToLower(p.Body), term)
	})
}

// RecentActivity keeps proposals that started or ended at or after since.
func RecentActivity(proposals []snapshot.Proposal, since time.Time) []snapshot.Proposal {
	ref := since.Unix()
	return keep(proposals, func(p snapshot.Proposal) bool {
		return p.Start >= ref || p.End >= ref
	})
}

func keep(proposals []snapshot.Proposal, pred func(snapshot.Proposal) bool) []snapshot.Proposal {
	out := make([]snapshot.Proposal, 0, len(proposals))
	for _, p := range proposals {
		if pred(p) {
			out = append(out, p)
		}
	}
	return out
}
