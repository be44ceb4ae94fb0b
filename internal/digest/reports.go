package digest

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"delegate/api/internal/dao"
	"delegate/api/internal/filter"
	"delegate/api/internal/snapshot"
	"delegate/api/internal/summary"
)

// ProposalOutcome is the compact proposal row in a monthly report.
type ProposalOutcome struct {
	ID     string         `json:"id"`
	Title  string         `json:"title"`
	State  snapshot.State `json:"state"`
	Result string         `json:"result,omitempty"`
	Votes  int            `json:"votes"`
}

type MonthlyReport struct {
	DAO             dao.Config        `json:"dao"`
	Summary         string            `json:"summary"`
	SummaryReady    bool              `json:"summaryReady"`
	ActiveProposals int               `json:"activeProposals"`
	ClosedProposals int               `json:"closedProposals"`
	TotalVotes      int               `json:"totalVotes"`
	Proposals       []ProposalOutcome `json:"proposals"`
	Error           string            `json:"error,omitempty"`
}

// Monthly reports the last 30 days of a DAO. Hub or model failures degrade
// the report instead of failing it; only an unknown DAO is an error.
func (s *Service) Monthly(ctx context.Context, ref string) (MonthlyReport, error) {
	d, err := s.registry.Resolve(ref)
	if err != nil {
		return MonthlyReport{}, err
	}
	report := MonthlyReport{DAO: d, Proposals: []ProposalOutcome{}}

	proposals, err := s.proposals(ctx, d.Identifier, MonthlyLimit)
	if err != nil {
		s.log.Warn().Err(err).Str("dao", d.Key).Msg("monthly proposals fetch failed")
		report.Summary = summaryUnavailable
		report.Error = err.Error()
		return report, nil
	}

	recent := filter.ByAge(proposals, 30, s.now())
	for _, p := range recent {
		switch p.State {
		case snapshot.StateActive:
			report.ActiveProposals++
		case snapshot.StateClosed:
			report.ClosedProposals++
		}
		report.TotalVotes += p.Votes
		report.Proposals = append(report.Proposals, ProposalOutcome{
			ID:     p.ID,
			Title:  p.Title,
			State:  p.State,
			Result: p.Outcome(),
			Votes:  p.Votes,
		})
	}

	text, err := s.summaries.GetOrGenerate(ctx, MonthlyReportDirective, recentContent(recent), d.Name)
	switch {
	case errors.Is(err, summary.ErrIdle):
		report.Summary = noRecentProposals
	case err != nil:
		s.log.Warn().Err(err).Str("dao", d.Key).Msg("monthly summary failed")
		report.Summary = summaryUnavailable
		report.Error = err.Error()
	default:
		report.Summary = text
		report.SummaryReady = true
	}
	return report, nil
}

type GlobalReport struct {
	DAO         dao.Config     `json:"dao"`
	Space       snapshot.Space `json:"space"`
	RecentCount int            `json:"recentCount"`
	Summary     Insight        `json:"summary"`
}

// GlobalReport describes a DAO from its space metadata and every proposal
// opened in the last 30 days.
func (s *Service) GlobalReport(ctx context.Context, ref string) (GlobalReport, error) {
	d, err := s.registry.Resolve(ref)
	if err != nil {
		return GlobalReport{}, err
	}
	space, err := s.space(ctx, d.Identifier)
	if err != nil {
		return GlobalReport{}, err
	}
	proposals, err := s.proposals(ctx, d.Identifier, space.ProposalsCount)
	if err != nil {
		return GlobalReport{}, err
	}
	recent := filter.ByAge(proposals, 30, s.now())

	report := GlobalReport{DAO: d, Space: space, RecentCount: len(recent)}
	text, err := s.summaries.GetOrGenerate(ctx, GlobalReportDirective, recentContent(recent), d.Name)
	switch {
	case errors.Is(err, summary.ErrIdle):
		report.Summary = Insight{Text: noRecentProposals}
	case err != nil:
		s.log.Warn().Err(err).Str("dao", d.Key).Msg("global summary failed")
		report.Summary = Insight{Text: summaryUnavailable, Error: err.Error()}
	default:
		report.Summary = Insight{Text: text, Available: true}
	}
	return report, nil
}

// WeeklyItem is a proposal from any DAO active during the last week.
type WeeklyItem struct {
	ID      string         `json:"id"`
	Title   string         `json:"title"`
	Body    string         `json:"body,omitempty"`
	DAOKey  string         `json:"daoId"`
	DAOName string         `json:"daoName"`
	DAOLogo string         `json:"daoLogo"`
	State   snapshot.State `json:"state"`
	Date    time.Time      `json:"date"`
	Votes   int            `json:"votes"`
	Result  string         `json:"result,omitempty"`
}

type WeeklyFilters struct {
	// DAO matches a registry key or display name, case-insensitively.
	DAO string
	// Status is a proposal state or an outcome ("passed", "failed").
	Status   string
	Range    filter.Range
	Search   string
	Page     int
	PageSize int
}

// Failure records a DAO whose data could not be loaded.
type Failure struct {
	DAO   string `json:"dao"`
	Error string `json:"error"`
}

type WeeklyDigest struct {
	Items    filter.Page[WeeklyItem] `json:"items"`
	Failures []Failure               `json:"failures,omitempty"`
}

// Weekly lists proposals that started or ended in the last 7 days across all
// DAOs, newest end first.
func (s *Service) Weekly(ctx context.Context, f WeeklyFilters) (WeeklyDigest, error) {
	since := s.now().Add(-7 * 24 * time.Hour)
	daos := s.registry.All()
	matching := countMatching(daos, f.DAO)
	if matching == 0 {
		return WeeklyDigest{}, &dao.NotFoundError{Ref: f.DAO}
	}

	var (
		mu       sync.Mutex
		items    []WeeklyItem
		failures []Failure
		lastErr  error
	)
	var g errgroup.Group
	for _, d := range daos {
		if !matchesDAO(d, f.DAO) {
			continue
		}
		g.Go(func() error {
			proposals, err := s.proposals(ctx, d.Identifier, WeeklyLimit)
			if err != nil && ctx.Err() != nil {
				return ctx.Err()
			}
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.log.Warn().Err(err).Str("dao", d.Key).Msg("weekly proposals fetch failed")
				failures = append(failures, Failure{DAO: d.Key, Error: err.Error()})
				lastErr = err
				return nil
			}
			for _, p := range selectWeekly(proposals, since, f) {
				items = append(items, WeeklyItem{
					ID:      p.ID,
					Title:   p.Title,
					Body:    p.Body,
					DAOKey:  d.Key,
					DAOName: d.Name,
					DAOLogo: d.Logo,
					State:   p.State,
					Date:    p.EndTime(),
					Votes:   p.Votes,
					Result:  p.Outcome(),
				})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return WeeklyDigest{}, err
	}

	if len(failures) == matching {
		return WeeklyDigest{}, lastErr
	}

	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].Date.Equal(items[j].Date) {
			return items[i].Date.After(items[j].Date)
		}
		return items[i].ID < items[j].ID
	})
	sort.Slice(failures, func(i, j int) bool { return failures[i].DAO < failures[j].DAO })

	return WeeklyDigest{
		Items:    filter.Paginate(items, f.Page, f.PageSize),
		Failures: failures,
	}, nil
}

func selectWeekly(proposals []snapshot.Proposal, since time.Time, f WeeklyFilters) []snapshot.Proposal {
	out := filter.RecentActivity(proposals, since)
	switch status := strings.ToLower(strings.TrimSpace(f.Status)); status {
	case "passed", "failed":
		kept := out[:0:0]
		for _, p := range out {
			if strings.EqualFold(p.Outcome(), status) {
				kept = append(kept, p)
			}
		}
		out = kept
	default:
		out = filter.ByStatus(out, status)
	}
	out = filter.ByDateRange(out, f.Range)
	return filter.BySearchTerm(out, f.Search)
}

func matchesDAO(d dao.Config, ref string) bool {
	ref = strings.TrimSpace(ref)
	return ref == "" || strings.EqualFold(ref, d.Key) || strings.EqualFold(ref, d.Name)
}

func countMatching(daos []dao.Config, ref string) int {
	n := 0
	for _, d := range daos {
		if matchesDAO(d, ref) {
			n++
		}
	}
	return n
}
