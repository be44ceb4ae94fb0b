package digest

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"delegate/api/internal/dao"
)

// Tab selects a digest view.
type Tab string

const (
	TabUpdates   Tab = "updates"
	TabProposals Tab = "proposals"
	TabGlobal    Tab = "global"
)

// ParseTab accepts the tab names and their dashboard aliases
// (monthly, daily, overview).
func ParseTab(raw string) (Tab, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "updates", "monthly":
		return TabUpdates, nil
	case "proposals", "daily", "weekly":
		return TabProposals, nil
	case "global", "overview", "":
		return TabGlobal, nil
	default:
		return "", fmt.Errorf("unknown digest tab %q", raw)
	}
}

// Digest is one rendered tab. Exactly one of Global, Monthly or Weekly is set.
type Digest struct {
	Tab           Tab             `json:"tab"`
	Global        []GlobalReport  `json:"global,omitempty"`
	Monthly       []MonthlyReport `json:"monthly,omitempty"`
	Weekly        *WeeklyDigest   `json:"weekly,omitempty"`
	WeeklySummary *Insight        `json:"weeklySummary,omitempty"`
	Failures      []Failure       `json:"failures,omitempty"`
}

// Build renders a tab. filters.DAO narrows every tab to one DAO.
func (s *Service) Build(ctx context.Context, tab Tab, filters WeeklyFilters) (Digest, error) {
	out := Digest{Tab: tab}

	if tab == TabProposals {
		weekly, err := s.Weekly(ctx, filters)
		if err != nil {
			return Digest{}, err
		}
		out.Weekly = &weekly
		out.Failures = weekly.Failures
		insight := s.weeklyInsight(ctx, weekly)
		out.WeeklySummary = &insight
		return out, nil
	}

	daos, err := s.selectDAOs(filters.DAO)
	if err != nil {
		return Digest{}, err
	}

	var g errgroup.Group
	g.SetLimit(4)
	switch tab {
	case TabUpdates:
		out.Monthly = make([]MonthlyReport, len(daos))
		for i, d := range daos {
			g.Go(func() error {
				report, err := s.Monthly(ctx, d.Key)
				out.Monthly[i] = report
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return Digest{}, err
		}
	case TabGlobal:
		reports := make([]*GlobalReport, len(daos))
		failures := make([]*Failure, len(daos))
		for i, d := range daos {
			g.Go(func() error {
				report, err := s.GlobalReport(ctx, d.Key)
				if err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					failures[i] = &Failure{DAO: d.Key, Error: err.Error()}
					return nil
				}
				reports[i] = &report
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return Digest{}, err
		}
		for i := range daos {
			if reports[i] != nil {
				out.Global = append(out.Global, *reports[i])
			}
			if failures[i] != nil {
				out.Failures = append(out.Failures, *failures[i])
			}
		}
	default:
		return Digest{}, fmt.Errorf("unknown digest tab %q", tab)
	}
	return out, nil
}

func (s *Service) selectDAOs(ref string) ([]dao.Config, error) {
	if strings.TrimSpace(ref) == "" {
		return s.registry.All(), nil
	}
	d, err := s.registry.Resolve(ref)
	if err != nil {
		return nil, err
	}
	return []dao.Config{d}, nil
}

func (s *Service) weeklyInsight(ctx context.Context, weekly WeeklyDigest) Insight {
	if len(weekly.Items.Items) == 0 {
		return Insight{Text: "No proposals this week."}
	}
	parts := make([]string, 0, len(weekly.Items.Items))
	for _, it := range weekly.Items.Items {
		parts = append(parts, fmt.Sprintf("BEGIN \"%s\" (%s) - %s END", it.Title, it.DAOName, it.Body))
	}
	text, err := s.summaries.GetOrGenerate(ctx, FilteredProposalDirective, "Recent proposals: "+strings.Join(parts, "\n"), "weekly")
	if err != nil {
		s.log.Warn().Err(err).Msg("weekly summary failed")
		return Insight{Text: summaryUnavailable, Error: err.Error()}
	}
	return Insight{Text: text, Available: true}
}
