package digest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"delegate/api/internal/dao"
	"delegate/api/internal/filter"
	"delegate/api/internal/snapshot"
	"delegate/api/internal/summary"
)

// ExplorerEntry is one registered DAO with its live space metadata. Error is
// set instead of Space when the fetch failed.
type ExplorerEntry struct {
	DAO   dao.Config      `json:"dao"`
	Space *snapshot.Space `json:"space,omitempty"`
	Error string          `json:"error,omitempty"`
}

// Explorer fetches every registered space concurrently. A failing DAO is
// reported in its entry and does not fail the listing.
func (s *Service) Explorer(ctx context.Context) []ExplorerEntry {
	daos := s.registry.All()
	out := make([]ExplorerEntry, len(daos))

	var wg sync.WaitGroup
	for i, d := range daos {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out[i].DAO = d
			space, err := s.space(ctx, d.Identifier)
			if err != nil {
				s.log.Warn().Err(err).Str("dao", d.Key).Msg("explorer space fetch failed")
				out[i].Error = err.Error()
				return
			}
			out[i].Space = &space
		}()
	}
	wg.Wait()
	return out
}

// Insight is a generated summary. Available is false when generation was
// skipped or failed; Text then holds a user-facing notice.
type Insight struct {
	Text      string `json:"text"`
	Available bool   `json:"available"`
	Error     string `json:"error,omitempty"`
}

type Dashboard struct {
	DAO       dao.Config                     `json:"dao"`
	Space     snapshot.Space                 `json:"space"`
	Latest    []snapshot.Proposal            `json:"latest"`
	Proposals filter.Page[snapshot.Proposal] `json:"proposals"`
	Insight   Insight                        `json:"insight"`
}

type DashboardQuery struct {
	Criteria filter.Criteria
	// Limit bounds the proposals fetched for the table; 0 means DashboardLimit.
	Limit int
}

// Dashboard assembles a single DAO view. ref is a registry key, space
// identifier or display name.
func (s *Service) Dashboard(ctx context.Context, ref string, q DashboardQuery) (Dashboard, error) {
	d, err := s.registry.Resolve(ref)
	if err != nil {
		return Dashboard{}, err
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DashboardLimit
	}

	var (
		space     snapshot.Space
		proposals []snapshot.Proposal
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		space, err = s.space(gctx, d.Identifier)
		return err
	})
	g.Go(func() error {
		var err error
		proposals, err = s.proposals(gctx, d.Identifier, limit)
		return err
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, fmt.Errorf("load %s: %w", d.Key, err)
	}

	latest := proposals
	if len(latest) > DashboardLimit {
		latest = latest[:DashboardLimit]
	}

	return Dashboard{
		DAO:       d,
		Space:     space,
		Latest:    latest,
		Proposals: s.page(ctx, d.Identifier, proposals, q.Criteria),
		Insight:   s.insight(ctx, d, space, proposals),
	}, nil
}

// page runs the criteria pipeline with the search stage delegated to the
// configured Searcher.
func (s *Service) page(ctx context.Context, space string, proposals []snapshot.Proposal, c filter.Criteria) filter.Page[snapshot.Proposal] {
	term := c.Search
	c.Search = ""
	selected := c.Select(proposals, s.now())
	if term != "" {
		selected = s.search.Filter(ctx, space, selected, term)
	}
	return filter.Paginate(selected, c.Page, c.PageSize)
}

func (s *Service) insight(ctx context.Context, d dao.Config, space snapshot.Space, proposals []snapshot.Proposal) Insight {
	if len(proposals) == 0 {
		return Insight{Text: "No information available to generate insights."}
	}
	latest := proposals[0]
	prompt := fmt.Sprintf(`Based on the following information, provide a concise summary (max 3 sentences) of the current state for non technical people and focus of the %s DAO:

Latest proposal: "%s"
Proposal state: %s
Total proposals: %d
Number of followers: %d
Total votes: %d`,
		d.Name, latest.Title, latest.State,
		firstPositive(space.ProposalsCount, d.Proposals),
		firstPositive(space.FollowersCount, d.TotalMembers),
		firstPositive(space.VotesCount, int(d.Votes)))

	text, err := s.summaries.GetOrGenerate(ctx, prompt, latest.Body, d.Name)
	switch {
	case errors.Is(err, summary.ErrIdle):
		return Insight{Text: "No information available to generate insights."}
	case err != nil:
		s.log.Warn().Err(err).Str("dao", d.Key).Msg("dao insight failed")
		return Insight{Text: insightUnavailable, Error: err.Error()}
	}
	return Insight{Text: text, Available: true}
}

func firstPositive(vals ...int) int {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}
