package search

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"delegate/api/internal/filter"
	"delegate/api/internal/snapshot"
)

const (
	EngineMeili  = "meilisearch"
	EngineMemory = "memory"
)

// Service tries Meilisearch first and falls back to matching the proposals
// it has seen in memory.
type Service struct {
	meili *Meili
	log   zerolog.Logger

	mu     sync.RWMutex
	corpus map[string][]ProposalRecord
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, log zerolog.Logger) *Service {
	return &Service{
		meili:  meili,
		log:    log,
		corpus: make(map[string][]ProposalRecord),
	}
}

func (s *Service) meiliReady() bool {
	return s.meili != nil && s.meili.Healthy()
}

// Engine names the backend currently answering queries.
func (s *Service) Engine() string {
	if s.meiliReady() {
		return EngineMeili
	}
	return EngineMemory
}

// Index records proposals for the memory fallback and pushes them to
// Meilisearch without waiting.
func (s *Service) Index(space string, proposals []snapshot.Proposal) {
	records := make([]ProposalRecord, 0, len(proposals))
	for _, p := range proposals {
		records = append(records, recordFromProposal(space, p))
	}

	s.mu.Lock()
	s.corpus[space] = records
	s.mu.Unlock()

	if !s.meiliReady() || len(records) == 0 {
		return
	}
	go func() {
		if err := s.meili.IndexProposals(records); err != nil {
			s.log.Warn().Err(err).Str("space", space).Int("count", len(records)).Msg("index proposals")
		}
	}()
}

// Filter narrows proposals to those matching term, keeping their input order.
// Meilisearch hits are used when it is healthy; otherwise the term is matched
// against titles and bodies.
func (s *Service) Filter(ctx context.Context, space string, proposals []snapshot.Proposal, term string) []snapshot.Proposal {
	if strings.TrimSpace(term) == "" {
		return proposals
	}
	if s.meiliReady() {
		results, _, err := s.meili.Search(Query{Text: term, Space: space, Limit: len(proposals)})
		if err == nil {
			hits := make(map[string]struct{}, len(results))
			for _, r := range results {
				hits[r.ID] = struct{}{}
			}
			out := make([]snapshot.Proposal, 0, len(hits))
			for _, p := range proposals {
				if _, ok := hits[p.ID]; ok {
					out = append(out, p)
				}
			}
			return out
		}
		s.log.Warn().Err(err).Str("space", space).Msg("meilisearch error, falling back to memory")
	}
	return filter.BySearchTerm(proposals, term)
}

// Search runs a free-text query across indexed proposals.
func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.meiliReady() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text, Engine: EngineMeili}
		}
		s.log.Warn().Err(err).Msg("meilisearch error, falling back to memory")
	}

	results := s.searchMemory(q)
	total := len(results)
	if q.Limit > 0 && len(results) > q.Limit {
		results = results[:q.Limit]
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text, Engine: EngineMemory}
}

func (s *Service) searchMemory(q Query) []Result {
	term := strings.ToLower(strings.TrimSpace(q.Text))

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Result
	for space, records := range s.corpus {
		if q.Space != "" && q.Space != space {
			continue
		}
		for _, r := range records {
			if q.State != "" && string(q.State) != r.State {
				continue
			}
			if term != "" &&
				!strings.Contains(strings.ToLower(r.Title), term) &&
				!strings.Contains(strings.ToLower(r.Body), term) {
				continue
			}
			out = append(out, Result{
				ID:      r.ID,
				Title:   r.Title,
				Snippet: snippet(r.Body, term),
				Space:   r.Space,
				State:   stateOf(r.State),
				End:     r.End,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].End != out[j].End {
			return out[i].End > out[j].End
		}
		return out[i].ID < out[j].ID
	})
	return out
}

const snippetRadius = 80

func snippet(body, term string) string {
	body = strings.TrimSpace(body)
	if term == "" || len(body) <= 2*snippetRadius {
		return truncate(body, 2*snippetRadius)
	}
	at := strings.Index(strings.ToLower(body), term)
	if at < 0 {
		return truncate(body, 2*snippetRadius)
	}
	start := at - snippetRadius
	if start < 0 {
		start = 0
	}
	end := at + len(term) + snippetRadius
	if end > len(body) {
		end = len(body)
	}
	return strings.ToValidUTF8(body[start:end], "")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "")
}

func stateOf(raw string) snapshot.State {
	return snapshot.ParseState(raw)
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
