// Package digest aggregates hub data and model summaries into the views the
// dashboard shows: explorer, DAO dashboard, digests and vote suggestions.
package digest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"delegate/api/internal/cache"
	"delegate/api/internal/dao"
	"delegate/api/internal/filter"
	"delegate/api/internal/snapshot"
	"delegate/api/internal/summary"
)

const (
	DataStaleAfter = 5 * time.Minute
	DataEvictAfter = 24 * time.Hour

	DashboardLimit = 10
	MonthlyLimit   = 15
	WeeklyLimit    = 10
	// hub cap for a single proposals page
	maxProposalLimit = 1000
)

// Source is the governance hub. *snapshot.Client implements it.
type Source interface {
	Space(ctx context.Context, id string) (snapshot.Space, error)
	Proposals(ctx context.Context, space string, limit int) ([]snapshot.Proposal, error)
}

// Summarizer generates cached summaries. *summary.Service implements it.
type Summarizer interface {
	GetOrGenerate(ctx context.Context, directive, content, hint string, opts ...summary.Option) (string, error)
}

// Searcher narrows proposals by a free-text term and receives freshly fetched
// proposals for indexing.
type Searcher interface {
	Filter(ctx context.Context, space string, proposals []snapshot.Proposal, term string) []snapshot.Proposal
	Index(space string, proposals []snapshot.Proposal)
}

// EthosFunc returns the ethos saved for identity.
type EthosFunc func(ctx context.Context, identity string) (string, error)

type memorySearch struct{}

func (memorySearch) Filter(_ context.Context, _ string, ps []snapshot.Proposal, term string) []snapshot.Proposal {
	return filter.BySearchTerm(ps, term)
}

func (memorySearch) Index(string, []snapshot.Proposal) {}

type Service struct {
	registry  *dao.Registry
	source    Source
	data      *cache.Cache
	summaries Summarizer
	search    Searcher
	ethos     EthosFunc
	now       func() time.Time
	log       zerolog.Logger
}

type Option func(*Service)

func WithSearcher(s Searcher) Option {
	return func(svc *Service) {
		if s != nil {
			svc.search = s
		}
	}
}

func WithEthos(fn EthosFunc) Option {
	return func(svc *Service) { svc.ethos = fn }
}

func WithClock(now func() time.Time) Option {
	return func(svc *Service) { svc.now = now }
}

func WithLogger(log zerolog.Logger) Option {
	return func(svc *Service) { svc.log = log }
}

// NewService wires the aggregation layer. data caches hub responses and may
// share a backend with the summary cache.
func NewService(registry *dao.Registry, source Source, data *cache.Cache, summaries Summarizer, opts ...Option) *Service {
	s := &Service{
		registry:  registry,
		source:    source,
		data:      data,
		summaries: summaries,
		search:    memorySearch{},
		ethos: func(context.Context, string) (string, error) {
			return "", nil
		},
		now: time.Now,
		log: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Registry() *dao.Registry { return s.registry }

var dataPolicy = cache.Policy{StaleAfter: DataStaleAfter, EvictAfter: DataEvictAfter}

func (s *Service) space(ctx context.Context, id string) (snapshot.Space, error) {
	return cache.GetOrLoadJSON(ctx, s.data, "space-"+id, dataPolicy, func(ctx context.Context) (snapshot.Space, error) {
		return s.source.Space(ctx, id)
	})
}

func (s *Service) proposals(ctx context.Context, space string, limit int) ([]snapshot.Proposal, error) {
	if limit <= 0 || limit > maxProposalLimit {
		limit = maxProposalLimit
	}
	key := fmt.Sprintf("proposals-%s-%d", space, limit)
	ps, err := cache.GetOrLoadJSON(ctx, s.data, key, dataPolicy, func(ctx context.Context) ([]snapshot.Proposal, error) {
		ps, err := s.source.Proposals(ctx, space, limit)
		if err != nil {
			return nil, err
		}
		s.search.Index(space, ps)
		return ps, nil
	})
	if err != nil {
		return nil, err
	}
	if ps == nil {
		ps = []snapshot.Proposal{}
	}
	return ps, nil
}

// recentContent renders proposals as the "Recent proposals:" prompt body.
func recentContent(ps []snapshot.Proposal) string {
	if len(ps) == 0 {
		return ""
	}
	parts := make([]string, 0, len(ps))
	for _, p := range ps {
		parts = append(parts, fmt.Sprintf("BEGIN \"%s\" - %s END", p.Title, p.Body))
	}
	return "Recent proposals: " + strings.Join(parts, "\n")
}
