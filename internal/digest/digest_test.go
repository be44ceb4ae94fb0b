package digest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"delegate/api/internal/cache"
	"delegate/api/internal/dao"
	"delegate/api/internal/filter"
	"delegate/api/internal/llm"
	"delegate/api/internal/snapshot"
	"delegate/api/internal/summary"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func daysAgo(d int) int64 { return now.Add(-time.Duration(d) * 24 * time.Hour).Unix() }

type fakeSource struct {
	mu        sync.Mutex
	spaces    map[string]snapshot.Space
	proposals map[string][]snapshot.Proposal
	failing   map[string]error
	block     chan struct{}
	calls     int
}

func (f *fakeSource) Space(_ context.Context, id string) (snapshot.Space, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.failing[id]; err != nil {
		return snapshot.Space{}, err
	}
	return f.spaces[id], nil
}

func (f *fakeSource) Proposals(_ context.Context, space string, limit int) ([]snapshot.Proposal, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.failing[space]; err != nil {
		return nil, err
	}
	ps := f.proposals[space]
	if len(ps) > limit {
		ps = ps[:limit]
	}
	return ps, nil
}

type fakeSummarizer struct {
	mu    sync.Mutex
	calls []string
	fn    func(directive, content string) (string, error)
}

func (f *fakeSummarizer) GetOrGenerate(_ context.Context, directive, content, hint string, _ ...summary.Option) (string, error) {
	if directive == "" || content == "" {
		return "", summary.ErrIdle
	}
	f.mu.Lock()
	f.calls = append(f.calls, directive)
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(directive, content)
	}
	return "summary", nil
}

func testRegistry(t *testing.T) *dao.Registry {
	t.Helper()
	r, err := dao.NewRegistry([]dao.Config{
		{Key: "aave", Name: "Aave", Identifier: "aavedao.eth", Proposals: 364},
		{Key: "lido", Name: "Lido", Identifier: "lido-snapshot.eth"},
	})
	require.NoError(t, err)
	return r
}

func fixtures() *fakeSource {
	return &fakeSource{
		spaces: map[string]snapshot.Space{
			"aavedao.eth":       {ID: "aavedao.eth", Name: "Aave", ProposalsCount: 3, FollowersCount: 100, VotesCount: 900},
			"lido-snapshot.eth": {ID: "lido-snapshot.eth", Name: "Lido", ProposalsCount: 2},
		},
		proposals: map[string][]snapshot.Proposal{
			"aavedao.eth": {
				{ID: "a1", Title: "Risk params", Body: "Adjust LTV", Start: daysAgo(2), End: daysAgo(-3), State: snapshot.StateActive, Votes: 10},
				{ID: "a2", Title: "Treasury grant", Body: "Fund grants", Start: daysAgo(12), End: daysAgo(5), State: snapshot.StateClosed, ScoresTotal: 42, Votes: 30},
				{ID: "a3", Title: "Old listing", Body: "List token", Start: daysAgo(60), End: daysAgo(55), State: snapshot.StateClosed, Votes: 5},
			},
			"lido-snapshot.eth": {
				{ID: "l1", Title: "Staking router", Body: "Upgrade router", Start: daysAgo(6), End: daysAgo(1), State: snapshot.StateClosed, ScoresTotal: 0, Votes: 7},
				{ID: "l2", Title: "Oracle set", Body: "Rotate oracles", Start: daysAgo(20), End: daysAgo(14), State: snapshot.StateClosed, ScoresTotal: 3, Votes: 2},
			},
		},
		failing: map[string]error{},
	}
}

func newTestService(t *testing.T, src *fakeSource, sum *fakeSummarizer, opts ...Option) *Service {
	t.Helper()
	data := cache.New("digest-test", cache.NewMemoryBackend(64), cache.Policy{StaleAfter: DataStaleAfter, EvictAfter: DataEvictAfter})
	opts = append([]Option{WithClock(func() time.Time { return now })}, opts...)
	return NewService(testRegistry(t), src, data, sum, opts...)
}

func TestExplorerReportsFailuresInline(t *testing.T) {
	src := fixtures()
	src.failing["lido-snapshot.eth"] = &snapshot.NetworkError{Status: 503}
	svc := newTestService(t, src, &fakeSummarizer{})

	entries := svc.Explorer(context.Background())
	require.Len(t, entries, 2)

	assert.Equal(t, "aave", entries[0].DAO.Key)
	require.NotNil(t, entries[0].Space)
	assert.Equal(t, 3, entries[0].Space.ProposalsCount)

	assert.Equal(t, "lido", entries[1].DAO.Key)
	assert.Nil(t, entries[1].Space)
	assert.NotEmpty(t, entries[1].Error)
}

func TestDashboardFiltersAndSummarises(t *testing.T) {
	src := fixtures()
	sum := &fakeSummarizer{}
	svc := newTestService(t, src, sum)

	got, err := svc.Dashboard(context.Background(), "aavedao.eth", DashboardQuery{
		Criteria: filter.Criteria{Status: "closed", PageSize: 1},
	})
	require.NoError(t, err)

	assert.Equal(t, "aave", got.DAO.Key)
	assert.Len(t, got.Latest, 3)
	assert.Equal(t, 2, got.Proposals.Total)
	assert.Equal(t, 2, got.Proposals.TotalPages)
	require.Len(t, got.Proposals.Items, 1)
	assert.Equal(t, "a2", got.Proposals.Items[0].ID)

	assert.True(t, got.Insight.Available)
	assert.Equal(t, "summary", got.Insight.Text)
	require.Len(t, sum.calls, 1)
	assert.Contains(t, sum.calls[0], `Latest proposal: "Risk params"`)
	assert.Contains(t, sum.calls[0], "Number of followers: 100")
}

func TestDashboardCachesHubData(t *testing.T) {
	src := fixtures()
	svc := newTestService(t, src, &fakeSummarizer{})

	_, err := svc.Dashboard(context.Background(), "aave", DashboardQuery{})
	require.NoError(t, err)
	_, err = svc.Dashboard(context.Background(), "aave", DashboardQuery{})
	require.NoError(t, err)

	assert.Equal(t, 2, src.calls)
}

func TestDashboardUnknownDAO(t *testing.T) {
	svc := newTestService(t, fixtures(), &fakeSummarizer{})

	_, err := svc.Dashboard(context.Background(), "compound", DashboardQuery{})
	var notFound *dao.NotFoundError
	assert.True(t, errors.As(err, &notFound))
}

func TestDashboardPropagatesHubErrors(t *testing.T) {
	src := fixtures()
	src.failing["aavedao.eth"] = &snapshot.GraphQLError{Messages: []string{"bad query"}}
	svc := newTestService(t, src, &fakeSummarizer{})

	_, err := svc.Dashboard(context.Background(), "aave", DashboardQuery{})
	var gqlErr *snapshot.GraphQLError
	assert.True(t, errors.As(err, &gqlErr))
}

func TestDashboardInsightDegrades(t *testing.T) {
	sum := &fakeSummarizer{fn: func(string, string) (string, error) {
		return "", &llm.GenerationError{Provider: "openai", Err: errors.New("down")}
	}}
	svc := newTestService(t, fixtures(), sum)

	got, err := svc.Dashboard(context.Background(), "aave", DashboardQuery{})
	require.NoError(t, err)
	assert.False(t, got.Insight.Available)
	assert.Equal(t, insightUnavailable, got.Insight.Text)
}

type recordingSearch struct {
	indexed []string
	terms   []string
}

func (r *recordingSearch) Filter(_ context.Context, _ string, ps []snapshot.Proposal, term string) []snapshot.Proposal {
	r.terms = append(r.terms, term)
	return ps[:1]
}

func (r *recordingSearch) Index(space string, _ []snapshot.Proposal) {
	r.indexed = append(r.indexed, space)
}

func TestDashboardDelegatesSearch(t *testing.T) {
	search := &recordingSearch{}
	svc := newTestService(t, fixtures(), &fakeSummarizer{}, WithSearcher(search))

	got, err := svc.Dashboard(context.Background(), "aave", DashboardQuery{Criteria: filter.Criteria{Search: "grant"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"grant"}, search.terms)
	assert.Equal(t, []string{"aavedao.eth"}, search.indexed)
	assert.Equal(t, 1, got.Proposals.Total)
}

func TestMonthlyReport(t *testing.T) {
	sum := &fakeSummarizer{}
	svc := newTestService(t, fixtures(), sum)

	got, err := svc.Monthly(context.Background(), "aave")
	require.NoError(t, err)

	assert.Equal(t, 1, got.ActiveProposals)
	assert.Equal(t, 1, got.ClosedProposals)
	assert.Equal(t, 40, got.TotalVotes)
	require.Len(t, got.Proposals, 2)
	assert.Equal(t, "", got.Proposals[0].Result)
	assert.Equal(t, "Passed", got.Proposals[1].Result)
	assert.True(t, got.SummaryReady)
	assert.Equal(t, []string{MonthlyReportDirective}, sum.calls)
}

func TestMonthlyReportDegradesOnFailure(t *testing.T) {
	src := fixtures()
	src.failing["aavedao.eth"] = &snapshot.NetworkError{Status: 500}
	svc := newTestService(t, src, &fakeSummarizer{})

	got, err := svc.Monthly(context.Background(), "aave")
	require.NoError(t, err)
	assert.Equal(t, summaryUnavailable, got.Summary)
	assert.False(t, got.SummaryReady)
	assert.Zero(t, got.TotalVotes)
	assert.Empty(t, got.Proposals)
}

func TestGlobalReport(t *testing.T) {
	svc := newTestService(t, fixtures(), &fakeSummarizer{})

	got, err := svc.GlobalReport(context.Background(), "Lido")
	require.NoError(t, err)
	assert.Equal(t, "lido", got.DAO.Key)
	assert.Equal(t, 2, got.RecentCount)
	assert.True(t, got.Summary.Available)
}

func TestWeeklySortsAndFilters(t *testing.T) {
	svc := newTestService(t, fixtures(), &fakeSummarizer{})

	got, err := svc.Weekly(context.Background(), WeeklyFilters{})
	require.NoError(t, err)

	var order []string
	for _, it := range got.Items.Items {
		order = append(order, it.ID)
	}
	// a1 ends in the future, l1 ended yesterday, a2 ended 5 days ago
	assert.Equal(t, []string{"a1", "l1", "a2"}, order)
	assert.Equal(t, "Failed", got.Items.Items[1].Result)

	got, err = svc.Weekly(context.Background(), WeeklyFilters{Status: "passed"})
	require.NoError(t, err)
	require.Len(t, got.Items.Items, 1)
	assert.Equal(t, "a2", got.Items.Items[0].ID)

	got, err = svc.Weekly(context.Background(), WeeklyFilters{DAO: "lido"})
	require.NoError(t, err)
	require.Len(t, got.Items.Items, 1)
	assert.Equal(t, "l1", got.Items.Items[0].ID)
}

func TestWeeklyPartialFailure(t *testing.T) {
	src := fixtures()
	src.failing["lido-snapshot.eth"] = &snapshot.NetworkError{Status: 502}
	svc := newTestService(t, src, &fakeSummarizer{})

	got, err := svc.Weekly(context.Background(), WeeklyFilters{})
	require.NoError(t, err)
	assert.Equal(t, 2, got.Items.Total)
	require.Len(t, got.Failures, 1)
	assert.Equal(t, "lido", got.Failures[0].DAO)

	_, err = svc.Weekly(context.Background(), WeeklyFilters{DAO: "lido"})
	var netErr *snapshot.NetworkError
	assert.True(t, errors.As(err, &netErr))

	_, err = svc.Weekly(context.Background(), WeeklyFilters{DAO: "compound"})
	var notFound *dao.NotFoundError
	assert.True(t, errors.As(err, &notFound))
}

func TestWeeklyReturnsCallerCancellation(t *testing.T) {
	src := fixtures()
	src.block = make(chan struct{})
	t.Cleanup(func() { close(src.block) })
	svc := newTestService(t, src, &fakeSummarizer{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Weekly(ctx, WeeklyFilters{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuildTabs(t *testing.T) {
	svc := newTestService(t, fixtures(), &fakeSummarizer{})
	ctx := context.Background()

	global, err := svc.Build(ctx, TabGlobal, WeeklyFilters{})
	require.NoError(t, err)
	assert.Len(t, global.Global, 2)

	monthly, err := svc.Build(ctx, TabUpdates, WeeklyFilters{DAO: "aave"})
	require.NoError(t, err)
	require.Len(t, monthly.Monthly, 1)
	assert.Equal(t, "aave", monthly.Monthly[0].DAO.Key)

	weekly, err := svc.Build(ctx, TabProposals, WeeklyFilters{})
	require.NoError(t, err)
	require.NotNil(t, weekly.Weekly)
	require.NotNil(t, weekly.WeeklySummary)
	assert.True(t, weekly.WeeklySummary.Available)
}

func TestParseTab(t *testing.T) {
	for in, want := range map[string]Tab{"updates": TabUpdates, "Monthly": TabUpdates, "daily": TabProposals, "overview": TabGlobal, "global": TabGlobal} {
		got, err := ParseTab(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseTab("yearly")
	assert.Error(t, err)
}

func TestSuggestVote(t *testing.T) {
	var directive string
	sum := &fakeSummarizer{fn: func(d, c string) (string, error) {
		directive = d
		return "```json\n{\"vote\":\"no\",\"reason\":\"Overfunded.\"}\n```", nil
	}}
	svc := newTestService(t, fixtures(), sum, WithEthos(func(ctx context.Context, identity string) (string, error) {
		return "I am a treasury hawk", nil
	}))

	got, err := svc.SuggestVote(context.Background(), "0xabc", snapshot.Proposal{ID: "a2", Body: "Fund grants"})
	require.NoError(t, err)
	assert.Equal(t, Suggestion{ProposalID: "a2", Vote: "no", Reason: "Overfunded.", Available: true}, got)
	assert.True(t, strings.HasPrefix(directive, "This is the user ethos: I am a treasury hawk. "))
}

func TestSuggestVoteUnparseable(t *testing.T) {
	sum := &fakeSummarizer{fn: func(string, string) (string, error) { return "Probably yes.", nil }}
	svc := newTestService(t, fixtures(), sum)

	got, err := svc.SuggestVote(context.Background(), "0xabc", snapshot.Proposal{ID: "a2", Body: "Fund grants"})
	require.NoError(t, err)
	assert.False(t, got.Available)
	assert.Equal(t, suggestionFailed, got.Reason)
}

func TestSuggestVoteGenerationFailure(t *testing.T) {
	sum := &fakeSummarizer{fn: func(string, string) (string, error) {
		return "", &llm.GenerationError{Provider: "openai", Err: errors.New("timeout")}
	}}
	svc := newTestService(t, fixtures(), sum)

	_, err := svc.SuggestVote(context.Background(), "0xabc", snapshot.Proposal{ID: "a2", Body: "Fund grants"})
	var genErr *llm.GenerationError
	assert.True(t, errors.As(err, &genErr))
}

func TestProposalAndFilteredSummary(t *testing.T) {
	var contents []string
	sum := &fakeSummarizer{fn: func(d, c string) (string, error) {
		contents = append(contents, c)
		return "ok", nil
	}}
	svc := newTestService(t, fixtures(), sum)
	ctx := context.Background()

	single, err := svc.ProposalSummary(ctx, snapshot.Proposal{ID: "a1", Title: "Risk params", Body: "Adjust LTV"})
	require.NoError(t, err)
	filtered, err := svc.FilteredSummary(ctx, "Aave", []snapshot.Proposal{{Title: "One", Body: "b1"}, {Title: "Two", Body: "b2"}})
	require.NoError(t, err)
	_, err = svc.FilteredSummary(ctx, "Aave", nil)
	assert.ErrorIs(t, err, summary.ErrIdle)
	_, err = svc.ProposalSummary(ctx, snapshot.Proposal{ID: "empty"})
	assert.ErrorIs(t, err, summary.ErrIdle)

	assert.Equal(t, "ok", single.Text)
	assert.Equal(t, summary.Key(ProposalDirective, `"Risk params" - Adjust LTV`), single.Key)
	assert.Equal(t, summary.Key(FilteredProposalDirective, contents[1]), filtered.Key)

	assert.Equal(t, []string{
		`"Risk params" - Adjust LTV`,
		"Recent proposals: BEGIN \"One\" - b1 END\nBEGIN \"Two\" - b2 END",
	}, contents)
}
