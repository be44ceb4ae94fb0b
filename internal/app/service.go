// Package app exposes the dashboard over HTTP.
package app

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"delegate/api/internal/cache"
	"delegate/api/internal/config"
	"delegate/api/internal/dao"
	"delegate/api/internal/digest"
	"delegate/api/internal/export"
	"delegate/api/internal/identity"
	"delegate/api/internal/llm"
	"delegate/api/internal/prefs"
	"delegate/api/internal/search"
	"delegate/api/internal/snapshot"
	"delegate/api/internal/summary"
)

// Deps are the collaborators a Service is assembled from. Search and Export
// default to their in-process implementations when nil.
type Deps struct {
	Registry     *dao.Registry
	Source       digest.Source
	Generator    llm.Generator
	Prefs        *prefs.Store
	DataCache    *cache.Cache
	SummaryCache *cache.Cache
	Search       *search.Service
	Export       *export.Service
	Log          zerolog.Logger
	Clock        func() time.Time
}

type Service struct {
	cfg       config.Config
	registry  *dao.Registry
	digest    *digest.Service
	summaries *summary.Service
	prefs     *prefs.Store
	data      *cache.Cache
	search    *search.Service
	export    *export.Service
	log       zerolog.Logger
}

func New(cfg config.Config, d Deps) *Service {
	if d.Search == nil {
		d.Search = search.NewService(nil, d.Log)
	}
	if d.Export == nil {
		d.Export = export.NewService(export.WithLogger(d.Log))
	}
	summaries := summary.NewService(d.SummaryCache, d.Generator, d.Log)

	opts := []digest.Option{
		digest.WithSearcher(d.Search),
		digest.WithLogger(d.Log),
		digest.WithEthos(func(ctx context.Context, id string) (string, error) {
			return d.Prefs.For(id).Ethos.Get(ctx)
		}),
	}
	if d.Clock != nil {
		opts = append(opts, digest.WithClock(d.Clock))
	}

	return &Service{
		cfg:       cfg,
		registry:  d.Registry,
		digest:    digest.NewService(d.Registry, d.Source, d.DataCache, summaries, opts...),
		summaries: summaries,
		prefs:     d.Prefs,
		data:      d.DataCache,
		search:    d.Search,
		export:    d.Export,
		log:       d.Log,
	}
}

// Check is one readiness probe result.
type Check struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Ready probes every stateful backend. ok is false when any probe failed.
func (s *Service) Ready(ctx context.Context) (checks map[string]Check, ok bool) {
	probes := map[string]func(context.Context) error{
		"prefs":     s.prefs.Ping,
		"dataCache": s.data.Ping,
		"summaries": s.summaries.Ping,
	}
	checks = make(map[string]Check, len(probes)+1)
	ok = true
	for name, probe := range probes {
		if err := probe(ctx); err != nil {
			checks[name] = Check{Status: "error", Error: err.Error()}
			ok = false
			continue
		}
		checks[name] = Check{Status: "ok"}
	}
	checks["search"] = Check{Status: s.search.Engine()}
	return checks, ok
}

func (s *Service) DAOs() []dao.Config {
	return s.registry.All()
}

func (s *Service) Explorer(ctx context.Context) []digest.ExplorerEntry {
	return s.digest.Explorer(ctx)
}

func (s *Service) Dashboard(ctx context.Context, ref string, q digest.DashboardQuery) (digest.Dashboard, error) {
	return s.digest.Dashboard(ctx, ref, q)
}

func (s *Service) Digest(ctx context.Context, rawTab string, f digest.WeeklyFilters) (digest.Digest, error) {
	tab, err := digest.ParseTab(rawTab)
	if err != nil {
		return digest.Digest{}, validationError(err.Error())
	}
	return s.digest.Build(ctx, tab, f)
}

// ExportResult is a rendered digest and, when archived, its object key.
type ExportResult struct {
	*export.Result
	Key string
}

func (s *Service) ExportDigest(ctx context.Context, rawTab string, f digest.WeeklyFilters, rawFormat string, archive bool) (ExportResult, error) {
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		return ExportResult{}, err
	}
	d, err := s.Digest(ctx, rawTab, f)
	if err != nil {
		return ExportResult{}, err
	}
	res, err := s.export.Export(ctx, d, format)
	if err != nil {
		return ExportResult{}, err
	}
	out := ExportResult{Result: res}
	if archive {
		if out.Key, err = s.export.Archive(ctx, res); err != nil {
			return ExportResult{}, err
		}
	}
	return out, nil
}

type SummaryInput struct {
	Proposal  *snapshot.Proposal  `json:"proposal,omitempty"`
	Proposals []snapshot.Proposal `json:"proposals,omitempty"`
	Hint      string              `json:"hint,omitempty"`
}

type SummaryOutput struct {
	Text      string `json:"text"`
	Available bool   `json:"available"`
	Key       string `json:"key"`
}

// Summarize summarises one proposal, or a filtered selection when Proposals is set.
func (s *Service) Summarize(ctx context.Context, in SummaryInput) (SummaryOutput, error) {
	var (
		res digest.Summary
		err error
	)
	switch {
	case in.Proposal != nil:
		res, err = s.digest.ProposalSummary(ctx, *in.Proposal)
	case len(in.Proposals) > 0:
		res, err = s.digest.FilteredSummary(ctx, in.Hint, in.Proposals)
	default:
		return SummaryOutput{}, validationError("proposal or proposals is required")
	}
	if errors.Is(err, summary.ErrIdle) {
		return SummaryOutput{Text: "Nothing to summarise."}, nil
	}
	if err != nil {
		return SummaryOutput{}, err
	}
	return SummaryOutput{Text: res.Text, Available: true, Key: res.Key}, nil
}

func (s *Service) Suggest(ctx context.Context, id string, p *snapshot.Proposal) (digest.Suggestion, error) {
	if p == nil || strings.TrimSpace(p.ID) == "" {
		return digest.Suggestion{}, validationError("proposal with an id is required")
	}
	if id == "" {
		return digest.Suggestion{}, prefs.ErrNoIdentity
	}
	return s.digest.SuggestVote(ctx, id, *p)
}

func (s *Service) Search(ctx context.Context, q search.Query) search.Response {
	return s.search.Search(ctx, q)
}

// Account is the connected identity with its preferences.
type Account struct {
	prefs.Profile
	Connected   bool   `json:"connected"`
	DisplayName string `json:"displayName"`
	Short       string `json:"short"`
}

func (s *Service) Account(ctx context.Context, id string) (Account, error) {
	profile, err := s.prefs.For(id).Load(ctx)
	if err != nil {
		return Account{}, err
	}
	if profile.Subscriptions == nil {
		profile.Subscriptions = []prefs.Subscription{}
	}
	if profile.Agents == nil {
		profile.Agents = []prefs.Agent{}
	}
	out := Account{Profile: profile, Connected: id != ""}
	if id != "" {
		out.DisplayName = identity.DisplayName(id)
		out.Short = identity.Shorten(id)
	}
	return out, nil
}

// SetEthos saves text, or the description of the preset named by preset.
// One of the two must be set.
func (s *Service) SetEthos(ctx context.Context, id, text, preset string) (Account, error) {
	if strings.TrimSpace(text) == "" && strings.TrimSpace(preset) == "" {
		return Account{}, validationError("text or preset is required")
	}
	if strings.TrimSpace(preset) != "" {
		p, ok := prefs.PresetByTitle(preset)
		if !ok {
			return Account{}, domainError(http.StatusNotFound, "NOT_FOUND", "Unknown ethos preset", map[string]any{"preset": preset})
		}
		text = p.Description
	}
	if err := s.prefs.For(id).Ethos.Set(ctx, strings.TrimSpace(text)); err != nil {
		return Account{}, err
	}
	return s.Account(ctx, id)
}

func (s *Service) resolveKey(ref string) (string, error) {
	d, err := s.registry.Resolve(ref)
	if err != nil {
		return "", err
	}
	return d.Key, nil
}

func (s *Service) Subscribe(ctx context.Context, id, ref string) (Account, error) {
	return s.mutate(ctx, id, ref, func(v prefs.View, key string) error {
		return v.Subscriptions.Add(ctx, key)
	})
}

func (s *Service) Unsubscribe(ctx context.Context, id, ref string) (Account, error) {
	return s.mutate(ctx, id, ref, func(v prefs.View, key string) error {
		return v.Subscriptions.Remove(ctx, key)
	})
}

func (s *Service) StartAgent(ctx context.Context, id, ref string) (Account, error) {
	return s.mutate(ctx, id, ref, func(v prefs.View, key string) error {
		_, err := v.Agents.Start(ctx, key)
		return err
	})
}

func (s *Service) StopAgent(ctx context.Context, id, ref string) (Account, error) {
	return s.mutate(ctx, id, ref, func(v prefs.View, key string) error {
		return v.Agents.Stop(ctx, key)
	})
}

func (s *Service) mutate(ctx context.Context, id, ref string, fn func(prefs.View, string) error) (Account, error) {
	key, err := s.resolveKey(ref)
	if err != nil {
		return Account{}, err
	}
	if err := fn(s.prefs.For(id), key); err != nil {
		return Account{}, err
	}
	return s.Account(ctx, id)
}

func (s *Service) EthosPresets() []prefs.EthosPreset {
	return prefs.EthosPresets
}
