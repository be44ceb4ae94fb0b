// Package summary generates model summaries through a coalescing cache keyed by
// the (directive, content) pair.
package summary

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"delegate/api/internal/cache"
	"delegate/api/internal/llm"
)

const (
	DefaultStaleAfter = 10 * time.Minute
	DefaultEvictAfter = 24 * time.Hour

	keyPrefix = "ai-response-"
)

// ErrIdle is returned when there is nothing to summarise yet.
var ErrIdle = errors.New("summary idle: directive or content is empty")

type Option func(*cache.Policy)

func WithStaleAfter(d time.Duration) Option {
	return func(p *cache.Policy) { p.StaleAfter = d }
}

func WithEvictAfter(d time.Duration) Option {
	return func(p *cache.Policy) { p.EvictAfter = d }
}

type Service struct {
	cache     *cache.Cache
	generator llm.Generator
	log       zerolog.Logger
}

func NewService(c *cache.Cache, g llm.Generator, log zerolog.Logger) *Service {
	return &Service{cache: c, generator: g, log: log}
}

// Key derives the cache key for a directive and content. The directive length
// prefix keeps ("ab","c") and ("a","bc") apart.
func Key(directive, content string) string {
	h := sha256.New()
	h.Write([]byte(strconv.Itoa(len(directive))))
	h.Write([]byte(":"))
	h.Write([]byte(directive))
	h.Write([]byte(content))
	return keyPrefix + hex.EncodeToString(h.Sum(nil))
}

// GetOrGenerate returns the cached summary or generates one. hint identifies
// the requester in logs only and never affects the key.
func (s *Service) GetOrGenerate(ctx context.Context, directive, content, hint string, opts ...Option) (string, error) {
	if directive == "" || content == "" {
		return "", ErrIdle
	}
	policy := cache.Policy{StaleAfter: DefaultStaleAfter, EvictAfter: DefaultEvictAfter}
	for _, opt := range opts {
		opt(&policy)
	}

	key := Key(directive, content)
	return s.cache.GetOrLoad(ctx, key, policy, func(ctx context.Context) (string, error) {
		start := time.Now()
		text, err := s.generator.Generate(ctx, directive, content)
		if err != nil {
			s.log.Warn().Err(err).Str("key", key).Str("hint", hint).Msg("summary generation failed")
			var genErr *llm.GenerationError
			if !errors.As(err, &genErr) {
				err = &llm.GenerationError{Provider: "unknown", Err: err}
			}
			return "", err
		}
		s.log.Info().
			Str("key", key).
			Str("hint", hint).
			Dur("took", time.Since(start)).
			Int("length", len(text)).
			Msg("summary generated")
		return text, nil
	})
}

// GenerateMany summarises contents concurrently with the same directive.
// Results keep the input order; the first failure cancels the rest.
func (s *Service) GenerateMany(ctx context.Context, directive string, contents []string, hint string, opts ...Option) ([]string, error) {
	out := make([]string, len(contents))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, content := range contents {
		g.Go(func() error {
			text, err := s.GetOrGenerate(gctx, directive, content, hint, opts...)
			if err != nil {
				return err
			}
			out[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Ping reports whether the summary cache backend is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.cache.Ping(ctx)
}
