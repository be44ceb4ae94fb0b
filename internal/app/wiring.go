package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"delegate/api/internal/cache"
	"delegate/api/internal/config"
	"delegate/api/internal/dao"
	"delegate/api/internal/digest"
	"delegate/api/internal/export"
	"delegate/api/internal/llm"
	"delegate/api/internal/prefs"
	"delegate/api/internal/search"
	"delegate/api/internal/snapshot"
)

// Backends owns the connections opened from configuration.
type Backends struct {
	Prefs        *prefs.Store
	DataCache    *cache.Cache
	SummaryCache *cache.Cache
	Meili        *search.Meili

	redis *redis.Client
}

// Close releases every connection. It is safe to call on a partly opened set.
func (b *Backends) Close() {
	if b.Meili != nil {
		b.Meili.Close()
	}
	if b.Prefs != nil {
		_ = b.Prefs.Close()
	}
	if b.redis != nil {
		_ = b.redis.Close()
	}
}

func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

// OpenBackends connects the preference store, both caches and search.
func OpenBackends(ctx context.Context, cfg config.Config, log zerolog.Logger) (*Backends, error) {
	b := &Backends{}
	if cfg.CacheBackend == "redis" || cfg.PrefsBackend == "redis" {
		client, err := connectRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		b.redis = client
	}

	var kv prefs.KV
	switch cfg.PrefsBackend {
	case "memory":
		kv = prefs.NewMemoryKV()
	case "redis":
		kv = prefs.NewRedisKVWithClient(b.redis)
	case "postgres":
		sqlKV, err := prefs.NewSQLKV(ctx, prefs.Postgres, cfg.DatabaseURL)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("open postgres prefs: %w", err)
		}
		kv = sqlKV
	default:
		sqlKV, err := prefs.NewSQLKV(ctx, prefs.SQLite, cfg.SQLitePath)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("open sqlite prefs: %w", err)
		}
		kv = sqlKV
	}
	b.Prefs = prefs.NewStore(kv)
	log.Info().Str("backend", cfg.PrefsBackend).Msg("preferences store ready")

	newBackend := func(name string) cache.Backend {
		if cfg.CacheBackend == "redis" {
			return cache.NewRedisBackend(b.redis, "cache:"+name+":")
		}
		return cache.NewMemoryBackend(cfg.CacheCapacity)
	}
	b.DataCache = cache.New("data", newBackend("data"),
		cache.Policy{StaleAfter: digest.DataStaleAfter, EvictAfter: digest.DataEvictAfter},
		cache.WithLogger(log),
		cache.WithLoadTimeout(2*cfg.SnapshotTimeout),
	)
	b.SummaryCache = cache.New("summary", newBackend("summary"),
		cache.Policy{StaleAfter: cfg.SummaryStale, EvictAfter: cfg.SummaryEvict},
		cache.WithLogger(log),
		cache.WithLoadTimeout(2*cfg.LLMTimeout),
	)
	log.Info().Str("backend", cfg.CacheBackend).Msg("caches ready")

	if strings.TrimSpace(cfg.MeiliURL) != "" {
		b.Meili = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, log)
	}
	return b, nil
}

// NewGenerator builds the configured model client. Without credentials every
// call fails with a GenerationError so views degrade instead of the server
// refusing to start.
func NewGenerator(ctx context.Context, cfg config.Config, log zerolog.Logger) (llm.Generator, error) {
	switch cfg.LLMProvider {
	case "gemini":
		if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
			log.Warn().Msg("GEMINI_API_KEY not set, summaries disabled")
			return unconfigured("gemini"), nil
		}
		client, err := llm.NewGeminiClient(ctx, llm.GeminiConfig{APIKey: cfg.GeminiAPIKey, Model: cfg.GeminiModel})
		if err != nil {
			return nil, err
		}
		return withTimeout(client, cfg.LLMTimeout), nil
	default:
		if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
			log.Warn().Msg("OPENAI_API_KEY not set, summaries disabled")
			return unconfigured("openai"), nil
		}
		client, err := llm.NewOpenAIClient(llm.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
			Timeout: cfg.LLMTimeout,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

func unconfigured(provider string) llm.Generator {
	return llm.GeneratorFunc(func(context.Context, string, string) (string, error) {
		return "", &llm.GenerationError{Provider: provider, Err: errors.New("no API key configured")}
	})
}

func withTimeout(g llm.Generator, d time.Duration) llm.Generator {
	if d <= 0 {
		return g
	}
	return llm.GeneratorFunc(func(ctx context.Context, directive, content string) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return g.Generate(ctx, directive, content)
	})
}

// NewExport builds the export service, with the archive when S3 is configured.
func NewExport(ctx context.Context, cfg config.Config, log zerolog.Logger) *export.Service {
	opts := []export.Option{export.WithLogger(log)}
	if strings.TrimSpace(cfg.S3Endpoint) != "" {
		archive, err := export.NewArchive(export.ArchiveConfig{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			UseSSL:    cfg.S3UseSSL,
		})
		if err != nil {
			log.Warn().Err(err).Msg("report archive disabled")
		} else {
			if err := archive.EnsureBucket(ctx); err != nil {
				log.Warn().Err(err).Msg("report archive bucket check failed")
			}
			opts = append(opts, export.WithArchive(archive))
		}
	}
	return export.NewService(opts...)
}

// Build assembles a Service from configuration. The returned close func
// releases its backends.
func Build(ctx context.Context, cfg config.Config, log zerolog.Logger) (*Service, func(), error) {
	registry, err := dao.LoadFile(cfg.DAORegistry)
	if err != nil {
		return nil, nil, err
	}
	backends, err := OpenBackends(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	generator, err := NewGenerator(ctx, cfg, log)
	if err != nil {
		backends.Close()
		return nil, nil, err
	}

	service := New(cfg, Deps{
		Registry:     registry,
		Source:       snapshot.New(cfg.SnapshotURL, snapshot.WithTimeout(cfg.SnapshotTimeout)),
		Generator:    generator,
		Prefs:        backends.Prefs,
		DataCache:    backends.DataCache,
		SummaryCache: backends.SummaryCache,
		Search:       search.NewService(backends.Meili, log),
		Export:       NewExport(ctx, cfg, log),
		Log:          log,
	})
	return service, backends.Close, nil
}

