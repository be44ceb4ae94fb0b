package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is parsed from environment variables prefixed with DELEGATE_,
// e.g. DELEGATE_API_ADDR, DELEGATE_REDIS_URL.
type Config struct {
	Addr       string `envconfig:"API_ADDR" default:":8787"`
	CORSOrigin string `envconfig:"CORS_ORIGIN" default:"*"`
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`

	// Snapshot governance hub
	SnapshotURL     string        `envconfig:"SNAPSHOT_URL" default:"https://hub.snapshot.org/graphql"`
	SnapshotTimeout time.Duration `envconfig:"SNAPSHOT_TIMEOUT" default:"15s"`
	DAORegistry     string        `envconfig:"DAO_REGISTRY" default:""`

	// Language model
	LLMProvider   string        `envconfig:"LLM_PROVIDER" default:"openai"`
	LLMTimeout    time.Duration `envconfig:"LLM_TIMEOUT" default:"60s"`
	OpenAIAPIKey  string        `envconfig:"OPENAI_API_KEY" default:""`
	OpenAIBaseURL string        `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
	OpenAIModel   string        `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
	GeminiAPIKey  string        `envconfig:"GEMINI_API_KEY" default:""`
	GeminiModel   string        `envconfig:"GEMINI_MODEL" default:"gemini-2.5-flash"`

	// Summary cache
	CacheBackend  string        `envconfig:"CACHE_BACKEND" default:"auto"`
	CacheCapacity int           `envconfig:"CACHE_CAPACITY" default:"1024"`
	SummaryStale  time.Duration `envconfig:"SUMMARY_STALE" default:"10m"`
	SummaryEvict  time.Duration `envconfig:"SUMMARY_EVICT" default:"24h"`

	// Persisted preferences
	PrefsBackend string `envconfig:"PREFS_BACKEND" default:"auto"`
	DatabaseURL  string `envconfig:"DATABASE_URL" default:""`
	SQLitePath   string `envconfig:"SQLITE_PATH" default:"./data/delegate.db"`
	RedisURL     string `envconfig:"REDIS_URL" default:""`

	// Search
	MeiliURL       string `envconfig:"MEILI_URL" default:""`
	MeiliMasterKey string `envconfig:"MEILI_MASTER_KEY" default:""`

	// Report archive (S3 compatible)
	S3Endpoint  string `envconfig:"S3_ENDPOINT" default:""`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY" default:""`
	S3SecretKey string `envconfig:"S3_SECRET_KEY" default:""`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"delegate-reports"`
	S3UseSSL    bool   `envconfig:"S3_USE_SSL" default:"true"`
}

// Load parses the environment and resolves "auto" backends.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("DELEGATE", &cfg); err != nil {
		return Config{}, fmt.Errorf("process environment: %w", err)
	}
	if err := cfg.ResolveDefaults(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ResolveDefaults derives CacheBackend and PrefsBackend when set to "auto" and
// validates every enumerated setting.
func (c *Config) ResolveDefaults() error {
	c.LLMProvider = strings.ToLower(strings.TrimSpace(c.LLMProvider))
	switch c.LLMProvider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("unsupported LLM_PROVIDER: %s", c.LLMProvider)
	}

	if c.CacheBackend == "" || c.CacheBackend == "auto" {
		c.CacheBackend = "memory"
		if strings.TrimSpace(c.RedisURL) != "" {
			c.CacheBackend = "redis"
		}
	}
	switch c.CacheBackend {
	case "memory":
	case "redis":
		if strings.TrimSpace(c.RedisURL) == "" {
			return fmt.Errorf("CACHE_BACKEND=redis requires REDIS_URL")
		}
	default:
		return fmt.Errorf("unsupported CACHE_BACKEND: %s", c.CacheBackend)
	}

	if c.PrefsBackend == "" || c.PrefsBackend == "auto" {
		switch {
		case strings.TrimSpace(c.DatabaseURL) != "":
			c.PrefsBackend = "postgres"
		case strings.TrimSpace(c.RedisURL) != "":
			c.PrefsBackend = "redis"
		default:
			c.PrefsBackend = "sqlite"
		}
	}
	switch c.PrefsBackend {
	case "memory", "sqlite":
	case "postgres":
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("PREFS_BACKEND=postgres requires DATABASE_URL")
		}
	case "redis":
		if strings.TrimSpace(c.RedisURL) == "" {
			return fmt.Errorf("PREFS_BACKEND=redis requires REDIS_URL")
		}
	default:
		return fmt.Errorf("unsupported PREFS_BACKEND: %s", c.PrefsBackend)
	}

	if c.CacheCapacity <= 0 {
		c.CacheCapacity = 1024
	}
	if c.SummaryStale <= 0 || c.SummaryEvict <= 0 {
		return fmt.Errorf("summary stale and evict windows must be positive")
	}
	return nil
}
