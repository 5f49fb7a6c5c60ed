// Package config loads runtime configuration for the ingestion CLI and the
// search server.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full runtime configuration.
type Config struct {
	Qdrant    QdrantConfig    `mapstructure:"qdrant"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Chunking  ChunkingConfig  `mapstructure:"chunking"`
	Loader    LoaderConfig    `mapstructure:"loader"`
	Sources   SourcesConfig   `mapstructure:"sources"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

type QdrantConfig struct {
	Host   string `mapstructure:"host"`
	Port   int    `mapstructure:"port"`
	APIKey string `mapstructure:"api_key"`
	TLS    bool   `mapstructure:"tls"`
}

type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

// EmbeddingConfig selects the embedding backend. Provider "hash" needs no
// network access and is meant for local runs.
type EmbeddingConfig struct {
	Provider  string `mapstructure:"provider"`
	Dimension int    `mapstructure:"dimension"`
	BatchSize int    `mapstructure:"batch_size"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
	Prefix   string        `mapstructure:"prefix"`
}

type ChunkingConfig struct {
	DedupScope string `mapstructure:"dedup_scope"`
	PoolSize   int    `mapstructure:"pool_size"`
	BatchSize  int    `mapstructure:"batch_size"`
}

type LoaderConfig struct {
	BatchSize int `mapstructure:"batch_size"`
}

type SourcesConfig struct {
	Arxiv   SourceConfig `mapstructure:"arxiv"`
	Scholar SourceConfig `mapstructure:"scholar"`
}

// SourceConfig configures one bibliographic API client.
type SourceConfig struct {
	URL               string  `mapstructure:"url"`
	APIKey            string  `mapstructure:"api_key"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	MaxRetries        int     `mapstructure:"max_retries"`
	BatchSize         int     `mapstructure:"batch_size"`
	Maximum           int     `mapstructure:"maximum"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	// Mode is "http" to serve everything over HTTP, or "stdio" to run MCP
	// on stdin/stdout with HTTP in the background.
	Mode string `mapstructure:"mode"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TracingConfig controls OTLP span export.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	ServiceName string  `mapstructure:"service_name"`
}

// DefaultPath is the optional YAML file read by Load.
const DefaultPath = "config.yaml"

// Load reads configuration in priority order:
// defaults -> config file (optional) -> environment variables.
// Environment keys are the upper-cased paths with dots replaced by
// underscores, e.g. QDRANT_HOST or SOURCES_SCHOLAR_API_KEY.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if path == "" {
		path = DefaultPath
	}
	if err := loadConfigFile(v, path); err != nil {
		return nil, err
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadConfigFile reads path, expands ${VAR:default} placeholders and merges
// the result into v. A missing file is not an error.
func loadConfigFile(v *viper.Viper, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := v.ReadConfig(strings.NewReader(expandEnv(string(content)))); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	v.SetConfigFile(path)
	return nil
}

var placeholder = regexp.MustCompile(`\${(\w+)(:([^}]*))?}`)

// expandEnv replaces ${VAR} and ${VAR:default}. Undefined variables without
// a default are left as written.
func expandEnv(s string) string {
	return placeholder.ReplaceAllStringFunc(s, func(match string) string {
		sub := placeholder.FindStringSubmatch(match)
		if val, ok := os.LookupEnv(sub[1]); ok {
			return val
		}
		if sub[2] != "" {
			return sub[3]
		}
		return match
	})
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("qdrant.host", "localhost")
	v.SetDefault("qdrant.port", 6334)
	v.SetDefault("qdrant.api_key", "")
	v.SetDefault("qdrant.tls", false)

	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.model", "text-embedding-3-small")

	v.SetDefault("embedding.provider", "openai")
	v.SetDefault("embedding.dimension", 384)
	v.SetDefault("embedding.batch_size", 500)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", "24h")
	v.SetDefault("redis.prefix", "qemb")

	v.SetDefault("chunking.dedup_scope", "global")
	v.SetDefault("chunking.pool_size", 0)
	v.SetDefault("chunking.batch_size", 64)

	v.SetDefault("loader.batch_size", 100)

	v.SetDefault("sources.arxiv.url", "http://export.arxiv.org/api/query")
	v.SetDefault("sources.arxiv.api_key", "")
	v.SetDefault("sources.arxiv.requests_per_second", 1.0/3)
	v.SetDefault("sources.arxiv.max_retries", 5)
	v.SetDefault("sources.arxiv.batch_size", 100)
	v.SetDefault("sources.arxiv.maximum", 1000)

	v.SetDefault("sources.scholar.url", "https://api.semanticscholar.org/graph/v1/paper/search/bulk")
	v.SetDefault("sources.scholar.api_key", "")
	v.SetDefault("sources.scholar.requests_per_second", 1.0)
	v.SetDefault("sources.scholar.max_retries", 5)
	v.SetDefault("sources.scholar.batch_size", 0)
	v.SetDefault("sources.scholar.maximum", 0)

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "http")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4317")
	v.SetDefault("tracing.sample_rate", 1.0)
	v.SetDefault("tracing.service_name", "paper-search")
}

func (c *Config) validate() error {
	switch c.Embedding.Provider {
	case "openai", "hash":
	default:
		return fmt.Errorf("embedding.provider must be openai or hash, got %q", c.Embedding.Provider)
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding.dimension must be positive, got %d", c.Embedding.Dimension)
	}
	if c.Loader.BatchSize <= 0 {
		return fmt.Errorf("loader.batch_size must be positive, got %d", c.Loader.BatchSize)
	}
	switch c.Server.Mode {
	case "http", "stdio":
	default:
		return fmt.Errorf("server.mode must be http or stdio, got %q", c.Server.Mode)
	}
	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return fmt.Errorf("tracing.endpoint is required when tracing is enabled")
	}
	return nil
}

// Logger builds a logger with the configured level and format.
func (c LogConfig) Logger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
