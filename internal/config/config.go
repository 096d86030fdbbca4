// Package config loads service configuration from fabrica.yaml with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port        int `mapstructure:"port"`
	MetricsPort int `mapstructure:"metrics_port"`
}

// GenerationConfig holds workflow settings.
type GenerationConfig struct {
	BatchSize  int    `mapstructure:"batch_size"`
	MaxRecords int    `mapstructure:"max_records"`
	OutputDir  string `mapstructure:"output_dir"`
}

// LLMConfig holds generation/evaluation service client settings.
type LLMConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	Model             string        `mapstructure:"model"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`

	// APIKey is only read from the environment, never from the config file.
	APIKey string `mapstructure:"-"`
}

// SearchConfig holds web enrichment client settings.
type SearchConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxQueries int           `mapstructure:"max_queries"`
}

// RedisConfig holds research cache settings.
type RedisConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Addr    string        `mapstructure:"addr"`
	TTL     time.Duration `mapstructure:"ttl"`

	// Password is only read from the environment.
	Password string `mapstructure:"-"`
}

// HistoryConfig holds run history store settings.
type HistoryConfig struct {
	Path string `mapstructure:"path"`
}

// CatalogConfig holds domain catalog settings.
type CatalogConfig struct {
	// OverlayPath is an optional YAML file merged over the built-in catalog
	// and watched for changes.
	OverlayPath string `mapstructure:"overlay_path"`
}

// Config is the full service configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Generation GenerationConfig `mapstructure:"generation"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Search     SearchConfig     `mapstructure:"search"`
	Redis      RedisConfig      `mapstructure:"redis"`
	History    HistoryConfig    `mapstructure:"history"`
	Catalog    CatalogConfig    `mapstructure:"catalog"`
}

// Load reads configuration from CONFIG_PATH (default ./fabrica.yaml when the
// file exists), applies FABRICA_* environment overrides, and fills defaults.
// A missing config file is not an error; defaults plus env are enough to run.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FABRICA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "fabrica.yaml"
	}
	v.SetConfigFile(cfgPath)
	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(cfgPath); statErr == nil {
			return nil, fmt.Errorf("read config %s: %w", cfgPath, err)
		}
		// No config file present; proceed with defaults and env.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.LLM.APIKey = os.Getenv("GROQ_API_KEY")
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("FABRICA_LLM_API_KEY")
	}
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.metrics_port", 2112)

	v.SetDefault("generation.batch_size", 15)
	v.SetDefault("generation.max_records", 1000)
	v.SetDefault("generation.output_dir", "responses")

	v.SetDefault("llm.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("llm.model", "meta-llama/llama-4-maverick-17b-128e-instruct")
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.requests_per_second", 2.0)

	v.SetDefault("search.base_url", "https://api.duckduckgo.com")
	v.SetDefault("search.timeout", 10*time.Second)
	v.SetDefault("search.max_queries", 5)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.ttl", 6*time.Hour)

	v.SetDefault("history.path", "fabrica_history.db")

	v.SetDefault("catalog.overlay_path", "")
}

func (c *Config) validate() error {
	if c.Generation.BatchSize < 1 {
		return fmt.Errorf("generation.batch_size must be positive, got %d", c.Generation.BatchSize)
	}
	if c.Generation.MaxRecords < 1 {
		return fmt.Errorf("generation.max_records must be positive, got %d", c.Generation.MaxRecords)
	}
	if c.LLM.MaxRetries < 0 {
		return fmt.Errorf("llm.max_retries must not be negative, got %d", c.LLM.MaxRetries)
	}
	return nil
}
