package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Retriever RetrieverConfig `yaml:"retriever" mapstructure:"retriever"`
	DocStore  DocStoreConfig  `yaml:"docstore" mapstructure:"docstore"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Gemini    GeminiConfig    `yaml:"gemini" mapstructure:"gemini"`
	Routing   RoutingConfig   `yaml:"routing" mapstructure:"routing"`
	Budget    BudgetConfig    `yaml:"budget" mapstructure:"budget"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the history log backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// RetrieverConfig configures the vector index connection.
type RetrieverConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	TopK        int    `yaml:"top_k" mapstructure:"top_k"`
}

// DocStoreConfig configures the read-only financial document store.
type DocStoreConfig struct {
	BasePath     string `yaml:"base_path" mapstructure:"base_path"`
	ManifestPath string `yaml:"manifest_path" mapstructure:"manifest_path"`
}

// AnthropicConfig holds Anthropic API settings for the complex tier.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// GeminiConfig holds Gemini API settings for the simple tier and embeddings.
type GeminiConfig struct {
	Key            string  `yaml:"key" mapstructure:"key"`
	BaseURL        string  `yaml:"base_url" mapstructure:"base_url"`
	Model          string  `yaml:"model" mapstructure:"model"`
	EmbeddingModel string  `yaml:"embedding_model" mapstructure:"embedding_model"`
	RequestsPerSec float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
}

// RoutingConfig holds the externally configurable classification rules.
// Keyword and company sets are business data and must never be compiled in.
type RoutingConfig struct {
	ComparisonKeywords  []string `yaml:"comparison_keywords" mapstructure:"comparison_keywords"`
	EscalationCompanies []string `yaml:"escalation_companies" mapstructure:"escalation_companies"`
	MinTextChars        int      `yaml:"min_text_chars" mapstructure:"min_text_chars"`
}

// BudgetConfig holds per-tier daily cost ceilings in USD.
type BudgetConfig struct {
	SimpleDailyUSD  float64 `yaml:"simple_daily_usd" mapstructure:"simple_daily_usd"`
	ComplexDailyUSD float64 `yaml:"complex_daily_usd" mapstructure:"complex_daily_usd"`
}

// PipelineConfig configures request handling behavior.
type PipelineConfig struct {
	RequestTimeoutSecs int `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
	CallTimeoutSecs    int `yaml:"call_timeout_secs" mapstructure:"call_timeout_secs"`
	ExtractWorkers     int `yaml:"extract_workers" mapstructure:"extract_workers"`
	CacheSize          int `yaml:"cache_size" mapstructure:"cache_size"`
}

// RequestTimeout returns the overall per-request deadline.
func (p PipelineConfig) RequestTimeout() time.Duration {
	return time.Duration(p.RequestTimeoutSecs) * time.Second
}

// CallTimeout returns the per-provider-call deadline.
func (p PipelineConfig) CallTimeout() time.Duration {
	return time.Duration(p.CallTimeoutSecs) * time.Second
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("WVP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "wvp-qna.db")
	v.SetDefault("retriever.database_url", "")
	v.SetDefault("retriever.top_k", 5)
	v.SetDefault("docstore.base_path", "data/financial_docs")
	v.SetDefault("docstore.manifest_path", "data/financial_docs/manifest.yaml")
	// Keys carry no default; registering them makes AutomaticEnv visible
	// to Unmarshal.
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("gemini.key", "")
	v.SetDefault("gemini.base_url", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("gemini.model", "gemini-2.0-flash")
	v.SetDefault("gemini.embedding_model", "text-embedding-004")
	v.SetDefault("gemini.requests_per_sec", 2.0)
	v.SetDefault("routing.comparison_keywords", []string{"비교", "compare", "대비"})
	v.SetDefault("routing.escalation_companies", []string{})
	v.SetDefault("routing.min_text_chars", 100)
	v.SetDefault("budget.simple_daily_usd", 1.0)
	v.SetDefault("budget.complex_daily_usd", 5.0)
	v.SetDefault("pipeline.request_timeout_secs", 120)
	v.SetDefault("pipeline.call_timeout_secs", 60)
	v.SetDefault("pipeline.extract_workers", 2)
	v.SetDefault("pipeline.cache_size", 100)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
