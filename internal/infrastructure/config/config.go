package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/careloop/careloop/internal/infrastructure/llm"
)

// Config is the full application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	LLM       LLMConfig       `mapstructure:"llm" yaml:"llm"`
	Retrieval RetrievalConfig `mapstructure:"retrieval" yaml:"retrieval"`
	Approval  ApprovalConfig  `mapstructure:"approval" yaml:"approval"`
	Notify    NotifyConfig    `mapstructure:"notify" yaml:"notify"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
	Mode string `mapstructure:"mode" yaml:"mode"` // debug, release
}

// LogConfig configures logging output.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // json, console
}

// DatabaseConfig selects the conversation store backend.
type DatabaseConfig struct {
	Type string `mapstructure:"type" yaml:"type"` // memory, sqlite, postgres
	DSN  string `mapstructure:"dsn" yaml:"dsn"`
}

// LLMConfig configures providers and the failover policy.
type LLMConfig struct {
	Primary         string               `mapstructure:"primary" yaml:"primary"`
	Providers       []llm.ProviderConfig `mapstructure:"providers" yaml:"providers"`
	MaxRetries      int                  `mapstructure:"max_retries" yaml:"max_retries"`
	RetryDelay      time.Duration        `mapstructure:"retry_delay" yaml:"retry_delay"`
	Model           string               `mapstructure:"model" yaml:"model"`
	Temperature     float64              `mapstructure:"temperature" yaml:"temperature"`
	TopP            float64              `mapstructure:"top_p" yaml:"top_p"`
	MaxTokens       int                  `mapstructure:"max_tokens" yaml:"max_tokens"`
	FallbackMessage string               `mapstructure:"fallback_message" yaml:"fallback_message"`
}

// RetrievalConfig configures knowledge retrieval.
type RetrievalConfig struct {
	TopK       int     `mapstructure:"top_k" yaml:"top_k"`
	MinScore   float64 `mapstructure:"min_score" yaml:"min_score"`
	StoreType  string  `mapstructure:"store_type" yaml:"store_type"` // lancedb, memory
	StorePath  string  `mapstructure:"store_path" yaml:"store_path"`
	EmbedURL   string  `mapstructure:"embed_url" yaml:"embed_url"`
	EmbedKey   string  `mapstructure:"embed_key" yaml:"embed_key"`
	EmbedModel string  `mapstructure:"embed_model" yaml:"embed_model"`
	EmbedDim   int     `mapstructure:"embed_dim" yaml:"embed_dim"`
}

// ApprovalConfig configures the human review gate.
type ApprovalConfig struct {
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold" yaml:"confidence_threshold"`

	// Backlog scanner: tenants to watch and how long a draft may wait
	// before it is flagged.
	ScanTenants  []string      `mapstructure:"scan_tenants" yaml:"scan_tenants"`
	ScanInterval time.Duration `mapstructure:"scan_interval" yaml:"scan_interval"`
	MaxWait      time.Duration `mapstructure:"max_wait" yaml:"max_wait"`
}

// NotifyConfig configures outbound reviewer notifications.
type NotifyConfig struct {
	TelegramBotToken string  `mapstructure:"telegram_bot_token" yaml:"telegram_bot_token"`
	TelegramChatIDs  []int64 `mapstructure:"telegram_chat_ids" yaml:"telegram_chat_ids"`
}

// Load reads configuration in layers: defaults, then ~/.careloop/config.yaml,
// then ./config.yaml, then CARELOOP_* environment variables.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath(HomeDir())
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read global config: %w", err)
		}
	}

	localPath := filepath.Join(".", "config.yaml")
	if _, err := os.Stat(localPath); err == nil {
		v2 := viper.New()
		v2.SetConfigFile(localPath)
		if err := v2.ReadInConfig(); err == nil {
			_ = v.MergeConfigMap(v2.AllSettings())
		}
	}

	v.SetEnvPrefix("CARELOOP")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("database.type", "memory")
	v.SetDefault("database.dsn", "careloop.db")

	v.SetDefault("llm.primary", "openai")
	v.SetDefault("llm.max_retries", 2)
	v.SetDefault("llm.retry_delay", "500ms")
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.top_p", 0.9)
	v.SetDefault("llm.max_tokens", 600)

	v.SetDefault("retrieval.top_k", 3)
	v.SetDefault("retrieval.min_score", 0.7)
	v.SetDefault("retrieval.store_type", "memory")
	v.SetDefault("retrieval.store_path", "data/knowledge.lance")
	v.SetDefault("retrieval.embed_model", "text-embedding-3-small")
	v.SetDefault("retrieval.embed_dim", 1536)

	v.SetDefault("approval.confidence_threshold", 0.80)
	v.SetDefault("approval.scan_interval", "1m")
	v.SetDefault("approval.max_wait", "15m")
}

// Dump renders the effective configuration as YAML with secrets masked.
func (c *Config) Dump() (string, error) {
	masked := *c
	masked.Notify.TelegramBotToken = mask(masked.Notify.TelegramBotToken)
	masked.Retrieval.EmbedKey = mask(masked.Retrieval.EmbedKey)
	masked.LLM.Providers = make([]llm.ProviderConfig, len(c.LLM.Providers))
	for i, p := range c.LLM.Providers {
		p.APIKey = mask(p.APIKey)
		masked.LLM.Providers[i] = p
	}

	out, err := yaml.Marshal(&masked)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}
	return string(out), nil
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}
