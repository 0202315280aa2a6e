// Package config loads configuration from environment variables with an
// optional YAML file overlay.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/raphaelgruber/luma-go/internal/analysis"
)

// Backend providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
)

// Config holds all configuration values.
type Config struct {
	// SurrealDB connection
	SurrealDBURL       string `yaml:"surrealdb_url"`
	SurrealDBNamespace string `yaml:"surrealdb_namespace"`
	SurrealDBDatabase  string `yaml:"surrealdb_database"`
	SurrealDBUser      string `yaml:"surrealdb_user"`
	SurrealDBPass      string `yaml:"surrealdb_pass"`
	SurrealDBAuthLevel string `yaml:"surrealdb_auth_level"`

	// Fast-tier backend: short empathetic replies
	FastProvider string `yaml:"fast_provider"`
	FastModel    string `yaml:"fast_model"`

	// Deep-tier backend: analytical reasoning. DeepBaseURL allows any
	// OpenAI-compatible host (Together, Fireworks, local vLLM).
	DeepProvider string `yaml:"deep_provider"`
	DeepModel    string `yaml:"deep_model"`
	DeepBaseURL  string `yaml:"deep_base_url"`

	// Provider credentials
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	OpenAIAPIKey    string `yaml:"openai_api_key"`
	OllamaHost      string `yaml:"ollama_host"`

	// Per-call timeout for generation backends
	BackendTimeout time.Duration `yaml:"backend_timeout"`

	// Current user partition. Absence is a hard error at orchestration
	// time, never a silent fallback.
	UserID string `yaml:"user_id"`

	// Reuse an active session younger than this; otherwise create one.
	SessionReuseWindow time.Duration `yaml:"session_reuse_window"`

	// Memory retrieval limit per turn
	MemoryLimit int `yaml:"memory_limit"`

	// Logging
	LogFile  string     `yaml:"log_file"`
	LogLevel slog.Level `yaml:"-"`

	// Server
	ListenAddr string `yaml:"listen_addr"`

	// Scoring weight overrides, settable only via the config file. A nil
	// section keeps the built-in tuning.
	ComplexityWeights *analysis.ComplexityWeights `yaml:"complexity_weights"`
	RelevanceWeights  *analysis.RelevanceWeights  `yaml:"relevance_weights"`
	ThemeWeights      *analysis.ThemeWeights      `yaml:"theme_weights"`
}

// ComplexityWeightsOrDefault returns the configured override or the
// built-in tuning.
func (c Config) ComplexityWeightsOrDefault() analysis.ComplexityWeights {
	if c.ComplexityWeights != nil {
		return *c.ComplexityWeights
	}
	return analysis.DefaultComplexityWeights()
}

// RelevanceWeightsOrDefault returns the configured override or the
// built-in tuning.
func (c Config) RelevanceWeightsOrDefault() analysis.RelevanceWeights {
	if c.RelevanceWeights != nil {
		return *c.RelevanceWeights
	}
	return analysis.DefaultRelevanceWeights()
}

// ThemeWeightsOrDefault returns the configured override or the built-in
// tuning.
func (c Config) ThemeWeightsOrDefault() analysis.ThemeWeights {
	if c.ThemeWeights != nil {
		return *c.ThemeWeights
	}
	return analysis.DefaultThemeWeights()
}

// Load reads configuration from an optional YAML file (LUMA_CONFIG or
// ~/.config/luma/config.yaml), then applies environment variables on top.
// Environment always wins.
func Load() Config {
	cfg := defaults()

	if path := configPath(); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			slog.Warn("config file ignored", "path", path, "error", err)
		}
	}

	applyEnv(&cfg)
	return cfg
}

func defaults() Config {
	return Config{
		SurrealDBURL:       "ws://localhost:8000/rpc",
		SurrealDBNamespace: "luma",
		SurrealDBDatabase:  "companion",
		SurrealDBUser:      "root",
		SurrealDBPass:      "root",
		SurrealDBAuthLevel: "root",

		FastProvider: ProviderAnthropic,
		FastModel:    "claude-3-5-haiku-20241022",

		DeepProvider: ProviderOpenAI,
		DeepModel:    "meta-llama/Meta-Llama-3.1-70B-Instruct-Turbo",
		DeepBaseURL:  "https://api.together.xyz/v1",

		OllamaHost: "http://localhost:11434",

		BackendTimeout:     30 * time.Second,
		SessionReuseWindow: 12 * time.Hour,
		MemoryLimit:        8,

		LogFile:  "/tmp/luma.log",
		LogLevel: slog.LevelInfo,

		ListenAddr: ":8487",
	}
}

func configPath() string {
	if p := os.Getenv("LUMA_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	p := filepath.Join(home, ".config", "luma", "config.yaml")
	if _, err := os.Stat(p); err != nil {
		return ""
	}
	return p
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.SurrealDBURL, "SURREALDB_URL")
	setString(&cfg.SurrealDBNamespace, "SURREALDB_NAMESPACE")
	setString(&cfg.SurrealDBDatabase, "SURREALDB_DATABASE")
	setString(&cfg.SurrealDBUser, "SURREALDB_USER")
	setString(&cfg.SurrealDBPass, "SURREALDB_PASS")
	setString(&cfg.SurrealDBAuthLevel, "SURREALDB_AUTH_LEVEL")

	setString(&cfg.FastProvider, "LUMA_FAST_PROVIDER")
	setString(&cfg.FastModel, "LUMA_FAST_MODEL")
	setString(&cfg.DeepProvider, "LUMA_DEEP_PROVIDER")
	setString(&cfg.DeepModel, "LUMA_DEEP_MODEL")
	setString(&cfg.DeepBaseURL, "LUMA_DEEP_BASE_URL")

	setString(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	setString(&cfg.OpenAIAPIKey, "OPENAI_API_KEY")
	setString(&cfg.OllamaHost, "OLLAMA_HOST")

	setDuration(&cfg.BackendTimeout, "LUMA_BACKEND_TIMEOUT")
	setDuration(&cfg.SessionReuseWindow, "LUMA_SESSION_REUSE_WINDOW")

	if v := os.Getenv("LUMA_MEMORY_LIMIT"); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil && n > 0 {
			cfg.MemoryLimit = n
		}
	}

	setString(&cfg.UserID, "LUMA_USER_ID")
	setString(&cfg.LogFile, "LUMA_LOG_FILE")
	setString(&cfg.ListenAddr, "LUMA_LISTEN_ADDR")

	if v := os.Getenv("LUMA_LOG_LEVEL"); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			*dst = d
		}
	}
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
