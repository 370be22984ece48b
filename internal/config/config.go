// Package config loads engine configuration and sets up process logging.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Provider identifies an LLM or embedding backend.
type Provider string

const (
	ProviderOllama    Provider = "ollama"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// Config holds all configuration values.
type Config struct {
	// Server
	ListenAddr string `yaml:"listen_addr"`

	// Session store
	DatabasePath string `yaml:"database_path"`

	// Knowledge base
	ModelInputsDir string `yaml:"model_inputs_dir"`
	RetrievalK     int    `yaml:"retrieval_k"`

	// LLM
	LLMProvider     Provider `yaml:"llm_provider"`
	LLMModel        string   `yaml:"llm_model"`
	OpenAIAPIKey    string   `yaml:"openai_api_key"`
	AnthropicAPIKey string   `yaml:"anthropic_api_key"`
	OllamaHost      string   `yaml:"ollama_host"`

	// Embedding
	EmbedProvider  Provider `yaml:"embed_provider"`
	EmbedModel     string   `yaml:"embed_model"`
	EmbedDimension int      `yaml:"embed_dimension"`

	// Sessions
	DefaultTimezone string `yaml:"default_timezone"`

	// Logging
	LogFile  string     `yaml:"log_file"`
	LogLevel slog.Level `yaml:"-"`
}

// Load reads configuration from an optional YAML file (CHEMOCHAT_CONFIG)
// with environment variables taking precedence. Defaults match the reference
// deployment.
func Load() (Config, error) {
	cfg := Config{
		ListenAddr:      "127.0.0.1:8080",
		DatabasePath:    "chemochat.db",
		ModelInputsDir:  "model_inputs",
		RetrievalK:      5,
		LLMProvider:     ProviderOpenAI,
		LLMModel:        "gpt-4o",
		OllamaHost:      "http://localhost:11434",
		EmbedProvider:   ProviderOllama,
		EmbedModel:      "all-minilm:l6-v2",
		EmbedDimension:  384,
		DefaultTimezone: "America/Los_Angeles",
	}

	if path := os.Getenv("CHEMOCHAT_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.ListenAddr = getEnv("CHEMOCHAT_LISTEN_ADDR", cfg.ListenAddr)
	cfg.DatabasePath = getEnv("CHEMOCHAT_DB_PATH", cfg.DatabasePath)
	cfg.ModelInputsDir = getEnv("CHEMOCHAT_MODEL_INPUTS", cfg.ModelInputsDir)
	cfg.LLMProvider = Provider(getEnv("CHEMOCHAT_LLM_PROVIDER", string(cfg.LLMProvider)))
	cfg.LLMModel = getEnv("CHEMOCHAT_LLM_MODEL", cfg.LLMModel)
	cfg.OpenAIAPIKey = getEnv("OPENAI_API_KEY", cfg.OpenAIAPIKey)
	cfg.AnthropicAPIKey = getEnv("ANTHROPIC_API_KEY", cfg.AnthropicAPIKey)
	cfg.OllamaHost = getEnv("OLLAMA_HOST", cfg.OllamaHost)
	cfg.EmbedProvider = Provider(getEnv("CHEMOCHAT_EMBED_PROVIDER", string(cfg.EmbedProvider)))
	cfg.EmbedModel = getEnv("CHEMOCHAT_EMBED_MODEL", cfg.EmbedModel)
	cfg.DefaultTimezone = getEnv("CHEMOCHAT_DEFAULT_TIMEZONE", cfg.DefaultTimezone)
	cfg.LogFile = getEnv("CHEMOCHAT_LOG_FILE", cfg.LogFile)
	cfg.LogLevel = parseLogLevel(getEnv("CHEMOCHAT_LOG_LEVEL", "INFO"))

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
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
