package config

import (
	"os"
	"strconv"
	"time"
)

// ProviderType selects the adapter implementation for a provider entry.
// OpenAI-compatible vendors (xAI, Mistral) share the openai adapter with
// a vendor-specific base URL.
type ProviderType string

const (
	ProviderAnthropic ProviderType = "anthropic"
	ProviderOpenAI    ProviderType = "openai"
	ProviderGemini    ProviderType = "gemini"
	ProviderCohere    ProviderType = "cohere"
)

// ProviderConfig holds the static configuration for one provider.
// A provider without an API key is excluded from the registry at build
// time: it is never attempted, never counted, never retried.
type ProviderConfig struct {
	Type       ProviderType
	Name       string
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	Weight     float64
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type EnsembleConfig struct {
	MaxConcurrent  int64
	CooldownWindow time.Duration
}

type SessionConfig struct {
	Backend   string // "memory" or "redis"
	RedisAddr string
	RedisDB   int
	MaxTurns  int
	TailTurns int
}

type PersonaConfig struct {
	Path string // optional YAML persona table; empty uses the built-in table
}

type FallbackConfig struct {
	Seed int64
}

type Config struct {
	Server    ServerConfig
	Providers map[string]ProviderConfig
	Ensemble  EnsembleConfig
	Session   SessionConfig
	Personas  PersonaConfig
	Fallback  FallbackConfig
}

// Load reads configuration from the environment. Vendor API keys use
// their conventional names (ANTHROPIC_API_KEY, OPENAI_API_KEY, ...).
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("QUORUM_PORT", "8080"),
			ReadTimeout:  getEnvDuration("QUORUM_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvDuration("QUORUM_WRITE_TIMEOUT", 120*time.Second),
		},
		Providers: map[string]ProviderConfig{
			"claude": {
				Type:       ProviderAnthropic,
				Name:       "Claude",
				APIKey:     os.Getenv("ANTHROPIC_API_KEY"),
				BaseURL:    getEnv("ANTHROPIC_BASE_URL", ""),
				Model:      getEnv("ANTHROPIC_MODEL", "claude-3-5-sonnet-20241022"),
				Timeout:    getEnvDuration("ANTHROPIC_TIMEOUT", 30*time.Second),
				MaxRetries: getEnvInt("ANTHROPIC_MAX_RETRIES", 1),
				Weight:     getEnvFloat("ANTHROPIC_WEIGHT", 1.0),
			},
			"gpt4o": {
				Type:       ProviderOpenAI,
				Name:       "GPT-4o",
				APIKey:     os.Getenv("OPENAI_API_KEY"),
				BaseURL:    getEnv("OPENAI_BASE_URL", ""),
				Model:      getEnv("OPENAI_MODEL", "gpt-4o"),
				Timeout:    getEnvDuration("OPENAI_TIMEOUT", 30*time.Second),
				MaxRetries: getEnvInt("OPENAI_MAX_RETRIES", 1),
				Weight:     getEnvFloat("OPENAI_WEIGHT", 1.0),
			},
			"gemini": {
				Type:       ProviderGemini,
				Name:       "Gemini",
				APIKey:     os.Getenv("GOOGLE_API_KEY"),
				BaseURL:    getEnv("GEMINI_BASE_URL", ""),
				Model:      getEnv("GEMINI_MODEL", "gemini-1.5-pro"),
				Timeout:    getEnvDuration("GEMINI_TIMEOUT", 30*time.Second),
				MaxRetries: getEnvInt("GEMINI_MAX_RETRIES", 1),
				Weight:     getEnvFloat("GEMINI_WEIGHT", 1.0),
			},
			"grok": {
				Type:       ProviderOpenAI,
				Name:       "Grok",
				APIKey:     os.Getenv("XAI_API_KEY"),
				BaseURL:    getEnv("XAI_BASE_URL", "https://api.x.ai/v1"),
				Model:      getEnv("XAI_MODEL", "grok-2-1212"),
				Timeout:    getEnvDuration("XAI_TIMEOUT", 30*time.Second),
				MaxRetries: getEnvInt("XAI_MAX_RETRIES", 1),
				Weight:     getEnvFloat("XAI_WEIGHT", 0.9),
			},
			"mistral": {
				Type:       ProviderOpenAI,
				Name:       "Mistral",
				APIKey:     os.Getenv("MISTRAL_API_KEY"),
				BaseURL:    getEnv("MISTRAL_BASE_URL", "https://api.mistral.ai/v1"),
				Model:      getEnv("MISTRAL_MODEL", "mistral-large-latest"),
				Timeout:    getEnvDuration("MISTRAL_TIMEOUT", 30*time.Second),
				MaxRetries: getEnvInt("MISTRAL_MAX_RETRIES", 1),
				Weight:     getEnvFloat("MISTRAL_WEIGHT", 0.9),
			},
			"cohere": {
				Type:       ProviderCohere,
				Name:       "Command R+",
				APIKey:     os.Getenv("COHERE_API_KEY"),
				BaseURL:    getEnv("COHERE_BASE_URL", ""),
				Model:      getEnv("COHERE_MODEL", "command-r-plus"),
				Timeout:    getEnvDuration("COHERE_TIMEOUT", 30*time.Second),
				MaxRetries: getEnvInt("COHERE_MAX_RETRIES", 1),
				Weight:     getEnvFloat("COHERE_WEIGHT", 0.8),
			},
		},
		Ensemble: EnsembleConfig{
			MaxConcurrent:  int64(getEnvInt("QUORUM_MAX_CONCURRENT", 8)),
			CooldownWindow: getEnvDuration("QUORUM_COOLDOWN_WINDOW", 60*time.Second),
		},
		Session: SessionConfig{
			Backend:   getEnv("QUORUM_SESSION_BACKEND", "memory"),
			RedisAddr: getEnv("QUORUM_REDIS_ADDR", "localhost:6379"),
			RedisDB:   getEnvInt("QUORUM_REDIS_DB", 0),
			MaxTurns:  getEnvInt("QUORUM_SESSION_MAX_TURNS", 50),
			TailTurns: getEnvInt("QUORUM_SESSION_TAIL_TURNS", 8),
		},
		Personas: PersonaConfig{
			Path: os.Getenv("QUORUM_PERSONA_FILE"),
		},
		Fallback: FallbackConfig{
			Seed: int64(getEnvInt("QUORUM_FALLBACK_SEED", 1)),
		},
	}
}

// ConfiguredProviders returns the ids of providers that have credentials.
func (c *Config) ConfiguredProviders() []string {
	ids := make([]string, 0, len(c.Providers))
	for id, pc := range c.Providers {
		if pc.APIKey != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
