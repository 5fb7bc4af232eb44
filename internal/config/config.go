package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the PulseHound pipeline.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	NATS     NATSConfig
	Pipeline PipelineConfig
	AI       AIConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

// NATSConfig configures the notification sink. An empty URL disables
// publishing and the service runs with a noop notifier.
type NATSConfig struct {
	URL     string
	Subject string
}

// PipelineConfig holds the scheduling and windowing knobs for the
// aggregation and detection loops.
type PipelineConfig struct {
	AggregationInterval   time.Duration
	AggregationWindowMins int
	DetectionInterval     time.Duration
	HistorySnapshots      int
	Cooldown              time.Duration
	ContextLookbackMins   int
	ContextMaxLines       int
	SnapshotTTL           time.Duration
	AnalysisTTL           time.Duration
	StartupMaxAttempts    int
	StartupRetryDelay     time.Duration
}

type AIConfig struct {
	Provider         string
	FallbackProvider string
	InferenceTimeout time.Duration
	Ollama           OllamaConfig
	OpenAI           OpenAIConfig
	Anthropic        AnthropicConfig
}

type OllamaConfig struct {
	BaseURL string
	Model   string
}

type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

type AnthropicConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

var validProviders = map[string]bool{
	"ollama":    true,
	"openai":    true,
	"anthropic": true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("PULSEHOUND_PORT", 8080),
			Env:  envString("PULSEHOUND_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		NATS: NATSConfig{
			URL:     os.Getenv("NATS_URL"),
			Subject: envString("NATS_SUBJECT", "telemetry.anomalies"),
		},
		Pipeline: PipelineConfig{
			AggregationInterval:   envMinutes("AGGREGATION_INTERVAL_MINS", 5*time.Minute),
			AggregationWindowMins: envInt("AGGREGATION_WINDOW_MINS", 15),
			DetectionInterval:     envMinutes("DETECTION_INTERVAL_MINS", time.Minute),
			HistorySnapshots:      envInt("DETECTION_HISTORY_SNAPSHOTS", 10),
			Cooldown:              envMinutes("COOLDOWN_MINS", 30*time.Minute),
			ContextLookbackMins:   envInt("CONTEXT_LOOKBACK_MINS", 30),
			ContextMaxLines:       envInt("CONTEXT_MAX_LINES", 100),
			SnapshotTTL:           envMinutes("SNAPSHOT_TTL_MINS", 6*time.Hour),
			AnalysisTTL:           envMinutes("ANALYSIS_TTL_MINS", time.Hour),
			StartupMaxAttempts:    envInt("STARTUP_MAX_ATTEMPTS", 5),
			StartupRetryDelay:     envDuration("STARTUP_RETRY_DELAY", 3*time.Second),
		},
		AI: AIConfig{
			Provider:         os.Getenv("AI_PROVIDER"),
			FallbackProvider: os.Getenv("AI_FALLBACK_PROVIDER"),
			InferenceTimeout: envDurationSecs("AI_INFERENCE_TIMEOUT_SECS", 60*time.Second),
			Ollama: OllamaConfig{
				BaseURL: envString("OLLAMA_BASE_URL", "http://localhost:11434"),
				Model:   envString("OLLAMA_MODEL", "llama3"),
			},
			OpenAI: OpenAIConfig{
				BaseURL: envString("OPENAI_BASE_URL", "https://api.openai.com"),
				APIKey:  os.Getenv("OPENAI_API_KEY"),
				Model:   envString("OPENAI_MODEL", "gpt-4"),
			},
			Anthropic: AnthropicConfig{
				BaseURL: envString("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
				APIKey:  os.Getenv("ANTHROPIC_API_KEY"),
				Model:   envString("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),
			},
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Pipeline.AggregationWindowMins <= 0 {
		return fmt.Errorf("AGGREGATION_WINDOW_MINS must be positive, got %d", c.Pipeline.AggregationWindowMins)
	}
	if c.Pipeline.HistorySnapshots < 3 {
		return fmt.Errorf("DETECTION_HISTORY_SNAPSHOTS must be at least 3 (the detector needs a baseline), got %d", c.Pipeline.HistorySnapshots)
	}
	if c.Pipeline.Cooldown <= 0 {
		return fmt.Errorf("COOLDOWN_MINS must be positive")
	}

	for _, p := range []string{c.AI.Provider, c.AI.FallbackProvider} {
		if p != "" && !validProviders[p] {
			return fmt.Errorf("AI provider must be one of ollama, openai, anthropic; got %q", p)
		}
	}

	if c.AI.Provider == "openai" && c.AI.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when AI_PROVIDER is openai")
	}
	if c.AI.Provider == "anthropic" && c.AI.Anthropic.APIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required when AI_PROVIDER is anthropic")
	}

	return nil
}

// Providers returns the configured provider names in fallback order,
// skipping empty entries and a fallback that duplicates the primary.
func (c *AIConfig) Providers() []string {
	var out []string
	for _, p := range []string{c.Provider, c.FallbackProvider} {
		if p == "" {
			continue
		}
		if len(out) > 0 && out[0] == p {
			continue
		}
		out = append(out, p)
	}
	return out
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}

func envMinutes(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	mins, err := strconv.Atoi(v)
	if err != nil || mins <= 0 {
		return defaultVal
	}
	return time.Duration(mins) * time.Minute
}
