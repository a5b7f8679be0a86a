package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the PhotoPilot server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Assets   AssetsConfig
	AI       AIConfig
	Worker   WorkerConfig
	Sync     SyncConfig
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

// AssetsConfig configures the object-storage gateway that issues signed
// read handles. Handle TTL is deliberately short: an item task that cannot
// finish within it should fail rather than hang its chunk.
type AssetsConfig struct {
	BaseURL   string
	Token     string
	HandleTTL time.Duration
	Timeout   time.Duration
}

type AIConfig struct {
	Provider         string
	InferenceTimeout time.Duration
	Ollama           OllamaConfig
	OpenAI           OpenAIConfig
}

type OllamaConfig struct {
	BaseURL string
	Model   string
}

type OpenAIConfig struct {
	APIKey string
	Model  string
}

// WorkerConfig tunes the batch worker. ChunkSize trades inference-service
// load against throughput; InferencePerSec is a shared ceiling across all
// in-flight item tasks.
type WorkerConfig struct {
	ChunkSize       int
	InterChunkDelay time.Duration
	InferencePerSec float64
}

type SyncConfig struct {
	PollInterval time.Duration
}

var validProviders = map[string]bool{
	"ollama": true,
	"openai": true,
	"mock":   true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("PHOTOPILOT_PORT", 8080),
			Env:  envString("PHOTOPILOT_ENV", "development"),
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
		Assets: AssetsConfig{
			BaseURL:   os.Getenv("ASSETS_BASE_URL"),
			Token:     os.Getenv("ASSETS_TOKEN"),
			HandleTTL: envDuration("ASSETS_HANDLE_TTL", 10*time.Minute),
			Timeout:   envDuration("ASSETS_TIMEOUT", 15*time.Second),
		},
		AI: AIConfig{
			Provider:         os.Getenv("AI_PROVIDER"),
			InferenceTimeout: envDurationSecs("AI_INFERENCE_TIMEOUT_SECS", 60*time.Second),
			Ollama: OllamaConfig{
				BaseURL: envString("OLLAMA_BASE_URL", "http://localhost:11434"),
				Model:   envString("OLLAMA_MODEL", "llava"),
			},
			OpenAI: OpenAIConfig{
				APIKey: os.Getenv("OPENAI_API_KEY"),
				Model:  envString("OPENAI_MODEL", "gpt-4o-mini"),
			},
		},
		Worker: WorkerConfig{
			ChunkSize:       envInt("WORKER_CHUNK_SIZE", 3),
			InterChunkDelay: envDuration("WORKER_INTER_CHUNK_DELAY", 500*time.Millisecond),
			InferencePerSec: envFloat("WORKER_INFERENCE_PER_SEC", 5),
		},
		Sync: SyncConfig{
			PollInterval: envDuration("SYNC_POLL_INTERVAL", 2*time.Second),
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

	if c.Assets.BaseURL == "" {
		return fmt.Errorf("ASSETS_BASE_URL is required")
	}
	if !strings.HasPrefix(c.Assets.BaseURL, "http://") && !strings.HasPrefix(c.Assets.BaseURL, "https://") {
		return fmt.Errorf("ASSETS_BASE_URL must start with http:// or https://, got %q", c.Assets.BaseURL)
	}

	if c.AI.Provider == "" {
		return fmt.Errorf("AI_PROVIDER is required")
	}
	if !validProviders[c.AI.Provider] {
		return fmt.Errorf("AI_PROVIDER must be one of ollama, openai, mock; got %q", c.AI.Provider)
	}
	if c.AI.Provider == "openai" && c.AI.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when AI_PROVIDER is openai")
	}

	if c.Worker.ChunkSize < 1 {
		return fmt.Errorf("WORKER_CHUNK_SIZE must be at least 1, got %d", c.Worker.ChunkSize)
	}

	if c.Sync.PollInterval < 100*time.Millisecond {
		return fmt.Errorf("SYNC_POLL_INTERVAL must be at least 100ms, got %v", c.Sync.PollInterval)
	}

	return nil
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

func envFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
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
