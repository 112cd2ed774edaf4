// Package config loads backend configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the backend.
type Config struct {
	Server    ServerConfig
	Logging   LoggingConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Inference InferenceConfig
	Chain     ChainConfig
	Quests    QuestConfig
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr            string        `env:"SERVER_ADDR,default=:8080"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT,default=10s"`
	RateLimitRPS    int           `env:"SERVER_RATE_LIMIT_RPS,default=20"`
	RateLimitBurst  int           `env:"SERVER_RATE_LIMIT_BURST,default=40"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL,default=info"`
	Format string `env:"LOG_FORMAT,default=text"`
	Output string `env:"LOG_OUTPUT,default=stdout"`
}

// DatabaseConfig controls the optional PostgreSQL store. When DSN is empty the
// in-memory store is used.
type DatabaseConfig struct {
	DSN            string `env:"DATABASE_DSN"`
	MigrationsPath string `env:"DATABASE_MIGRATIONS,default=file://migrations"`
}

// RedisConfig controls the optional redis-backed nonce store. When Addr is
// empty the in-memory store is used.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,default=0"`
}

// AuthConfig controls JWT verification and challenge nonces.
type AuthConfig struct {
	JWTSecret string        `env:"JWT_SECRET,default=dev-secret-change-me"`
	JWTExpiry time.Duration `env:"JWT_EXPIRY,default=30m"`
	NonceTTL  time.Duration `env:"AUTH_NONCE_TTL,default=5m"`
}

// InferenceConfig controls the external hint inference service.
type InferenceConfig struct {
	BaseURL     string        `env:"INFERENCE_BASE_URL,default=https://api.groq.com/openai/v1"`
	APIKey      string        `env:"INFERENCE_API_KEY"`
	Model       string        `env:"INFERENCE_MODEL,default=llama-3.1-8b-instant"`
	Timeout     time.Duration `env:"INFERENCE_TIMEOUT,default=20s"`
	QueueSize   int           `env:"HINT_QUEUE_SIZE,default=64"`
	WorkerCount int           `env:"HINT_WORKERS,default=2"`
}

// ChainConfig controls the ledger status API used for reward reconciliation.
type ChainConfig struct {
	APIURL       string        `env:"CHAIN_API_URL,default=https://api.testnet.hiro.so"`
	APIKey       string        `env:"CHAIN_API_KEY"`
	Timeout      time.Duration `env:"CHAIN_TIMEOUT,default=10s"`
	SweepSpec    string        `env:"CHAIN_SWEEP_SPEC,default=@every 10m"`
	PendingLimit time.Duration `env:"CHAIN_PENDING_LIMIT,default=1h"`
	Contract     string        `env:"REWARD_CONTRACT,default=SP000000000000000000002Q6VF78.dojo-badge"`
	Function     string        `env:"REWARD_FUNCTION,default=mint-badge"`
}

// QuestConfig controls catalog loading.
type QuestConfig struct {
	CatalogPath string `env:"QUEST_CATALOG_PATH"`
}

// Load reads configuration from the environment, honouring a local .env file
// when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	return &cfg, nil
}
