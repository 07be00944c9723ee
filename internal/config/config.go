package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage and blob backend names.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMinIO    = "minio"
)

type Config struct {
	Port             string        `mapstructure:"PORT"`
	Env              string        `mapstructure:"ENV"`
	LogLevel         string        `mapstructure:"LOG_LEVEL"`
	StorageBackend   string        `mapstructure:"STORAGE_BACKEND"`
	DatabaseURL      string        `mapstructure:"DATABASE_URL"`
	DBMaxConns       int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns       int32         `mapstructure:"DB_MIN_CONNS"`
	RedisURL         string        `mapstructure:"REDIS_URL"`
	RedisKeyPrefix   string        `mapstructure:"REDIS_KEY_PREFIX"`
	BlobBackend      string        `mapstructure:"BLOB_BACKEND"`
	MinIOEndpoint    string        `mapstructure:"MINIO_ENDPOINT"`
	MinIOAccessKey   string        `mapstructure:"MINIO_ACCESS_KEY"`
	MinIOSecretKey   string        `mapstructure:"MINIO_SECRET_KEY"`
	MinIOBucket      string        `mapstructure:"MINIO_BUCKET"`
	MinIOUseSSL      bool          `mapstructure:"MINIO_USE_SSL"`
	DefaultWorkspace string        `mapstructure:"DEFAULT_WORKSPACE"`
	CORSOrigins      []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS     float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst   int           `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeout   time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	BodyLimit        string        `mapstructure:"BODY_LIMIT"`
	SeedFile         string        `mapstructure:"SEED_FILE"`
}

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL",
	"STORAGE_BACKEND", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"REDIS_URL", "REDIS_KEY_PREFIX",
	"BLOB_BACKEND", "MINIO_ENDPOINT", "MINIO_ACCESS_KEY", "MINIO_SECRET_KEY", "MINIO_BUCKET", "MINIO_USE_SSL",
	"DEFAULT_WORKSPACE", "CORS_ORIGINS",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "REQUEST_TIMEOUT", "BODY_LIMIT",
	"SEED_FILE",
}

// Load reads configuration from the environment, with an optional .env file
// in the working directory. It does not validate; call Validate.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORAGE_BACKEND", BackendMemory)
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("REDIS_KEY_PREFIX", "repcompanion:")
	v.SetDefault("BLOB_BACKEND", BackendMemory)
	v.SetDefault("MINIO_BUCKET", "attachments")
	v.SetDefault("DEFAULT_WORKSPACE", "default")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("REQUEST_TIMEOUT", "15s")
	v.SetDefault("BODY_LIMIT", "10M")

	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// The .env file is optional.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) <= 1 {
		cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))
	}
	cfg.StorageBackend = strings.ToLower(strings.TrimSpace(cfg.StorageBackend))
	cfg.BlobBackend = strings.ToLower(strings.TrimSpace(cfg.BlobBackend))

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks backend-specific requirements.
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case BackendMemory:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORAGE_BACKEND is %q", BackendPostgres)
		}
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when STORAGE_BACKEND is %q", BackendRedis)
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be %q, %q or %q, got %q",
			BackendMemory, BackendPostgres, BackendRedis, c.StorageBackend)
	}

	switch c.BlobBackend {
	case BackendMemory:
	case BackendMinIO:
		if c.MinIOEndpoint == "" || c.MinIOAccessKey == "" || c.MinIOSecretKey == "" {
			return fmt.Errorf("MINIO_ENDPOINT, MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required when BLOB_BACKEND is %q", BackendMinIO)
		}
		if c.MinIOBucket == "" {
			return fmt.Errorf("MINIO_BUCKET is required when BLOB_BACKEND is %q", BackendMinIO)
		}
	default:
		return fmt.Errorf("BLOB_BACKEND must be %q or %q, got %q", BackendMemory, BackendMinIO, c.BlobBackend)
	}

	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must not be negative")
	}
	return nil
}
