package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StrategyRemote = "remote"
	StrategyLocal  = "local"

	EnvProduction = "production"
)

type Config struct {
	Environment             string
	ServerPort              string
	ServerReadHeaderTimeout time.Duration
	ServerWriteTimeout      time.Duration
	ServerIdleTimeout       time.Duration
	RequestTimeout          time.Duration
	DatabaseURL             string
	DBMaxConns              int32
	DBMinConns              int32
	AuthStrategy            string
	IdentityURL             string
	IdentityAPIKey          string
	IdentityTimeout         time.Duration
	IdentityMaxRetries      int
	IdentityRetryBackoff    time.Duration
	JWTSecret               string
	JWTAccessTTL            time.Duration
	JWTRefreshTTL           time.Duration
	PublicBaseURL           string
	CORSOrigins             []string
	RateLimitRPM            int
	AuthRateLimitRPM        int
	LogLevel                string
	LogFormat               string
	LogFile                 string
	TokenCleanupInterval    time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Environment:             strings.ToLower(getEnv("APP_ENV", "development")),
		ServerPort:              getEnv("SERVER_PORT", "8080"),
		ServerReadHeaderTimeout: getDuration("SERVER_READ_HEADER_TIMEOUT", 15*time.Second),
		ServerWriteTimeout:      getDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		ServerIdleTimeout:       getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		RequestTimeout:          getDuration("REQUEST_TIMEOUT", 30*time.Second),
		DatabaseURL:             strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBMaxConns:              int32(getInt("DB_MAX_CONNS", 10)),
		DBMinConns:              int32(getInt("DB_MIN_CONNS", 1)),
		AuthStrategy:            strings.ToLower(getEnv("AUTH_STRATEGY", StrategyRemote)),
		IdentityURL:             strings.TrimRight(strings.TrimSpace(os.Getenv("IDENTITY_URL")), "/"),
		IdentityAPIKey:          strings.TrimSpace(os.Getenv("IDENTITY_API_KEY")),
		IdentityTimeout:         getDuration("IDENTITY_TIMEOUT", 10*time.Second),
		IdentityMaxRetries:      getInt("IDENTITY_MAX_RETRIES", 2),
		IdentityRetryBackoff:    getDuration("IDENTITY_RETRY_BACKOFF", 200*time.Millisecond),
		JWTSecret:               strings.TrimSpace(os.Getenv("JWT_SECRET")),
		JWTAccessTTL:            getDuration("JWT_ACCESS_TTL", 24*time.Hour),
		JWTRefreshTTL:           getDuration("JWT_REFRESH_TTL", 30*24*time.Hour),
		PublicBaseURL:           getEnv("PUBLIC_BASE_URL", "http://localhost:3000"),
		CORSOrigins:             splitCSV(getEnv("CORS_ORIGINS", "*")),
		RateLimitRPM:            getInt("RATE_LIMIT_RPM", 100),
		AuthRateLimitRPM:        getInt("AUTH_RATE_LIMIT_RPM", 10),
		LogLevel:                strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:               strings.ToLower(getEnv("LOG_FORMAT", "pretty")),
		LogFile:                 strings.TrimSpace(os.Getenv("LOG_FILE")),
		TokenCleanupInterval:    getDuration("TOKEN_CLEANUP_INTERVAL", time.Hour),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

func (c *Config) Validate() error {
	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT cannot be empty")
	}

	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS/DB_MAX_CONNS are inconsistent")
	}

	switch c.AuthStrategy {
	case StrategyRemote:
		if c.IdentityURL == "" {
			return fmt.Errorf("IDENTITY_URL is required when AUTH_STRATEGY=remote")
		}
		if _, err := url.ParseRequestURI(c.IdentityURL); err != nil {
			return fmt.Errorf("IDENTITY_URL is invalid: %w", err)
		}
		if c.IdentityAPIKey == "" {
			return fmt.Errorf("IDENTITY_API_KEY is required when AUTH_STRATEGY=remote")
		}
		if c.IdentityTimeout <= 0 {
			return fmt.Errorf("IDENTITY_TIMEOUT must be positive")
		}
		if c.IdentityMaxRetries < 0 {
			return fmt.Errorf("IDENTITY_MAX_RETRIES cannot be negative")
		}
	case StrategyLocal:
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required when AUTH_STRATEGY=local")
		}
		if c.JWTAccessTTL <= 0 || c.JWTRefreshTTL <= 0 {
			return fmt.Errorf("JWT_ACCESS_TTL and JWT_REFRESH_TTL must be positive")
		}
	default:
		return fmt.Errorf("AUTH_STRATEGY must be %q or %q, got %q", StrategyRemote, StrategyLocal, c.AuthStrategy)
	}

	return nil
}

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	return v
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return v
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}

	return out
}
