package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	TwoFactor TwoFactorConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	AutoMigrate       bool
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	TrustedProxies []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
}

type AuthConfig struct {
	JWTSecret       string
	CSRFTokenTTL    time.Duration
	RBACCacheTTL    time.Duration
	RBACCacheSize   int
	// CleanupInterval paces the background sweep of in-memory stores
	CleanupInterval time.Duration
}

// RateLimitConfig configures the fixed-window limiter.
// An empty RedisURL keeps counters in process.
type RateLimitConfig struct {
	Window        time.Duration
	MaxRequests   int
	RedisURL      string
	RemoteDriver  string // "resp" or "go-redis"
	RemoteTimeout time.Duration
	KeyPrefix     string
}

type TwoFactorConfig struct {
	EncryptionKey string
	Issuer        string
}

const (
	RemoteDriverRESP    = "resp"
	RemoteDriverGoRedis = "go-redis"
)

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("API_JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("API_JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "palompy"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
			AutoMigrate:       getEnvAsBool("DB_AUTO_MIGRATE", false),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			TrustedProxies: parseList(getEnv("TRUSTED_PROXIES", "")),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret:       jwtSecret,
			CSRFTokenTTL:    getEnvAsDuration("CSRF_TOKEN_TTL", 15*time.Minute),
			RBACCacheTTL:    getEnvAsDuration("RBAC_CACHE_TTL", 60*time.Second),
			RBACCacheSize:   getEnvAsInt("RBAC_CACHE_SIZE", 10000),
			CleanupInterval: getEnvAsDuration("CLEANUP_INTERVAL", 5*time.Minute),
		},
		RateLimit: RateLimitConfig{
			Window:        getEnvAsDuration("RATE_LIMIT_WINDOW", time.Minute),
			MaxRequests:   getEnvAsInt("RATE_LIMIT_MAX_REQUESTS", 60),
			RedisURL:      getEnv("REDIS_URL", ""),
			RemoteDriver:  strings.ToLower(getEnv("RATE_LIMIT_REMOTE_DRIVER", RemoteDriverRESP)),
			RemoteTimeout: getEnvAsDuration("RATE_LIMIT_REMOTE_TIMEOUT", 500*time.Millisecond),
			KeyPrefix:     getEnv("RATE_LIMIT_KEY_PREFIX", "ratelimit:"),
		},
		TwoFactor: TwoFactorConfig{
			EncryptionKey: getEnv("TWO_FACTOR_ENCRYPTION_KEY", ""),
			Issuer:        getEnv("TWO_FACTOR_ISSUER", "palompy"),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if cfg.TwoFactor.EncryptionKey == "" {
		return nil, fmt.Errorf("TWO_FACTOR_ENCRYPTION_KEY is required")
	}

	// Validate JWT secret strength
	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	if cfg.Auth.CleanupInterval <= 0 {
		return nil, fmt.Errorf("CLEANUP_INTERVAL must be positive")
	}

	if err := cfg.RateLimit.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *RateLimitConfig) validate() error {
	if c.Window <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
	}
	if c.MaxRequests <= 0 {
		return fmt.Errorf("RATE_LIMIT_MAX_REQUESTS must be positive")
	}
	switch c.RemoteDriver {
	case RemoteDriverRESP, RemoteDriverGoRedis:
	default:
		return fmt.Errorf("RATE_LIMIT_REMOTE_DRIVER must be %q or %q (got %q)",
			RemoteDriverRESP, RemoteDriverGoRedis, c.RemoteDriver)
	}
	return nil
}

// validateJWTSecret enforces minimum security standards for the token secret
func validateJWTSecret(secret, env string) error {
	minLength := 16 // Development minimum
	if env == "production" {
		minLength = 32 // 256 bits
	}

	if len(secret) < minLength {
		return fmt.Errorf("API_JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("API_JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func parseList(raw string) []string {
	if raw == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
