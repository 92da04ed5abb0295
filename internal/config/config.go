package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// used only when APP_ENV is dev or test and JWT_SECRET is unset.
const devJWTSecret = "taskhub-dev-secret-do-not-use-in-prod"

type Config struct {
	Env         string `env:"APP_ENV" envDefault:"dev"`
	Port        int    `env:"PORT" envDefault:"8080"`
	DBURL       string `env:"DATABASE_URL"`
	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres"`

	DBHost     string `env:"DB_HOST" envDefault:"127.0.0.1"`
	DBPort     string `env:"DB_PORT" envDefault:"5432"`
	DBUser     string `env:"DB_USER" envDefault:"taskhub"`
	DBPassword string `env:"DB_PASSWORD" envDefault:"taskhub"`
	DBName     string `env:"DB_NAME" envDefault:"taskhub"`
	DBSSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
	DBMaxConns int32  `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns int32  `env:"DB_MIN_CONNS" envDefault:"0"`

	SchemaBootstrapMaxElapsedSeconds int `env:"SCHEMA_BOOTSTRAP_MAX_ELAPSED_SECONDS" envDefault:"30"`

	JWTSecret           string `env:"JWT_SECRET"`
	JWTAccessTTLMinutes int    `env:"JWT_ACCESS_TTL_MINUTES" envDefault:"1440"`

	Argon2MemoryKiB uint32 `env:"ARGON2_MEMORY_KIB" envDefault:"65536"`
	Argon2Time      uint32 `env:"ARGON2_TIME" envDefault:"3"`
	Argon2Threads   uint8  `env:"ARGON2_THREADS" envDefault:"2"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	MaxBodyBytes       int64    `env:"MAX_BODY_BYTES" envDefault:"1048576"`

	RedisAddr               string `env:"REDIS_ADDR"`
	RedisPassword           string `env:"REDIS_PASSWORD"`
	RedisDB                 int    `env:"REDIS_DB" envDefault:"0"`
	TaskListCacheTTLSeconds int    `env:"TASK_LIST_CACHE_TTL_SECONDS" envDefault:"30"`
	OTELEndpoint            string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName             string `env:"OTEL_SERVICE_NAME" envDefault:"taskhub-api"`

	SeedEmail    string `env:"SEED_EMAIL"`
	SeedPassword string `env:"SEED_PASSWORD"`
}

// Load reads the environment into a Config. The caller is expected to have
// loaded any .env file beforehand.
func Load() (Config, error) {
	var cfg Config

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if cfg.DBURL == "" {
		cfg.DBURL = buildDBURL(cfg)
	}

	if cfg.JWTSecret == "" && cfg.IsDevLike() {
		cfg.JWTSecret = devJWTSecret
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error

	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required outside dev/test"))
	}

	if c.JWTAccessTTLMinutes <= 0 {
		errs = append(errs, errors.New("JWT_ACCESS_TTL_MINUTES must be positive"))
	}

	switch c.StoreDriver {
	case "postgres", "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}

	if c.Argon2MemoryKiB == 0 || c.Argon2Time == 0 || c.Argon2Threads == 0 {
		errs = append(errs, errors.New("argon2 cost parameters must be positive"))
	}

	if c.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("MAX_BODY_BYTES must be positive"))
	}

	return errors.Join(errs...)
}

func (c Config) IsDevLike() bool {
	return c.Env == "dev" || c.Env == "test"
}

// UsesDevSecret reports whether the signing secret is the built-in dev value.
func (c Config) UsesDevSecret() bool {
	return c.JWTSecret == devJWTSecret
}

func (c Config) AccessTTL() time.Duration {
	return time.Duration(c.JWTAccessTTLMinutes) * time.Minute
}

func (c Config) TaskListCacheTTL() time.Duration {
	return time.Duration(c.TaskListCacheTTLSeconds) * time.Second
}

func (c Config) SchemaBootstrapMaxElapsed() time.Duration {
	return time.Duration(c.SchemaBootstrapMaxElapsedSeconds) * time.Second
}

func buildDBURL(c Config) string {
	return "postgres://" + c.DBUser + ":" + c.DBPassword + "@" + c.DBHost + ":" + c.DBPort + "/" + c.DBName + "?sslmode=" + c.DBSSLMode
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}
