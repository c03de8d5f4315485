package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/spec-kit/workflow-service/internal/domain"
)

// Store drivers.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App       AppConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Logger    LoggerConfig
	Auth      AuthConfig
	Upstream  UpstreamConfig
	Workflow  WorkflowConfig
	Authority AuthorityConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	StoreDriver           string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
	// ApplicationName is reported to Postgres for every pooled connection.
	ApplicationName string
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr          string
	Password      string
	DB            int
	PoolSize      int
	DialTimeoutMS int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
	// Format is json or console.
	Format string
}

// AuthConfig defines bearer token parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// UpstreamConfig points at the ticket content and identity services.
type UpstreamConfig struct {
	TicketServiceURL string
	AuthServiceURL   string
	TimeoutMillis    int
	RetryCount       int
}

// WorkflowConfig holds outbox and event stream settings.
type WorkflowConfig struct {
	OutboxKey          string
	EventStream        string
	ReconcileBatchSize int
	MaxNotifyAttempts  int
}

// AuthorityConfig overrides the default authority table.
type AuthorityConfig struct {
	SeniorScope string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "workflow-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "3003"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			StoreDriver:           getEnv("STORE_DRIVER", StoreDriverPostgres),
		},
		Postgres: PostgresConfig{
			DSN:             os.Getenv("POSTGRES_DSN"),
			MaxConns:        int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:        int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:   getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:   getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec:  int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec:  int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
			ApplicationName: getEnv("APP_NAME", "workflow-service"),
		},
		Redis: RedisConfig{
			Addr:          getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:      os.Getenv("REDIS_PASSWORD"),
			DB:            redisDB,
			PoolSize:      getEnvAsInt("REDIS_POOL_SIZE", 10),
			DialTimeoutMS: getEnvAsInt("REDIS_DIAL_TIMEOUT_MS", 2000),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		Upstream: UpstreamConfig{
			TicketServiceURL: getEnv("TICKET_SERVICE_URL", "http://opsmind-ticket-service:3000"),
			AuthServiceURL:   getEnv("AUTH_SERVICE_URL", "http://opsmind-auth-service:3002"),
			TimeoutMillis:    getEnvAsInt("UPSTREAM_TIMEOUT_MS", 5000),
			RetryCount:       getEnvAsInt("UPSTREAM_RETRY_COUNT", 0),
		},
		Workflow: WorkflowConfig{
			OutboxKey:          getEnv("OUTBOX_KEY", "workflow:outbox"),
			EventStream:        getEnv("EVENT_STREAM", "workflow:events"),
			ReconcileBatchSize: getEnvAsInt("RECONCILE_BATCH_SIZE", 100),
			MaxNotifyAttempts:  getEnvAsInt("MAX_NOTIFY_ATTEMPTS", 5),
		},
		Authority: AuthorityConfig{
			SeniorScope: getEnv("AUTHORITY_SENIOR_SCOPE", string(domain.ScopeSameBuilding)),
		},
	}

	if cfg.App.StoreDriver != StoreDriverPostgres && cfg.App.StoreDriver != StoreDriverMemory {
		return nil, fmt.Errorf("invalid STORE_DRIVER %q", cfg.App.StoreDriver)
	}
	if _, err := domain.ParseReassignScope(cfg.Authority.SeniorScope); err != nil {
		return nil, fmt.Errorf("invalid AUTHORITY_SENIOR_SCOPE: %w", err)
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// DialTimeout returns the Redis connect timeout.
func (r RedisConfig) DialTimeout() time.Duration {
	if r.DialTimeoutMS <= 0 {
		return 2 * time.Second
	}
	return time.Duration(r.DialTimeoutMS) * time.Millisecond
}

// Timeout returns the per-call upstream timeout.
func (u UpstreamConfig) Timeout() time.Duration {
	if u.TimeoutMillis <= 0 {
		return 5 * time.Second
	}
	return time.Duration(u.TimeoutMillis) * time.Millisecond
}

// Policy builds the authority table with configured overrides applied.
func (a AuthorityConfig) Policy() domain.AuthorityPolicy {
	policy := domain.DefaultAuthorityPolicy()
	if scope, err := domain.ParseReassignScope(a.SeniorScope); err == nil {
		policy.Reassign[domain.RoleSenior] = scope
	}
	return policy
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
