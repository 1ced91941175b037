package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Store backends.
const (
	BackendREST     = "rest"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config holds the application's configuration values.
// Tags like `envconfig:"HTTP_SERVER_PORT"` specify the environment variable name.
// `default:""` provides a default value if the env var is not set.
type Config struct {
	AppEnv    string `envconfig:"APP_ENV" default:"development"` // e.g., development, staging, production
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`     // e.g., debug, info, warn, error
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`    // json or text
	HttpServer ServerConfig
	GrpcServer GrpcServerConfig
	Store      StoreConfig
	Auth       AuthConfig
	CORS       CORSConfig
	SMTP       SMTPConfig
	Cache      CacheConfig
	Events     EventsConfig
	RateLimit  RateLimitConfig
}

// ServerConfig holds HTTP server-specific configurations.
type ServerConfig struct {
	Port           string        `envconfig:"HTTP_SERVER_PORT" default:"8080"`
	TimeoutRead    time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_READ" default:"15s"`
	TimeoutWrite   time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_WRITE" default:"15s"`
	TimeoutIdle    time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_IDLE" default:"60s"`
	RequestTimeout time.Duration `envconfig:"HTTP_REQUEST_TIMEOUT" default:"60s"`
}

// GrpcServerConfig holds gRPC server-specific configurations.
type GrpcServerConfig struct {
	Port string `envconfig:"GRPC_SERVER_PORT" default:"9090"`
}

// StoreConfig selects and configures the data store backend.
type StoreConfig struct {
	Backend     string        `envconfig:"STORE_BACKEND" default:"rest"`
	SupabaseURL string        `envconfig:"SUPABASE_URL"`
	SupabaseKey string        `envconfig:"SUPABASE_KEY"`
	Timeout     time.Duration `envconfig:"STORE_TIMEOUT" default:"10s"`
	Postgres    PostgresConfig
}

// PostgresConfig holds PostgreSQL database connection details.
type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST"`
	Port     string `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER"`
	Password string `envconfig:"POSTGRES_PASSWORD"`
	DBName   string `envconfig:"POSTGRES_DBNAME"`
	SSLMode  string `envconfig:"POSTGRES_SSLMODE" default:"disable"`

	// AutoMigrate applies the embedded schema migrations at startup.
	AutoMigrate bool `envconfig:"POSTGRES_AUTO_MIGRATE" default:"true"`
}

// DSN constructs the Data Source Name string for connecting to PostgreSQL.
func (pc *PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		pc.Host, pc.Port, pc.User, pc.Password, pc.DBName, pc.SSLMode)
}

// AuthConfig holds token signing and admin credential settings.
type AuthConfig struct {
	SecretKey         string `envconfig:"SECRET_KEY"`
	Algorithm         string `envconfig:"ALGORITHM" default:"HS256"`
	TokenTTLMinutes   int    `envconfig:"ACCESS_TOKEN_EXPIRE_MINUTES" default:"30"`
	AdminUsername     string `envconfig:"ADMIN_USERNAME" default:"admin"`
	AdminPassword     string `envconfig:"ADMIN_PASSWORD"`
	AdminPasswordHash string `envconfig:"ADMIN_PASSWORD_HASH"`
}

// TokenTTL is the access token lifetime.
func (a AuthConfig) TokenTTL() time.Duration {
	return time.Duration(a.TokenTTLMinutes) * time.Minute
}

// CORSConfig lists the browser origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins  []string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000"`
	ClientOriginURL string   `envconfig:"CLIENT_ORIGIN_URL"`
}

// Origins returns the allowed origins including the client origin.
func (c CORSConfig) Origins() []string {
	seen := make(map[string]bool)
	var out []string
	for _, o := range append(append([]string{}, c.AllowedOrigins...), c.ClientOriginURL) {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "" || seen[o] {
			continue
		}
		seen[o] = true
		out = append(out, o)
	}
	return out
}

// SMTPConfig configures delivery of contact inquiries.
type SMTPConfig struct {
	Host     string        `envconfig:"SMTP_HOST"`
	Port     int           `envconfig:"SMTP_PORT" default:"587"`
	Username string        `envconfig:"SMTP_USERNAME"`
	Password string        `envconfig:"SMTP_PASSWORD"`
	From     string        `envconfig:"INQUIRY_FROM"`
	To       string        `envconfig:"INQUIRY_TO"`
	Timeout  time.Duration `envconfig:"SMTP_TIMEOUT" default:"15s"`
}

// CacheConfig configures the Redis category cache. An empty address
// disables it.
type CacheConfig struct {
	RedisAddr     string        `envconfig:"REDIS_ADDR"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	CategoryTTL   time.Duration `envconfig:"CATEGORY_CACHE_TTL" default:"5m"`
}

// EventsConfig configures the Kafka catalog event publisher. No brokers
// disables it.
type EventsConfig struct {
	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"catalog_events"`
}

// RateLimitConfig sets per-client request budgets. Zero disables a limit.
type RateLimitConfig struct {
	LoginPerMinute   int `envconfig:"LOGIN_RATE_PER_MINUTE" default:"10"`
	InquiryPerMinute int `envconfig:"INQUIRY_RATE_PER_MINUTE" default:"5"`
}

// Load builds the configuration from environment variables and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks rules that span several variables.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Backend {
	case BackendREST:
		if c.Store.SupabaseURL == "" || c.Store.SupabaseKey == "" {
			errs = append(errs, errors.New("SUPABASE_URL and SUPABASE_KEY are required for the rest store backend"))
		}
	case BackendPostgres:
		p := c.Store.Postgres
		if p.Host == "" || p.User == "" || p.DBName == "" {
			errs = append(errs, errors.New("POSTGRES_HOST, POSTGRES_USER and POSTGRES_DBNAME are required for the postgres store backend"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.Store.Backend))
	}
	if c.Store.Timeout <= 0 {
		errs = append(errs, errors.New("STORE_TIMEOUT must be positive"))
	}

	if c.Auth.SecretKey == "" {
		errs = append(errs, errors.New("SECRET_KEY is required"))
	}
	if c.Auth.Algorithm != "HS256" {
		errs = append(errs, fmt.Errorf("ALGORITHM %q is not supported, only HS256", c.Auth.Algorithm))
	}
	if c.Auth.TokenTTLMinutes <= 0 {
		errs = append(errs, errors.New("ACCESS_TOKEN_EXPIRE_MINUTES must be positive"))
	}
	if c.Auth.AdminPassword == "" && c.Auth.AdminPasswordHash == "" {
		errs = append(errs, errors.New("ADMIN_PASSWORD or ADMIN_PASSWORD_HASH is required"))
	}

	if c.LogFormat != "json" && c.LogFormat != "text" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat))
	}
	if c.RateLimit.LoginPerMinute < 0 || c.RateLimit.InquiryPerMinute < 0 {
		errs = append(errs, errors.New("rate limits cannot be negative"))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// InquiryEnabled reports whether SMTP delivery is configured.
func (c *Config) InquiryEnabled() bool {
	return c.SMTP.Host != "" && c.SMTP.From != "" && c.SMTP.To != ""
}
