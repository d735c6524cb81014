package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

// Backend drivers accepted by BACKEND_DRIVER.
const (
	DriverREST     = "rest"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverNeo4j    = "neo4j"
	DriverMemory   = "memory"
)

// Config aggregates application configuration values.
type Config struct {
	HTTP     HTTPConfig     `envconfig:"SERVER"`
	Backend  BackendConfig  `envconfig:"BACKEND"`
	Graph    GraphConfig    `envconfig:"GRAPH"`
	Auth     AuthConfig     `envconfig:"AUTH"`
	Session  SessionConfig  `envconfig:"SESSION"`
	Events   EventsConfig   `envconfig:"EVENTS"`
	Payments PaymentsConfig `envconfig:"STRIPE"`
	Tracing  TracingConfig  `envconfig:"OTEL"`
	Logging  LoggingConfig  `envconfig:"LOG"`
	Sync     SyncConfig     `envconfig:"SYNC"`
}

// HTTPConfig governs HTTP server behaviour.
type HTTPConfig struct {
	Host             string        `envconfig:"HOST" default:"127.0.0.1"`
	Port             int           `envconfig:"PORT" default:"8080"`
	ReadTimeout      time.Duration `envconfig:"READ_TIMEOUT" default:"10s"`
	WriteTimeout     time.Duration `envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout      time.Duration `envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout  time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	AllowedOrigins   []string      `envconfig:"ALLOWED_ORIGINS"`
	AllowCredentials bool          `envconfig:"ALLOW_CREDENTIALS"`
}

// BackendConfig selects where wallet data lives.
type BackendConfig struct {
	Driver      string `envconfig:"DRIVER" default:"rest"`
	URL         string `envconfig:"URL"`
	APIKey      string `envconfig:"API_KEY"`
	DSN         string `envconfig:"DSN"`
	AutoMigrate bool   `envconfig:"AUTO_MIGRATE" default:"true"`
}

// GraphConfig describes connectivity to the Neo4j backend.
type GraphConfig struct {
	URI            string `envconfig:"URI"`
	Database       string `envconfig:"DATABASE"`
	Username       string `envconfig:"USERNAME"`
	Password       string `envconfig:"PASSWORD"`
	MaxConnections int    `envconfig:"MAX_CONNECTIONS" default:"10"`
}

// AuthConfig controls the OTP auth client.
type AuthConfig struct {
	JWTSecret   string        `envconfig:"JWT_SECRET"`
	RefreshSkew time.Duration `envconfig:"REFRESH_SKEW" default:"30s"`
}

// SessionConfig controls where the signed-in session is persisted.
type SessionConfig struct {
	Store         string        `envconfig:"STORE" default:"memory"`
	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB"`
	Key           string        `envconfig:"KEY" default:"walley:session"`
	Secret        string        `envconfig:"SECRET"`
	TTL           time.Duration `envconfig:"TTL"`
}

// EventsConfig enables change events on RabbitMQ when URL is set.
type EventsConfig struct {
	URL      string `envconfig:"AMQP_URL"`
	Exchange string `envconfig:"EXCHANGE" default:"wallet.events"`
}

// PaymentsConfig holds Stripe credentials and the deployed sheet function.
type PaymentsConfig struct {
	SecretKey      string `envconfig:"SECRET_KEY"`
	PublishableKey string `envconfig:"PUBLISHABLE_KEY"`
	SheetURL       string `envconfig:"SHEET_URL"`
}

// TracingConfig enables OTLP export when Endpoint is set.
type TracingConfig struct {
	Endpoint    string `envconfig:"EXPORTER_OTLP_ENDPOINT"`
	Insecure    bool   `envconfig:"EXPORTER_OTLP_INSECURE" default:"true"`
	ServiceName string `envconfig:"SERVICE_NAME" default:"walletd"`
	Environment string `envconfig:"ENVIRONMENT" default:"dev"`
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level         string `envconfig:"LEVEL" default:"info"`
	Format        string `envconfig:"FORMAT" default:"text"` // text|json
	IncludeCaller bool   `envconfig:"INCLUDE_CALLER"`
}

// SyncConfig tunes the sync store and derived views.
type SyncConfig struct {
	OpeningBalance decimal.Decimal `envconfig:"OPENING_BALANCE" default:"0"`
	TimeZone       string          `envconfig:"TIMEZONE" default:"Local"`
}

// Location resolves TimeZone.
func (c SyncConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.TimeZone)
}

// Load reads a .env file when present, then environment variables, applying
// defaults.
func Load(envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("read environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements envconfig cannot express.
func (c Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("port %d is out of range", c.HTTP.Port)
	}

	switch strings.ToLower(c.Backend.Driver) {
	case DriverREST:
		if c.Backend.URL == "" || c.Backend.APIKey == "" {
			return errors.New("BACKEND_URL and BACKEND_API_KEY are required for the rest backend")
		}
	case DriverPostgres, DriverSQLite:
		if c.Backend.DSN == "" {
			return fmt.Errorf("BACKEND_DSN is required for the %s backend", c.Backend.Driver)
		}
	case DriverNeo4j:
		if c.Graph.URI == "" {
			return errors.New("GRAPH_URI is required for the neo4j backend")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown BACKEND_DRIVER %q", c.Backend.Driver)
	}

	switch c.Session.Store {
	case "memory":
	case "redis":
		if c.Session.Secret == "" {
			return errors.New("SESSION_SECRET is required for the redis session store")
		}
	default:
		return fmt.Errorf("unknown SESSION_STORE %q", c.Session.Store)
	}

	if c.Sync.OpeningBalance.IsNegative() {
		return fmt.Errorf("SYNC_OPENING_BALANCE must not be negative, got %s", c.Sync.OpeningBalance)
	}
	if _, err := c.Sync.Location(); err != nil {
		return fmt.Errorf("invalid SYNC_TIMEZONE: %w", err)
	}
	return nil
}
