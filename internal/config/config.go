package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server      ServerConfig    `yaml:"server"`
	Database    DatabaseConfig  `yaml:"database"`
	Logging     LoggingConfig   `yaml:"logging"`
	CORS        CORSConfig      `yaml:"cors"`
	RateLimit   RateLimitConfig `yaml:"rate_limit"`
	Tracing     TracingConfig   `yaml:"tracing"`
	Environment string          `yaml:"environment"`
}

type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes"`
}

// Addr is the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	MaxConnections  int           `yaml:"max_connections"`
	MinConnections  int           `yaml:"min_connections"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
	ConnectRetries  int           `yaml:"connect_retries"`
	RetryInterval   time.Duration `yaml:"retry_interval"`
	MigrationsPath  string        `yaml:"migrations_path"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type CORSConfig struct {
	AllowAllOrigins bool     `yaml:"allow_all_origins"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
}

// RateLimitConfig holds per-client request budgets. Zero disables a tier.
type RateLimitConfig struct {
	PublicPerMinute   int      `yaml:"public_per_minute"`
	WritePerMinute    int      `yaml:"write_per_minute"`
	TrustedProxyCIDRs []string `yaml:"trusted_proxy_cidrs"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	ServiceName  string  `yaml:"service_name"`
	SampleRate   float64 `yaml:"sample_rate"`
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// IsDevelopment is true for development and test, where error responses
// carry the underlying cause.
func (c Config) IsDevelopment() bool {
	env := strings.ToLower(c.Environment)
	return env == "development" || env == "test"
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           3000,
			RequestTimeout: 30 * time.Second,
			MaxBodyBytes:   1 << 20,
		},
		Database: DatabaseConfig{
			MaxConnections:  20,
			MinConnections:  2,
			MaxConnLifetime: time.Hour,
			MaxConnIdleTime: 30 * time.Second,
			ConnectRetries:  5,
			RetryInterval:   2 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		RateLimit: RateLimitConfig{
			PublicPerMinute: 300,
			WritePerMinute:  60,
		},
		Tracing: TracingConfig{
			Exporter:    "stdout",
			ServiceName: "eventreg-server",
			SampleRate:  1.0,
		},
		Environment: "development",
	}
}

// Load builds the configuration from defaults, then the optional YAML file at
// path, then environment variables. A .env file in the working directory is
// loaded first if present; it never overrides variables already set.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	var errs []error
	setString := func(dst *string, keys ...string) {
		for _, key := range keys {
			if v := strings.TrimSpace(os.Getenv(key)); v != "" {
				*dst = v
				return
			}
		}
	}
	setInt := func(dst *int, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	setDuration := func(dst *time.Duration, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	setBool := func(dst *bool, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	setString(&cfg.Environment, "ENVIRONMENT", "NODE_ENV")

	setString(&cfg.Server.Host, "SERVER_HOST")
	setInt(&cfg.Server.Port, "PORT")
	setInt(&cfg.Server.Port, "SERVER_PORT")
	setDuration(&cfg.Server.RequestTimeout, "REQUEST_TIMEOUT")

	setString(&cfg.Database.URL, "DATABASE_URL")
	if cfg.Database.URL == "" {
		cfg.Database.URL = urlFromParts()
	}
	setInt(&cfg.Database.MaxConnections, "DATABASE_MAX_CONNECTIONS")
	setInt(&cfg.Database.MinConnections, "DATABASE_MIN_CONNECTIONS")
	setInt(&cfg.Database.ConnectRetries, "DATABASE_CONNECT_RETRIES")
	setDuration(&cfg.Database.RetryInterval, "DATABASE_RETRY_INTERVAL")
	setString(&cfg.Database.MigrationsPath, "MIGRATIONS_PATH")

	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.Logging.Format, "LOG_FORMAT")

	if origins := parseList(os.Getenv("CORS_ALLOWED_ORIGINS")); len(origins) > 0 {
		cfg.CORS.AllowedOrigins = origins
	}

	setInt(&cfg.RateLimit.PublicPerMinute, "RATE_LIMIT_PUBLIC")
	setInt(&cfg.RateLimit.WritePerMinute, "RATE_LIMIT_WRITE")
	if cidrs := parseList(os.Getenv("TRUSTED_PROXY_CIDRS")); len(cidrs) > 0 {
		cfg.RateLimit.TrustedProxyCIDRs = cidrs
	}

	setBool(&cfg.Tracing.Enabled, "TRACING_ENABLED")
	setString(&cfg.Tracing.Exporter, "TRACING_EXPORTER")
	setString(&cfg.Tracing.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setString(&cfg.Tracing.ServiceName, "OTEL_SERVICE_NAME")
	if v := strings.TrimSpace(os.Getenv("TRACING_SAMPLE_RATE")); v != "" {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("TRACING_SAMPLE_RATE: %w", err))
		} else {
			cfg.Tracing.SampleRate = rate
		}
	}

	// Development accepts any origin unless origins were listed explicitly.
	if !cfg.IsProduction() && len(cfg.CORS.AllowedOrigins) == 0 {
		cfg.CORS.AllowAllOrigins = true
	}
	if cfg.IsProduction() {
		cfg.CORS.AllowAllOrigins = false
	}

	return errors.Join(errs...)
}

// urlFromParts assembles a connection URL from DB_HOST, DB_PORT, DB_NAME,
// DB_USER and DB_PASSWORD. It returns "" unless DB_NAME is set.
func urlFromParts() string {
	name := os.Getenv("DB_NAME")
	if name == "" {
		return ""
	}
	host := os.Getenv("DB_HOST")
	if host == "" {
		host = "localhost"
	}
	port := os.Getenv("DB_PORT")
	if port == "" {
		port = "5432"
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(host, port),
		Path:   "/" + name,
	}
	if user := os.Getenv("DB_USER"); user != "" {
		if password := os.Getenv("DB_PASSWORD"); password != "" {
			u.User = url.UserPassword(user, password)
		} else {
			u.User = url.User(user)
		}
	}
	return u.String()
}

func (c Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Database.MaxConnections < 1 {
		return fmt.Errorf("DATABASE_MAX_CONNECTIONS must be at least 1")
	}
	if c.Database.MinConnections < 0 || c.Database.MinConnections > c.Database.MaxConnections {
		return fmt.Errorf("DATABASE_MIN_CONNECTIONS must be between 0 and DATABASE_MAX_CONNECTIONS")
	}
	if c.IsProduction() && len(c.CORS.AllowedOrigins) == 0 {
		return fmt.Errorf("CORS_ALLOWED_ORIGINS is required in production")
	}
	for _, cidr := range c.RateLimit.TrustedProxyCIDRs {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			return fmt.Errorf("TRUSTED_PROXY_CIDRS: invalid CIDR %q", cidr)
		}
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return fmt.Errorf("TRACING_SAMPLE_RATE must be between 0 and 1")
	}
	switch strings.ToLower(c.Tracing.Exporter) {
	case "stdout", "otlp", "none":
	default:
		return fmt.Errorf("unknown tracing exporter %q", c.Tracing.Exporter)
	}
	return nil
}

func parseList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
