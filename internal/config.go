package internal

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Security      SecurityConfig      `mapstructure:"security" validate:"required"`
	RateLimit     RateLimitConfig     `mapstructure:"rate_limit"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port" validate:"required,min=1,max=65535"`
	BaseURL           string        `mapstructure:"base_url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	OpenAPIPath       string        `mapstructure:"openapi_path"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"required,min=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"required,min=1"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Source          string        `mapstructure:"source" validate:"required"`
}

type SecurityConfig struct {
	SessionSecret  string        `mapstructure:"session_secret" validate:"required,min=32"`
	SessionTTL     time.Duration `mapstructure:"session_ttl" validate:"required"`
	SnapshotMaxAge time.Duration `mapstructure:"snapshot_max_age" validate:"required"`
	SecureCookie   bool          `mapstructure:"secure_cookie"`
	BCryptCost     int           `mapstructure:"bcrypt_cost" validate:"required,min=10,max=15"`
}

// RateLimitConfig values use the ulule/limiter formatted rate, e.g. "5-M"
// or "30-M". Login uses an explicit window because the formatted syntax has
// no 15 minute period.
type RateLimitConfig struct {
	LoginAttempts int           `mapstructure:"login_attempts" validate:"min=0"`
	LoginWindow   time.Duration `mapstructure:"login_window"`
	Action        string        `mapstructure:"action"`
	Read          string        `mapstructure:"read"`
}

type StorageConfig struct {
	UploadDir      string `mapstructure:"upload_dir" validate:"required"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes" validate:"min=0"`
}

type ObservabilityConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path" validate:"required_if=Enabled true"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=json text"`
}

// ----------------- DEFAULTS -----------------

const (
	DefaultSessionTTL     = 24 * time.Hour
	DefaultSnapshotMaxAge = 5 * time.Minute
	DefaultBCryptCost     = 10
	DefaultLoginAttempts  = 5
	DefaultLoginWindow    = 15 * time.Minute
	DefaultActionRate     = "30-M"
	DefaultReadRate       = "60-M"
	DefaultMaxUploadBytes = 2 << 20
)

// ApplyDefaults fills zero values so a minimal config.yml still boots.
func (c *Config) ApplyDefaults() {
	if c.Security.SessionTTL == 0 {
		c.Security.SessionTTL = DefaultSessionTTL
	}
	if c.Security.SnapshotMaxAge == 0 {
		c.Security.SnapshotMaxAge = DefaultSnapshotMaxAge
	}
	if c.Security.BCryptCost == 0 {
		c.Security.BCryptCost = DefaultBCryptCost
	}
	if c.RateLimit.LoginAttempts == 0 {
		c.RateLimit.LoginAttempts = DefaultLoginAttempts
	}
	if c.RateLimit.LoginWindow == 0 {
		c.RateLimit.LoginWindow = DefaultLoginWindow
	}
	if c.RateLimit.Action == "" {
		c.RateLimit.Action = DefaultActionRate
	}
	if c.RateLimit.Read == "" {
		c.RateLimit.Read = DefaultReadRate
	}
	if c.Storage.UploadDir == "" {
		c.Storage.UploadDir = "./uploads"
	}
	if c.Storage.MaxUploadBytes == 0 {
		c.Storage.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if c.Server.OpenAPIPath == "" {
		c.Server.OpenAPIPath = "./api/openapi.yml"
	}
	if c.Observability.Metrics.Path == "" {
		c.Observability.Metrics.Path = "/metrics"
	}
}

// ----------------- ENV -----------------

// LoadConfigFromEnv builds the config for container deployments where no
// config.yml is mounted.
func LoadConfigFromEnv() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:              getEnvAsInt("HTTP_PORT", 8080),
			BaseURL:           getEnv("BASE_URL", ""),
			AllowedOrigins:    getEnv("ALLOWED_ORIGINS", ""),
			OpenAPIPath:       getEnv("OPENAPI_PATH", "./api/openapi.yml"),
			ReadHeaderTimeout: getEnvAsDuration("HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
			ReadTimeout:       getEnvAsDuration("HTTP_READ_TIMEOUT", 15*time.Second),
			IdleTimeout:       getEnvAsDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
			WriteTimeout:      getEnvAsDuration("HTTP_WRITE_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
			Source:          getEnv("DATABASE_URL", ""),
		},
		Security: SecurityConfig{
			SessionSecret:  getEnv("SESSION_SECRET", ""),
			SessionTTL:     getEnvAsDuration("SESSION_TTL", DefaultSessionTTL),
			SnapshotMaxAge: getEnvAsDuration("SESSION_SNAPSHOT_MAX_AGE", DefaultSnapshotMaxAge),
			SecureCookie:   getEnv("SESSION_SECURE_COOKIE", "true") == "true",
			BCryptCost:     getEnvAsInt("BCRYPT_COST", DefaultBCryptCost),
		},
		RateLimit: RateLimitConfig{
			LoginAttempts: getEnvAsInt("RATE_LIMIT_LOGIN_ATTEMPTS", DefaultLoginAttempts),
			LoginWindow:   getEnvAsDuration("RATE_LIMIT_LOGIN_WINDOW", DefaultLoginWindow),
			Action:        getEnv("RATE_LIMIT_ACTION", DefaultActionRate),
			Read:          getEnv("RATE_LIMIT_READ", DefaultReadRate),
		},
		Storage: StorageConfig{
			UploadDir:      getEnv("UPLOAD_DIR", "./uploads"),
			MaxUploadBytes: int64(getEnvAsInt("MAX_UPLOAD_BYTES", DefaultMaxUploadBytes)),
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: getEnv("METRICS_ENABLED", "true") == "true",
				Path:    getEnv("METRICS_PATH", "/metrics"),
			},
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "json"),
			},
		},
	}
	cfg.ApplyDefaults()
	return cfg
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

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

// ----------------- VALIDATION -----------------

var configValidator = validator.New(validator.WithRequiredStructEnabled())

func (c *Config) Validate() error {
	var errs []string

	if err := configValidator.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs = append(errs, fmt.Sprintf("%s failed on %s", fe.Namespace(), fe.Tag()))
			}
		} else {
			errs = append(errs, err.Error())
		}
	}

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}
