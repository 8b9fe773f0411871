package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "GODRIVE"

// StorageKind selects the deployment-wide drive backend.
type StorageKind string

const (
	StorageLocal  StorageKind = "local"
	StorageObject StorageKind = "object"
)

// Config aggregates runtime configuration for the drive engine.
type Config struct {
	Server        ServerConfig        `envconfig:"SERVER"`
	Postgres      PostgresConfig      `envconfig:"POSTGRES"`
	Drive         DriveConfig         `envconfig:"DRIVE"`
	ObjectStorage ObjectStorageConfig `envconfig:"OBJECT_STORAGE"`
	Redis         RedisConfig         `envconfig:"REDIS"`
	Auth          AuthConfig          `envconfig:"AUTH"`
	Metrics       MetricsConfig       `envconfig:"METRICS"`
	Queue         QueueConfig         `envconfig:"QUEUE"`
}

// ServerConfig parameterizes the HTTP server.
type ServerConfig struct {
	Host         string        `envconfig:"BIND_HOST" default:"0.0.0.0"`
	Port         int           `envconfig:"BIND_PORT" default:"8080"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"60s"`
	IdleTimeout  time.Duration `envconfig:"IDLE_TIMEOUT" default:"60s"`
	MaxUpload    int64         `envconfig:"MAX_UPLOAD_BYTES" default:"268435456"`
}

// Address returns the listen address in host:port form.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// PostgresConfig contains PostgreSQL connection details.
type PostgresConfig struct {
	Host     string `envconfig:"SERVER_HOST" default:"localhost"`
	Port     int    `envconfig:"SERVER_PORT" default:"5432"`
	User     string `envconfig:"ROLE" default:"godrive_app"`
	Password string `envconfig:"PASSWORD" default:"change-me"`
	Database string `envconfig:"DATABASE" default:"godrive"`
	SSLMode  string `envconfig:"SSL_MODE" default:"disable"`
}

// DSN returns the PostgreSQL DSN string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, strings.ToLower(p.SSLMode))
}

// DriveConfig selects the storage backend and quota fallbacks.
type DriveConfig struct {
	Storage StorageKind `envconfig:"STORAGE" default:"local"`
	// LocalDir is the managed root for the local backend.
	LocalDir string `envconfig:"LOCAL_DIR" default:"./files"`
	// URL is the public base the local backend builds file URLs from.
	URL string `envconfig:"URL" default:"http://localhost:8080"`
	// Capacities used until an instance settings row exists.
	LocalCapacityMB  int64         `envconfig:"LOCAL_CAPACITY_MB" default:"1024"`
	RemoteCapacityMB int64         `envconfig:"REMOTE_CAPACITY_MB" default:"32"`
	SettingsTTL      time.Duration `envconfig:"SETTINGS_TTL" default:"10s"`
	FFmpegPath       string        `envconfig:"FFMPEG_PATH" default:"ffmpeg"`
}

// ObjectStorageConfig carries S3-compatible connection and bucket information.
type ObjectStorageConfig struct {
	Endpoint        string `envconfig:"ENDPOINT" default:"localhost"`
	Port            int    `envconfig:"ENDPOINT_PORT" default:"9000"`
	Bucket          string `envconfig:"BUCKET" default:"godrive"`
	Prefix          string `envconfig:"KEY_PREFIX" default:"drive"`
	BaseURL         string `envconfig:"BASE_URL"`
	AccessKeyID     string `envconfig:"ACCESS_KEY"`
	SecretAccessKey string `envconfig:"SECRET_KEY"`
	Region          string `envconfig:"REGION"`
	UseSSL          bool   `envconfig:"USE_SSL" default:"false"`
}

// HostPort returns the endpoint with the port appended when one is set.
func (o ObjectStorageConfig) HostPort() string {
	if o.Port == 0 || strings.Contains(o.Endpoint, ":") {
		return o.Endpoint
	}
	return fmt.Sprintf("%s:%d", o.Endpoint, o.Port)
}

// PublicBaseURL returns the explicit base URL or the scheme+endpoint+bucket composition.
func (o ObjectStorageConfig) PublicBaseURL() string {
	if o.BaseURL != "" {
		return strings.TrimSuffix(o.BaseURL, "/")
	}
	scheme := "http"
	if o.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s", scheme, o.HostPort(), o.Bucket)
}

// RedisConfig locates the pub/sub broker for stream events.
type RedisConfig struct {
	Addr     string `envconfig:"ADDR" default:"localhost:6379"`
	Password string `envconfig:"PASSWORD"`
	DB       int    `envconfig:"DATABASE" default:"0"`
	Prefix   string `envconfig:"CHANNEL_PREFIX" default:"godrive"`
}

// AuthConfig groups authentication-related settings.
type AuthConfig struct {
	AccessTokenSecret string `envconfig:"JWT_SECRET" default:"change-me-to-a-32-byte-secret"`
	Issuer            string `envconfig:"JWT_ISSUER" default:"godrive"`
}

// MetricsConfig groups observability settings.
type MetricsConfig struct {
	PrometheusPath string `envconfig:"PROMETHEUS_PATH" default:"/metrics"`
}

// QueueConfig sizes the background side-effect queue.
type QueueConfig struct {
	Workers  int `envconfig:"WORKERS" default:"4"`
	Capacity int `envconfig:"CAPACITY" default:"256"`
}

// Load reads configuration values from environment variables, applying defaults.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("process env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express.
func (c Config) Validate() error {
	switch c.Drive.Storage {
	case StorageLocal:
		if strings.TrimSpace(c.Drive.LocalDir) == "" {
			return fmt.Errorf("drive local dir required for local storage")
		}
	case StorageObject:
		if c.ObjectStorage.Endpoint == "" || c.ObjectStorage.Bucket == "" {
			return fmt.Errorf("object storage endpoint and bucket required")
		}
	default:
		return fmt.Errorf("unknown drive storage %q", c.Drive.Storage)
	}
	if c.Queue.Workers < 1 || c.Queue.Capacity < 1 {
		return fmt.Errorf("queue workers and capacity must be positive")
	}
	return nil
}
