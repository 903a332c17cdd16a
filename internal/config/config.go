package config

import (
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/usman-khan12/one-shot/internal/events"
	"github.com/usman-khan12/one-shot/internal/storage"
	"github.com/usman-khan12/one-shot/internal/tracing"
)

// Prefix of all the environment variables.
const Prefix = "ONESHOT_"

// Storage backends.
const (
	BackendFileSystem = "file_system"
	BackendMemory     = "memory"
	BackendS3         = "s3"
	BackendSwift      = "swift"
)

// Database kinds.
const (
	DatabaseStorm  = "storm"
	DatabaseMemory = "memory"
)

// Config captures the full runtime configuration.
type Config struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	HTTP      HTTPConfig
	Database  DatabaseConfig
	Storage   StorageConfig
	Lifecycle LifecycleConfig
	RateLimit RateLimitConfig
	Scheduler SchedulerConfig
	Kafka     KafkaConfig
	Tracing   TracingConfig
	Metrics   MetricsConfig

	// MaxSizeBytes is the parsed Lifecycle.MaxSize.
	MaxSizeBytes int64
}

// HTTPConfig configures the listener.
type HTTPConfig struct {
	Binding         string        `env:"BINDING" envDefault:"0.0.0.0"`
	Port            string        `env:"PORT" envDefault:"5000"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"60s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// DatabaseConfig selects the registry.
type DatabaseConfig struct {
	Kind string `env:"DATABASE" envDefault:"storm"`
	Path string `env:"DATABASE_PATH" envDefault:"oneshot.db"`
}

// StorageConfig selects and configures the blob backend.
type StorageConfig struct {
	Backend string `env:"STORAGE_BACKEND" envDefault:"file_system"`
	Path    string `env:"STORAGE_PATH" envDefault:"storage"`

	S3Endpoint  string `env:"S3_ENDPOINT" envDefault:"localhost:9000"`
	S3Region    string `env:"S3_REGION" envDefault:"us-east-1"`
	S3Bucket    string `env:"S3_BUCKET" envDefault:"oneshot"`
	S3AccessKey string `env:"S3_ACCESS_KEY"`
	S3SecretKey string `env:"S3_SECRET_KEY"`
	S3UseSSL    bool   `env:"S3_USE_SSL" envDefault:"false"`

	SwiftAuthURL   string `env:"SWIFT_AUTH_URL"`
	SwiftUsername  string `env:"SWIFT_USERNAME"`
	SwiftAPIKey    string `env:"SWIFT_API_KEY"`
	SwiftTenant    string `env:"SWIFT_TENANT"`
	SwiftDomain    string `env:"SWIFT_DOMAIN" envDefault:"Default"`
	SwiftRegion    string `env:"SWIFT_REGION"`
	SwiftContainer string `env:"SWIFT_CONTAINER" envDefault:"oneshot"`
}

// LifecycleConfig holds the object policy.
type LifecycleConfig struct {
	MaxSize            string        `env:"MAX_SIZE" envDefault:"50MiB"`
	TTL                time.Duration `env:"TTL" envDefault:"5m"`
	AllowedTypes       []string      `env:"ALLOWED_TYPES" envSeparator:","`
	BackendTimeout     time.Duration `env:"BACKEND_TIMEOUT" envDefault:"30s"`
	PublishTimeout     time.Duration `env:"PUBLISH_TIMEOUT" envDefault:"5s"`
	TombstoneRetention time.Duration `env:"TOMBSTONE_RETENTION" envDefault:"24h"`
}

// RateLimitConfig holds the upload admission window.
type RateLimitConfig struct {
	Window time.Duration `env:"RATE_WINDOW" envDefault:"15m"`
	Max    int           `env:"RATE_MAX" envDefault:"10"`
}

// SchedulerConfig configures the periodic sweep.
type SchedulerConfig struct {
	Specification string        `env:"SWEEP_SCHEDULE" envDefault:"@every 30s"`
	Timeout       time.Duration `env:"SWEEP_TIMEOUT" envDefault:"5m"`
}

// KafkaConfig configures the event publisher.
type KafkaConfig struct {
	Enabled      bool          `env:"KAFKA_ENABLED" envDefault:"false"`
	Brokers      []string      `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	Topic        string        `env:"KAFKA_TOPIC" envDefault:"oneshot.objects"`
	BatchSize    int           `env:"KAFKA_BATCH_SIZE" envDefault:"1"`
	BatchTimeout time.Duration `env:"KAFKA_BATCH_TIMEOUT" envDefault:"10ms"`
	Compression  string        `env:"KAFKA_COMPRESSION_CODEC" envDefault:"snappy"`
	MaxAttempts  int           `env:"KAFKA_RETRIES" envDefault:"3"`
}

// TracingConfig configures the OTLP exporter.
type TracingConfig struct {
	Endpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Insecure    bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
	SampleRatio float64 `env:"OTEL_TRACES_SAMPLER_RATIO" envDefault:"1.0"`
}

// MetricsConfig guards the metrics route.
type MetricsConfig struct {
	Token string `env:"METRICS_TOKEN"`
}

// Load parses environment variables into Config.
func Load() (*Config, error) {
	return parse(env.Options{Prefix: Prefix})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, errors.Wrap(err, "could not parse environment")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	size, err := humanize.ParseBytes(c.Lifecycle.MaxSize)
	if err != nil {
		return errors.Wrapf(err, "invalid max size %q", c.Lifecycle.MaxSize)
	}
	if size == 0 {
		return errors.New("max size must be positive")
	}
	c.MaxSizeBytes = int64(size)

	if c.Lifecycle.TTL <= 0 {
		return errors.New("ttl must be positive")
	}
	if c.RateLimit.Window <= 0 || c.RateLimit.Max <= 0 {
		return errors.New("rate limit window and max must be positive")
	}

	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "invalid log level")
	}

	switch c.Storage.Backend {
	case BackendFileSystem, BackendMemory, BackendS3, BackendSwift:
	default:
		return errors.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	switch c.Database.Kind {
	case DatabaseStorm, DatabaseMemory:
	default:
		return errors.Errorf("unknown database %q", c.Database.Kind)
	}

	for i, t := range c.Lifecycle.AllowedTypes {
		c.Lifecycle.AllowedTypes[i] = strings.TrimSpace(t)
	}
	return nil
}

// Level returns the parsed log level.
func (c *Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// S3 returns the S3 backend configuration.
func (c StorageConfig) S3() storage.S3Config {
	return storage.S3Config{
		Endpoint:  c.S3Endpoint,
		Region:    c.S3Region,
		Bucket:    c.S3Bucket,
		AccessKey: c.S3AccessKey,
		SecretKey: c.S3SecretKey,
		UseSSL:    c.S3UseSSL,
	}
}

// Swift returns the Swift backend configuration.
func (c StorageConfig) Swift() storage.SwiftConfig {
	return storage.SwiftConfig{
		AuthURL:   c.SwiftAuthURL,
		Username:  c.SwiftUsername,
		APIKey:    c.SwiftAPIKey,
		Tenant:    c.SwiftTenant,
		Domain:    c.SwiftDomain,
		Region:    c.SwiftRegion,
		Container: c.SwiftContainer,
	}
}

// Publisher returns the Kafka publisher configuration.
func (c KafkaConfig) Publisher() events.KafkaConfig {
	return events.KafkaConfig{
		Brokers:      c.Brokers,
		Topic:        c.Topic,
		BatchSize:    c.BatchSize,
		BatchTimeout: c.BatchTimeout,
		Compression:  c.Compression,
		MaxAttempts:  c.MaxAttempts,
	}
}

// Tracer returns the tracing configuration of the given service.
func (c TracingConfig) Tracer(service, version string) tracing.Config {
	return tracing.Config{
		Endpoint:    c.Endpoint,
		Insecure:    c.Insecure,
		SampleRatio: c.SampleRatio,
		ServiceName: service,
		Version:     version,
	}
}
