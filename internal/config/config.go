// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Loading functions accept context.Context as the first parameter.
// - Errors are wrapped with this package's sentinel kinds.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Supported storage drivers.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Supported queue backends. QueueNone disables the queue tier.
const (
	QueueKafka  = "kafka"
	QueueNATS   = "nats"
	QueueMemory = "memory"
	QueueNone   = "none"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8000".
	Addr string `koanf:"addr"`
	// CORSAllowedOrigins lists origins allowed by the CORS middleware. Empty allows all.
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`

	// Relational store holding ads and events.
	DBDriver      string `koanf:"db_driver"`
	DBHost        string `koanf:"db_host"`
	DBPort        int    `koanf:"db_port"`
	DBDatabase    string `koanf:"db_database"`
	DBUsername    string `koanf:"db_username"`
	DBPassword    string `koanf:"db_password"`
	DBPath        string `koanf:"db_path"` // sqlite only
	DBAutoMigrate bool   `koanf:"db_auto_migrate"`

	// QueueBackend selects the primary delivery tier: kafka, nats, memory or none.
	QueueBackend string `koanf:"queue_backend"`
	// KafkaBroker is a comma-separated list of host:port pairs.
	KafkaBroker string `koanf:"kafka_broker"`
	KafkaTopic  string `koanf:"kafka_topic"`
	NATSURL     string `koanf:"nats_url"`
	NATSSubject string `koanf:"nats_subject"`
	// PublishTimeoutMS bounds the wait for a queue acknowledgement.
	PublishTimeoutMS int `koanf:"publish_timeout_ms"`

	// Buffer store. An empty RedisHost disables the buffer tier.
	RedisHost     string `koanf:"redis_host"`
	RedisPort     int    `koanf:"redis_port"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`
	RedisList     string `koanf:"redis_list"`

	// FallbackFile is the local JSON-lines file used when queue and buffer fail.
	FallbackFile string `koanf:"fallback_file"`
	// StrictDelivery reports a file-only write as unavailable (HTTP 503).
	StrictDelivery bool `koanf:"strict_delivery"`

	// DefaultRecommendations is used when a request omits limit.
	DefaultRecommendations int `koanf:"default_recommendations"`
	// MaxRecommendations caps GET /recommend?limit.
	MaxRecommendations int `koanf:"max_recommendations"`
	// CTRWeight multiplies an ad's CTR in personalized scores.
	CTRWeight float64 `koanf:"ctr_weight"`

	// EventQueueSize bounds the in-memory queue backend.
	EventQueueSize int `koanf:"queue_size"`
	// WorkerCount sets the number of workers draining the in-memory queue.
	WorkerCount int `koanf:"worker_count"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:               "info",
		LogFormat:              "text",
		Addr:                   ":8000",
		CORSAllowedOrigins:     []string{},
		DBDriver:               DriverMySQL,
		DBHost:                 "db",
		DBPort:                 3306,
		DBDatabase:             "ad_platform_db",
		DBUsername:             "user",
		DBPassword:             "password",
		DBPath:                 "adrec.db",
		QueueBackend:           QueueKafka,
		KafkaBroker:            "kafka:9092",
		KafkaTopic:             "ad_events",
		NATSURL:                "nats://nats:4222",
		NATSSubject:            "ad_events",
		PublishTimeoutMS:       5000,
		RedisHost:              "redis",
		RedisPort:              6379,
		RedisList:              "event_queue",
		FallbackFile:           "event_log_fallback.txt",
		StrictDelivery:         true,
		DefaultRecommendations: 5,
		MaxRecommendations:     50,
		CTRWeight:              0.5,
		EventQueueSize:         10_000,
		WorkerCount:            runtime.NumCPU(),
	}
}

// PublishTimeout returns PublishTimeoutMS as a duration.
func (c *Config) PublishTimeout() time.Duration {
	return time.Duration(c.PublishTimeoutMS) * time.Millisecond
}

// KafkaBrokers splits KafkaBroker into trimmed, non-empty addresses.
func (c *Config) KafkaBrokers() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBroker, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// RedisAddr returns host:port of the buffer store, or "" when disabled.
func (c *Config) RedisAddr() string {
	if strings.TrimSpace(c.RedisHost) == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.PublishTimeoutMS <= 0:
		return fmt.Errorf("%w: publish_timeout_ms must be positive", ErrInvalidConfig)
	case c.DefaultRecommendations <= 0:
		return fmt.Errorf("%w: default_recommendations must be positive", ErrInvalidConfig)
	case c.MaxRecommendations < c.DefaultRecommendations:
		return fmt.Errorf("%w: max_recommendations must be >= default_recommendations", ErrInvalidConfig)
	case c.CTRWeight < 0:
		return fmt.Errorf("%w: ctr_weight must not be negative", ErrInvalidConfig)
	case strings.TrimSpace(c.FallbackFile) == "":
		return fmt.Errorf("%w: fallback_file must not be empty", ErrInvalidConfig)
	}

	switch c.DBDriver {
	case DriverMySQL, DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("%w: unknown db_driver %q", ErrInvalidConfig, c.DBDriver)
	}

	switch c.QueueBackend {
	case QueueKafka:
		if len(c.KafkaBrokers()) == 0 {
			return fmt.Errorf("%w: kafka_broker must not be empty", ErrInvalidConfig)
		}
	case QueueNATS:
		if strings.TrimSpace(c.NATSURL) == "" {
			return fmt.Errorf("%w: nats_url must not be empty", ErrInvalidConfig)
		}
	case QueueMemory, QueueNone:
	default:
		return fmt.Errorf("%w: unknown queue_backend %q", ErrInvalidConfig, c.QueueBackend)
	}
	return nil
}
