package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds all run settings, populated from environment variables.
type Config struct {
	LogLevel  string
	LogFormat string

	// MetricsTextfile, when set, receives the run's metrics in Prometheus
	// text format for a node_exporter textfile collector.
	MetricsTextfile string

	// HTTPAddr, when set, serves health, run status and metrics for the
	// duration of the run.
	HTTPAddr        string
	ShutdownTimeout time.Duration

	// RunLedger, when set, is a SQLite database that records every run.
	RunLedger string

	// StorageBackend selects where table paths resolve: "file" for the local
	// filesystem or "s3" for keys in an S3-compatible bucket.
	StorageBackend       string
	ObjectStoreEndpoint  string
	ObjectStoreAccessKey string
	ObjectStoreSecretKey string
	ObjectStoreBucket    string
	ObjectStoreSecure    bool
	ObjectStoreTimeout   time.Duration

	// Kafka publication of updated daily summaries.
	KafkaEnabled   bool
	KafkaBrokers   []string
	KafkaSinkTopic string
	PublishTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	publishTimeout, err := time.ParseDuration(envOrDefault("PUBLISH_TIMEOUT", "10s"))
	if err != nil || publishTimeout <= 0 {
		return nil, errors.New("invalid PUBLISH_TIMEOUT")
	}

	shutdownTimeout, err := time.ParseDuration(envOrDefault("SHUTDOWN_TIMEOUT", "10s"))
	if err != nil || shutdownTimeout <= 0 {
		return nil, errors.New("invalid SHUTDOWN_TIMEOUT")
	}

	objectStoreTimeout, err := time.ParseDuration(envOrDefault("OBJECT_STORE_TIMEOUT", "60s"))
	if err != nil || objectStoreTimeout <= 0 {
		return nil, errors.New("invalid OBJECT_STORE_TIMEOUT")
	}

	cfg := &Config{
		LogLevel:        strings.ToLower(envOrDefault("LOG_LEVEL", "info")),
		LogFormat:       strings.ToLower(envOrDefault("LOG_FORMAT", "json")),
		MetricsTextfile: os.Getenv("METRICS_TEXTFILE"),
		HTTPAddr:        os.Getenv("HTTP_ADDR"),
		ShutdownTimeout: shutdownTimeout,
		RunLedger:       os.Getenv("RUN_LEDGER"),

		StorageBackend:       strings.ToLower(envOrDefault("STORAGE_BACKEND", "file")),
		ObjectStoreEndpoint:  os.Getenv("OBJECT_STORE_ENDPOINT"),
		ObjectStoreAccessKey: os.Getenv("OBJECT_STORE_ACCESS_KEY"),
		ObjectStoreSecretKey: os.Getenv("OBJECT_STORE_SECRET_KEY"),
		ObjectStoreBucket:    os.Getenv("OBJECT_STORE_BUCKET"),
		ObjectStoreSecure:    os.Getenv("OBJECT_STORE_SECURE") == "true",
		ObjectStoreTimeout:   objectStoreTimeout,

		KafkaEnabled:   os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:   parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSinkTopic: envOrDefault("KAFKA_SINK_TOPIC", "agmet-daily-derived"),
		PublishTimeout: publishTimeout,
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid LOG_LEVEL %q", cfg.LogLevel)
	}
	switch cfg.LogFormat {
	case "json", "text":
	default:
		return nil, fmt.Errorf("invalid LOG_FORMAT %q", cfg.LogFormat)
	}
	switch cfg.StorageBackend {
	case "file":
	case "s3":
		if cfg.ObjectStoreEndpoint == "" {
			return nil, errors.New("STORAGE_BACKEND is s3 but OBJECT_STORE_ENDPOINT is empty")
		}
		if cfg.ObjectStoreBucket == "" {
			return nil, errors.New("STORAGE_BACKEND is s3 but OBJECT_STORE_BUCKET is empty")
		}
	default:
		return nil, fmt.Errorf("invalid STORAGE_BACKEND %q", cfg.StorageBackend)
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
		}
		if cfg.KafkaSinkTopic == "" {
			return nil, errors.New("KAFKA_ENABLED is true but KAFKA_SINK_TOPIC is empty")
		}
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
