package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Secrets backends.
const (
	SecretsEnv = "env"
	SecretsAWS = "aws"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Ping stream.
	KafkaBrokers       []string
	KafkaPingTopic     string
	KafkaGroupID       string
	BatchSize          int
	BatchFlushInterval time.Duration

	// Blob storage.
	AWSRegion       string
	S3Endpoint      string
	RawBucket       string
	ProcessedBucket string
	GTFSBucket      string
	FolderPrefix    string
	StopsPath       string
	RouteBoundsPath string
	GTFSSummaryPath string

	// Warehouse.
	WarehousePath      string
	IncidentsTable     string
	IntegrationSQLPath string

	// Batch windows and jobs.
	ReportLookback    time.Duration
	IndexLookback     time.Duration
	MaxSeverity       int
	PublishInterval   time.Duration
	PublishMaxRuntime time.Duration

	// Search.
	SearchIndex           string
	SearchTimeout         time.Duration
	SecretsBackend        string
	ElasticEndpointSecret string
	ElasticAPIKeySecret   string
	CORSAllowOrigin       string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaPingTopic:     sharedcfg.EnvOrDefault("KAFKA_PING_TOPIC", "vehicle-locations"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "transit-ping-loader"),
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		AWSRegion:       sharedcfg.EnvOrDefault("AWS_REGION", "us-east-1"),
		S3Endpoint:      sharedcfg.EnvOrDefault("S3_ENDPOINT", ""),
		RawBucket:       sharedcfg.EnvOrDefault("RAW_BUCKET", "incidents-raw"),
		ProcessedBucket: sharedcfg.EnvOrDefault("PROCESSED_BUCKET", "incidents"),
		GTFSBucket:      sharedcfg.EnvOrDefault("GTFS_BUCKET", "gtfs"),
		FolderPrefix:    sharedcfg.EnvOrDefault("FOLDER_PREFIX", "reports"),
		StopsPath:       sharedcfg.EnvOrDefault("STOPS_PATH", "stops.txt"),
		RouteBoundsPath: sharedcfg.EnvOrDefault("ROUTE_BOUNDS_PATH", "Processed/route_bounds.csv"),
		GTFSSummaryPath: sharedcfg.EnvOrDefault("GTFS_SUMMARY_PATH", "Processed/gtfs_summary.csv"),

		WarehousePath:      sharedcfg.EnvOrDefault("WAREHOUSE_PATH", "transit.db"),
		IncidentsTable:     sharedcfg.EnvOrDefault("INCIDENTS_TABLE", "incidents"),
		IntegrationSQLPath: sharedcfg.EnvOrDefault("INTEGRATION_SQL_PATH", ""),

		SearchIndex:           sharedcfg.EnvOrDefault("SEARCH_INDEX", "transit-integrated"),
		SecretsBackend:        strings.ToLower(sharedcfg.EnvOrDefault("SECRETS_BACKEND", SecretsEnv)),
		ElasticEndpointSecret: sharedcfg.EnvOrDefault("ELASTIC_ENDPOINT_SECRET", "elastic-endpoint"),
		ElasticAPIKeySecret:   sharedcfg.EnvOrDefault("ELASTIC_API_KEY_SECRET", "elastic-api-key"),
		CORSAllowOrigin:       sharedcfg.EnvOrDefault("CORS_ALLOW_ORIGIN", "*"),
	}

	durations := []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"REPORT_LOOKBACK", "69m", &cfg.ReportLookback},
		{"INDEX_LOOKBACK", "6h", &cfg.IndexLookback},
		{"PUBLISH_INTERVAL", "30s", &cfg.PublishInterval},
		{"PUBLISH_MAX_RUNTIME", "5m", &cfg.PublishMaxRuntime},
		{"SEARCH_TIMEOUT", "10s", &cfg.SearchTimeout},
	}
	for _, d := range durations {
		v, err := parsePositiveDuration(d.key, d.def)
		if err != nil {
			return nil, err
		}
		*d.dst = v
	}

	maxSeverity, err := strconv.Atoi(sharedcfg.EnvOrDefault("MAX_SEVERITY", "5"))
	if err != nil || maxSeverity < 1 {
		return nil, errors.New("invalid MAX_SEVERITY: must be an integer >= 1")
	}
	cfg.MaxSeverity = maxSeverity

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaPingTopic == "" {
		return nil, errors.New("KAFKA_PING_TOPIC is required")
	}
	if cfg.IncidentsTable == "" {
		return nil, errors.New("INCIDENTS_TABLE is required")
	}
	if cfg.SecretsBackend != SecretsEnv && cfg.SecretsBackend != SecretsAWS {
		return nil, fmt.Errorf("invalid SECRETS_BACKEND %q: must be %q or %q", cfg.SecretsBackend, SecretsEnv, SecretsAWS)
	}

	return cfg, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive duration", key)
	}
	return d, nil
}
