package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const defaultBroker = "localhost:9092"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, []string{defaultBroker}, cfg.KafkaBrokers)
	assert.Equal(t, "vehicle-locations", cfg.KafkaPingTopic)
	assert.Equal(t, "transit-ping-loader", cfg.KafkaGroupID)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.BatchFlushInterval)

	assert.Equal(t, "us-east-1", cfg.AWSRegion)
	assert.Empty(t, cfg.S3Endpoint)
	assert.Equal(t, "incidents-raw", cfg.RawBucket)
	assert.Equal(t, "incidents", cfg.ProcessedBucket)
	assert.Equal(t, "gtfs", cfg.GTFSBucket)
	assert.Equal(t, "reports", cfg.FolderPrefix)
	assert.Equal(t, "stops.txt", cfg.StopsPath)
	assert.Equal(t, "Processed/route_bounds.csv", cfg.RouteBoundsPath)
	assert.Equal(t, "Processed/gtfs_summary.csv", cfg.GTFSSummaryPath)

	assert.Equal(t, "transit.db", cfg.WarehousePath)
	assert.Equal(t, "incidents", cfg.IncidentsTable)
	assert.Empty(t, cfg.IntegrationSQLPath)

	assert.Equal(t, 69*time.Minute, cfg.ReportLookback)
	assert.Equal(t, 6*time.Hour, cfg.IndexLookback)
	assert.Equal(t, 5, cfg.MaxSeverity)
	assert.Equal(t, 30*time.Second, cfg.PublishInterval)
	assert.Equal(t, 5*time.Minute, cfg.PublishMaxRuntime)

	assert.Equal(t, "transit-integrated", cfg.SearchIndex)
	assert.Equal(t, 10*time.Second, cfg.SearchTimeout)
	assert.Equal(t, SecretsEnv, cfg.SecretsBackend)
	assert.Equal(t, "elastic-endpoint", cfg.ElasticEndpointSecret)
	assert.Equal(t, "elastic-api-key", cfg.ElasticAPIKeySecret)
	assert.Equal(t, "*", cfg.CORSAllowOrigin)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_PING_TOPIC", "pings")
	t.Setenv("KAFKA_GROUP_ID", "custom-group")
	t.Setenv("BATCH_SIZE", "100")
	t.Setenv("BATCH_FLUSH_INTERVAL", "1s")
	t.Setenv("S3_ENDPOINT", "http://minio:9000")
	t.Setenv("FOLDER_PREFIX", "blr")
	t.Setenv("WAREHOUSE_PATH", "/data/wh.db")
	t.Setenv("INCIDENTS_TABLE", "incidents_v2")
	t.Setenv("REPORT_LOOKBACK", "2h")
	t.Setenv("INDEX_LOOKBACK", "30m")
	t.Setenv("MAX_SEVERITY", "3")
	t.Setenv("PUBLISH_INTERVAL", "5s")
	t.Setenv("PUBLISH_MAX_RUNTIME", "1m")
	t.Setenv("SEARCH_INDEX", "integrated-test")
	t.Setenv("SEARCH_TIMEOUT", "2s")
	t.Setenv("SECRETS_BACKEND", "AWS")
	t.Setenv("CORS_ALLOW_ORIGIN", "https://dash.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "pings", cfg.KafkaPingTopic)
	assert.Equal(t, "custom-group", cfg.KafkaGroupID)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 1*time.Second, cfg.BatchFlushInterval)
	assert.Equal(t, "http://minio:9000", cfg.S3Endpoint)
	assert.Equal(t, "blr", cfg.FolderPrefix)
	assert.Equal(t, "/data/wh.db", cfg.WarehousePath)
	assert.Equal(t, "incidents_v2", cfg.IncidentsTable)
	assert.Equal(t, 2*time.Hour, cfg.ReportLookback)
	assert.Equal(t, 30*time.Minute, cfg.IndexLookback)
	assert.Equal(t, 3, cfg.MaxSeverity)
	assert.Equal(t, 5*time.Second, cfg.PublishInterval)
	assert.Equal(t, time.Minute, cfg.PublishMaxRuntime)
	assert.Equal(t, "integrated-test", cfg.SearchIndex)
	assert.Equal(t, 2*time.Second, cfg.SearchTimeout)
	assert.Equal(t, SecretsAWS, cfg.SecretsBackend)
	assert.Equal(t, "https://dash.example", cfg.CORSAllowOrigin)
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidBatchSize(t *testing.T) {
	t.Setenv("BATCH_SIZE", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BATCH_SIZE")
}

func TestLoad_BatchSizeTooLarge(t *testing.T) {
	t.Setenv("BATCH_SIZE", "9999")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BATCH_SIZE")
}

func TestLoad_InvalidBatchFlushInterval(t *testing.T) {
	t.Setenv("BATCH_FLUSH_INTERVAL", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BATCH_FLUSH_INTERVAL")
}

func TestLoad_InvalidDurations(t *testing.T) {
	for _, key := range []string{"REPORT_LOOKBACK", "INDEX_LOOKBACK", "PUBLISH_INTERVAL", "PUBLISH_MAX_RUNTIME", "SEARCH_TIMEOUT"} {
		for _, value := range []string{"bad", "0s", "-5m"} {
			t.Run(key+"="+value, func(t *testing.T) {
				t.Setenv(key, value)
				_, err := Load()
				require.Error(t, err)
				assert.Contains(t, err.Error(), key)
			})
		}
	}
}

func TestLoad_InvalidMaxSeverity(t *testing.T) {
	for _, value := range []string{"0", "-1", "high"} {
		t.Run(value, func(t *testing.T) {
			t.Setenv("MAX_SEVERITY", value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "MAX_SEVERITY")
		})
	}
}

func TestLoad_EmptyPingTopic(t *testing.T) {
	t.Setenv("KAFKA_PING_TOPIC", "")
	cfg, err := Load()
	// An empty variable falls back to the default.
	require.NoError(t, err)
	assert.Equal(t, "vehicle-locations", cfg.KafkaPingTopic)
}

func TestLoad_InvalidSecretsBackend(t *testing.T) {
	t.Setenv("SECRETS_BACKEND", "vault")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SECRETS_BACKEND")
}
