package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 400.0, cfg.ThresholdM)
	assert.True(t, cfg.StripSuffix)
	assert.Empty(t, cfg.AliasPath)
	assert.Equal(t, 0, cfg.Workers)
	assert.True(t, cfg.BreakdownRailroad)
	assert.True(t, cfg.BreakdownState)
	assert.Equal(t, "enriched.db", cfg.SQLitePath)
	assert.Empty(t, cfg.HTTPAddr)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.False(t, cfg.KafkaEnabled)
	assert.Equal(t, "enriched-rail-incidents", cfg.KafkaTopic)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("INCIDENT_CSV", "incidents.csv")
	t.Setenv("MILEPOST_CSV", "mileposts.csv")
	t.Setenv("SQLITE_PATH", "/tmp/out.db")
	t.Setenv("SPATIAL_THRESHOLD_M", "250")
	t.Setenv("MILEPOST_SUFFIX_STRIPPING", "false")
	t.Setenv("RECONCILE_WORKERS", "4")
	t.Setenv("REPORT_BREAKDOWNS", "state")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_TOPIC", "custom-sink")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "incidents.csv", cfg.IncidentCSV)
	assert.Equal(t, "mileposts.csv", cfg.MilepostCSV)
	assert.Equal(t, "/tmp/out.db", cfg.SQLitePath)
	assert.Equal(t, 250.0, cfg.ThresholdM)
	assert.False(t, cfg.StripSuffix)
	assert.Equal(t, 4, cfg.Workers)
	assert.False(t, cfg.BreakdownRailroad)
	assert.True(t, cfg.BreakdownState)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.True(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-sink", cfg.KafkaTopic)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoad_InvalidThreshold(t *testing.T) {
	t.Setenv("SPATIAL_THRESHOLD_M", "not-a-number")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SPATIAL_THRESHOLD_M")
}

func TestLoad_NonPositiveThreshold(t *testing.T) {
	t.Setenv("SPATIAL_THRESHOLD_M", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "threshold")

	t.Setenv("SPATIAL_THRESHOLD_M", "-50")
	_, err = Load()
	require.Error(t, err)
}

func TestLoad_NegativeWorkers(t *testing.T) {
	t.Setenv("RECONCILE_WORKERS", "-1")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "worker")
}

func TestLoad_KafkaEnabledWithoutBrokers(t *testing.T) {
	t.Setenv("KAFKA_ENABLED", "true")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KAFKA_BROKERS")
}

func TestAliases(t *testing.T) {
	t.Run("built-in table", func(t *testing.T) {
		cfg := &Config{ThresholdM: 400}
		table, err := cfg.Aliases()
		require.NoError(t, err)
		assert.Equal(t, "CSXT", table["CSX"])
	})

	t.Run("file extends built-in", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "aliases.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"pmrr": "NS"}`), 0o600))

		cfg := &Config{ThresholdM: 400, AliasPath: path}
		table, err := cfg.Aliases()
		require.NoError(t, err)
		assert.Equal(t, "NS", table["PMRR"])
		assert.Equal(t, "CSXT", table["CSX"])
	})

	t.Run("malformed file is fatal", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "aliases.json")
		require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o600))

		cfg := &Config{ThresholdM: 400, AliasPath: path}
		_, err := cfg.Aliases()
		require.Error(t, err)
	})

	t.Run("missing file is fatal", func(t *testing.T) {
		cfg := &Config{ThresholdM: 400, AliasPath: "/nonexistent/aliases.json"}
		_, err := cfg.Aliases()
		require.Error(t, err)
	})
}
