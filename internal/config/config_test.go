package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `{
		"database": {"host": "localhost", "port": 5432, "user": "u", "password": "p", "dbname": "d"},
		"port": 8080
	}`))
	require.NoError(t, err)

	require.Equal(t, "info", cfg.LogConfig.Level)
	require.Equal(t, 30, cfg.AI.TimeoutSeconds)
	require.Equal(t, "db", cfg.Cache.Backend)
	require.Equal(t, int64(30*24*3600), cfg.Cache.TTLSeconds)
	require.Equal(t, int64(100000), cfg.Cache.MaxEntries)
	require.InDelta(t, 0.01, cfg.Cache.CleanupProbability, 1e-9)
	require.Equal(t, 10000, cfg.Cache.MemorySize)
	require.Equal(t, 50, cfg.Queue.BatchSize)
	require.Equal(t, 60, cfg.Queue.MaxProcessingSeconds)
	require.Equal(t, 600, cfg.Queue.LeaseTimeoutSeconds)
	require.Equal(t, 5, cfg.Queue.MaxAttempts)
	require.Equal(t, 10, cfg.Queue.Priorities.High)
	require.Equal(t, 50, cfg.Queue.Priorities.Normal)
	require.Equal(t, 90, cfg.Queue.Priorities.Low)
	require.InDelta(t, 0.7, cfg.Hybrid.TextWeight, 1e-9)
	require.InDelta(t, 0.3, cfg.Hybrid.VectorWeight, 1e-9)
	require.InDelta(t, 0.6, cfg.Hybrid.SimilarityThreshold, 1e-9)
}

func TestLoadKeepsExplicitValues(t *testing.T) {
	cfg, err := Load(writeConfig(t, `{
		"database": {"dsn": "postgres://u:p@localhost/d"},
		"port": 9000,
		"cache": {"backend": "memory", "ttl_seconds": 60, "memory_size": 5},
		"queue": {"enabled": true, "batch_size": 10, "lease_timeout_seconds": 30},
		"hybrid": {"text_weight": 0.5, "vector_weight": 0.5, "similarity_threshold": 0.8}
	}`))
	require.NoError(t, err)

	require.Equal(t, "memory", cfg.Cache.Backend)
	require.Equal(t, int64(60), cfg.Cache.TTLSeconds)
	require.Equal(t, 5, cfg.Cache.MemorySize)
	require.True(t, cfg.Queue.Enabled)
	require.Equal(t, 10, cfg.Queue.BatchSize)
	require.Equal(t, 30, cfg.Queue.LeaseTimeoutSeconds)
	require.InDelta(t, 0.5, cfg.Hybrid.TextWeight, 1e-9)
	require.InDelta(t, 0.8, cfg.Hybrid.SimilarityThreshold, 1e-9)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	_, err := Load(writeConfig(t, `{"port": 8080}`))
	require.ErrorContains(t, err, "database")

	_, err = Load(writeConfig(t, `{"database": {"host": "h"}}`))
	require.ErrorContains(t, err, "port")

	_, err = Load(writeConfig(t, `{
		"database": {"host": "h"}, "port": 8080,
		"cache": {"backend": "redis"}
	}`))
	require.ErrorContains(t, err, "cache.backend")

	_, err = Load(writeConfig(t, `not json`))
	require.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
