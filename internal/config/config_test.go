package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsAndOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
postgres:
  dsn: "host=db user=docflow"
redis:
  addr: "localhost:6379"
outbox:
  poll_interval: 2s
  max_attempts: 8
`), 0o600))

	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "host=db user=docflow password=secret", cfg.Postgres.DSN)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 2*time.Second, cfg.Outbox.PollInterval)
	assert.Equal(t, 8, cfg.Outbox.MaxAttempts)
	assert.Equal(t, 50, cfg.Outbox.BatchSize)
	assert.Equal(t, 5, cfg.Outbox.JobAttempts)
	assert.Equal(t, 5*time.Second, cfg.Outbox.JobBackoff)
	assert.Equal(t, 5*time.Minute, cfg.Outbox.JobLease)
	assert.Equal(t, 30*time.Second, cfg.Outbox.SweepInterval)
	assert.Equal(t, "redis", cfg.Outbox.QueueDriver)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_ShippedConfig(t *testing.T) {
	cfg, err := Load("config.yaml")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.Outbox.PollInterval)
	assert.Equal(t, "document-events", cfg.Kafka.Topic)
}
