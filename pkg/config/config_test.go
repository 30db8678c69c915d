package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/plaenen/accountledger/pkg/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := config.Load()

	assert.Equal(t, "localhost:6379", cfg.RedisAddr())
	assert.Equal(t, ":8444", cfg.ListenAddr())
	assert.Equal(t, 30*time.Second, cfg.ReadInterval)
	assert.Equal(t, 10*time.Second, cfg.ProjectorReadInterval)
	assert.Equal(t, 30*time.Second, cfg.PendingInterval)
	assert.Equal(t, "mongodb://localhost:27017", cfg.MongoURL)
	assert.Equal(t, "bank", cfg.MongoDatabase)
	assert.Equal(t, "accounts", cfg.MongoCollection)
	assert.Equal(t, "accountStream", cfg.StreamName)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("REDIS_HOST", "redis.internal")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("READ_INTERVAL", "5s")
	t.Setenv("PENDING_INTERVAL", "1m")
	t.Setenv("LISTEN_PORT", "9000")
	t.Setenv("STREAM_NAME", "ledgerStream")

	cfg := config.Load()

	assert.Equal(t, "redis.internal:6380", cfg.RedisAddr())
	assert.Equal(t, 5*time.Second, cfg.ReadInterval)
	assert.Equal(t, time.Minute, cfg.PendingInterval)
	assert.Equal(t, ":9000", cfg.ListenAddr())
	assert.Equal(t, "ledgerStream", cfg.StreamName)
}

func TestLoad_IgnoresMalformedValues(t *testing.T) {
	t.Setenv("REDIS_PORT", "not-a-port")
	t.Setenv("READ_INTERVAL", "soon")

	cfg := config.Load()

	assert.Equal(t, 6379, cfg.RedisPort)
	assert.Equal(t, 30*time.Second, cfg.ReadInterval)
}
