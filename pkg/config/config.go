// Package config provides the environment-backed configuration both
// processes boot from. A .env file in the working directory is loaded
// first when present.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the runtime settings of the write side and the
// projector.
type Config struct {
	RedisHost string // REDIS_HOST, default localhost
	RedisPort int    // REDIS_PORT, default 6379

	// ReadInterval is the write side's consumer poll cadence; the
	// projector polls more eagerly with ProjectorReadInterval.
	ReadInterval          time.Duration // READ_INTERVAL, default 30s
	ProjectorReadInterval time.Duration // PROJECTOR_READ_INTERVAL, default 10s
	PendingInterval       time.Duration // PENDING_INTERVAL, default 30s

	ListenPort int // LISTEN_PORT, default 8444

	MongoURL        string // MONGO_URL, default mongodb://localhost:27017
	MongoDatabase   string // MONGO_DATABASE, default bank
	MongoCollection string // MONGO_COLLECTION, default accounts

	StreamName string // STREAM_NAME, default accountStream
}

// Load reads configuration from the environment, after loading .env if
// one exists.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		RedisHost:             getString("REDIS_HOST", "localhost"),
		RedisPort:             getInt("REDIS_PORT", 6379),
		ReadInterval:          getDuration("READ_INTERVAL", 30*time.Second),
		ProjectorReadInterval: getDuration("PROJECTOR_READ_INTERVAL", 10*time.Second),
		PendingInterval:       getDuration("PENDING_INTERVAL", 30*time.Second),
		ListenPort:            getInt("LISTEN_PORT", 8444),
		MongoURL:              getString("MONGO_URL", "mongodb://localhost:27017"),
		MongoDatabase:         getString("MONGO_DATABASE", "bank"),
		MongoCollection:       getString("MONGO_COLLECTION", "accounts"),
		StreamName:            getString("STREAM_NAME", "accountStream"),
	}
}

// RedisAddr returns the host:port the log client dials.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// ListenAddr returns the HTTP listen address.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.ListenPort)
}

func getString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
