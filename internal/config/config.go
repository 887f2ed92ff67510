package config

import (
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// Defaults applied when the corresponding environment variable is unset.
const (
	DefaultAddr        = ":8080"
	DefaultRedisAddr   = "localhost:6379"
	DefaultTokenTTL    = 12 * time.Hour
	DefaultPresenceTTL = 25 * time.Second
	DefaultBusChannel  = "chat:events"
	DefaultBusDriver   = "redis"
)

// Config holds all configuration for the application.
type Config struct {
	Addr        string
	RedisAddr   string
	AuthSecret  string
	TokenTTL    time.Duration
	PresenceTTL time.Duration
	BusChannel  string
	BusDriver   string // "redis" or "channel"
	InstanceID  string
}

// New loads configuration from environment variables.
func New() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		Addr:        getEnv("ADDR", DefaultAddr),
		RedisAddr:   getEnv("REDIS_ADDR", DefaultRedisAddr),
		AuthSecret:  os.Getenv("AUTH_SECRET"),
		TokenTTL:    getDuration("TOKEN_TTL", DefaultTokenTTL),
		PresenceTTL: getDuration("PRESENCE_TTL", DefaultPresenceTTL),
		BusChannel:  getEnv("BUS_CHANNEL", DefaultBusChannel),
		BusDriver:   getEnv("BUS_DRIVER", DefaultBusDriver),
		InstanceID:  getEnv("INSTANCE_ID", uuid.NewString()[:8]),
	}

	if cfg.AuthSecret == "" {
		log.Fatal("Required environment variable AUTH_SECRET is not set.")
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Fatalf("Invalid duration in %s: %v", key, err)
	}
	return d
}
