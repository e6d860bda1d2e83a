package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort       string
	DatabaseURL   string
	RedisAddr     string
	JWTSecret     string
	GatewayURL    string
	GatewayAPIKey string
	// GatewayClockOffset is applied to zone-less expiredAt timestamps from
	// the gateway, which emits local time mislabeled as UTC. Default -7h
	// matches the deployed backend.
	GatewayClockOffset time.Duration
	SweepInterval      time.Duration
}

func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	cfg := &Config{
		AppPort:            getEnv("APP_PORT", "8080"),
		DatabaseURL:        dbURL,
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		JWTSecret:          getEnv("JWT_SECRET", "dev-secret"),
		GatewayURL:         getEnv("GATEWAY_URL", "https://api-merchant.payos.vn"),
		GatewayAPIKey:      os.Getenv("GATEWAY_API_KEY"),
		GatewayClockOffset: getDurationEnv("GATEWAY_CLOCK_OFFSET", -7*time.Hour),
		SweepInterval:      getDurationEnv("SWEEP_INTERVAL", 15*time.Second),
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
