// Package config loads lineupd settings from environment variables. A .env
// file in the working directory is honored for local development.
package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	// Addr is the listen address for HTTP and websocket traffic.
	Addr string
	// DatabaseURL enables Postgres persistence; empty means in-memory.
	DatabaseURL string
	// Environment is development or production; controls logger output.
	Environment string
	// CORSAllowOrigins for browser clients.
	CORSAllowOrigins []string
}

func Load() Config {
	// Missing .env is not an error; real deployments set env directly.
	_ = godotenv.Load()

	return Config{
		Addr:             getEnv("LINEUPD_ADDR", ":8080"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		Environment:      getEnv("ENVIRONMENT", "development"),
		CORSAllowOrigins: splitList(getEnv("CORS_ALLOW_ORIGINS", "*")),
	}
}

func (c Config) Production() bool { return c.Environment == "production" }

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
