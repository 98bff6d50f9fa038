// Package config loads runtime settings from the environment, honoring an
// optional .env file.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	OpenAIKey     string
	PostgresDSN   string
	MetricsPort   string
	OutDir        string
	FetchTimeout  time.Duration
	DetailWorkers int
	SiteWorkers   int
}

func Load() *Config {
	_ = godotenv.Load()
	return &Config{
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		PostgresDSN:   os.Getenv("POSTGRES_DSN"),
		MetricsPort:   getEnv("METRICS_PORT", "9090"),
		OutDir:        getEnv("OUT_DIR", "data"),
		FetchTimeout:  time.Duration(getEnvInt("FETCH_TIMEOUT_SECONDS", 30)) * time.Second,
		DetailWorkers: getEnvInt("DETAIL_WORKERS", 4),
		SiteWorkers:   getEnvInt("SITE_WORKERS", 2),
	}
}

func getEnv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getEnvInt(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return d
}
