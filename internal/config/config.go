package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the storefront needs to run: where the
// marketplace backend lives, where to listen, and where to keep
// locally persisted state (cart, session) between runs.
type Config struct {
	BackendURL  string
	ListenAddr  string
	StorageDir  string
	HTTPTimeout time.Duration
}

func Load() Config {
	// A .env file is a convenience for local development; absence is fine.
	_ = godotenv.Load()

	return Config{
		BackendURL:  getenv("BACKEND_URL", "http://localhost:8080/api"),
		ListenAddr:  getenv("LISTEN_ADDR", ":3000"),
		StorageDir:  getenv("STORAGE_DIR", ".storefront"),
		HTTPTimeout: getduration("HTTP_TIMEOUT", 15*time.Second),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
