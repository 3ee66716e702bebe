// Package config provides configuration management for the market-data core.
//
// Configuration is loaded from environment variables, optionally seeded from
// a .env file. There is no settings-database override layer in this core:
// the Repository that owns per-user settings is an external collaborator
// (see internal/repository), not something config reaches into.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds process-wide configuration for the market-data core.
type Config struct {
	DataDir          string   // base directory for app.db and any file-based state (always absolute)
	DiskCacheDir     string   // L2 cache directory / cache.db location (always absolute)
	DatabaseURL      string   // optional external DSN for the entity Repository; empty uses DataDir/app.db
	LogDir           string   // if set, logs are also written to a file under this directory
	LogLevel         string   // debug, info, warn, error
	LogFormat        string   // "text" or "json"
	Port             int      // HTTP server port
	DevMode          bool     // true when APIKey is empty (auth disabled)
	APIKey           string   // FOLIO_API_KEY - shared secret gating non-health endpoints
	EncryptionKey    string   // ENCRYPTION_KEY - base64 32-byte AES-256 key for per-user secrets
	JPProviderKey    string   // optional JP financial-statements provider credential
	TWProviderKey    string   // optional TW financial-statements provider credential
	FilingsAPIKey    string   // optional institutional-filings provider credential
	BenchmarkTickers []string // benchmark index tickers used by the Snapshot Engine
	R2Endpoint       string   // optional S3/R2-compatible endpoint for disk-cache backups
	R2Bucket         string   // optional bucket name for disk-cache backups
	R2AccessKey      string
	R2SecretKey      string
}

// Load reads configuration from environment variables.
//
// dataDirOverride, when non-empty, takes priority over DATA_DIR.
func Load(dataDirOverride ...string) (*Config, error) {
	_ = godotenv.Load()

	dataDir := ""
	if len(dataDirOverride) > 0 && dataDirOverride[0] != "" {
		dataDir = dataDirOverride[0]
	} else {
		dataDir = getEnv("DATA_DIR", "./data")
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	diskCacheDir := getEnv("DISK_CACHE_DIR", filepath.Join(absDataDir, "cache"))
	absCacheDir, err := filepath.Abs(diskCacheDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve disk cache directory path: %w", err)
	}
	if err := os.MkdirAll(absCacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create disk cache directory: %w", err)
	}

	apiKey := getEnv("FOLIO_API_KEY", "")

	cfg := &Config{
		DataDir:          absDataDir,
		DiskCacheDir:     absCacheDir,
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		LogDir:           getEnv("LOG_DIR", ""),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "text"),
		Port:             getEnvAsInt("PORT", 8080),
		DevMode:          apiKey == "",
		APIKey:           apiKey,
		EncryptionKey:    getEnv("ENCRYPTION_KEY", ""),
		JPProviderKey:    getEnv("JP_PROVIDER_API_KEY", ""),
		TWProviderKey:    getEnv("TW_PROVIDER_API_KEY", ""),
		FilingsAPIKey:    getEnv("FILINGS_API_KEY", ""),
		BenchmarkTickers: getEnvAsList("BENCHMARK_TICKERS", []string{"SPY", "VT", "EWJ", "EWT"}),
		R2Endpoint:       getEnv("R2_ENDPOINT", ""),
		R2Bucket:         getEnv("R2_BUCKET", ""),
		R2AccessKey:      getEnv("R2_ACCESS_KEY", ""),
		R2SecretKey:      getEnv("R2_SECRET_KEY", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// BackupEnabled reports whether enough R2/S3 credentials are present to
// enable the optional disk-cache backup job.
func (c *Config) BackupEnabled() bool {
	return c.R2Endpoint != "" && c.R2Bucket != "" && c.R2AccessKey != "" && c.R2SecretKey != ""
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("invalid LOG_FORMAT %q: must be 'text' or 'json'", c.LogFormat)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
