// Package config contains everything related to configuration
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	DatabasePath  string
	LogPath       string
	LogLevel      string
	MetricsAddr   string
	SessionName   string
	BinsPerTile   int
	Branching     int
	CacheCapacity int
	Workers       int
	Placeholder   float64
	WheelZoomStep float64
	WatchDebounce time.Duration
	NotifyErrors  bool
}

// Default values
const (
	defaultBinsPerTile   = 4096
	defaultBranching     = 2
	defaultCacheCapacity = 64
	defaultWheelZoomStep = 1.25
	defaultWatchDebounce = 100 * time.Millisecond
	defaultSessionName   = "default"
	defaultLogLevel      = "info"
)

// Load reads configuration from .env files and environment variables.
func Load() (*Config, error) {
	// Try loading .env from multiple locations
	envPaths := getEnvPaths()
	for _, path := range envPaths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			break
		}
	}

	cfg := &Config{
		DatabasePath:  getEnvString("DATABASE_PATH", getDefaultPath("framescope.db")),
		LogPath:       getEnvString("LOG_PATH", getDefaultPath("framescope.log")),
		LogLevel:      strings.ToLower(getEnvString("LOG_LEVEL", defaultLogLevel)),
		MetricsAddr:   getEnvString("METRICS_ADDR", ""),
		SessionName:   getEnvString("SESSION_NAME", defaultSessionName),
		BinsPerTile:   getEnvInt("BINS_PER_TILE", defaultBinsPerTile),
		Branching:     getEnvInt("PYRAMID_BRANCHING", defaultBranching),
		CacheCapacity: getEnvInt("TILE_CACHE_CAPACITY", defaultCacheCapacity),
		Workers:       getEnvInt("AGGREGATION_WORKERS", defaultWorkers()),
		Placeholder:   getEnvFloat("PLACEHOLDER_VALUE", math.NaN()),
		WheelZoomStep: getEnvFloat("WHEEL_ZOOM_STEP", defaultWheelZoomStep),
		WatchDebounce: getEnvDuration("WATCH_DEBOUNCE", defaultWatchDebounce),
		NotifyErrors:  getEnvBool("NOTIFY_ERRORS", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Ensure database directory exists
	if err := ensureDir(filepath.Dir(cfg.DatabasePath)); err != nil {
		return nil, err
	}

	// Ensure log directory exists
	if err := ensureDir(filepath.Dir(cfg.LogPath)); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects values the tile pyramid cannot be built from and
// resets recoverable ones to their defaults.
func (c *Config) Validate() error {
	if c.BinsPerTile < 1 {
		return fmt.Errorf("BINS_PER_TILE must be at least 1, got %d", c.BinsPerTile)
	}
	if c.Branching < 2 {
		return fmt.Errorf("PYRAMID_BRANCHING must be at least 2, got %d", c.Branching)
	}
	if c.CacheCapacity < 1 {
		c.CacheCapacity = defaultCacheCapacity
	}
	if c.Workers < 1 {
		c.Workers = defaultWorkers()
	}
	if !(c.WheelZoomStep > 1) || math.IsInf(c.WheelZoomStep, 0) {
		c.WheelZoomStep = defaultWheelZoomStep
	}
	if c.WatchDebounce <= 0 {
		c.WatchDebounce = defaultWatchDebounce
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		c.LogLevel = defaultLogLevel
	}
	if c.SessionName == "" {
		c.SessionName = defaultSessionName
	}
	return nil
}

// getEnvPaths returns a list of paths to check for .env files.
func getEnvPaths() []string {
	var paths []string

	// Current directory
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".env"))
	}

	// Home directory locations
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".config", "framescope", ".env"),
			filepath.Join(home, ".framescope", ".env"),
		)
	}

	// Parent directories (useful for development)
	if cwd, err := os.Getwd(); err == nil {
		parent := filepath.Dir(cwd)
		paths = append(paths, filepath.Join(parent, ".env"))
		grandparent := filepath.Dir(parent)
		paths = append(paths, filepath.Join(grandparent, ".env"))
	}

	return paths
}

// getDefaultPath returns name inside the framescope config directory.
func getDefaultPath(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return name
	}
	return filepath.Join(home, ".config", "framescope", name)
}

func defaultWorkers() int {
	return max(1, runtime.NumCPU())
}

// getEnvString retrieves a string environment variable or returns the default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns the default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return n
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns the default.
// "nan" is accepted and yields NaN.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns the default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable or returns the default.
// Accepts values like "30s", "1m", "500ms".
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		// Bare integers are milliseconds
		if ms, err := strconv.Atoi(value); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultValue
}

// ensureDir creates a directory and all parent directories if they don't exist.
func ensureDir(path string) error {
	if path == "" || path == "." {
		return nil
	}
	return os.MkdirAll(path, 0o750)
}
