// Package config contains everything related to configuration
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppDirName is the directory under the user config dir holding all state.
const AppDirName = "glm-usage-tui"

// Config holds the application configuration.
type Config struct {
	CredentialsPath string
	DatabasePath    string
	LogPath         string
	APIURL          string
	RequestTimeout  time.Duration
	Notifications   bool
}

// Default values
const (
	DefaultAPIURL         = "https://bigmodel.cn/api/monitor/usage/quota/limit"
	defaultRequestTimeout = 30 * time.Second
)

// Load reads configuration from .env files and environment variables.
func Load() (*Config, error) {
	// Try loading .env from multiple locations
	for _, path := range getEnvPaths() {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			break
		}
	}

	dir := getDefaultDir()
	cfg := &Config{
		CredentialsPath: getEnvString("GLM_CONFIG_PATH", filepath.Join(dir, "config.json")),
		DatabasePath:    getEnvString("GLM_DATABASE_PATH", filepath.Join(dir, "usage.db")),
		LogPath:         getEnvString("LOG_PATH", filepath.Join(dir, "glmu.log")),
		APIURL:          getEnvString("GLM_API_URL", DefaultAPIURL),
		RequestTimeout:  getEnvDuration("GLM_REQUEST_TIMEOUT", defaultRequestTimeout),
		Notifications:   getEnvBool("GLM_NOTIFY", true),
	}

	for _, path := range []string{cfg.CredentialsPath, cfg.DatabasePath, cfg.LogPath} {
		if err := ensureDir(filepath.Dir(path)); err != nil {
			return nil, err
		}
	}

	return cfg, nil
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
			filepath.Join(home, ".config", AppDirName, ".env"),
			filepath.Join(home, "."+AppDirName, ".env"),
		)
	}

	return paths
}

// getDefaultDir returns the directory holding credentials, history and logs.
func getDefaultDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, AppDirName)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", AppDirName)
	}
	return "."
}

// getEnvString retrieves a string environment variable or returns the default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
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
		// Try parsing as seconds if no unit specified
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns the default.
func getEnvBool(key string, defaultValue bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	switch strings.ToLower(value) {
	case "on", "yes":
		return true
	case "off", "no":
		return false
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
