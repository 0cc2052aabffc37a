// Package config provides application configuration management with support
// for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	App      AppConfig
	Logger   LoggerConfig
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	SMTP     SMTPConfig
	Import   ImportConfig
	Backup   BackupConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// ServerConfig holds the socket server configuration.
type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration // per-frame read deadline (default: 5m)
	WriteTimeout time.Duration // per-frame write deadline (default: 15s)
	MaxFrameSize int           // largest accepted request frame in bytes

	// RateLimit throttles requests per client address, in requests per
	// second. Zero disables throttling.
	RateLimit int
	RateBurst int
}

// DatabaseConfig holds SQLite storage configuration.
type DatabaseConfig struct {
	Path string
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	// BcryptCost controls password hashing work factor.
	BcryptCost int
}

// SMTPConfig holds optional outgoing mail configuration. Delivery is
// attempted only when Host is set.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// BackupConfig holds periodic database snapshot configuration. Snapshots
// are disabled until a directory is set.
type BackupConfig struct {
	Dir      string
	Interval time.Duration
	Keep     int
}

// ImportConfig holds Open Library importer configuration.
type ImportConfig struct {
	// RequestsPerSecond throttles outbound search requests.
	RequestsPerSecond float64
	// DefaultCopies is the copy count assigned to imported titles.
	DefaultCopies int
}

// Addr returns the host:port listen address for the socket server.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	env := flag.String("env", "", "Environment (development, staging, production)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	host := flag.String("host", "", "Listen host (default: 0.0.0.0)")
	port := flag.String("port", "", "Listen port (default: 8888)")
	dbPath := flag.String("db-path", "", "Path to the SQLite database file")
	readTimeout := flag.String("read-timeout", "", "Per-frame read deadline (default: 5m)")
	writeTimeout := flag.String("write-timeout", "", "Per-frame write deadline (default: 15s)")
	envFile := flag.String("env-file", ".env", "Path to .env file")

	flag.Parse()

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Server: ServerConfig{
			Host:         getConfigValue(*host, "SERVER_HOST", "0.0.0.0"),
			Port:         getConfigValue(*port, "SERVER_PORT", "8888"),
			MaxFrameSize: getIntConfigValue("", "SERVER_MAX_FRAME_SIZE", 4<<20),
			RateLimit:    getIntConfigValue("", "SERVER_RATE_LIMIT", 0),
			RateBurst:    getIntConfigValue("", "SERVER_RATE_BURST", 20),
		},
		Database: DatabaseConfig{
			Path: getConfigValue(*dbPath, "DB_PATH", ""),
		},
		Auth: AuthConfig{
			BcryptCost: getIntConfigValue("", "BCRYPT_COST", 10),
		},
		SMTP: SMTPConfig{
			Host:     getConfigValue("", "SMTP_HOST", ""),
			Port:     getIntConfigValue("", "SMTP_PORT", 587),
			User:     getConfigValue("", "SMTP_USER", ""),
			Password: getConfigValue("", "SMTP_PASSWORD", ""),
			From:     getConfigValue("", "SMTP_FROM", ""),
		},
		Import: ImportConfig{
			RequestsPerSecond: 2.0,
			DefaultCopies:     getIntConfigValue("", "IMPORT_DEFAULT_COPIES", 3),
		},
		Backup: BackupConfig{
			Dir:  getConfigValue("", "BACKUP_DIR", ""),
			Keep: getIntConfigValue("", "BACKUP_KEEP", 7),
		},
	}

	readTimeoutStr := getConfigValue(*readTimeout, "SERVER_READ_TIMEOUT", "5m")
	readTimeoutDuration, err := time.ParseDuration(readTimeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid read timeout %q: %w", readTimeoutStr, err)
	}
	cfg.Server.ReadTimeout = readTimeoutDuration

	writeTimeoutStr := getConfigValue(*writeTimeout, "SERVER_WRITE_TIMEOUT", "15s")
	writeTimeoutDuration, err := time.ParseDuration(writeTimeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid write timeout %q: %w", writeTimeoutStr, err)
	}
	cfg.Server.WriteTimeout = writeTimeoutDuration

	backupIntervalStr := getConfigValue("", "BACKUP_INTERVAL", "24h")
	backupInterval, err := time.ParseDuration(backupIntervalStr)
	if err != nil {
		return nil, fmt.Errorf("invalid backup interval %q: %w", backupIntervalStr, err)
	}
	cfg.Backup.Interval = backupInterval

	if err := cfg.expandDatabasePath(); err != nil {
		return nil, fmt.Errorf("invalid database path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Database.Path == "" {
		return errors.New("database path cannot be empty after expansion")
	}

	if c.Server.MaxFrameSize <= 0 {
		return errors.New("max frame size must be positive")
	}

	return nil
}

// expandDatabasePath expands ~ and makes the path absolute, defaulting to
// ~/Shelfwise/library.db.
func (c *Config) expandDatabasePath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	defaultPath := filepath.Join(homeDir, "Shelfwise", "library.db")

	expanded, err := expandPath(c.Database.Path, defaultPath)
	if err != nil {
		return err
	}
	c.Database.Path = expanded
	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		value = strings.Trim(value, `"'`)

		// Env vars take precedence over .env file.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
