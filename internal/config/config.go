package config

import (
	"os"
)

// Config holds the process configuration, read from TT_-prefixed environment
// variables with sensible local-first defaults.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Backup   BackupConfig
}

type ServerConfig struct {
	HTTPPort    string
	Environment string
	LogLevel    string
}

type DatabaseConfig struct {
	Path string
}

type BackupConfig struct {
	Dir string
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			HTTPPort:    getEnv("TT_HTTP_PORT", "8080"),
			Environment: getEnv("TT_ENV", "development"),
			LogLevel:    getEnv("TT_LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			Path: getEnv("TT_DB_PATH", "tasks.db"),
		},
		Backup: BackupConfig{
			Dir: getEnv("TT_BACKUP_DIR", "backups"),
		},
	}, nil
}

// IsDevelopment reports whether the process runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
