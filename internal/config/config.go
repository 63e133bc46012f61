package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/bia-energy/telemedida/internal/db"
	"github.com/bia-energy/telemedida/internal/sheet"
)

// Config represents the application configuration
type Config struct {
	Database db.Config     `toml:"database"`
	Sheet    sheet.Config  `toml:"sheet"`
	HTTP     HTTPConfig    `toml:"http"`
	Logging  LoggingConfig `toml:"logging"`
}

// HTTPConfig holds the trigger endpoint settings
type HTTPConfig struct {
	Enabled bool   `toml:"enabled"`
	Address string `toml:"address"`
	Port    int    `toml:"port"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Database: db.Config{
			Driver:          "pgx",
			Host:            "localhost",
			Port:            5432,
			Username:        "data",
			MetersightDB:    "metersight",
			AppOpsDB:        "app_ops",
			UTCOffsetHours:  -5,
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
		},
		Sheet: sheet.Config{
			WorksheetName: "BD_Telemedida",
			MarkColor:     "FFFF00",
		},
		HTTP: HTTPConfig{
			Enabled: false,
			Address: "0.0.0.0",
			Port:    8080,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadFromFile loads configuration from a TOML file
func LoadFromFile(path string) (*Config, error) {
	// Start with defaults
	config := DefaultConfig()

	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", path)
	}

	// Parse TOML file
	if _, err := toml.DecodeFile(path, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// LoadConfig loads configuration with the following precedence:
// 1. Default values
// 2. Config file (if specified)
// 3. Environment variables (the deployment surface: credentials,
//    database names, spreadsheet identifiers)
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if configPath != "" {
		fileConfig, err := LoadFromFile(configPath)
		if err != nil {
			return nil, err
		}
		config = fileConfig
	}

	if err := applyEnv(config); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnv overlays the environment variables the deployment sets.
// Unset variables leave the current value untouched.
func applyEnv(config *Config) error {
	setString := func(target *string, key string) {
		if v, ok := os.LookupEnv(key); ok {
			*target = v
		}
	}

	setString(&config.Database.Username, "DB_USERNAME")
	setString(&config.Database.Password, "DB_PASSWORD")
	setString(&config.Database.Host, "DB_HOST")
	setString(&config.Database.MetersightDB, "DB_METERSIGHT")
	setString(&config.Database.AppOpsDB, "DB_APP_OPS")
	setString(&config.Sheet.SpreadsheetID, "GOOGLE_SHEETS_ID")
	setString(&config.Sheet.WorksheetName, "GOOGLE_SHEETS_WORKSHEET_NAME")
	setString(&config.Sheet.CredentialsJSON, "GOOGLE_SERVICE_ACCOUNT_JSON")
	setString(&config.Logging.Level, "LOG_LEVEL")

	if v, ok := os.LookupEnv("DB_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid DB_PORT %q: %w", v, err)
		}
		config.Database.Port = port
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Database validation
	if c.Database.Driver == "" {
		return fmt.Errorf("database driver must be specified")
	}
	if c.Database.Driver != "pgx" && c.Database.Driver != "sqlite3" {
		return fmt.Errorf("unsupported database driver: %s (must be pgx or sqlite3)", c.Database.Driver)
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database host must be specified")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("database port must be between 1 and 65535")
	}
	if c.Database.Driver == "pgx" && c.Database.Password == "" {
		return fmt.Errorf("database password must be set (DB_PASSWORD)")
	}
	if c.Database.MetersightDB == "" {
		return fmt.Errorf("metersight database name must be specified")
	}
	if c.Database.AppOpsDB == "" {
		return fmt.Errorf("app_ops database name must be specified")
	}

	// Sheet validation
	if c.Sheet.SpreadsheetID == "" {
		return fmt.Errorf("spreadsheet id must be set (GOOGLE_SHEETS_ID)")
	}
	if c.Sheet.WorksheetName == "" {
		return fmt.Errorf("worksheet name must be specified")
	}
	if c.Sheet.CredentialsJSON == "" {
		return fmt.Errorf("service account credentials must be set (GOOGLE_SERVICE_ACCOUNT_JSON)")
	}

	// HTTP validation
	if c.HTTP.Enabled {
		if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
			return fmt.Errorf("HTTP port must be between 1 and 65535")
		}
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	return nil
}
