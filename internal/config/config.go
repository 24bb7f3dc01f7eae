package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete application configuration.
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Batch   BatchConfig   `mapstructure:"batch"`
	Store   StoreConfig   `mapstructure:"store"`
	Archive ArchiveConfig `mapstructure:"archive"`
	Log     LogConfig     `mapstructure:"log"`
}

// APIConfig holds enhancement service API configuration.
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Key     string        `mapstructure:"key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// BatchConfig holds chunked processing configuration.
type BatchConfig struct {
	Size int `mapstructure:"size"`
}

// StoreConfig describes the merchant store whose catalog is enhanced.
type StoreConfig struct {
	Context string `mapstructure:"context"`
}

// ArchiveConfig holds run-archive configuration. Archiving is optional;
// when disabled the database settings are ignored.
type ArchiveConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Database DatabaseConfig `mapstructure:"database"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Host               string `mapstructure:"host"`
	Port               int    `mapstructure:"port"`
	User               string `mapstructure:"user"`
	Password           string `mapstructure:"password"`
	Name               string `mapstructure:"name"`
	Schema             string `mapstructure:"schema"`
	SSLMode            string `mapstructure:"sslmode"`
	MaxConnections     int    `mapstructure:"max_connections"`
	MaxIdleConnections int    `mapstructure:"max_idle_connections"`
}

// DSN returns the database connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// New creates a new Config instance from Viper.
func New(v *viper.Viper) *Config {
	var config Config

	if err := v.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("unable to decode config: %w", err))
	}

	if err := config.Validate(); err != nil {
		panic(fmt.Errorf("invalid configuration: %w", err))
	}

	return &config
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}

	if c.Batch.Size < 1 {
		return errors.New("batch.size must be at least 1")
	}

	if c.Archive.Enabled {
		if c.Archive.Database.Host == "" {
			return errors.New("archive.database.host is required when archiving is enabled")
		}
		if c.Archive.Database.Port < 1 || c.Archive.Database.Port > 65535 {
			return errors.New("archive.database.port must be between 1 and 65535")
		}
		if c.Archive.Database.User == "" {
			return errors.New("archive.database.user is required when archiving is enabled")
		}
		if c.Archive.Database.Name == "" {
			return errors.New("archive.database.name is required when archiving is enabled")
		}
	}

	return nil
}
