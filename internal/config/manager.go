package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"shortvid-saver/pkg/models"
)

// Manager manages application configuration
type Manager struct {
	config *models.Config
	viper  *viper.Viper
	logger zerolog.Logger
}

// NewManager creates a new configuration manager
func NewManager() *Manager {
	return &Manager{
		config: &models.Config{},
		viper:  viper.New(),
		logger: zerolog.New(os.Stdout).With().Timestamp().Logger(),
	}
}

// Load loads configuration from file and environment
func (m *Manager) Load(configPath string) (*models.Config, error) {
	m.setDefaults()

	m.viper.SetConfigName("config")
	m.viper.SetConfigType("yaml")

	if configPath != "" {
		m.viper.AddConfigPath(configPath)
	} else {
		m.viper.AddConfigPath(".")
		m.viper.AddConfigPath("./config")
		m.viper.AddConfigPath("$HOME/.shortvid-saver")
		m.viper.AddConfigPath("/etc/shortvid-saver")
	}

	m.viper.AutomaticEnv()
	m.viper.SetEnvPrefix("SVS")

	if err := m.viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err := m.viper.Unmarshal(m.config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := m.ensureDirectories(); err != nil {
		return nil, fmt.Errorf("error ensuring directories: %w", err)
	}

	m.configureLogger()

	return m.config, nil
}

// Save writes the current configuration to file
func (m *Manager) Save(configPath string) error {
	configFile := filepath.Join(configPath, "config.yaml")
	if err := m.viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("error saving config: %w", err)
	}
	return nil
}

// GetConfig returns the current configuration
func (m *Manager) GetConfig() *models.Config {
	return m.config
}

// UpdateConfig updates specific configuration values
func (m *Manager) UpdateConfig(updates map[string]interface{}) error {
	for key, value := range updates {
		m.viper.Set(key, value)
	}
	return m.viper.Unmarshal(m.config)
}

// setDefaults sets default configuration values
func (m *Manager) setDefaults() {
	// Server defaults
	m.viper.SetDefault("server.host", "0.0.0.0")
	m.viper.SetDefault("server.port", 8080)
	m.viper.SetDefault("server.read_timeout", 30)
	m.viper.SetDefault("server.write_timeout", 30)

	// Download defaults
	m.viper.SetDefault("download.max_workers", 3)
	m.viper.SetDefault("download.timeout", 300)
	m.viper.SetDefault("download.save_path", "./downloads")

	// Database defaults
	m.viper.SetDefault("database.path", "./data/shortvid-saver.db")

	// Log defaults
	m.viper.SetDefault("log.level", "info")
	m.viper.SetDefault("log.format", "text")

	// Platform defaults
	m.viper.SetDefault("platforms.douyin.enabled", true)
	m.viper.SetDefault("platforms.tiktok.enabled", true)

	// Auth defaults
	m.viper.SetDefault("auth.enabled", true)
	m.viper.SetDefault("auth.jwt_secret", "your-secret-key-change-this-in-production")
	m.viper.SetDefault("auth.token_expiry", 24)
	m.viper.SetDefault("auth.admin_password", "admin123")

	// Rate limit defaults
	m.viper.SetDefault("rate_limit.enabled", true)
	m.viper.SetDefault("rate_limit.requests_per_second", 10)
	m.viper.SetDefault("rate_limit.burst", 30)
	m.viper.SetDefault("rate_limit.max_concurrent", 100)
}

// ensureDirectories ensures all required directories exist
func (m *Manager) ensureDirectories() error {
	dirs := []string{
		m.config.Download.SavePath,
		filepath.Dir(m.config.Database.Path),
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("error creating directory %s: %w", dir, err)
		}
	}

	return nil
}

// configureLogger configures the logger based on settings
func (m *Manager) configureLogger() {
	level, err := zerolog.ParseLevel(m.config.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if m.config.Log.Format != "json" {
		m.logger = m.logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

// GetLogger returns the logger instance
func (m *Manager) GetLogger() zerolog.Logger {
	return m.logger
}
