// Package config provides configuration management for the biokey CLI
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Davincible/biokey/internal/validation"
)

// Config represents the main configuration structure
type Config struct {
	Version string        `json:"version"`
	Code    CodeConfig    `json:"code"`
	Key     KeyConfig     `json:"key"`
	Storage StorageConfig `json:"storage"`
	Escrow  EscrowConfig  `json:"escrow"`
	UI      UIConfig      `json:"ui"`
}

// CodeConfig holds the BCH parameters used for new enrollments
type CodeConfig struct {
	N int `json:"n"` // Default: 255
	D int `json:"d"` // Default: 3
}

// KeyConfig controls how extractor keys are turned into cipher keys
type KeyConfig struct {
	Length int    `json:"length"` // 16, 24 or 32
	Method string `json:"method"` // hkdf or pad
}

// StorageConfig contains storage-related settings
type StorageConfig struct {
	Dir string `json:"dir"` // Enrollment record directory
}

// EscrowConfig holds defaults for key escrow shares
type EscrowConfig struct {
	Parts     int `json:"parts"`
	Threshold int `json:"threshold"`
}

// UIConfig contains user interface settings
type UIConfig struct {
	UseColor bool `json:"use_color"`
}

// ConfigManager manages configuration loading and saving
type ConfigManager struct {
	config     *Config
	configPath string
}

// NewConfigManager loads the configuration from the default location,
// writing a default file if none exists.
func NewConfigManager() (*ConfigManager, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}
	return NewConfigManagerAt(configPath)
}

// NewConfigManagerAt loads the configuration from configPath, writing a
// default file if none exists.
func NewConfigManagerAt(configPath string) (*ConfigManager, error) {
	cm := &ConfigManager{configPath: configPath}

	if err := cm.LoadConfig(); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		cm.config = DefaultConfig()
		if err := cm.SaveConfig(); err != nil {
			return nil, fmt.Errorf("failed to save default config: %w", err)
		}
	}

	return cm, nil
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version: "1.0.0",
		Code: CodeConfig{
			N: 255,
			D: 3,
		},
		Key: KeyConfig{
			Length: 32,
			Method: "hkdf",
		},
		Storage: StorageConfig{
			Dir: "~/.biokey/enrollments",
		},
		Escrow: EscrowConfig{
			Parts:     3,
			Threshold: 2,
		},
		UI: UIConfig{
			UseColor: true,
		},
	}
}

// LoadConfig loads the configuration from disk. Fields missing from the
// file keep their default values.
func (cm *ConfigManager) LoadConfig() error {
	data, err := os.ReadFile(cm.configPath)
	if err != nil {
		return err
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", cm.configPath, err)
	}

	cm.config = config
	return nil
}

// SaveConfig saves the configuration to disk
func (cm *ConfigManager) SaveConfig() error {
	configDir := filepath.Dir(cm.configPath)
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cm.config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(cm.configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// GetConfig returns the current configuration
func (cm *ConfigManager) GetConfig() *Config {
	return cm.config
}

// SetConfig updates the configuration
func (cm *ConfigManager) SetConfig(config *Config) error {
	if err := config.Validate(); err != nil {
		return err
	}
	cm.config = config
	return nil
}

// Path returns the file the configuration is read from
func (cm *ConfigManager) Path() string {
	return cm.configPath
}

// Validate checks every section against the same rules the CLI flags use
func (c *Config) Validate() error {
	if err := validation.ValidateCodeParams(c.Code.N, c.Code.D); err != nil {
		return fmt.Errorf("code: %w", err)
	}
	if err := validation.ValidateKeyLength(c.Key.Length); err != nil {
		return fmt.Errorf("key: %w", err)
	}
	if err := validation.ValidateKeyMethod(c.Key.Method); err != nil {
		return fmt.Errorf("key: %w", err)
	}
	if err := validation.ValidateEscrowParams(c.Escrow.Parts, c.Escrow.Threshold); err != nil {
		return fmt.Errorf("escrow: %w", err)
	}
	if strings.TrimSpace(c.Storage.Dir) == "" {
		return fmt.Errorf("storage: dir cannot be empty")
	}
	return nil
}

// StoreDir returns the storage directory with a leading ~ expanded
func (c *Config) StoreDir() (string, error) {
	return ExpandHome(c.Storage.Dir)
}

// ExpandHome replaces a leading ~ with the user's home directory
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// getConfigPath returns the configuration file path
func getConfigPath() (string, error) {
	// Check for custom config path
	if customPath := os.Getenv("BIOKEY_CONFIG"); customPath != "" {
		return customPath, nil
	}

	// Use XDG_CONFIG_HOME if set
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "biokey", "config.json"), nil
	}

	// Default to ~/.config/biokey/config.json
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", "biokey", "config.json"), nil
}
