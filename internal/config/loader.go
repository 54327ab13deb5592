package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader handles configuration loading from multiple sources: defaults,
// a JSON config file, then LOGVAULT_* environment variables.
type Loader struct {
	configPath string
	envPrefix  string
}

// NewLoader creates a config loader.
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
		envPrefix:  "LOGVAULT",
	}
}

// Load reads configuration from file and environment.
func (l *Loader) Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("json")

	// Start with defaults
	cfg := DefaultConfig()
	l.setDefaults(v, cfg)

	// Load from file if present
	if l.configPath != "" {
		v.SetConfigFile(l.configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	} else {
		for _, path := range l.defaultPaths() {
			if _, err := os.Stat(path); err == nil {
				v.SetConfigFile(path)
				if err := v.ReadInConfig(); err != nil {
					return nil, fmt.Errorf("load config file %s: %w", path, err)
				}
				break
			}
		}
	}

	// Environment overrides: LOGVAULT_API_BASE_URL etc.
	v.SetEnvPrefix(l.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Validate final config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// setDefaults seeds viper so env-only keys resolve without a file.
func (l *Loader) setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("api.base_url", cfg.API.BaseURL)
	v.SetDefault("api.timeout", cfg.API.Timeout)
	v.SetDefault("api.max_retries", cfg.API.MaxRetries)
	v.SetDefault("api.user_agent", cfg.API.UserAgent)
	v.SetDefault("auth.session_ttl", cfg.Auth.SessionTTL)
	v.SetDefault("auth.token_ttl", cfg.Auth.TokenTTL)
	v.SetDefault("crypto.key_version", cfg.Crypto.KeyVersion)
	v.SetDefault("crypto.argon2_memory", cfg.Crypto.Argon2Memory)
	v.SetDefault("crypto.argon2_time", cfg.Crypto.Argon2Time)
	v.SetDefault("crypto.argon2_threads", cfg.Crypto.Argon2Threads)
	v.SetDefault("crypto.min_secret_length", cfg.Crypto.MinSecretLength)
	v.SetDefault("crypto.max_record_size", cfg.Crypto.MaxRecordSize)
	v.SetDefault("storage.backend", cfg.Storage.Backend)
	v.SetDefault("storage.data_dir", cfg.Storage.DataDir)
	v.SetDefault("storage.identity_db", cfg.Storage.IdentityDB)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.color", cfg.Log.Color)
}

// defaultPaths returns default config file locations.
func (l *Loader) defaultPaths() []string {
	paths := []string{
		"logvault.json",
		".logvault.json",
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(homeDir, ".config", "logvault", "config.json"),
			filepath.Join(homeDir, ".logvault", "config.json"),
		)
	}

	return paths
}

// Save writes the config to a file with restricted permissions.
func Save(cfg *Config, path string) error {
	if cfg == nil {
		return errors.New("nil config")
	}

	v := viper.New()
	v.SetConfigType("json")
	(&Loader{}).setDefaults(v, cfg)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return os.Chmod(path, 0600)
}
