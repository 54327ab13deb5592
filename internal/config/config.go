package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// API configuration
	API APIConfig `json:"api" mapstructure:"api"`

	// Authentication configuration
	Auth AuthConfig `json:"auth" mapstructure:"auth"`

	// Crypto parameters
	Crypto CryptoConfig `json:"crypto" mapstructure:"crypto"`

	// Storage collaborator selection
	Storage StorageConfig `json:"storage" mapstructure:"storage"`

	// Logging
	Log LogConfig `json:"log" mapstructure:"log"`
}

// APIConfig for service communication.
type APIConfig struct {
	BaseURL    string        `json:"base_url" mapstructure:"base_url"`
	Timeout    time.Duration `json:"timeout" mapstructure:"timeout"`
	MaxRetries int           `json:"max_retries" mapstructure:"max_retries"`
	UserAgent  string        `json:"user_agent" mapstructure:"user_agent"`
}

// AuthConfig for authentication settings.
type AuthConfig struct {
	TenantID string `json:"tenant_id" mapstructure:"tenant_id"`
	Username string `json:"username,omitempty" mapstructure:"username"`

	// Session TTL requested at login. The verifier may shorten it.
	SessionTTL time.Duration `json:"session_ttl" mapstructure:"session_ttl"`

	// Resource token TTL for capability issuance.
	TokenTTL time.Duration `json:"token_ttl" mapstructure:"token_ttl"`
}

// CryptoConfig for key derivation and record limits.
type CryptoConfig struct {
	// Active key version used for new encryptions. Decryption always
	// follows the version carried by each record, so bumping this value
	// rotates keys without re-encryption.
	KeyVersion int `json:"key_version" mapstructure:"key_version"`

	// Argon2id parameters for password-origin root secrets.
	Argon2Memory  uint32 `json:"argon2_memory" mapstructure:"argon2_memory"`
	Argon2Time    uint32 `json:"argon2_time" mapstructure:"argon2_time"`
	Argon2Threads uint8  `json:"argon2_threads" mapstructure:"argon2_threads"`

	// MinSecretLength below which a password-origin root is rejected.
	MinSecretLength int `json:"min_secret_length" mapstructure:"min_secret_length"`

	// MaxRecordSize bounds plaintext accepted for encryption.
	MaxRecordSize int `json:"max_record_size" mapstructure:"max_record_size"`
}

// StorageConfig selects and parameterizes the storage collaborator.
type StorageConfig struct {
	// Backend is "remote", "s3" or "memory".
	Backend string `json:"backend" mapstructure:"backend"`

	// S3 settings (backend=s3).
	Bucket string `json:"bucket,omitempty" mapstructure:"bucket"`
	Prefix string `json:"prefix,omitempty" mapstructure:"prefix"`

	// IdentityDB is the SQLite path for the local verifier (local mode
	// and tests only; production verification happens service-side).
	IdentityDB string `json:"identity_db,omitempty" mapstructure:"identity_db"`

	// DataDir for local state such as the identity database.
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// LogConfig for logging behavior.
type LogConfig struct {
	Level  string `json:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `json:"format" mapstructure:"format"` // text, json
	File   string `json:"file" mapstructure:"file"`     // Log file path (empty = stdout)
	Color  bool   `json:"color" mapstructure:"color"`   // Enable colored output
}

// DefaultConfig returns config with sensible defaults.
func DefaultConfig() *Config {
	dataDir := ".logvault"

	return &Config{
		API: APIConfig{
			BaseURL:    "https://api.logvault.dev",
			Timeout:    30 * time.Second,
			MaxRetries: 3,
			UserAgent:  "logvault-go/1.0",
		},
		Auth: AuthConfig{
			SessionTTL: 1 * time.Hour,
			TokenTTL:   15 * time.Minute,
		},
		Crypto: CryptoConfig{
			KeyVersion:      1,
			Argon2Memory:    64 * 1024, // 64 MiB
			Argon2Time:      3,
			Argon2Threads:   4,
			MinSecretLength: 10,
			MaxRecordSize:   1024 * 1024, // 1MB
		},
		Storage: StorageConfig{
			Backend:    "remote",
			DataDir:    dataDir,
			IdentityDB: filepath.Join(dataDir, "identity.db"),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			Color:  true,
		},
	}
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}

	if c.API.Timeout <= 0 {
		return errors.New("api.timeout must be positive")
	}

	if c.Crypto.KeyVersion < 1 {
		return errors.New("crypto.key_version must be at least 1")
	}

	if c.Crypto.Argon2Memory < 8*1024 {
		return errors.New("crypto.argon2_memory must be at least 8192 KiB")
	}

	if c.Crypto.Argon2Time < 1 {
		return errors.New("crypto.argon2_time must be at least 1")
	}

	if c.Crypto.MaxRecordSize <= 0 {
		return errors.New("crypto.max_record_size must be positive")
	}

	switch c.Storage.Backend {
	case "remote", "memory":
	case "s3":
		if c.Storage.Bucket == "" {
			return errors.New("storage.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("invalid storage backend: %s", c.Storage.Backend)
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		return fmt.Errorf("invalid log format: %s", c.Log.Format)
	}

	return nil
}

// EnsureDirectories creates required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Storage.DataDir}

	if c.Log.File != "" {
		dirs = append(dirs, filepath.Dir(c.Log.File))
	}

	if c.Storage.IdentityDB != "" {
		dirs = append(dirs, filepath.Dir(c.Storage.IdentityDB))
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return nil
}
