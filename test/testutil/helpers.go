// Package testutil provides shared fixtures for logvault tests.
package testutil

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/TheMichaelB/logvault/internal/client"
	"github.com/TheMichaelB/logvault/internal/config"
	"github.com/TheMichaelB/logvault/internal/events"
)

// CryptoConfig returns derivation parameters tuned for test speed while
// staying above the validation floor.
func CryptoConfig() config.CryptoConfig {
	return config.CryptoConfig{
		KeyVersion:      1,
		Argon2Memory:    8 * 1024,
		Argon2Time:      1,
		Argon2Threads:   1,
		MinSecretLength: 8,
		MaxRecordSize:   1024 * 1024,
	}
}

// Logger returns a quiet logger for tests.
func Logger() *events.Logger {
	return events.NewTestLogger(events.ErrorLevel, "text", io.Discard)
}

// Config returns a full config using the memory backend and a temp
// identity database.
func Config(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Crypto = CryptoConfig()
	cfg.Storage.Backend = "memory"
	cfg.Storage.DataDir = t.TempDir()
	cfg.Storage.IdentityDB = filepath.Join(cfg.Storage.DataDir, "identity.db")
	cfg.Auth.SessionTTL = time.Hour
	cfg.Auth.TokenTTL = time.Minute

	return cfg
}

// LocalClient builds a client wired entirely in-process: loopback
// transport, memory store, SQLite identity store in a temp dir.
func LocalClient(t *testing.T) *client.Client {
	t.Helper()

	c, err := client.New(Config(t), Logger())
	if err != nil {
		t.Fatalf("create local client: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	return c
}
