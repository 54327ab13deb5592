package crypto_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/logvault/internal/config"
	"github.com/TheMichaelB/logvault/internal/crypto"
	"github.com/TheMichaelB/logvault/internal/models"
)

func testConfig() config.CryptoConfig {
	return config.CryptoConfig{
		KeyVersion:      1,
		Argon2Memory:    8 * 1024,
		Argon2Time:      1,
		Argon2Threads:   1,
		MinSecretLength: 8,
		MaxRecordSize:   1024 * 1024,
	}
}

func newProvider(t *testing.T) *crypto.KeyProvider {
	t.Helper()
	provider, err := crypto.NewProvider(testConfig())
	require.NoError(t, err)
	return provider
}

func TestDeriveKey_Deterministic(t *testing.T) {
	provider := newProvider(t)
	root := provider.NewAPIKeyRoot([]byte("S1"))

	key1, err := provider.DeriveKey(root, "t1", crypto.PurposeLogEnc, "app")
	require.NoError(t, err)
	assert.Len(t, key1, crypto.KeySize)

	key2, err := provider.DeriveKey(root, "t1", crypto.PurposeLogEnc, "app")
	require.NoError(t, err)
	assert.Equal(t, key1, key2)
}

func TestDeriveKey_DomainSeparation(t *testing.T) {
	provider := newProvider(t)
	root := provider.NewAPIKeyRoot([]byte("S1"))

	tests := []struct {
		name     string
		purposeA crypto.Purpose
		ctxA     string
		purposeB crypto.Purpose
		ctxB     string
	}{
		{"enc vs search same log", crypto.PurposeLogEnc, "app", crypto.PurposeLogSearch, "app"},
		{"same purpose different log", crypto.PurposeLogEnc, "app", crypto.PurposeLogEnc, "audit"},
		{"master vs auth", crypto.PurposeMasterEnc, "", crypto.PurposeAuth, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keyA, err := provider.DeriveKey(root, "t1", tt.purposeA, tt.ctxA)
			require.NoError(t, err)
			keyB, err := provider.DeriveKey(root, "t1", tt.purposeB, tt.ctxB)
			require.NoError(t, err)
			assert.NotEqual(t, keyA, keyB)
		})
	}
}

func TestDeriveKey_TenantSeparation(t *testing.T) {
	provider := newProvider(t)
	root := provider.NewAPIKeyRoot([]byte("S1"))

	key1, err := provider.DeriveKey(root, "t1", crypto.PurposeLogEnc, "app")
	require.NoError(t, err)
	key2, err := provider.DeriveKey(root, "t2", crypto.PurposeLogEnc, "app")
	require.NoError(t, err)

	assert.NotEqual(t, key1, key2)
}

func TestDeriveKeyVersion_Separation(t *testing.T) {
	provider := newProvider(t)
	root := provider.NewAPIKeyRoot([]byte("S1"))

	key1, err := provider.DeriveKeyVersion(root, "t1", crypto.PurposeLogEnc, "app", 1)
	require.NoError(t, err)
	key2, err := provider.DeriveKeyVersion(root, "t1", crypto.PurposeLogEnc, "app", 2)
	require.NoError(t, err)

	assert.NotEqual(t, key1, key2)

	// Active version follows config.
	active, err := provider.DeriveKey(root, "t1", crypto.PurposeLogEnc, "app")
	require.NoError(t, err)
	assert.Equal(t, key1, active)
	assert.Equal(t, 1, provider.ActiveKeyVersion())
}

func TestDeriveKey_InvalidPurpose(t *testing.T) {
	provider := newProvider(t)
	root := provider.NewAPIKeyRoot([]byte("S1"))

	tests := []struct {
		name    string
		purpose crypto.Purpose
		context string
	}{
		{"unknown purpose", crypto.Purpose(99), ""},
		{"zero purpose", crypto.Purpose(0), "app"},
		{"log-enc without context", crypto.PurposeLogEnc, ""},
		{"log-search without context", crypto.PurposeLogSearch, ""},
		{"auth with context", crypto.PurposeAuth, "app"},
		{"master-enc with context", crypto.PurposeMasterEnc, "app"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := provider.DeriveKey(root, "t1", tt.purpose, tt.context)
			assert.ErrorIs(t, err, models.ErrInvalidPurpose)
		})
	}
}

func TestNewPasswordRoot(t *testing.T) {
	provider := newProvider(t)

	t.Run("deterministic", func(t *testing.T) {
		root1, err := provider.NewPasswordRoot("alice", "correct horse battery", "t1")
		require.NoError(t, err)
		root2, err := provider.NewPasswordRoot("alice", "correct horse battery", "t1")
		require.NoError(t, err)

		key1, err := provider.DeriveKey(root1, "t1", crypto.PurposeAuth, "")
		require.NoError(t, err)
		key2, err := provider.DeriveKey(root2, "t1", crypto.PurposeAuth, "")
		require.NoError(t, err)
		assert.Equal(t, key1, key2)
	})

	t.Run("tenant scoped salt", func(t *testing.T) {
		root1, err := provider.NewPasswordRoot("alice", "correct horse battery", "t1")
		require.NoError(t, err)
		root2, err := provider.NewPasswordRoot("alice", "correct horse battery", "t2")
		require.NoError(t, err)

		key1, err := provider.DeriveKey(root1, "t1", crypto.PurposeAuth, "")
		require.NoError(t, err)
		key2, err := provider.DeriveKey(root2, "t2", crypto.PurposeAuth, "")
		require.NoError(t, err)
		assert.NotEqual(t, key1, key2)
	})

	t.Run("weak secret rejected", func(t *testing.T) {
		_, err := provider.NewPasswordRoot("alice", "short", "t1")
		assert.ErrorIs(t, err, models.ErrWeakSecret)
	})

	t.Run("origin recorded", func(t *testing.T) {
		root, err := provider.NewPasswordRoot("alice", "correct horse battery", "t1")
		require.NoError(t, err)
		assert.Equal(t, crypto.OriginPassword, root.Origin())

		apiRoot := provider.NewAPIKeyRoot([]byte("raw-api-key-material"))
		assert.Equal(t, crypto.OriginAPIKey, apiRoot.Origin())
	})
}

func TestRootSecret_Wipe(t *testing.T) {
	provider := newProvider(t)
	root := provider.NewAPIKeyRoot([]byte("S1"))
	root.Wipe()

	_, err := provider.DeriveKey(root, "t1", crypto.PurposeLogEnc, "app")
	assert.Error(t, err)
}
