package crypto_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/logvault/internal/crypto"
	"github.com/TheMichaelB/logvault/internal/models"
)

func encKey(t *testing.T, provider *crypto.KeyProvider, tenant, log string) []byte {
	t.Helper()
	root := provider.NewAPIKeyRoot([]byte("S1"))
	defer root.Wipe()

	key, err := provider.DeriveKey(root, tenant, crypto.PurposeLogEnc, log)
	require.NoError(t, err)
	return key
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	provider := newProvider(t)
	key := encKey(t, provider, "t1", "app")
	aad := models.AssociatedData("t1", "app")

	plaintext := []byte(`{"msg":"hi"}`)
	record, err := provider.Encrypt(plaintext, key, aad)
	require.NoError(t, err)

	assert.Equal(t, models.AlgorithmAESGCM, record.Algorithm)
	assert.Equal(t, 1, record.KeyVersion)
	assert.Len(t, record.Nonce, crypto.NonceSize)
	assert.Len(t, record.Tag, crypto.TagSize)
	assert.Equal(t, aad, record.AssociatedData)
	assert.NotEqual(t, plaintext, record.Ciphertext)

	decrypted, err := provider.Decrypt(record, key)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestEncrypt_EmptyPlaintext(t *testing.T) {
	provider := newProvider(t)
	key := encKey(t, provider, "t1", "app")

	record, err := provider.Encrypt(nil, key, models.AssociatedData("t1", "app"))
	require.NoError(t, err)

	decrypted, err := provider.Decrypt(record, key)
	require.NoError(t, err)
	assert.Empty(t, decrypted)
}

func TestDecrypt_Tampered(t *testing.T) {
	provider := newProvider(t)
	key := encKey(t, provider, "t1", "app")

	tests := []struct {
		name   string
		mutate func(*models.EncryptedRecord)
	}{
		{"ciphertext bit flip", func(r *models.EncryptedRecord) { r.Ciphertext[0] ^= 0x01 }},
		{"tag bit flip", func(r *models.EncryptedRecord) { r.Tag[0] ^= 0x01 }},
		{"nonce bit flip", func(r *models.EncryptedRecord) { r.Nonce[0] ^= 0x01 }},
		{"associated data swap", func(r *models.EncryptedRecord) {
			r.AssociatedData = models.AssociatedData("t2", "app")
		}},
		{"truncated ciphertext", func(r *models.EncryptedRecord) {
			if len(r.Ciphertext) > 0 {
				r.Ciphertext = r.Ciphertext[:len(r.Ciphertext)-1]
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record, err := provider.Encrypt([]byte("payload under test"), key, models.AssociatedData("t1", "app"))
			require.NoError(t, err)

			tt.mutate(record)

			plaintext, err := provider.Decrypt(record, key)
			assert.ErrorIs(t, err, models.ErrIntegrity)
			assert.Nil(t, plaintext)
		})
	}
}

func TestDecrypt_WrongKey(t *testing.T) {
	provider := newProvider(t)
	key := encKey(t, provider, "t1", "app")

	record, err := provider.Encrypt([]byte("secret"), key, models.AssociatedData("t1", "app"))
	require.NoError(t, err)

	otherRoot := provider.NewAPIKeyRoot([]byte("S2"))
	defer otherRoot.Wipe()
	wrongKey, err := provider.DeriveKey(otherRoot, "t1", crypto.PurposeLogEnc, "app")
	require.NoError(t, err)

	plaintext, err := provider.Decrypt(record, wrongKey)
	assert.ErrorIs(t, err, models.ErrIntegrity)
	assert.Nil(t, plaintext)
}

func TestDecrypt_MalformedRecord(t *testing.T) {
	provider := newProvider(t)
	key := encKey(t, provider, "t1", "app")

	record, err := provider.Encrypt([]byte("x"), key, nil)
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*models.EncryptedRecord)
	}{
		{"unknown algorithm", func(r *models.EncryptedRecord) { r.Algorithm = "XSALSA20" }},
		{"short nonce", func(r *models.EncryptedRecord) { r.Nonce = r.Nonce[:4] }},
		{"short tag", func(r *models.EncryptedRecord) { r.Tag = r.Tag[:8] }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bad := *record
			bad.Nonce = append([]byte(nil), record.Nonce...)
			bad.Tag = append([]byte(nil), record.Tag...)
			tt.mutate(&bad)

			_, err := provider.Decrypt(&bad, key)
			assert.ErrorIs(t, err, crypto.ErrInvalidCiphertext)
		})
	}

	t.Run("nil record", func(t *testing.T) {
		_, err := provider.Decrypt(nil, key)
		assert.ErrorIs(t, err, crypto.ErrInvalidCiphertext)
	})
}

func TestEncrypt_KeySize(t *testing.T) {
	provider := newProvider(t)

	_, err := provider.Encrypt([]byte("x"), make([]byte, 16), nil)
	assert.ErrorIs(t, err, crypto.ErrInvalidKey)

	_, err = provider.Decrypt(&models.EncryptedRecord{}, make([]byte, 16))
	assert.ErrorIs(t, err, crypto.ErrInvalidKey)
}

func TestEncrypt_RecordTooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRecordSize = 64
	provider, err := crypto.NewProvider(cfg)
	require.NoError(t, err)

	key := encKey(t, provider, "t1", "app")

	_, err = provider.Encrypt(bytes.Repeat([]byte("a"), 65), key, nil)
	assert.ErrorIs(t, err, models.ErrRecordTooLarge)

	_, err = provider.Encrypt(bytes.Repeat([]byte("a"), 64), key, nil)
	assert.NoError(t, err)
}

func TestEncrypt_NonceUniqueness(t *testing.T) {
	provider := newProvider(t)
	key := encKey(t, provider, "t1", "app")

	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		record, err := provider.Encrypt([]byte("same plaintext"), key, nil)
		require.NoError(t, err)

		nonce := string(record.Nonce)
		_, dup := seen[nonce]
		require.False(t, dup, "nonce reused at iteration %d", i)
		seen[nonce] = struct{}{}
	}
}
