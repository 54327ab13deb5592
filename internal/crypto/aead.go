package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"

	"github.com/TheMichaelB/logvault/internal/models"
)

// Errors
var (
	ErrInvalidKey        = errors.New("invalid key size")
	ErrInvalidCiphertext = errors.New("invalid ciphertext format")
)

// Encrypt seals plaintext under key with AES-256-GCM and the provider's
// nonce source. The associated data is authenticated but travels in the
// clear; it binds the record to its tenant and log scope.
func (p *KeyProvider) Encrypt(plaintext, key, associatedData []byte) (*models.EncryptedRecord, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}

	if len(plaintext) > p.cfg.MaxRecordSize {
		return nil, models.ErrRecordTooLarge
	}

	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := p.nonces.Next()

	sealed := aead.Seal(nil, nonce, plaintext, associatedData)

	// Split tag off the end so the wire format carries it explicitly.
	tag := sealed[len(sealed)-TagSize:]
	ciphertext := sealed[:len(sealed)-TagSize]

	aad := make([]byte, len(associatedData))
	copy(aad, associatedData)

	return &models.EncryptedRecord{
		Algorithm:      models.AlgorithmAESGCM,
		KeyVersion:     p.cfg.KeyVersion,
		Nonce:          nonce,
		Ciphertext:     ciphertext,
		Tag:            tag,
		AssociatedData: aad,
	}, nil
}

// Decrypt opens a record. Integrity is verified before any plaintext is
// exposed; a wrong key and a tampered record fail identically with
// models.ErrIntegrity so the caller cannot be used as an oracle. The
// returned plaintext is owned by the caller, who must wipe it after use.
func (p *KeyProvider) Decrypt(record *models.EncryptedRecord, key []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}

	if record == nil || record.Algorithm != models.AlgorithmAESGCM {
		return nil, ErrInvalidCiphertext
	}

	if len(record.Nonce) != NonceSize || len(record.Tag) != TagSize {
		return nil, ErrInvalidCiphertext
	}

	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	sealed := make([]byte, 0, len(record.Ciphertext)+TagSize)
	sealed = append(sealed, record.Ciphertext...)
	sealed = append(sealed, record.Tag...)

	plaintext, err := aead.Open(nil, record.Nonce, sealed, record.AssociatedData)
	if err != nil {
		// Wrong key and tampered data are indistinguishable here.
		return nil, models.ErrIntegrity
	}

	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}

	return aead, nil
}
