// Package storage defines the storage collaborator consumed by the
// client facade. Implementations hold only ciphertext and opaque
// blind-index tokens; plaintext and key material never reach this
// boundary.
package storage

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/TheMichaelB/logvault/internal/models"
)

// Store is the storage backend boundary. Token-equality matching for
// search happens here, over opaque tokens, without any key material.
type Store interface {
	// Put persists an encrypted record with its index tokens and returns
	// the assigned record ID.
	Put(ctx context.Context, tenantID, logName string, record *models.EncryptedRecord, tokens []models.SearchToken, token *models.ResourceToken) (string, error)

	// Get returns all encrypted records of a log.
	Get(ctx context.Context, tenantID, logName string, token *models.ResourceToken) ([]models.EncryptedRecord, error)

	// MatchTokens returns records whose index token set contains every
	// query token. Matching is byte equality on opaque values.
	MatchTokens(ctx context.Context, tenantID, logName string, tokens []models.SearchToken, token *models.ResourceToken) ([]models.EncryptedRecord, error)

	// Close releases resources.
	Close() error
}

// TokenVerifier checks a capability token before a store honors a call.
// The local memory store verifies signatures through the identity
// authority; remote stores verify service-side.
type TokenVerifier interface {
	VerifyToken(token *models.ResourceToken, tenantID, resource string) error
}

// Errors
var (
	ErrLogNotFound = errors.New("log not found")
)

// checkToken applies the TTL-and-scope gate every store shares. Expiry
// is checked on every use; there is no grace period.
func checkToken(token *models.ResourceToken, tenantID, resource string, verifier TokenVerifier) error {
	if token == nil {
		return models.ErrAuthenticationFailed
	}
	if token.Expired() {
		return models.ErrAuthExpired
	}
	if token.TenantID != tenantID || token.Resource != resource {
		return models.ErrAuthenticationFailed
	}
	if verifier != nil {
		return verifier.VerifyToken(token, tenantID, resource)
	}
	return nil
}

// newRecordID builds a sortable unique record identifier.
func newRecordID() (string, error) {
	var suffix [6]byte
	if _, err := io.ReadFull(rand.Reader, suffix[:]); err != nil {
		return "", fmt.Errorf("generate record id: %w", err)
	}
	return fmt.Sprintf("%016x-%s", time.Now().UnixNano(), hex.EncodeToString(suffix[:])), nil
}
