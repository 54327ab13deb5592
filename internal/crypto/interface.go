package crypto

import "github.com/TheMichaelB/logvault/internal/models"

// Provider defines the interface for key hierarchy and record cipher
// operations. All methods are pure functions of their inputs and safe
// for concurrent use.
type Provider interface {
	// NewPasswordRoot runs user credentials through the memory-hard step.
	NewPasswordRoot(username, password, tenantID string) (*RootSecret, error)

	// NewAPIKeyRoot wraps a raw API key as a root secret.
	NewAPIKeyRoot(key []byte) *RootSecret

	// ActiveKeyVersion returns the version used for new encryptions.
	ActiveKeyVersion() int

	// DeriveKey derives a purpose-scoped key at the active version.
	DeriveKey(root *RootSecret, tenantID string, purpose Purpose, context string) ([]byte, error)

	// DeriveKeyVersion derives a key at an explicit version.
	DeriveKeyVersion(root *RootSecret, tenantID string, purpose Purpose, context string, version int) ([]byte, error)

	// Encrypt seals plaintext into an immutable record.
	Encrypt(plaintext, key, associatedData []byte) (*models.EncryptedRecord, error)

	// Decrypt opens a record, verifying integrity first.
	Decrypt(record *models.EncryptedRecord, key []byte) ([]byte, error)
}
