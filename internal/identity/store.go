// Package identity is the verifier-side counterpart of the auth
// protocol: it persists only one-way verification hashes and issues
// signed capability tokens. Nothing in this package can recover a
// password, a root secret, or any encryption key.
package identity

import (
	"context"
	"crypto/sha256"
	"errors"
)

// VerificationHash is the server-held proof of a credential. It is the
// SHA-256 of the client's purpose-separated verifier, never reversible
// to the original secret.
type VerificationHash [sha256.Size]byte

// HashVerifier maps a client verifier to its stored form.
func HashVerifier(verifier []byte) VerificationHash {
	return sha256.Sum256(verifier)
}

// Credential is one stored identity row.
type Credential struct {
	TenantID string
	Username string
	Hash     VerificationHash
	Revoked  bool
}

// Store persists verification hashes. Implementations must return
// ErrCredentialNotFound for unknown rows; the authority collapses that
// with every other mismatch into the generic authentication failure
// before anything reaches a client.
type Store interface {
	// SaveCredential inserts or replaces a credential.
	SaveCredential(ctx context.Context, cred Credential) error

	// Credential loads a credential by tenant and username.
	Credential(ctx context.Context, tenantID, username string) (*Credential, error)

	// Revoke marks a credential revoked without deleting its hash.
	Revoke(ctx context.Context, tenantID, username string) error

	// Close releases resources.
	Close() error
}

// ErrCredentialNotFound stays inside the verifier boundary.
var ErrCredentialNotFound = errors.New("credential not found")
