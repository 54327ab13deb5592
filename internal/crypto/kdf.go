package crypto

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"

	"github.com/TheMichaelB/logvault/internal/config"
	"github.com/TheMichaelB/logvault/internal/models"
)

const (
	// Key sizes
	KeySize   = 32 // AES-256
	NonceSize = 12 // GCM standard
	TagSize   = 16 // GCM tag
)

// hkdfSalt fixes the extraction salt for the whole hierarchy.
var hkdfSalt = []byte("logvault/hkdf/v1")

// RootOrigin records how a root secret entered the hierarchy.
type RootOrigin int

const (
	// OriginPassword marks a root derived from user credentials via the
	// memory-hard step.
	OriginPassword RootOrigin = iota + 1

	// OriginAPIKey marks a raw high-entropy key used as-is.
	OriginAPIKey
)

// RootSecret is the top of the key hierarchy. It is held in memory only,
// never serialized, and wiped when the owning call scope ends.
type RootSecret struct {
	material []byte
	origin   RootOrigin
}

// Origin reports how the root entered the hierarchy.
func (r *RootSecret) Origin() RootOrigin {
	return r.origin
}

// Wipe zeroes the root material. The root is unusable afterwards.
func (r *RootSecret) Wipe() {
	Wipe(r.material)
	r.material = nil
}

// NewPasswordRoot runs user credentials through Argon2id before they
// enter the hierarchy. The tenant-scoped salt keeps equal passwords in
// different tenants from producing equal roots.
func (p *KeyProvider) NewPasswordRoot(username, password, tenantID string) (*RootSecret, error) {
	if len(password) < p.cfg.MinSecretLength {
		return nil, models.ErrWeakSecret
	}

	salt := sha256.Sum256(derivationInfo(tenantID, PurposeAuth, "", 0))

	secret := []byte(username + ":" + password)
	defer Wipe(secret)

	material := argon2.IDKey(
		secret,
		salt[:],
		p.cfg.Argon2Time,
		p.cfg.Argon2Memory,
		p.cfg.Argon2Threads,
		KeySize,
	)

	return &RootSecret{material: material, origin: OriginPassword}, nil
}

// NewAPIKeyRoot wraps a raw API key as a root secret. The key is assumed
// high-entropy; no memory-hard step is applied.
func (p *KeyProvider) NewAPIKeyRoot(key []byte) *RootSecret {
	material := make([]byte, len(key))
	copy(material, key)
	return &RootSecret{material: material, origin: OriginAPIKey}
}

// KeyProvider implements the key hierarchy and the record cipher.
type KeyProvider struct {
	cfg    config.CryptoConfig
	nonces *nonceSource
}

// NewProvider creates a crypto provider.
func NewProvider(cfg config.CryptoConfig) (*KeyProvider, error) {
	nonces, err := newNonceSource()
	if err != nil {
		return nil, fmt.Errorf("init nonce source: %w", err)
	}

	return &KeyProvider{
		cfg:    cfg,
		nonces: nonces,
	}, nil
}

// ActiveKeyVersion returns the version used for new encryptions.
func (p *KeyProvider) ActiveKeyVersion() int {
	return p.cfg.KeyVersion
}

// DeriveKey derives a purpose-scoped key at the active version. The
// result is a pure function of its inputs; callers must wipe it before
// their scope ends.
func (p *KeyProvider) DeriveKey(root *RootSecret, tenantID string, purpose Purpose, context string) ([]byte, error) {
	return p.DeriveKeyVersion(root, tenantID, purpose, context, p.cfg.KeyVersion)
}

// DeriveKeyVersion derives a key at an explicit version, used when
// decrypting records written before a rotation.
func (p *KeyProvider) DeriveKeyVersion(root *RootSecret, tenantID string, purpose Purpose, context string, version int) ([]byte, error) {
	if err := purpose.validate(context); err != nil {
		return nil, err
	}

	if root == nil || len(root.material) == 0 {
		return nil, fmt.Errorf("empty root secret")
	}

	info := derivationInfo(tenantID, purpose, context, version)
	reader := hkdf.New(sha256.New, root.material, hkdfSalt, info)

	key := make([]byte, KeySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		Wipe(key)
		return nil, fmt.Errorf("derive key: %w", err)
	}

	return key, nil
}
