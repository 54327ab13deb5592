package identity

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/TheMichaelB/logvault/internal/events"
	"github.com/TheMichaelB/logvault/internal/models"
)

const challengeTTL = 2 * time.Minute

// Authority verifies credentials and issues signed, TTL-bound tokens.
// It holds a signing key of its own and stored verification hashes;
// neither is sufficient to derive any client key.
type Authority struct {
	store      Store
	signingKey []byte
	sessionTTL time.Duration
	tokenTTL   time.Duration
	logger     *events.Logger

	mu         sync.Mutex
	challenges map[string]time.Time
}

// NewAuthority creates an authority with a fresh random signing key.
func NewAuthority(store Store, sessionTTL, tokenTTL time.Duration, logger *events.Logger) (*Authority, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}

	return &Authority{
		store:      store,
		signingKey: key,
		sessionTTL: sessionTTL,
		tokenTTL:   tokenTTL,
		logger:     logger.WithField("component", "authority"),
		challenges: make(map[string]time.Time),
	}, nil
}

// Register stores the verification hash for a credential. Called at
// registration time, out of band of the auth protocol.
func (a *Authority) Register(ctx context.Context, tenantID, username string, verifier []byte) error {
	return a.store.SaveCredential(ctx, Credential{
		TenantID: tenantID,
		Username: username,
		Hash:     HashVerifier(verifier),
	})
}

// IssueChallenge opens an authentication attempt. Challenges are
// one-shot and expire quickly.
func (a *Authority) IssueChallenge(req models.ChallengeRequest) (*models.Challenge, error) {
	var raw [16]byte
	if _, err := io.ReadFull(rand.Reader, raw[:]); err != nil {
		return nil, fmt.Errorf("generate challenge: %w", err)
	}
	id := hex.EncodeToString(raw[:])
	expires := time.Now().Add(challengeTTL)

	a.mu.Lock()
	a.challenges[id] = expires
	a.pruneLocked()
	a.mu.Unlock()

	// Issued regardless of whether the tenant or user exists, so the
	// challenge path cannot be used for enumeration.
	return &models.Challenge{ID: id, ExpiresAt: expires}, nil
}

// Verify checks a verification value against the stored hash and, on
// success, returns an authenticated session. Every mismatch, unknown
// user, revoked credential, expired or replayed challenge included,
// yields the same generic failure.
func (a *Authority) Verify(ctx context.Context, req models.VerifyRequest) (*models.Session, error) {
	if !a.consumeChallenge(req.ChallengeID) {
		return nil, models.ErrAuthenticationFailed
	}

	cred, err := a.store.Credential(ctx, req.TenantID, req.Username)
	if err != nil {
		a.logger.WithField("tenant_id", req.TenantID).Debug("Verification failed")
		return nil, models.ErrAuthenticationFailed
	}

	candidate := HashVerifier(req.Verifier)
	if subtle.ConstantTimeCompare(candidate[:], cred.Hash[:]) != 1 || cred.Revoked {
		a.logger.WithField("tenant_id", req.TenantID).Debug("Verification failed")
		return nil, models.ErrAuthenticationFailed
	}

	expires := time.Now().Add(a.sessionTTL)
	return &models.Session{
		TenantID:  req.TenantID,
		Token:     a.signSession(req.TenantID, expires),
		ExpiresAt: expires,
		State:     models.StateAuthenticated,
	}, nil
}

// IssueResourceToken signs a tenant-and-resource-scoped capability.
func (a *Authority) IssueResourceToken(tenantID, resource string) *models.ResourceToken {
	token := &models.ResourceToken{
		TenantID:  tenantID,
		Resource:  resource,
		ExpiresAt: time.Now().Add(a.tokenTTL),
	}
	token.Signature = a.sign(token.SigningPayload())
	return token
}

// VerifyToken checks signature, scope and TTL of a capability token.
// Implements the storage.TokenVerifier contract.
func (a *Authority) VerifyToken(token *models.ResourceToken, tenantID, resource string) error {
	if token == nil || token.TenantID != tenantID || token.Resource != resource {
		return models.ErrAuthenticationFailed
	}
	if token.Expired() {
		return models.ErrAuthExpired
	}
	if !token.Matches(a.sign(token.SigningPayload())) {
		return models.ErrAuthenticationFailed
	}
	return nil
}

// VerifySession checks a session token signature and expiry.
func (a *Authority) VerifySession(session *models.Session) error {
	if session == nil || session.Token == "" {
		return models.ErrAuthenticationFailed
	}
	if !session.Valid() {
		return models.ErrAuthExpired
	}
	if session.Token != a.signSession(session.TenantID, session.ExpiresAt) {
		return models.ErrAuthenticationFailed
	}
	return nil
}

func (a *Authority) sign(payload []byte) []byte {
	mac := hmac.New(sha256.New, a.signingKey)
	mac.Write(payload)
	return mac.Sum(nil)
}

func (a *Authority) signSession(tenantID string, expires time.Time) string {
	return hex.EncodeToString(a.sign([]byte(fmt.Sprintf("session|%s|%d", tenantID, expires.Unix()))))
}

// consumeChallenge removes a challenge, reporting whether it was live.
func (a *Authority) consumeChallenge(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	expires, ok := a.challenges[id]
	if !ok {
		return false
	}
	delete(a.challenges, id)
	return time.Now().Before(expires)
}

// pruneLocked drops expired challenges. Caller holds the mutex.
func (a *Authority) pruneLocked() {
	now := time.Now()
	for id, expires := range a.challenges {
		if now.After(expires) {
			delete(a.challenges, id)
		}
	}
}
