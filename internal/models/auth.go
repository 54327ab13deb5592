package models

import (
	"crypto/hmac"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// AuthState tracks the protocol state machine. Any verification failure
// returns the session to StateUnauthenticated.
type AuthState int

const (
	StateUnauthenticated AuthState = iota
	StateChallengeIssued
	StateAuthenticated
	StateExpired
)

func (s AuthState) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateChallengeIssued:
		return "challenge_issued"
	case StateAuthenticated:
		return "authenticated"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// ChallengeRequest asks the verifier to open an authentication attempt.
type ChallengeRequest struct {
	TenantID string `json:"tenant_id"`
	Username string `json:"username,omitempty"`
}

// Challenge is the verifier's response: an opaque one-shot value the
// client echoes back with its verification value.
type Challenge struct {
	ID        string    `json:"id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// VerifyRequest carries the client's verification value. The value is
// purpose-separated key material usable only for authentication; it can
// never be walked back to the password or sideways to encryption keys.
type VerifyRequest struct {
	TenantID    string `json:"tenant_id"`
	Username    string `json:"username,omitempty"`
	ChallengeID string `json:"challenge_id"`
	Verifier    []byte `json:"verifier"`
}

// Session is the explicit session-context value created at successful
// authentication. It is passed to every subsequent call; there is no
// ambient or global session state.
type Session struct {
	TenantID  string    `json:"tenant_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	State     AuthState `json:"state"`
}

// Valid reports whether the session is usable for a key-scoped call.
func (s *Session) Valid() bool {
	if s == nil || s.State != StateAuthenticated {
		return false
	}
	return time.Now().Before(s.ExpiresAt)
}

// Expire moves the session to its terminal state.
func (s *Session) Expire() {
	s.State = StateExpired
	s.Token = ""
}

// ResourceToken is a signed, tenant-and-resource-scoped, TTL-bound
// capability. It is verified by signature and expiry, never by key
// possession, and carries no key material.
type ResourceToken struct {
	TenantID  string    `json:"tenant_id"`
	Resource  string    `json:"resource"`
	ExpiresAt time.Time `json:"expires_at"`
	Signature []byte    `json:"signature"`
}

// SigningPayload returns the canonical bytes covered by the signature.
func (t *ResourceToken) SigningPayload() []byte {
	return []byte(fmt.Sprintf("%s|%s|%d", t.TenantID, t.Resource, t.ExpiresAt.Unix()))
}

// Expired reports whether the token TTL has elapsed.
func (t *ResourceToken) Expired() bool {
	return time.Now().After(t.ExpiresAt)
}

// Matches verifies the token signature against a candidate using a
// constant-time comparison.
func (t *ResourceToken) Matches(signature []byte) bool {
	return hmac.Equal(t.Signature, signature)
}

// Encode serializes the token for transport headers.
func (t *ResourceToken) Encode() (string, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("marshal token: %w", err)
	}
	return base64.URLEncoding.EncodeToString(data), nil
}

// DecodeResourceToken parses a token from its transport form.
func DecodeResourceToken(s string) (*ResourceToken, error) {
	data, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	var t ResourceToken
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	return &t, nil
}
