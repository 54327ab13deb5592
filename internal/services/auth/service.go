// Package auth implements the client side of the credential-verification
// protocol. The verifying side only ever receives a purpose-separated
// verification value; passwords, root secrets and encryption keys never
// cross the transport.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/TheMichaelB/logvault/internal/config"
	"github.com/TheMichaelB/logvault/internal/crypto"
	"github.com/TheMichaelB/logvault/internal/events"
	"github.com/TheMichaelB/logvault/internal/models"
	"github.com/TheMichaelB/logvault/internal/transport"
)

// Service handles authentication operations.
type Service struct {
	transport transport.Transport
	crypto    crypto.Provider
	cfg       config.AuthConfig
	logger    *events.Logger
}

// NewService creates an auth service.
func NewService(transport transport.Transport, provider crypto.Provider, cfg config.AuthConfig, logger *events.Logger) *Service {
	return &Service{
		transport: transport,
		crypto:    provider,
		cfg:       cfg,
		logger:    logger.WithField("service", "auth"),
	}
}

// Login runs the password flow: challenge, memory-hard derivation,
// verification value, session. The password and every intermediate key
// are wiped before return on all paths.
func (s *Service) Login(ctx context.Context, tenantID, username, password string) (*models.Session, error) {
	if tenantID == "" || username == "" || password == "" {
		return nil, models.ErrAuthenticationFailed
	}

	root, err := s.crypto.NewPasswordRoot(username, password, tenantID)
	if err != nil {
		// ErrWeakSecret surfaces as itself; it is a local policy check,
		// not a verifier response.
		return nil, err
	}
	defer root.Wipe()

	s.logger.WithField("tenant_id", tenantID).Info("Logging in")

	return s.verify(ctx, root, tenantID, username)
}

// LoginAPIKey runs the API-key flow: the key is the root secret and
// enters the hierarchy directly.
func (s *Service) LoginAPIKey(ctx context.Context, tenantID, keyID string, apiKey []byte) (*models.Session, error) {
	if tenantID == "" || keyID == "" || len(apiKey) == 0 {
		return nil, models.ErrAuthenticationFailed
	}

	root := s.crypto.NewAPIKeyRoot(apiKey)
	defer root.Wipe()

	s.logger.WithField("tenant_id", tenantID).Info("Logging in with API key")

	return s.verify(ctx, root, tenantID, keyID)
}

// verify executes the challenge round trip shared by both flows.
func (s *Service) verify(ctx context.Context, root *crypto.RootSecret, tenantID, username string) (*models.Session, error) {
	resp, err := s.transport.PostJSON(ctx, "/auth/challenge", models.ChallengeRequest{
		TenantID: tenantID,
		Username: username,
	})
	if err != nil {
		return nil, s.mapError(err)
	}

	challengeID, _ := resp["challenge_id"].(string)
	if challengeID == "" {
		return nil, models.ErrAuthenticationFailed
	}

	verifier, err := s.crypto.DeriveKey(root, tenantID, crypto.PurposeAuth, "")
	if err != nil {
		return nil, err
	}
	defer crypto.Wipe(verifier)

	resp, err = s.transport.PostJSON(ctx, "/auth/verify", models.VerifyRequest{
		TenantID:    tenantID,
		Username:    username,
		ChallengeID: challengeID,
		Verifier:    verifier,
	})
	if err != nil {
		return nil, s.mapError(err)
	}

	session, err := parseSession(resp, tenantID)
	if err != nil {
		return nil, err
	}

	s.transport.SetToken(session.Token)
	s.logger.WithField("tenant_id", tenantID).Info("Login successful")

	return session, nil
}

// ComputeVerifier derives the verification value sent to the identity
// store at registration time. Registration happens out of band; the
// stored form is a one-way hash of this value.
func (s *Service) ComputeVerifier(root *crypto.RootSecret, tenantID string) ([]byte, error) {
	return s.crypto.DeriveKey(root, tenantID, crypto.PurposeAuth, "")
}

// GetResourceToken obtains a signed, tenant-and-resource-scoped, TTL
// bound capability for an authenticated session.
func (s *Service) GetResourceToken(ctx context.Context, session *models.Session, resource string) (*models.ResourceToken, error) {
	if err := s.EnsureAuthenticated(session); err != nil {
		return nil, err
	}

	resp, err := s.transport.PostJSON(ctx, "/auth/token", map[string]string{
		"tenant_id": session.TenantID,
		"resource":  resource,
	})
	if err != nil {
		return nil, s.mapError(err)
	}

	encoded, _ := resp["resource_token"].(string)
	if encoded == "" {
		return nil, models.ErrAuthenticationFailed
	}

	token, err := models.DecodeResourceToken(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode resource token: %w", err)
	}

	if token.Expired() {
		return nil, models.ErrAuthExpired
	}

	return token, nil
}

// ResourceTokenForKey is the one-shot API-key path: authenticate with
// the key and obtain a capability for one resource.
func (s *Service) ResourceTokenForKey(ctx context.Context, tenantID, keyID string, apiKey []byte, resource string) (*models.ResourceToken, error) {
	session, err := s.LoginAPIKey(ctx, tenantID, keyID, apiKey)
	if err != nil {
		return nil, err
	}
	return s.GetResourceToken(ctx, session, resource)
}

// EnsureAuthenticated gates every key-scoped operation. Expiry is
// terminal; there is no implicit renewal.
func (s *Service) EnsureAuthenticated(session *models.Session) error {
	if session == nil || session.State == models.StateUnauthenticated {
		return models.ErrAuthenticationFailed
	}
	if !session.Valid() {
		session.Expire()
		return models.ErrAuthExpired
	}
	return nil
}

// Logout expires the session locally and clears the transport token.
func (s *Service) Logout(ctx context.Context, session *models.Session) error {
	s.logger.Info("Logging out")

	if session != nil && session.Valid() {
		if _, err := s.transport.PostJSON(ctx, "/auth/signout", nil); err != nil {
			s.logger.WithError(err).Warn("Server logout failed")
		}
		session.Expire()
	}

	s.transport.SetToken("")
	return nil
}

// mapError collapses credential rejections into the generic failure so
// no caller can distinguish unknown user from wrong credential.
func (s *Service) mapError(err error) error {
	var apiErr *models.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 401, 403:
			return models.ErrAuthenticationFailed
		case 419:
			return models.ErrAuthExpired
		}
	}
	if errors.Is(err, models.ErrAuthenticationFailed) || errors.Is(err, models.ErrAuthExpired) {
		return err
	}
	return fmt.Errorf("auth round trip: %w", err)
}

func parseSession(resp map[string]interface{}, tenantID string) (*models.Session, error) {
	token, _ := resp["token"].(string)
	if token == "" {
		return nil, models.ErrAuthenticationFailed
	}

	expiresStr, _ := resp["expires_at"].(string)
	expiresAt, _ := time.Parse(time.RFC3339, expiresStr)
	if expiresAt.IsZero() {
		return nil, models.ErrAuthenticationFailed
	}

	return &models.Session{
		TenantID:  tenantID,
		Token:     token,
		ExpiresAt: expiresAt,
		State:     models.StateAuthenticated,
	}, nil
}
