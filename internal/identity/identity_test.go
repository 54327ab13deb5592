package identity_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/logvault/internal/identity"
	"github.com/TheMichaelB/logvault/internal/models"
	"github.com/TheMichaelB/logvault/test/testutil"
)

func newStore(t *testing.T) *identity.SQLiteStore {
	t.Helper()

	store, err := identity.NewSQLiteStore(filepath.Join(t.TempDir(), "identity.db"), testutil.Logger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func newAuthority(t *testing.T, store identity.Store) *identity.Authority {
	t.Helper()

	authority, err := identity.NewAuthority(store, time.Hour, time.Minute, testutil.Logger())
	require.NoError(t, err)
	return authority
}

func TestHashVerifier_OneWay(t *testing.T) {
	verifier := []byte("purpose separated verifier material 32b")
	hash := identity.HashVerifier(verifier)

	// The stored form never equals or contains the verifier itself.
	assert.NotEqual(t, verifier, hash[:])
	assert.NotContains(t, string(hash[:]), string(verifier))

	again := identity.HashVerifier(verifier)
	assert.Equal(t, hash, again)
}

func TestSQLiteStore_SaveAndLoad(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	hash := identity.HashVerifier([]byte("verifier material"))
	err := store.SaveCredential(ctx, identity.Credential{
		TenantID: "t1",
		Username: "alice",
		Hash:     hash,
	})
	require.NoError(t, err)

	cred, err := store.Credential(ctx, "t1", "alice")
	require.NoError(t, err)
	assert.Equal(t, "t1", cred.TenantID)
	assert.Equal(t, "alice", cred.Username)
	assert.Equal(t, hash, cred.Hash)
	assert.False(t, cred.Revoked)
}

func TestSQLiteStore_Upsert(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	first := identity.HashVerifier([]byte("old"))
	second := identity.HashVerifier([]byte("new"))

	require.NoError(t, store.SaveCredential(ctx, identity.Credential{
		TenantID: "t1", Username: "alice", Hash: first,
	}))
	require.NoError(t, store.SaveCredential(ctx, identity.Credential{
		TenantID: "t1", Username: "alice", Hash: second,
	}))

	cred, err := store.Credential(ctx, "t1", "alice")
	require.NoError(t, err)
	assert.Equal(t, second, cred.Hash)
}

func TestSQLiteStore_NotFound(t *testing.T) {
	store := newStore(t)

	_, err := store.Credential(context.Background(), "t1", "nobody")
	assert.ErrorIs(t, err, identity.ErrCredentialNotFound)
}

func TestSQLiteStore_Revoke(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveCredential(ctx, identity.Credential{
		TenantID: "t1", Username: "alice", Hash: identity.HashVerifier([]byte("v")),
	}))

	require.NoError(t, store.Revoke(ctx, "t1", "alice"))

	cred, err := store.Credential(ctx, "t1", "alice")
	require.NoError(t, err)
	assert.True(t, cred.Revoked)

	assert.ErrorIs(t, store.Revoke(ctx, "t1", "nobody"), identity.ErrCredentialNotFound)
}

func TestAuthority_VerifyFlow(t *testing.T) {
	store := newStore(t)
	authority := newAuthority(t, store)
	ctx := context.Background()

	verifier := []byte("purpose separated verifier")
	require.NoError(t, authority.Register(ctx, "t1", "alice", verifier))

	challenge, err := authority.IssueChallenge(models.ChallengeRequest{TenantID: "t1", Username: "alice"})
	require.NoError(t, err)
	require.NotEmpty(t, challenge.ID)

	session, err := authority.Verify(ctx, models.VerifyRequest{
		TenantID:    "t1",
		Username:    "alice",
		ChallengeID: challenge.ID,
		Verifier:    verifier,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StateAuthenticated, session.State)
	assert.True(t, session.Valid())

	require.NoError(t, authority.VerifySession(session))
}

func TestAuthority_VerifyFailures(t *testing.T) {
	store := newStore(t)
	authority := newAuthority(t, store)
	ctx := context.Background()

	verifier := []byte("purpose separated verifier")
	require.NoError(t, authority.Register(ctx, "t1", "alice", verifier))
	require.NoError(t, authority.Register(ctx, "t1", "mallory", []byte("other")))
	require.NoError(t, store.Revoke(ctx, "t1", "mallory"))

	tests := []struct {
		name string
		req  func(challengeID string) models.VerifyRequest
	}{
		{"wrong verifier", func(id string) models.VerifyRequest {
			return models.VerifyRequest{TenantID: "t1", Username: "alice", ChallengeID: id, Verifier: []byte("wrong")}
		}},
		{"unknown user", func(id string) models.VerifyRequest {
			return models.VerifyRequest{TenantID: "t1", Username: "nobody", ChallengeID: id, Verifier: verifier}
		}},
		{"unknown tenant", func(id string) models.VerifyRequest {
			return models.VerifyRequest{TenantID: "t9", Username: "alice", ChallengeID: id, Verifier: verifier}
		}},
		{"revoked credential", func(id string) models.VerifyRequest {
			return models.VerifyRequest{TenantID: "t1", Username: "mallory", ChallengeID: id, Verifier: []byte("other")}
		}},
		{"unknown challenge", func(string) models.VerifyRequest {
			return models.VerifyRequest{TenantID: "t1", Username: "alice", ChallengeID: "bogus", Verifier: verifier}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			challenge, err := authority.IssueChallenge(models.ChallengeRequest{TenantID: "t1"})
			require.NoError(t, err)

			session, err := authority.Verify(ctx, tt.req(challenge.ID))
			// Every failure collapses to the same sentinel.
			assert.Equal(t, models.ErrAuthenticationFailed, err)
			assert.Nil(t, session)
		})
	}
}

func TestAuthority_ChallengeOneShot(t *testing.T) {
	store := newStore(t)
	authority := newAuthority(t, store)
	ctx := context.Background()

	verifier := []byte("verifier")
	require.NoError(t, authority.Register(ctx, "t1", "alice", verifier))

	challenge, err := authority.IssueChallenge(models.ChallengeRequest{TenantID: "t1"})
	require.NoError(t, err)

	req := models.VerifyRequest{TenantID: "t1", Username: "alice", ChallengeID: challenge.ID, Verifier: verifier}

	_, err = authority.Verify(ctx, req)
	require.NoError(t, err)

	// Replay of the consumed challenge.
	_, err = authority.Verify(ctx, req)
	assert.ErrorIs(t, err, models.ErrAuthenticationFailed)
}

func TestAuthority_ResourceTokens(t *testing.T) {
	store := newStore(t)
	authority := newAuthority(t, store)

	token := authority.IssueResourceToken("t1", "app")
	require.NoError(t, authority.VerifyToken(token, "t1", "app"))

	t.Run("wrong scope", func(t *testing.T) {
		assert.ErrorIs(t, authority.VerifyToken(token, "t1", "audit"), models.ErrAuthenticationFailed)
		assert.ErrorIs(t, authority.VerifyToken(token, "t2", "app"), models.ErrAuthenticationFailed)
	})

	t.Run("forged signature", func(t *testing.T) {
		forged := *token
		forged.Signature = append([]byte(nil), token.Signature...)
		forged.Signature[0] ^= 0x01
		assert.ErrorIs(t, authority.VerifyToken(&forged, "t1", "app"), models.ErrAuthenticationFailed)
	})

	t.Run("expired", func(t *testing.T) {
		expired := *token
		expired.ExpiresAt = time.Now().Add(-time.Minute)
		assert.ErrorIs(t, authority.VerifyToken(&expired, "t1", "app"), models.ErrAuthExpired)
	})

	t.Run("nil token", func(t *testing.T) {
		assert.ErrorIs(t, authority.VerifyToken(nil, "t1", "app"), models.ErrAuthenticationFailed)
	})
}

func TestAuthority_VerifySession(t *testing.T) {
	store := newStore(t)
	authority := newAuthority(t, store)

	t.Run("tampered token", func(t *testing.T) {
		session := &models.Session{
			TenantID:  "t1",
			Token:     "not signed by the authority",
			ExpiresAt: time.Now().Add(time.Hour),
			State:     models.StateAuthenticated,
		}
		assert.ErrorIs(t, authority.VerifySession(session), models.ErrAuthenticationFailed)
	})

	t.Run("nil session", func(t *testing.T) {
		assert.ErrorIs(t, authority.VerifySession(nil), models.ErrAuthenticationFailed)
	})
}
