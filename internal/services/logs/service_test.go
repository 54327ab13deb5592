package logs_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/logvault/internal/crypto"
	"github.com/TheMichaelB/logvault/internal/identity"
	"github.com/TheMichaelB/logvault/internal/models"
	"github.com/TheMichaelB/logvault/internal/services/auth"
	"github.com/TheMichaelB/logvault/internal/services/logs"
	"github.com/TheMichaelB/logvault/internal/storage"
	"github.com/TheMichaelB/logvault/internal/transport"
	"github.com/TheMichaelB/logvault/test/testutil"
)

// harness wires the full local stack with direct access to the memory
// store so tests can tamper with stored ciphertext.
type harness struct {
	logs    *logs.Service
	auth    *auth.Service
	crypto  *crypto.KeyProvider
	store   *storage.MemoryStore
	session *models.Session
	root    *crypto.RootSecret
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	logger := testutil.Logger()
	cfg := testutil.Config(t)

	provider, err := crypto.NewProvider(cfg.Crypto)
	require.NoError(t, err)

	idStore, err := identity.NewSQLiteStore(filepath.Join(t.TempDir(), "identity.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idStore.Close() })

	authority, err := identity.NewAuthority(idStore, cfg.Auth.SessionTTL, cfg.Auth.TokenTTL, logger)
	require.NoError(t, err)

	loopback := transport.NewLoopback(authority, logger)
	t.Cleanup(func() { _ = loopback.Close() })

	store := storage.NewMemoryStore(authority, logger)
	store.SetNotify(loopback.Publish)

	authSvc := auth.NewService(loopback, provider, cfg.Auth, logger)
	logsSvc := logs.NewService(provider, store, authSvc, loopback, logger)

	ctx := context.Background()

	root, err := provider.NewPasswordRoot("alice", "correct horse battery", "t1")
	require.NoError(t, err)
	t.Cleanup(root.Wipe)

	verifier, err := authSvc.ComputeVerifier(root, "t1")
	require.NoError(t, err)
	require.NoError(t, authority.Register(ctx, "t1", "alice", verifier))
	crypto.Wipe(verifier)

	session, err := authSvc.Login(ctx, "t1", "alice", "correct horse battery")
	require.NoError(t, err)

	return &harness{
		logs:    logsSvc,
		auth:    authSvc,
		crypto:  provider,
		store:   store,
		session: session,
		root:    root,
	}
}

func TestAppendList_RoundTrip(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	id1, err := h.logs.Append(ctx, h.session, h.root, "app", []byte(`{"msg":"hi"}`))
	require.NoError(t, err)
	id2, err := h.logs.Append(ctx, h.session, h.root, "app", []byte(`{"msg":"bye"}`))
	require.NoError(t, err)

	result, err := h.logs.List(ctx, h.session, h.root, "app")
	require.NoError(t, err)
	require.Len(t, result.Entries, 2)
	assert.Empty(t, result.Dropped)

	assert.Equal(t, id1, result.Entries[0].ID)
	assert.Equal(t, []byte(`{"msg":"hi"}`), result.Entries[0].Plaintext)
	assert.Equal(t, id2, result.Entries[1].ID)
	assert.Equal(t, []byte(`{"msg":"bye"}`), result.Entries[1].Plaintext)
	assert.Equal(t, 1, result.Entries[0].KeyVersion)
}

func TestAppend_RequiresSession(t *testing.T) {
	h := newHarness(t)

	_, err := h.logs.Append(context.Background(), nil, h.root, "app", []byte("x"))
	assert.ErrorIs(t, err, models.ErrAuthenticationFailed)
}

func TestAppend_ExpiredSession(t *testing.T) {
	h := newHarness(t)

	h.session.ExpiresAt = time.Now().Add(-time.Second)

	_, err := h.logs.Append(context.Background(), h.session, h.root, "app", []byte("x"))
	assert.ErrorIs(t, err, models.ErrAuthExpired)
}

func TestSearch_FindsNormalizedMatches(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.logs.Append(ctx, h.session, h.root, "app", []byte("connection ERROR: upstream timeout"))
	require.NoError(t, err)
	_, err = h.logs.Append(ctx, h.session, h.root, "app", []byte("request ok"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"exact term", "error", 1},
		{"case folded query", "Error", 1},
		{"multi term all must match", "error timeout", 1},
		{"multi term partial", "error nomatch", 0},
		{"no match", "absent", 0},
		{"empty query", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.logs.Search(ctx, h.session, h.root, "app", tt.query)
			require.NoError(t, err)
			assert.Len(t, result.Entries, tt.want)
		})
	}
}

func TestSearch_NoSubstringMatch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.logs.Append(ctx, h.session, h.root, "app", []byte("errors everywhere"))
	require.NoError(t, err)

	// Equality only: "error" does not match the term "errors".
	result, err := h.logs.Search(ctx, h.session, h.root, "app", "error")
	require.NoError(t, err)
	assert.Empty(t, result.Entries)
}

func TestList_TamperedRecordDropped(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	goodID, err := h.logs.Append(ctx, h.session, h.root, "app", []byte("intact"))
	require.NoError(t, err)
	badID, err := h.logs.Append(ctx, h.session, h.root, "app", []byte("to be tampered"))
	require.NoError(t, err)

	require.True(t, h.store.Tamper("t1", "app", badID, func(r *models.EncryptedRecord) {
		r.Ciphertext[0] ^= 0x01
	}))

	result, err := h.logs.List(ctx, h.session, h.root, "app")
	require.NoError(t, err)

	require.Len(t, result.Entries, 1)
	assert.Equal(t, goodID, result.Entries[0].ID)
	assert.Equal(t, []byte("intact"), result.Entries[0].Plaintext)

	require.Len(t, result.Dropped, 1)
	assert.Equal(t, badID, result.Dropped[0].RecordID)
	assert.ErrorIs(t, result.Dropped[0], models.ErrIntegrity)
}

func TestList_WrongRootDropsEverything(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.logs.Append(ctx, h.session, h.root, "app", []byte("secret"))
	require.NoError(t, err)

	wrongRoot, err := h.crypto.NewPasswordRoot("alice", "a different passphrase", "t1")
	require.NoError(t, err)
	defer wrongRoot.Wipe()

	result, err := h.logs.List(ctx, h.session, wrongRoot, "app")
	require.NoError(t, err)
	assert.Empty(t, result.Entries)
	assert.Len(t, result.Dropped, 1)
}

func TestTail_ReceivesLiveRecords(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	entries, err := h.logs.Tail(ctx, h.session, h.root, "app")
	require.NoError(t, err)

	id, err := h.logs.Append(ctx, h.session, h.root, "app", []byte("live record"))
	require.NoError(t, err)

	select {
	case entry := <-entries:
		assert.Equal(t, id, entry.ID)
		assert.Equal(t, []byte("live record"), entry.Plaintext)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for streamed record")
	}
}

func TestTail_ScopedToLog(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	entries, err := h.logs.Tail(ctx, h.session, h.root, "app")
	require.NoError(t, err)

	_, err = h.logs.Append(ctx, h.session, h.root, "audit", []byte("other log"))
	require.NoError(t, err)
	id, err := h.logs.Append(ctx, h.session, h.root, "app", []byte("this log"))
	require.NoError(t, err)

	select {
	case entry := <-entries:
		assert.Equal(t, id, entry.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for streamed record")
	}
}
