package client

import (
	"context"
	"fmt"

	"github.com/TheMichaelB/logvault/internal/config"
	"github.com/TheMichaelB/logvault/internal/crypto"
	"github.com/TheMichaelB/logvault/internal/events"
	"github.com/TheMichaelB/logvault/internal/identity"
	"github.com/TheMichaelB/logvault/internal/services/auth"
	"github.com/TheMichaelB/logvault/internal/services/logs"
	"github.com/TheMichaelB/logvault/internal/storage"
	"github.com/TheMichaelB/logvault/internal/transport"
)

// Client provides the high-level API for logvault operations.
type Client struct {
	Auth   *auth.Service
	Logs   *logs.Service
	Crypto crypto.Provider

	config    *config.Config
	logger    *events.Logger
	transport transport.Transport
	store     storage.Store

	// Local-mode verifier, nil for the remote backend.
	authority *identity.Authority
	idStore   identity.Store
}

// New creates a logvault client. The memory backend wires a local
// authority and store so the full protocol runs in-process; remote and
// s3 backends authenticate against the service API.
func New(cfg *config.Config, logger *events.Logger) (*Client, error) {
	cryptoProvider, err := crypto.NewProvider(cfg.Crypto)
	if err != nil {
		return nil, err
	}

	c := &Client{
		Crypto: cryptoProvider,
		config: cfg,
		logger: logger,
	}

	switch cfg.Storage.Backend {
	case "memory":
		if err := c.wireLocal(cfg, logger); err != nil {
			return nil, err
		}
	case "s3":
		tp := transport.NewTransport(&cfg.API, logger)
		store, err := storage.NewS3Store(context.Background(), cfg.Storage.Bucket, cfg.Storage.Prefix, logger)
		if err != nil {
			return nil, err
		}
		c.transport = tp
		c.store = store
	default: // remote
		tp := transport.NewTransport(&cfg.API, logger)
		c.transport = tp
		c.store = storage.NewRemoteStore(tp, logger)
	}

	c.Auth = auth.NewService(c.transport, cryptoProvider, cfg.Auth, logger)
	c.Logs = logs.NewService(cryptoProvider, c.store, c.Auth, c.transport, logger)

	return c, nil
}

// wireLocal builds the in-process verifier stack.
func (c *Client) wireLocal(cfg *config.Config, logger *events.Logger) error {
	idStore, err := identity.NewSQLiteStore(cfg.Storage.IdentityDB, logger)
	if err != nil {
		return fmt.Errorf("open identity store: %w", err)
	}

	authority, err := identity.NewAuthority(idStore, cfg.Auth.SessionTTL, cfg.Auth.TokenTTL, logger)
	if err != nil {
		idStore.Close()
		return err
	}

	c.idStore = idStore
	c.authority = authority

	loopback := transport.NewLoopback(authority, logger)
	store := storage.NewMemoryStore(authority, logger)
	store.SetNotify(loopback.Publish)

	c.transport = loopback
	c.store = store

	return nil
}

// Register enrolls a credential with the local authority. Remote
// backends register out of band through the service.
func (c *Client) Register(ctx context.Context, tenantID, username, password string) error {
	if c.authority == nil {
		return fmt.Errorf("registration requires the memory backend")
	}

	root, err := c.Crypto.NewPasswordRoot(username, password, tenantID)
	if err != nil {
		return err
	}
	defer root.Wipe()

	verifier, err := c.Auth.ComputeVerifier(root, tenantID)
	if err != nil {
		return err
	}
	defer crypto.Wipe(verifier)

	return c.authority.Register(ctx, tenantID, username, verifier)
}

// RegisterVerifier enrolls a precomputed verification value, the path
// machine credentials use since their root never comes from a password.
func (c *Client) RegisterVerifier(ctx context.Context, tenantID, name string, verifier []byte) error {
	if c.authority == nil {
		return fmt.Errorf("registration requires the memory backend")
	}
	return c.authority.Register(ctx, tenantID, name, verifier)
}

// Close releases transport and store resources.
func (c *Client) Close() error {
	var firstErr error

	if c.transport != nil {
		if err := c.transport.Close(); err != nil {
			firstErr = err
		}
	}
	if c.store != nil {
		if err := c.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.idStore != nil {
		if err := c.idStore.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
