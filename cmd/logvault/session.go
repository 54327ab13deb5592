package main

import (
	"context"
	"fmt"

	"github.com/TheMichaelB/logvault/internal/crypto"
	"github.com/TheMichaelB/logvault/internal/models"
)

// authenticate runs the login round trip and returns the session plus
// the root secret for key derivation. The caller must Wipe the root
// when its operation completes; nothing is cached between invocations.
func authenticate(ctx context.Context, tenant, username, password string) (*models.Session, *crypto.RootSecret, error) {
	if tenant == "" {
		tenant = cfg.Auth.TenantID
	}
	if username == "" {
		username = cfg.Auth.Username
	}
	if tenant == "" || username == "" {
		return nil, nil, fmt.Errorf("tenant and username required")
	}

	if password == "" {
		var err error
		password, err = promptPassword("Password: ")
		if err != nil {
			return nil, nil, fmt.Errorf("read password: %w", err)
		}
	}

	session, err := apiClient.Auth.Login(ctx, tenant, username, password)
	if err != nil {
		return nil, nil, err
	}

	root, err := apiClient.Crypto.NewPasswordRoot(username, password, tenant)
	if err != nil {
		return nil, nil, err
	}

	return session, root, nil
}
