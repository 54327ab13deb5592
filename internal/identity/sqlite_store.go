package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/TheMichaelB/logvault/internal/events"
)

// CurrentSchemaVersion for migrations.
const CurrentSchemaVersion = 1

// SQLiteStore implements SQLite-backed credential storage for local mode
// and tests. Production deployments run the identity store service-side;
// the schema here carries hashes only, matching that contract.
type SQLiteStore struct {
	db     *sql.DB
	logger *events.Logger
}

// NewSQLiteStore creates a SQLite identity store.
func NewSQLiteStore(dbPath string, logger *events.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := &SQLiteStore{
		db:     db,
		logger: logger.WithField("component", "sqlite_identity_store"),
	}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	return store, nil
}

// initialize creates tables and indexes.
func (s *SQLiteStore) initialize() error {
	schema := `
    CREATE TABLE IF NOT EXISTS credentials (
        tenant_id TEXT NOT NULL,
        username TEXT NOT NULL,
        verifier_hash BLOB NOT NULL,
        revoked INTEGER NOT NULL DEFAULT 0,
        created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
        updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
        PRIMARY KEY (tenant_id, username)
    );

    CREATE INDEX IF NOT EXISTS idx_credentials_tenant ON credentials(tenant_id);

    CREATE TABLE IF NOT EXISTS schema_info (
        version INTEGER PRIMARY KEY
    );

    INSERT OR IGNORE INTO schema_info (version) VALUES (?);
    `

	if _, err := s.db.Exec(schema, CurrentSchemaVersion); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	if _, err := s.db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("enable foreign keys: %w", err)
	}

	return nil
}

// SaveCredential inserts or replaces a credential.
func (s *SQLiteStore) SaveCredential(ctx context.Context, cred Credential) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO credentials (tenant_id, username, verifier_hash, revoked, updated_at)
        VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
        ON CONFLICT(tenant_id, username) DO UPDATE SET
            verifier_hash = excluded.verifier_hash,
            revoked = excluded.revoked,
            updated_at = CURRENT_TIMESTAMP`,
		cred.TenantID, cred.Username, cred.Hash[:], boolToInt(cred.Revoked))
	if err != nil {
		return fmt.Errorf("save credential: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"tenant_id": cred.TenantID,
		"username":  cred.Username,
	}).Debug("Saved credential")

	return nil
}

// Credential loads a credential by tenant and username.
func (s *SQLiteStore) Credential(ctx context.Context, tenantID, username string) (*Credential, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT verifier_hash, revoked FROM credentials
        WHERE tenant_id = ? AND username = ?`,
		tenantID, username)

	var hash []byte
	var revoked int
	if err := row.Scan(&hash, &revoked); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCredentialNotFound
		}
		return nil, fmt.Errorf("load credential: %w", err)
	}

	cred := &Credential{
		TenantID: tenantID,
		Username: username,
		Revoked:  revoked != 0,
	}
	copy(cred.Hash[:], hash)

	return cred, nil
}

// Revoke marks a credential revoked without deleting its hash.
func (s *SQLiteStore) Revoke(ctx context.Context, tenantID, username string) error {
	res, err := s.db.ExecContext(ctx, `
        UPDATE credentials SET revoked = 1, updated_at = CURRENT_TIMESTAMP
        WHERE tenant_id = ? AND username = ?`,
		tenantID, username)
	if err != nil {
		return fmt.Errorf("revoke credential: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCredentialNotFound
	}

	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
