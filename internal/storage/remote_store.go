package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/TheMichaelB/logvault/internal/events"
	"github.com/TheMichaelB/logvault/internal/models"
	"github.com/TheMichaelB/logvault/internal/transport"
)

// RemoteStore is the production storage collaborator: the service API
// reached through the transport. The payloads it sends contain only
// ciphertext, opaque tokens and the encoded capability.
type RemoteStore struct {
	transport transport.Transport
	logger    *events.Logger
}

// NewRemoteStore creates a remote store over a transport.
func NewRemoteStore(tp transport.Transport, logger *events.Logger) *RemoteStore {
	return &RemoteStore{
		transport: tp,
		logger:    logger.WithField("component", "remote_store"),
	}
}

type putRequest struct {
	TenantID string                  `json:"tenant_id"`
	LogName  string                  `json:"log_name"`
	Record   *models.EncryptedRecord `json:"record"`
	Tokens   []string                `json:"tokens"`
	Token    string                  `json:"resource_token"`
}

type fetchRequest struct {
	TenantID string   `json:"tenant_id"`
	LogName  string   `json:"log_name"`
	Tokens   []string `json:"tokens,omitempty"`
	Token    string   `json:"resource_token"`
}

// Put persists an encrypted record with its index tokens.
func (s *RemoteStore) Put(ctx context.Context, tenantID, logName string, record *models.EncryptedRecord, tokens []models.SearchToken, token *models.ResourceToken) (string, error) {
	encoded, err := s.encodeToken(token, tenantID, logName)
	if err != nil {
		return "", err
	}

	resp, err := s.transport.PostJSON(ctx, "/logs/put", putRequest{
		TenantID: tenantID,
		LogName:  logName,
		Record:   record,
		Tokens:   models.TokenStrings(tokens),
		Token:    encoded,
	})
	if err != nil {
		return "", &models.StorageError{Op: "put", Tenant: tenantID, LogName: logName, Err: err}
	}

	id, _ := resp["record_id"].(string)
	if id == "" {
		return "", &models.StorageError{Op: "put", Tenant: tenantID, LogName: logName,
			Err: fmt.Errorf("missing record_id in response")}
	}

	return id, nil
}

// Get returns all records of a log.
func (s *RemoteStore) Get(ctx context.Context, tenantID, logName string, token *models.ResourceToken) ([]models.EncryptedRecord, error) {
	return s.fetch(ctx, "/logs/get", tenantID, logName, nil, token)
}

// MatchTokens returns records matching every query token.
func (s *RemoteStore) MatchTokens(ctx context.Context, tenantID, logName string, tokens []models.SearchToken, token *models.ResourceToken) ([]models.EncryptedRecord, error) {
	return s.fetch(ctx, "/logs/match", tenantID, logName, tokens, token)
}

// Close releases resources.
func (s *RemoteStore) Close() error {
	return nil
}

func (s *RemoteStore) fetch(ctx context.Context, path, tenantID, logName string, tokens []models.SearchToken, token *models.ResourceToken) ([]models.EncryptedRecord, error) {
	encoded, err := s.encodeToken(token, tenantID, logName)
	if err != nil {
		return nil, err
	}

	resp, err := s.transport.PostJSON(ctx, path, fetchRequest{
		TenantID: tenantID,
		LogName:  logName,
		Tokens:   models.TokenStrings(tokens),
		Token:    encoded,
	})
	if err != nil {
		return nil, &models.StorageError{Op: path, Tenant: tenantID, LogName: logName, Err: err}
	}

	raw, err := json.Marshal(resp["records"])
	if err != nil {
		return nil, &models.StorageError{Op: path, Tenant: tenantID, LogName: logName, Err: err}
	}

	var records []models.EncryptedRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, &models.StorageError{Op: path, Tenant: tenantID, LogName: logName, Err: err}
	}

	return records, nil
}

func (s *RemoteStore) encodeToken(token *models.ResourceToken, tenantID, resource string) (string, error) {
	if err := checkToken(token, tenantID, resource, nil); err != nil {
		return "", err
	}
	return token.Encode()
}
