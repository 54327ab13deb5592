// Package logs orchestrates the crypto engine, the search token
// generator and the auth protocol into the append/read/search API.
// Derived keys are recomputed per call and wiped before return; no key
// material survives a call or crosses to the storage collaborator.
package logs

import (
	"context"
	"fmt"

	"github.com/TheMichaelB/logvault/internal/crypto"
	"github.com/TheMichaelB/logvault/internal/events"
	"github.com/TheMichaelB/logvault/internal/models"
	"github.com/TheMichaelB/logvault/internal/search"
	"github.com/TheMichaelB/logvault/internal/services/auth"
	"github.com/TheMichaelB/logvault/internal/storage"
	"github.com/TheMichaelB/logvault/internal/transport"
)

// Entry is one decrypted record. The caller owns Plaintext and should
// wipe it after use.
type Entry struct {
	ID         string
	KeyVersion int
	Plaintext  []byte
}

// Result carries decrypted entries plus the records dropped because
// they failed integrity verification. Dropped records are reported,
// never silently discarded and never partially returned.
type Result struct {
	Entries []Entry
	Dropped []*models.DroppedRecordError
}

// Service is the client facade over storage and transport collaborators.
type Service struct {
	crypto    crypto.Provider
	store     storage.Store
	auth      *auth.Service
	transport transport.Transport
	logger    *events.Logger
}

// NewService creates the log facade.
func NewService(provider crypto.Provider, store storage.Store, authSvc *auth.Service, tp transport.Transport, logger *events.Logger) *Service {
	return &Service{
		crypto:    provider,
		store:     store,
		auth:      authSvc,
		transport: tp,
		logger:    logger.WithField("service", "logs"),
	}
}

// Append encrypts one record, derives its blind-index tokens and submits
// ciphertext plus tokens to the storage collaborator.
func (s *Service) Append(ctx context.Context, session *models.Session, root *crypto.RootSecret, logName string, plaintext []byte) (string, error) {
	if err := s.auth.EnsureAuthenticated(session); err != nil {
		return "", err
	}

	tenantID := session.TenantID

	encKey, err := s.crypto.DeriveKey(root, tenantID, crypto.PurposeLogEnc, logName)
	if err != nil {
		return "", err
	}
	defer crypto.Wipe(encKey)

	searchKey, err := s.crypto.DeriveKey(root, tenantID, crypto.PurposeLogSearch, logName)
	if err != nil {
		return "", err
	}
	defer crypto.Wipe(searchKey)

	record, err := s.crypto.Encrypt(plaintext, encKey, models.AssociatedData(tenantID, logName))
	if err != nil {
		return "", err
	}

	tokens, err := search.TokenizeAndIndex(string(plaintext), searchKey)
	if err != nil {
		return "", err
	}

	resToken, err := s.auth.GetResourceToken(ctx, session, logName)
	if err != nil {
		return "", err
	}

	id, err := s.store.Put(ctx, tenantID, logName, record, tokens, resToken)
	if err != nil {
		return "", fmt.Errorf("store record: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"tenant_id": tenantID,
		"log_name":  logName,
		"record_id": id,
		"tokens":    len(tokens),
	}).Debug("Appended record")

	return id, nil
}

// List fetches and decrypts all records of a log.
func (s *Service) List(ctx context.Context, session *models.Session, root *crypto.RootSecret, logName string) (*Result, error) {
	if err := s.auth.EnsureAuthenticated(session); err != nil {
		return nil, err
	}

	resToken, err := s.auth.GetResourceToken(ctx, session, logName)
	if err != nil {
		return nil, err
	}

	records, err := s.store.Get(ctx, session.TenantID, logName, resToken)
	if err != nil {
		return nil, fmt.Errorf("fetch records: %w", err)
	}

	return s.decryptAll(session.TenantID, logName, root, records)
}

// Search derives query tokens, lets the storage collaborator match them
// against the blind index, and decrypts the candidates locally.
func (s *Service) Search(ctx context.Context, session *models.Session, root *crypto.RootSecret, logName, query string) (*Result, error) {
	if err := s.auth.EnsureAuthenticated(session); err != nil {
		return nil, err
	}

	tenantID := session.TenantID

	searchKey, err := s.crypto.DeriveKey(root, tenantID, crypto.PurposeLogSearch, logName)
	if err != nil {
		return nil, err
	}
	defer crypto.Wipe(searchKey)

	tokens, err := search.QueryTokens(search.Tokenize(query), searchKey)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return &Result{}, nil
	}

	resToken, err := s.auth.GetResourceToken(ctx, session, logName)
	if err != nil {
		return nil, err
	}

	records, err := s.store.MatchTokens(ctx, tenantID, logName, tokens, resToken)
	if err != nil {
		return nil, fmt.Errorf("match tokens: %w", err)
	}

	return s.decryptAll(tenantID, logName, root, records)
}

// Tail streams live records for a log, decrypting each as it arrives.
// Records failing verification are reported on the channel as dropped
// via a zero-plaintext entry in the logger, never delivered altered.
func (s *Service) Tail(ctx context.Context, session *models.Session, root *crypto.RootSecret, logName string) (<-chan Entry, error) {
	if err := s.auth.EnsureAuthenticated(session); err != nil {
		return nil, err
	}

	resToken, err := s.auth.GetResourceToken(ctx, session, logName)
	if err != nil {
		return nil, err
	}

	encoded, err := resToken.Encode()
	if err != nil {
		return nil, err
	}

	tenantID := session.TenantID
	stream, err := s.transport.StreamRecords(ctx, models.StreamInit{
		TenantID: tenantID,
		LogName:  logName,
		Token:    encoded,
	})
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}

	out := make(chan Entry)
	go func() {
		defer close(out)
		for record := range stream {
			entry, dropErr := s.decryptOne(tenantID, logName, root, &record)
			if dropErr != nil {
				s.logger.WithError(dropErr).Warn("Dropped streamed record")
				continue
			}
			select {
			case out <- *entry:
			case <-ctx.Done():
				crypto.Wipe(entry.Plaintext)
				return
			}
		}
	}()

	return out, nil
}

// decryptAll verifies and decrypts fetched records, dropping and
// reporting any that fail verification.
func (s *Service) decryptAll(tenantID, logName string, root *crypto.RootSecret, records []models.EncryptedRecord) (*Result, error) {
	result := &Result{}

	for i := range records {
		entry, dropErr := s.decryptOne(tenantID, logName, root, &records[i])
		if dropErr != nil {
			s.logger.WithFields(map[string]interface{}{
				"record_id": dropErr.RecordID,
				"log_name":  logName,
				"code":      models.ErrCodeIntegrity,
			}).Warn("Dropped record failing verification")
			result.Dropped = append(result.Dropped, dropErr)
			continue
		}
		result.Entries = append(result.Entries, *entry)
	}

	return result, nil
}

// decryptOne derives the key at the record's version and opens it. The
// derived key never outlives this call.
func (s *Service) decryptOne(tenantID, logName string, root *crypto.RootSecret, record *models.EncryptedRecord) (*Entry, *models.DroppedRecordError) {
	key, err := s.crypto.DeriveKeyVersion(root, tenantID, crypto.PurposeLogEnc, logName, record.KeyVersion)
	if err != nil {
		return nil, &models.DroppedRecordError{RecordID: record.ID, LogName: logName}
	}
	defer crypto.Wipe(key)

	plaintext, err := s.crypto.Decrypt(record, key)
	if err != nil {
		return nil, &models.DroppedRecordError{RecordID: record.ID, LogName: logName}
	}

	return &Entry{
		ID:         record.ID,
		KeyVersion: record.KeyVersion,
		Plaintext:  plaintext,
	}, nil
}
