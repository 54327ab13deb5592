package storage

import (
	"context"
	"sync"

	"github.com/TheMichaelB/logvault/internal/events"
	"github.com/TheMichaelB/logvault/internal/models"
)

// MemoryStore is an in-process store with real token-equality matching.
// It backs local mode and tests; semantics match the remote backend.
type MemoryStore struct {
	mu       sync.RWMutex
	logs     map[string][]storedEntry
	verifier TokenVerifier
	notify   func(tenantID, logName string, record models.EncryptedRecord)
	logger   *events.Logger
}

type storedEntry struct {
	id     string
	record models.EncryptedRecord
	tokens map[models.SearchToken]struct{}
}

// NewMemoryStore creates a memory store. The verifier may be nil, in
// which case only scope and TTL are enforced.
func NewMemoryStore(verifier TokenVerifier, logger *events.Logger) *MemoryStore {
	return &MemoryStore{
		logs:     make(map[string][]storedEntry),
		verifier: verifier,
		logger:   logger.WithField("component", "memory_store"),
	}
}

// SetNotify registers a callback invoked after every successful put,
// feeding live tail streams in local mode.
func (s *MemoryStore) SetNotify(fn func(tenantID, logName string, record models.EncryptedRecord)) {
	s.mu.Lock()
	s.notify = fn
	s.mu.Unlock()
}

func logKey(tenantID, logName string) string {
	return tenantID + "/" + logName
}

// Put persists an encrypted record with its index tokens.
func (s *MemoryStore) Put(ctx context.Context, tenantID, logName string, record *models.EncryptedRecord, tokens []models.SearchToken, token *models.ResourceToken) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := checkToken(token, tenantID, logName, s.verifier); err != nil {
		return "", err
	}

	id, err := newRecordID()
	if err != nil {
		return "", err
	}

	entry := storedEntry{
		id:     id,
		record: *record,
		tokens: make(map[models.SearchToken]struct{}, len(tokens)),
	}
	entry.record.ID = id
	for _, t := range tokens {
		entry.tokens[t] = struct{}{}
	}

	s.mu.Lock()
	key := logKey(tenantID, logName)
	s.logs[key] = append(s.logs[key], entry)
	notify := s.notify
	s.mu.Unlock()

	if notify != nil {
		notify(tenantID, logName, entry.record)
	}

	s.logger.WithFields(map[string]interface{}{
		"tenant_id": tenantID,
		"log_name":  logName,
		"record_id": id,
		"tokens":    len(tokens),
	}).Debug("Stored record")

	return id, nil
}

// Get returns all records of a log.
func (s *MemoryStore) Get(ctx context.Context, tenantID, logName string, token *models.ResourceToken) ([]models.EncryptedRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := checkToken(token, tenantID, logName, s.verifier); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, ok := s.logs[logKey(tenantID, logName)]
	if !ok {
		return nil, ErrLogNotFound
	}

	records := make([]models.EncryptedRecord, len(entries))
	for i, e := range entries {
		records[i] = e.record
	}
	return records, nil
}

// MatchTokens returns records containing every query token.
func (s *MemoryStore) MatchTokens(ctx context.Context, tenantID, logName string, tokens []models.SearchToken, token *models.ResourceToken) ([]models.EncryptedRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := checkToken(token, tenantID, logName, s.verifier); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, ok := s.logs[logKey(tenantID, logName)]
	if !ok {
		return nil, ErrLogNotFound
	}

	var matched []models.EncryptedRecord
	for _, e := range entries {
		if containsAll(e.tokens, tokens) {
			matched = append(matched, e.record)
		}
	}
	return matched, nil
}

// Tamper overwrites a stored record, simulating a compromised backend.
// Test hook only.
func (s *MemoryStore) Tamper(tenantID, logName, recordID string, mutate func(*models.EncryptedRecord)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.logs[logKey(tenantID, logName)]
	for i := range entries {
		if entries[i].id == recordID {
			mutate(&entries[i].record)
			return true
		}
	}
	return false
}

// Close releases resources.
func (s *MemoryStore) Close() error {
	return nil
}

func containsAll(have map[models.SearchToken]struct{}, want []models.SearchToken) bool {
	if len(want) == 0 {
		return false
	}
	for _, t := range want {
		if _, ok := have[t]; !ok {
			return false
		}
	}
	return true
}
