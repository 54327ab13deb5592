package models

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// AlgorithmAESGCM identifies the only cipher suite currently on the wire.
const AlgorithmAESGCM = "AES-256-GCM"

// EncryptedRecord is the wire form of one encrypted log entry. It is
// immutable once created; the associated data is authenticated but not
// encrypted, so the storage side can route on tenant and log name
// without ever seeing plaintext.
type EncryptedRecord struct {
	ID             string `json:"id,omitempty"`
	Algorithm      string `json:"algorithm"`
	KeyVersion     int    `json:"key_version"`
	Nonce          []byte `json:"nonce"`
	Ciphertext     []byte `json:"ciphertext"`
	Tag            []byte `json:"tag"`
	AssociatedData []byte `json:"associated_data"`
}

// AssociatedData builds the canonical associated-data value binding a
// record to its tenant and log scope.
func AssociatedData(tenantID, logName string) []byte {
	return []byte(tenantID + "/" + logName)
}

// SearchToken is an opaque deterministic value derived from a normalized
// term and a search key. It reveals nothing about the term beyond
// equality to a party without the key.
type SearchToken string

// TokenStrings converts tokens to plain strings for transport payloads.
func TokenStrings(tokens []SearchToken) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = string(t)
	}
	return out
}

// StoredRecord pairs a record with its blind-index tokens as held by the
// storage collaborator. The tokens are opaque; matching is byte equality.
type StoredRecord struct {
	Record EncryptedRecord `json:"record"`
	Tokens []SearchToken   `json:"tokens"`
}

// MarshalWire encodes a record for transport as JSON with base64 byte
// fields (encoding/json does this for []byte already; the helper exists
// so callers share one canonical encoding).
func (r *EncryptedRecord) MarshalWire() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	return data, nil
}

// UnmarshalWire decodes a record from its transport form.
func UnmarshalWire(data []byte) (*EncryptedRecord, error) {
	var r EncryptedRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return &r, nil
}

// NonceB64 returns the nonce in base64 for logging. Nonces are public;
// ciphertext and tags are never logged even encoded.
func (r *EncryptedRecord) NonceB64() string {
	return base64.StdEncoding.EncodeToString(r.Nonce)
}
