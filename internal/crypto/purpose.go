package crypto

import (
	"encoding/binary"

	"github.com/TheMichaelB/logvault/internal/models"
)

// Purpose scopes a derived key. The set is closed so domain separation
// is statically auditable; there is no open string-keyed registry.
type Purpose int

const (
	// PurposeMasterEnc is the tenant-wide master encryption key.
	PurposeMasterEnc Purpose = iota + 1

	// PurposeLogEnc encrypts records of one named log.
	PurposeLogEnc

	// PurposeLogSearch keys the blind-index tokens of one named log.
	PurposeLogSearch

	// PurposeAuth derives the authentication verifier. It shares no
	// material with any encryption or search key.
	PurposeAuth
)

// label returns the domain-separation label mixed into derivation.
func (p Purpose) label() string {
	switch p {
	case PurposeMasterEnc:
		return "master-enc"
	case PurposeLogEnc:
		return "log-enc"
	case PurposeLogSearch:
		return "log-search"
	case PurposeAuth:
		return "auth"
	default:
		return ""
	}
}

// needsContext reports whether the purpose carries a context payload.
// Log-scoped purposes require the log name; the others take none.
func (p Purpose) needsContext() bool {
	return p == PurposeLogEnc || p == PurposeLogSearch
}

// validate rejects unknown purposes and mismatched context payloads.
func (p Purpose) validate(context string) error {
	if p.label() == "" {
		return models.ErrInvalidPurpose
	}
	if p.needsContext() && context == "" {
		return models.ErrInvalidPurpose
	}
	if !p.needsContext() && context != "" {
		return models.ErrInvalidPurpose
	}
	return nil
}

// derivationInfo builds the HKDF info string. Fields are length-prefixed
// so no choice of tenant or context can collide across purposes.
func derivationInfo(tenantID string, p Purpose, context string, version int) []byte {
	fields := []string{"logvault/v1", tenantID, p.label(), context}

	var buf []byte
	var lenBuf [binary.MaxVarintLen64]byte
	for _, f := range fields {
		n := binary.PutUvarint(lenBuf[:], uint64(len(f)))
		buf = append(buf, lenBuf[:n]...)
		buf = append(buf, f...)
	}

	n := binary.PutUvarint(lenBuf[:], uint64(version))
	buf = append(buf, lenBuf[:n]...)

	return buf
}
