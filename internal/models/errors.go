package models

import (
	"errors"
	"fmt"
)

// Error codes for structured error handling.
const (
	ErrCodeAuth          = "AUTH_ERROR"
	ErrCodeAuthExpired   = "AUTH_EXPIRED"
	ErrCodeIntegrity     = "INTEGRITY_ERROR"
	ErrCodePurpose       = "INVALID_PURPOSE"
	ErrCodeWeakSecret    = "WEAK_SECRET"
	ErrCodeNormalization = "NORMALIZATION_MISMATCH"
	ErrCodeNetwork       = "NETWORK_ERROR"
	ErrCodeStorage       = "STORAGE_ERROR"
	ErrCodeConfig        = "CONFIG_ERROR"
)

// Sentinel errors
var (
	// ErrAuthenticationFailed covers every credential mismatch: unknown
	// tenant, unknown user, malformed credential, wrong password. The
	// cases are deliberately indistinguishable to prevent enumeration.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrAuthExpired indicates a session or resource token past its TTL.
	// Expiry forces re-authentication; there is no implicit renewal.
	ErrAuthExpired = errors.New("authentication expired")

	// ErrIntegrity covers both a wrong key and tampered ciphertext at
	// decrypt time. The two must never be differentiated to the caller.
	ErrIntegrity = errors.New("record integrity check failed")

	// ErrInvalidPurpose indicates an unrecognized key derivation purpose
	// or a missing context payload for a purpose that requires one.
	ErrInvalidPurpose = errors.New("invalid key purpose")

	// ErrWeakSecret indicates a password-origin root secret below the
	// configured strength threshold.
	ErrWeakSecret = errors.New("root secret below minimum strength")

	// ErrNormalizationMismatch flags a non-fatal search recall anomaly
	// between the index and query normalization paths.
	ErrNormalizationMismatch = errors.New("token normalization mismatch")

	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrRecordTooLarge = errors.New("record exceeds maximum size")
)

// APIError represents an error from the service API.
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code"`
	RequestID  string `json:"request_id,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

// StorageError provides detailed storage collaborator failure information.
type StorageError struct {
	Op      string
	Tenant  string
	LogName string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: tenant %s: log %s: %v", e.Op, e.Tenant, e.LogName, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// DroppedRecordError reports a record excluded from results because it
// failed integrity verification. It is reported alongside the surviving
// records, never instead of them.
type DroppedRecordError struct {
	RecordID string
	LogName  string
}

func (e *DroppedRecordError) Error() string {
	return fmt.Sprintf("dropped record %s from log %s: %v", e.RecordID, e.LogName, ErrIntegrity)
}

func (e *DroppedRecordError) Unwrap() error {
	return ErrIntegrity
}
