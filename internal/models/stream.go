package models

// StreamInit opens a live tail of one log. The resource token travels
// encoded; the stream carries only ciphertext records.
type StreamInit struct {
	TenantID string `json:"tenant_id"`
	LogName  string `json:"log_name"`
	Token    string `json:"token"`
}
