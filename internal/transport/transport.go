package transport

import (
	"context"
	"fmt"

	"github.com/TheMichaelB/logvault/internal/config"
	"github.com/TheMichaelB/logvault/internal/events"
	"github.com/TheMichaelB/logvault/internal/models"
)

// Transport is the authenticated channel to the service. It carries only
// opaque tokens and ciphertext; key material and raw credentials never
// enter this layer. Transient failures are retried with backoff here;
// cryptographic failures are never retried anywhere.
type Transport interface {
	// PostJSON sends a JSON request and decodes the JSON response.
	PostJSON(ctx context.Context, path string, payload interface{}) (map[string]interface{}, error)

	// StreamRecords opens a live tail of encrypted records.
	StreamRecords(ctx context.Context, init models.StreamInit) (<-chan models.EncryptedRecord, error)

	// Authentication
	SetToken(token string)
	GetToken() string

	// Lifecycle
	Close() error
}

// DefaultTransport implements the Transport interface.
type DefaultTransport struct {
	httpClient *HTTPClient
	wsClient   *WSClient
	logger     *events.Logger
}

// NewTransport creates a transport instance.
func NewTransport(cfg *config.APIConfig, logger *events.Logger) Transport {
	return &DefaultTransport{
		httpClient: NewHTTPClient(cfg, logger),
		logger:     logger,
	}
}

// PostJSON forwards to the HTTP client.
func (t *DefaultTransport) PostJSON(ctx context.Context, path string, payload interface{}) (map[string]interface{}, error) {
	return t.httpClient.PostJSON(ctx, path, payload)
}

// StreamRecords creates a WebSocket stream.
func (t *DefaultTransport) StreamRecords(ctx context.Context, init models.StreamInit) (<-chan models.EncryptedRecord, error) {
	// Create new WS client for this stream
	t.wsClient = NewWSClient(t.httpClient.baseURL, t.httpClient.token, t.logger)

	if err := t.wsClient.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect websocket: %w", err)
	}

	if err := t.wsClient.SendInit(init); err != nil {
		t.wsClient.Close()
		return nil, fmt.Errorf("send init: %w", err)
	}

	// Monitor errors in background
	go func() {
		for err := range t.wsClient.Errors() {
			t.logger.WithError(err).Error("WebSocket error")
		}
	}()

	return t.wsClient.Records(), nil
}

// SetToken sets the auth token.
func (t *DefaultTransport) SetToken(token string) {
	t.httpClient.SetToken(token)
}

// GetToken returns the current auth token.
func (t *DefaultTransport) GetToken() string {
	return t.httpClient.GetToken()
}

// Close closes all connections.
func (t *DefaultTransport) Close() error {
	if t.wsClient != nil {
		return t.wsClient.Close()
	}
	return nil
}
