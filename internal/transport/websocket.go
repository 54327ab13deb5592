package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/TheMichaelB/logvault/internal/events"
	"github.com/TheMichaelB/logvault/internal/models"
)

// WSClient delivers server-pushed encrypted records for live tailing.
// Frames carry ciphertext only; decryption happens in the caller.
type WSClient struct {
	url    string
	token  string
	logger *events.Logger

	// Connection state
	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool

	// Channels
	records chan models.EncryptedRecord
	errors  chan error
	done    chan struct{}

	// Heartbeat
	pingInterval time.Duration
	pongTimeout  time.Duration
}

// NewWSClient creates a WebSocket client.
func NewWSClient(wsURL, token string, logger *events.Logger) *WSClient {
	// If it's not already a WebSocket URL, convert http(s) to ws(s)
	if len(wsURL) > 4 && wsURL[:4] == "http" {
		wsURL = "ws" + wsURL[4:]
	}

	return &WSClient{
		url:          wsURL + "/logs/stream",
		token:        token,
		logger:       logger.WithField("component", "ws_client"),
		records:      make(chan models.EncryptedRecord, 100),
		errors:       make(chan error, 10),
		done:         make(chan struct{}),
		pingInterval: 30 * time.Second,
		pongTimeout:  10 * time.Second,
	}
}

// Connect establishes the WebSocket connection.
func (c *WSClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return fmt.Errorf("already connected")
	}

	c.logger.WithField("url", c.url).Info("Connecting to WebSocket")

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+c.token)

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, resp, err := dialer.DialContext(ctx, c.url, headers)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("websocket connect failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("websocket connect failed: %w", err)
	}

	c.conn = conn
	c.closed = false

	// Start goroutines
	go c.readLoop()
	go c.pingLoop()

	c.logger.Info("WebSocket connected")
	return nil
}

// SendInit scopes the stream to one tenant and log.
func (c *WSClient) SendInit(init models.StreamInit) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("not connected")
	}

	c.logger.WithFields(map[string]interface{}{
		"tenant_id": init.TenantID,
		"log_name":  init.LogName,
	}).Debug("Sending init message")

	if err := conn.WriteJSON(init); err != nil {
		return fmt.Errorf("send init: %w", err)
	}

	return nil
}

// Records returns the record channel. It closes when the stream ends.
func (c *WSClient) Records() <-chan models.EncryptedRecord {
	return c.records
}

// Errors returns the error channel.
func (c *WSClient) Errors() <-chan error {
	return c.errors
}

// Close closes the WebSocket connection.
func (c *WSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)

	if c.conn != nil {
		_ = c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		err := c.conn.Close()
		c.conn = nil
		return err
	}

	return nil
}

// readLoop pumps frames into the record channel. Both channels close
// when the stream ends so consumers ranging over them terminate.
func (c *WSClient) readLoop() {
	defer func() {
		_ = c.Close()
		close(c.records)
		close(c.errors)
	}()

	for {
		select {
		case <-c.done:
			return
		default:
		}

		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return
		}

		var record models.EncryptedRecord
		if err := conn.ReadJSON(&record); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				c.logger.Debug("WebSocket closed normally")
				return
			}
			select {
			case c.errors <- fmt.Errorf("read frame: %w", err):
			default:
			}
			return
		}

		select {
		case c.records <- record:
		case <-c.done:
			return
		}
	}
}

// pingLoop keeps the connection alive.
func (c *WSClient) pingLoop() {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.Lock()
			conn := c.conn
			c.mu.Unlock()

			if conn == nil {
				return
			}

			deadline := time.Now().Add(c.pongTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				// readLoop owns the error channel and its close; the read
				// side will observe the dead connection.
				c.logger.WithError(err).Error("Ping failed")
				return
			}
		}
	}
}
