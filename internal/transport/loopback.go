package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/TheMichaelB/logvault/internal/events"
	"github.com/TheMichaelB/logvault/internal/identity"
	"github.com/TheMichaelB/logvault/internal/models"
)

// Loopback is an in-process transport backed directly by an identity
// authority. It gives local mode and tests the exact protocol semantics
// of the remote service without a network, including the generic
// failure behavior.
type Loopback struct {
	authority *identity.Authority
	logger    *events.Logger

	mu       sync.Mutex
	token    string
	sessions map[string]*models.Session
	streams  []*loopbackStream
}

type loopbackStream struct {
	tenantID string
	logName  string
	ch       chan models.EncryptedRecord
}

// NewLoopback creates a loopback transport.
func NewLoopback(authority *identity.Authority, logger *events.Logger) *Loopback {
	return &Loopback{
		authority: authority,
		logger:    logger.WithField("component", "loopback"),
		sessions:  make(map[string]*models.Session),
	}
}

// PostJSON dispatches a request to the authority.
func (t *Loopback) PostJSON(ctx context.Context, path string, payload interface{}) (map[string]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch path {
	case "/auth/challenge":
		var req models.ChallengeRequest
		if err := recode(payload, &req); err != nil {
			return nil, err
		}
		challenge, err := t.authority.IssueChallenge(req)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"challenge_id": challenge.ID,
			"expires_at":   challenge.ExpiresAt.Format(time.RFC3339),
		}, nil

	case "/auth/verify":
		var req models.VerifyRequest
		if err := recode(payload, &req); err != nil {
			return nil, err
		}
		session, err := t.authority.Verify(ctx, req)
		if err != nil {
			return nil, err
		}
		t.mu.Lock()
		t.sessions[session.Token] = session
		t.mu.Unlock()
		return map[string]interface{}{
			"token":      session.Token,
			"expires_at": session.ExpiresAt.Format(time.RFC3339),
		}, nil

	case "/auth/token":
		var req struct {
			TenantID string `json:"tenant_id"`
			Resource string `json:"resource"`
		}
		if err := recode(payload, &req); err != nil {
			return nil, err
		}

		session := t.currentSession()
		if session == nil || session.TenantID != req.TenantID {
			return nil, models.ErrAuthenticationFailed
		}
		if err := t.authority.VerifySession(session); err != nil {
			return nil, err
		}

		token := t.authority.IssueResourceToken(req.TenantID, req.Resource)
		encoded, err := token.Encode()
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"resource_token": encoded}, nil

	case "/auth/signout":
		t.mu.Lock()
		delete(t.sessions, t.token)
		t.mu.Unlock()
		return map[string]interface{}{"ok": true}, nil

	default:
		return nil, fmt.Errorf("loopback: unknown path %s", path)
	}
}

// StreamRecords returns a channel scoped to one tenant and log.
func (t *Loopback) StreamRecords(ctx context.Context, init models.StreamInit) (<-chan models.EncryptedRecord, error) {
	stream := &loopbackStream{
		tenantID: init.TenantID,
		logName:  init.LogName,
		ch:       make(chan models.EncryptedRecord, 100),
	}

	t.mu.Lock()
	t.streams = append(t.streams, stream)
	t.mu.Unlock()

	go func() {
		<-ctx.Done()
		t.mu.Lock()
		for i, s := range t.streams {
			if s == stream {
				t.streams = append(t.streams[:i], t.streams[i+1:]...)
				close(s.ch)
				break
			}
		}
		t.mu.Unlock()
	}()

	return stream.ch, nil
}

// Publish pushes a record to every matching open stream. Local-mode
// append calls this after a successful store put.
func (t *Loopback) Publish(tenantID, logName string, record models.EncryptedRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, s := range t.streams {
		if s.tenantID != tenantID || s.logName != logName {
			continue
		}
		select {
		case s.ch <- record:
		default:
			t.logger.Debug("Stream buffer full, dropping record")
		}
	}
}

// SetToken sets the auth token.
func (t *Loopback) SetToken(token string) {
	t.mu.Lock()
	t.token = token
	t.mu.Unlock()
}

// GetToken returns the current auth token.
func (t *Loopback) GetToken() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.token
}

// Close closes open streams.
func (t *Loopback) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, s := range t.streams {
		close(s.ch)
	}
	t.streams = nil
	return nil
}

func (t *Loopback) currentSession() *models.Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessions[t.token]
}

// recode round-trips a payload through JSON into the expected type,
// matching what the wire would do.
func recode(payload, target interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
