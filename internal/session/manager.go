package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CookieName identifies the session cookie.
const CookieName = "chestscan_session"

// ErrNoSession is returned when a request carries no valid, live session.
var ErrNoSession = errors.New("no active session")

// Record is the server-side session state. The client only ever holds the
// signed session id, never the record itself.
type Record struct {
	SessionID string    `json:"session_id"`
	UserID    uint      `json:"user_id"`
	IssuedAt  time.Time `json:"issued_at"`
}

// Manager issues and resolves sessions. The authoritative state lives in the
// store under a TTL; the cookie value is an HMAC-signed token whose subject
// is the session id, so ids cannot be forged or guessed.
type Manager struct {
	store  Store
	secret []byte
	ttl    time.Duration
	logger *zap.Logger
}

// NewManager constructs a session manager.
func NewManager(store Store, secret string, ttl time.Duration, logger *zap.Logger) *Manager {
	return &Manager{
		store:  store,
		secret: []byte(secret),
		ttl:    ttl,
		logger: logger.Named("session"),
	}
}

// Issue creates a fresh session for the user and returns the cookie value.
func (m *Manager) Issue(ctx context.Context, userID uint) (string, error) {
	record := Record{
		SessionID: uuid.NewString(),
		UserID:    userID,
		IssuedAt:  time.Now().UTC(),
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("encode session record: %w", err)
	}
	if err := m.store.Set(ctx, sessionKey(record.SessionID), string(payload), m.ttl); err != nil {
		m.logger.Error("failed to persist session", zap.Error(err))
		return "", err
	}

	claims := jwt.RegisteredClaims{
		Subject:   record.SessionID,
		IssuedAt:  jwt.NewNumericDate(record.IssuedAt),
		ExpiresAt: jwt.NewNumericDate(record.IssuedAt.Add(m.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Resolve validates a cookie value and returns the user id bound to the
// session. Returns ErrNoSession for anything that is not a live session.
func (m *Manager) Resolve(ctx context.Context, cookieValue string) (uint, error) {
	sessionID, err := m.verify(cookieValue)
	if err != nil {
		return 0, ErrNoSession
	}

	payload, err := m.store.Get(ctx, sessionKey(sessionID))
	if err != nil {
		if errors.Is(err, ErrNoSession) {
			return 0, ErrNoSession
		}
		m.logger.Error("session lookup failed", zap.Error(err))
		return 0, err
	}

	var record Record
	if err := json.Unmarshal([]byte(payload), &record); err != nil {
		m.logger.Warn("corrupt session record", zap.String("session_id", sessionID), zap.Error(err))
		return 0, ErrNoSession
	}
	return record.UserID, nil
}

// Revoke destroys the session referenced by the cookie value. Unconditional:
// an invalid cookie is treated as already revoked.
func (m *Manager) Revoke(ctx context.Context, cookieValue string) error {
	sessionID, err := m.verify(cookieValue)
	if err != nil {
		return nil
	}
	return m.store.Del(ctx, sessionKey(sessionID))
}

// TTL reports the configured session lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

func (m *Manager) verify(cookieValue string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(cookieValue, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrNoSession
	}
	if claims.Subject == "" {
		return "", ErrNoSession
	}
	return claims.Subject, nil
}

func sessionKey(sessionID string) string {
	return "session:" + sessionID
}
