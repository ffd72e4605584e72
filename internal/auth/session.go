package auth

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Session errors
var (
	ErrSessionNotFound = errors.New("session not found")
)

// Session configuration
const (
	DefaultSessionDuration = 14 * 24 * time.Hour
	SessionIDLength        = 32 // 256 bits
	SessionCookieName      = "session_id"
)

// Session represents an active user session.
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// SessionService handles session management.
type SessionService struct {
	db       *sql.DB
	duration time.Duration
	clock    Clock
}

// NewSessionService creates a new session service. A non-positive duration
// falls back to DefaultSessionDuration.
func NewSessionService(sqlDB *sql.DB, duration time.Duration) *SessionService {
	if duration <= 0 {
		duration = DefaultSessionDuration
	}
	return &SessionService{
		db:       sqlDB,
		duration: duration,
		clock:    realClock{},
	}
}

// SetClock replaces the clock used by the service. Intended for testing.
func (s *SessionService) SetClock(c Clock) {
	s.clock = c
}

// Duration returns how long new sessions remain valid.
func (s *SessionService) Duration() time.Duration {
	return s.duration
}

// Create creates a new session for a user.
// Returns the session ID which should be stored in a cookie.
func (s *SessionService) Create(ctx context.Context, userID string) (string, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return "", fmt.Errorf("generate session ID: %w", err)
	}

	now := s.clock.Now()
	expiresAt := now.Add(s.duration)

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, user_id, expires_at, created_at) VALUES (?, ?, ?, ?)`,
		sessionID, userID, expiresAt.Unix(), now.Unix(),
	)
	if err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}

	return sessionID, nil
}

// Validate checks if a session is valid and returns the user ID.
func (s *SessionService) Validate(ctx context.Context, sessionID string) (string, error) {
	var (
		userID    string
		expiresAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, expires_at FROM sessions WHERE session_id = ?`,
		sessionID,
	).Scan(&userID, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrSessionNotFound
		}
		return "", fmt.Errorf("get session: %w", err)
	}

	if expiresAt <= s.clock.Now().Unix() {
		_ = s.Delete(ctx, sessionID)
		return "", ErrSessionNotFound
	}

	return userID, nil
}

// Delete removes a session (logout).
func (s *SessionService) Delete(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteByUserID removes all sessions for a user.
func (s *SessionService) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("delete user sessions: %w", err)
	}
	return nil
}

// Cleanup removes all expired sessions.
// This should be called periodically by a background goroutine.
func (s *SessionService) Cleanup(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= ?`, s.clock.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("cleanup expired sessions: %w", err)
	}
	return nil
}

// Cookie helpers

// SetCookie sets the session cookie on the response.
func SetCookie(w http.ResponseWriter, sessionID string, duration time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(duration.Seconds()),
	})
}

// ClearCookie removes the session cookie.
func ClearCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1, // Delete immediately
	})
}

// GetFromRequest retrieves the session ID from the request cookie.
func GetFromRequest(r *http.Request) (string, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return "", ErrSessionNotFound
		}
		return "", err
	}
	return cookie.Value, nil
}

func generateSessionID() (string, error) {
	bytes := make([]byte, SessionIDLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(bytes), nil
}
