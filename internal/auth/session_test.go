package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/quietpieces/ya-note/internal/db"
)

// fakeClock is a controllable clock for session expiry tests.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestSessionService(t *testing.T, duration time.Duration) (*SessionService, *fakeClock, string) {
	t.Helper()
	sqlDB, err := db.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory failed: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	users := NewUserService(sqlDB)
	user, err := users.Signup(context.Background(), "alice", "password123")
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}

	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	svc := NewSessionService(sqlDB, duration)
	svc.SetClock(clock)
	return svc, clock, user.ID
}

func TestSession_CreateValidateDelete(t *testing.T) {
	t.Parallel()
	svc, _, userID := newTestSessionService(t, time.Hour)
	ctx := context.Background()

	sessionID, err := svc.Create(ctx, userID)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if sessionID == "" {
		t.Fatal("Create returned empty session ID")
	}

	gotUserID, err := svc.Validate(ctx, sessionID)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if gotUserID != userID {
		t.Fatalf("Validate user = %q, want %q", gotUserID, userID)
	}

	if err := svc.Delete(ctx, sessionID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := svc.Validate(ctx, sessionID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Validate after Delete error = %v, want ErrSessionNotFound", err)
	}
}

func TestSession_Expiry(t *testing.T) {
	t.Parallel()
	svc, clock, userID := newTestSessionService(t, time.Hour)
	ctx := context.Background()

	sessionID, err := svc.Create(ctx, userID)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	clock.Advance(2 * time.Hour)
	if _, err := svc.Validate(ctx, sessionID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expired session error = %v, want ErrSessionNotFound", err)
	}
}

func TestSession_Cleanup(t *testing.T) {
	t.Parallel()
	svc, clock, userID := newTestSessionService(t, time.Hour)
	ctx := context.Background()

	expired, err := svc.Create(ctx, userID)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	clock.Advance(2 * time.Hour)
	live, err := svc.Create(ctx, userID)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := svc.Cleanup(ctx); err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}

	if _, err := svc.Validate(ctx, expired); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expired session should be gone, got %v", err)
	}
	if _, err := svc.Validate(ctx, live); err != nil {
		t.Fatalf("live session should survive cleanup, got %v", err)
	}
}

func TestSession_DeleteByUserID(t *testing.T) {
	t.Parallel()
	svc, _, userID := newTestSessionService(t, time.Hour)
	ctx := context.Background()

	s1, err := svc.Create(ctx, userID)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	s2, err := svc.Create(ctx, userID)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := svc.DeleteByUserID(ctx, userID); err != nil {
		t.Fatalf("DeleteByUserID failed: %v", err)
	}
	for _, id := range []string{s1, s2} {
		if _, err := svc.Validate(ctx, id); !errors.Is(err, ErrSessionNotFound) {
			t.Fatalf("session %q should be gone, got %v", id, err)
		}
	}
}

func TestRequireAuth_RedirectsAnonymousWithNext(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestSessionService(t, time.Hour)
	mw := NewMiddleware(svc)

	handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached without a session")
	}))

	req := httptest.NewRequest(http.MethodGet, "/add/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusFound)
	}
	if got := rec.Header().Get("Location"); got != "/users/login/?next=/add/" {
		t.Fatalf("Location = %q, want /users/login/?next=/add/", got)
	}
}

func TestRequireAuth_PassesUserIDThroughContext(t *testing.T) {
	t.Parallel()
	svc, _, userID := newTestSessionService(t, time.Hour)
	mw := NewMiddleware(svc)

	sessionID, err := svc.Create(context.Background(), userID)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	var gotUserID string
	handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = GetUserID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/notes/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: sessionID})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if gotUserID != userID {
		t.Fatalf("context user = %q, want %q", gotUserID, userID)
	}
}
