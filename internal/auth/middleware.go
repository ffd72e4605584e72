package auth

import (
	"context"
	"net/http"
)

// Context keys for auth data
type contextKey string

const (
	userIDKey contextKey = "userID"
)

// LoginPath is where unauthenticated browser requests are sent.
const LoginPath = "/users/login/"

// Middleware provides authentication middleware for HTTP handlers.
type Middleware struct {
	sessionService *SessionService
}

// NewMiddleware creates a new auth middleware.
func NewMiddleware(sessionService *SessionService) *Middleware {
	return &Middleware{
		sessionService: sessionService,
	}
}

// RequireAuth is middleware that requires a valid session.
// Unauthenticated requests are redirected to the login page with the
// original path carried in the next parameter.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := GetFromRequest(r)
		if err != nil {
			redirectToLogin(w, r)
			return
		}

		userID, err := m.sessionService.Validate(r.Context(), sessionID)
		if err != nil {
			redirectToLogin(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalAuth is middleware that adds user info to context if present.
// Does not require authentication - continues with or without a session.
func (m *Middleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := GetFromRequest(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		userID, err := m.sessionService.Validate(r.Context(), sessionID)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	// The next parameter deliberately carries the raw path so the login
	// page can send the user back where they came from.
	http.Redirect(w, r, LoginPath+"?next="+r.URL.Path, http.StatusFound)
}

// GetUserID retrieves the user ID from the request context.
// Returns empty string if no user is authenticated.
func GetUserID(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey).(string)
	return userID
}

// IsAuthenticated checks if the context has an authenticated user.
func IsAuthenticated(ctx context.Context) bool {
	return GetUserID(ctx) != ""
}
