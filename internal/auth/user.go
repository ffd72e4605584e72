package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"
	stdtime "time"

	"github.com/google/uuid"
	"golang.org/x/crypto/argon2"

	"github.com/quietpieces/ya-note/internal/db"
)

// Errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidUsername    = errors.New("username must be 3-150 characters of letters, digits and @/./+/-/_")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
)

// Argon2id parameters (OWASP second recommendation: m=19456, t=2, p=1).
// Parameters are embedded in each hash string, so hashes created with
// other params still verify correctly.
const (
	argon2Time    = 2
	argon2Memory  = 19 * 1024 // ~19 MiB
	argon2Threads = 1
	argon2KeyLen  = 32
	argon2SaltLen = 16
)

const (
	MinUsernameLength = 3
	MaxUsernameLength = 150
)

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

// Clock abstracts time for testability.
type Clock interface {
	Now() stdtime.Time
}

// realClock implements Clock using the real system stdtime.
type realClock struct{}

func (realClock) Now() stdtime.Time { return stdtime.Now() }

// User represents a user account.
type User struct {
	ID        string
	Username  string
	CreatedAt stdtime.Time
}

// UserService handles user management operations.
type UserService struct {
	db    *sql.DB
	clock Clock
}

// NewUserService creates a new user service.
func NewUserService(sqlDB *sql.DB) *UserService {
	return &UserService{
		db:    sqlDB,
		clock: realClock{},
	}
}

// SetClock replaces the clock used by the service. Intended for testing.
func (s *UserService) SetClock(c Clock) {
	s.clock = c
}

// Signup creates a new account with username/password.
// Returns ErrUsernameTaken if the username is already registered.
func (s *UserService) Signup(ctx context.Context, username, password string) (*User, error) {
	username = strings.TrimSpace(username)
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := ValidatePasswordStrength(password); err != nil {
		return nil, err
	}

	passwordHash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	userID := generateUserID(username)
	now := s.clock.Now()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		userID, username, passwordHash, now.Unix(),
	)
	if err != nil {
		if db.IsUniqueViolation(err, "users.username") || db.IsUniqueViolation(err, "users.id") {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return &User{
		ID:        userID,
		Username:  username,
		CreatedAt: now,
	}, nil
}

// Login verifies username/password credentials for an existing account.
// Returns ErrInvalidCredentials if the user doesn't exist or the password
// is wrong, without distinguishing the two.
func (s *UserService) Login(ctx context.Context, username, password string) (*User, error) {
	username = strings.TrimSpace(username)

	var (
		userID       string
		passwordHash string
		createdAt    int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, password_hash, created_at FROM users WHERE username = ?`,
		username,
	).Scan(&userID, &passwordHash, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Burn comparable time so absent users are not distinguishable
			// from wrong passwords.
			VerifyPassword(password, dummyHash)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if !VerifyPassword(password, passwordHash) {
		return nil, ErrInvalidCredentials
	}

	return &User{
		ID:        userID,
		Username:  username,
		CreatedAt: stdtime.Unix(createdAt, 0),
	}, nil
}

// GetByID looks up a user by ID.
func (s *UserService) GetByID(ctx context.Context, userID string) (*User, error) {
	var (
		username  string
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT username, created_at FROM users WHERE id = ?`,
		userID,
	).Scan(&username, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &User{
		ID:        userID,
		Username:  username,
		CreatedAt: stdtime.Unix(createdAt, 0),
	}, nil
}

// ValidateUsername checks username length and allowed characters.
func ValidateUsername(username string) error {
	if len(username) < MinUsernameLength || len(username) > MaxUsernameLength {
		return ErrInvalidUsername
	}
	if !usernamePattern.MatchString(username) {
		return ErrInvalidUsername
	}
	return nil
}

// ValidatePasswordStrength checks if a password meets minimum requirements.
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return ErrWeakPassword
	}
	return nil
}

// HashPassword hashes a password using Argon2id.
func HashPassword(password string) (string, error) {
	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)

	// Encode as: $argon2id$v=19$m=19456,t=2,p=1$<salt>$<hash>
	encodedSalt := base64.RawStdEncoding.EncodeToString(salt)
	encodedHash := base64.RawStdEncoding.EncodeToString(hash)

	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		argon2Memory, argon2Time, argon2Threads, encodedSalt, encodedHash), nil
}

// VerifyPassword checks if a password matches a hash.
func VerifyPassword(password, encodedHash string) bool {
	// Format: $argon2id$v=19$m=19456,t=2,p=1$<salt>$<hash>
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return false
	}

	if parts[1] != "argon2id" {
		return false
	}

	if parts[2] != "v=19" {
		return false
	}

	var memory, time uint32
	var threads uint8
	_, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads)
	if err != nil {
		return false
	}

	saltBytes, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}

	hashBytes, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}

	hashLen := len(hashBytes)
	if hashLen <= 0 || hashLen > argon2KeyLen*2 {
		return false
	}

	computedHash := argon2.IDKey([]byte(password), saltBytes, time, memory, threads, uint32(hashLen))

	return subtle.ConstantTimeCompare(hashBytes, computedHash) == 1
}

// dummyHash is a valid argon2id hash of an unguessable throwaway value,
// used to equalize login timing when the username does not exist.
var dummyHash = func() string {
	h, err := HashPassword("ya-note-timing-pad")
	if err != nil {
		return ""
	}
	return h
}()

func generateUserID(username string) string {
	return "user-" + uuid.NewSHA1(uuid.NameSpaceDNS, []byte(username)).String()
}
