// Package admin implements back-office authentication and reporting.
package admin

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials is returned for an unknown user or wrong password.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrInvalidToken is returned when a session token fails verification.
	ErrInvalidToken = errors.New("invalid session token")
	// ErrUserNotFound is returned by a UserRepository for an unknown username.
	ErrUserNotFound = errors.New("admin user not found")
)

var signingMethod = jwt.SigningMethodHS256

// User is a back-office account.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// UserRepository looks up and stores admin accounts.
type UserRepository interface {
	FindByUsername(ctx context.Context, username string) (*User, error)
	Upsert(ctx context.Context, u *User) error
}

// TokenConfig controls session token signing.
type TokenConfig struct {
	Secret string
	Issuer string
	TTL    time.Duration
}

// Claims are the session token claims.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Session is an issued admin session.
type Session struct {
	Token     string
	ExpiresAt time.Time
}

// Authenticator verifies admin passwords and issues signed session tokens.
type Authenticator struct {
	users UserRepository
	cfg   TokenConfig
	now   func() time.Time
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(users UserRepository, cfg TokenConfig) (*Authenticator, error) {
	if len(cfg.Secret) < 16 {
		return nil, errors.New("session secret must be at least 16 bytes")
	}
	if cfg.Issuer == "" {
		return nil, errors.New("session issuer is required")
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("session ttl must be positive")
	}
	return &Authenticator{users: users, cfg: cfg, now: time.Now}, nil
}

// Login checks the password and returns a new session.
func (a *Authenticator) Login(ctx context.Context, username, password string) (*Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	u, err := a.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, "find admin user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return a.issue(u)
}

func (a *Authenticator) issue(u *User) (*Session, error) {
	now := a.now()
	expires := now.Add(a.cfg.TTL)

	claims := Claims{
		Username: u.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.cfg.Issuer,
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString([]byte(a.cfg.Secret))
	if err != nil {
		return nil, errors.Wrap(err, "sign session token")
	}
	return &Session{Token: signed, ExpiresAt: expires}, nil
}

// Verify parses and validates a session token.
func (a *Authenticator) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(
		token,
		claims,
		func(t *jwt.Token) (any, error) {
			return []byte(a.cfg.Secret), nil
		},
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(a.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidToken, err.Error())
	}
	return claims, nil
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", errors.New("password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Wrap(err, "hash password")
	}
	return string(hash), nil
}
