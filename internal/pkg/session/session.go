package session

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ManuelReschke/FoxPass/internal/pkg/env"
)

const DefaultTokenTTL = 24 * time.Hour

var (
	ErrSecretMissing = errors.New("SESSION_JWT_SECRET is not configured")
	ErrTokenMissing  = errors.New("session token is required")
	ErrTokenInvalid  = errors.New("session token is invalid")
)

// Claims are the session token claims. Subject holds the profile id.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Manager issues and verifies HS256 session tokens.
type Manager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewManager creates a token manager. An empty issuer disables the issuer check.
func NewManager(secret, issuer string, ttl time.Duration) (*Manager, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, ErrSecretMissing
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Manager{
		secret: []byte(secret),
		issuer: strings.TrimSpace(issuer),
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// NewManagerFromEnv reads SESSION_JWT_SECRET and SESSION_JWT_ISSUER.
func NewManagerFromEnv() (*Manager, error) {
	return NewManager(env.GetEnv("SESSION_JWT_SECRET", ""), env.GetEnv("SESSION_JWT_ISSUER", ""), DefaultTokenTTL)
}

// Issue signs a token for userID.
func (m *Manager) Issue(userID uint, role string) (string, error) {
	if userID == 0 {
		return "", errors.New("user id is required")
	}
	now := m.now().UTC()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Verify parses token and returns the profile id it was issued for.
func (m *Manager) Verify(token string) (uint, *Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, nil, ErrTokenMissing
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	}, opts...)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !parsed.Valid {
		return 0, nil, ErrTokenInvalid
	}

	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, nil, fmt.Errorf("%w: bad subject", ErrTokenInvalid)
	}
	return uint(id), claims, nil
}

// BearerToken extracts the token of an "Authorization: Bearer" header value.
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
