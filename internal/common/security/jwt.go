package security

import (
	"errors"
	"fmt"
	"time"

	"family_tree/internal/common"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningAlgorithm is the only algorithm tokens are signed and accepted with.
const SigningAlgorithm = "HS256"

var (
	// ErrInvalidToken covers malformed, forged, expired and revoked tokens.
	ErrInvalidToken = common.NewClientError(common.ErrUnauthorized, "Invalid or expired token")

	errIncompleteIdentity = errors.New("identity requires id, username and role")
)

// Identity is the password-free view of a user that goes into a token.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Claims is the verified content of a session token.
type Claims struct {
	ID        string
	Username  string
	Role      string
	IssuedAt  time.Time
	ExpiresAt time.Time
	// TokenID is the jti, used to revoke a single token.
	TokenID string
}

func (c *Claims) Identity() Identity {
	return Identity{ID: c.ID, Username: c.Username, Role: c.Role}
}

type sessionClaims struct {
	UserID   string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies HS256 session tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

type TokenOption func(*TokenService)

// WithClock overrides the time source used for issuing and validating.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) { s.now = now }
}

func NewTokenService(secret []byte, ttl time.Duration, opts ...TokenOption) *TokenService {
	s := &TokenService{secret: secret, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *TokenService) TTL() time.Duration { return s.ttl }

// Issue signs a new token for id, valid for the service TTL from now.
func (s *TokenService) Issue(id Identity) (string, error) {
	if id.ID == "" || id.Username == "" || id.Role == "" {
		return "", errIncompleteIdentity
	}
	now := s.now()
	claims := sessionClaims{
		UserID:   id.ID,
		Username: id.Username,
		Role:     id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   id.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, algorithm and expiry and returns the claims.
// Every failure wraps ErrInvalidToken.
func (s *TokenService) Verify(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}
	parsed := &sessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, parsed,
		func(t *jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{SigningAlgorithm}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if parsed.UserID == "" || parsed.Username == "" || parsed.Role == "" || parsed.IssuedAt == nil {
		return nil, fmt.Errorf("%w: missing identity claims", ErrInvalidToken)
	}

	return &Claims{
		ID:        parsed.UserID,
		Username:  parsed.Username,
		Role:      parsed.Role,
		IssuedAt:  parsed.IssuedAt.Time,
		ExpiresAt: parsed.ExpiresAt.Time,
		TokenID:   parsed.RegisteredClaims.ID,
	}, nil
}
