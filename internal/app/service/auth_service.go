package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"family_tree/internal/common"
	"family_tree/internal/common/security"
	"family_tree/internal/domain/model"
	"family_tree/internal/domain/repository"

	"github.com/google/uuid"
)

// ErrInvalidCredentials is returned for unknown users and wrong passwords alike.
var ErrInvalidCredentials = common.NewClientError(common.ErrUnauthorized, "Invalid credentials")

type AuthService struct {
	userRepo repository.UserRepository
	hasher   *security.PasswordHasher
	tokens   *security.TokenService
	revoker  security.Revoker
	log      *slog.Logger
	now      func() time.Time

	// dummyHash is compared against when the user does not exist so the
	// response time does not reveal which usernames are registered.
	dummyHash string
}

func NewAuthService(
	userRepo repository.UserRepository,
	hasher *security.PasswordHasher,
	tokens *security.TokenService,
	revoker security.Revoker,
	log *slog.Logger,
) *AuthService {
	if revoker == nil {
		revoker = security.NoopRevoker{}
	}
	dummy, err := hasher.Hash(uuid.NewString())
	if err != nil {
		log.Warn("failed to prepare dummy password hash", "error", err)
	}
	return &AuthService{
		userRepo:  userRepo,
		hasher:    hasher,
		tokens:    tokens,
		revoker:   revoker,
		log:       log,
		now:       time.Now,
		dummyHash: dummy,
	}
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AuthResponse struct {
	User      security.Identity `json:"user"`
	Token     string            `json:"-"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	var missing []string
	if strings.TrimSpace(req.Username) == "" {
		missing = append(missing, "username")
	}
	if req.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return nil, &common.ValidationError{Fields: missing}
	}

	user, err := s.userRepo.FindByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.hasher.Verify(req.Password, s.dummyHash)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user.PasswordHash == "" {
		s.hasher.Verify(req.Password, s.dummyHash)
		return nil, ErrInvalidCredentials
	}
	if !s.hasher.Verify(req.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	identity := security.Identity{ID: user.ID, Username: user.Username, Role: user.Role}
	token, err := s.tokens.Issue(identity)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	// lastLogin is informational; a failed write must not fail the login.
	now := s.now()
	if err := s.userRepo.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.log.WarnContext(ctx, "failed to update last login", "user_id", user.ID, "error", err)
	}

	return &AuthResponse{User: identity, Token: token, ExpiresAt: now.Add(s.tokens.TTL())}, nil
}

// Authenticate verifies token and, when a revocation store is configured,
// rejects tokens revoked by logout.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*security.Claims, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	revoked, err := s.revoker.IsRevoked(ctx, claims.TokenID)
	if err != nil {
		return nil, fmt.Errorf("failed to check token revocation: %w", err)
	}
	if revoked {
		return nil, security.ErrInvalidToken
	}
	return claims, nil
}

// Logout revokes token if it is still valid. Without a revocation store this
// is a no-op and the client-side cookie deletion is the only effect.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil // nothing left to revoke
	}
	if err := s.revoker.Revoke(ctx, claims.TokenID, claims.ExpiresAt); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// CreateUser registers a user with a hashed password.
func (s *AuthService) CreateUser(ctx context.Context, username, password, role string) (*model.User, error) {
	var missing []string
	if strings.TrimSpace(username) == "" {
		missing = append(missing, "username")
	}
	if password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return nil, &common.ValidationError{Fields: missing}
	}
	if role == "" {
		role = model.RoleUser
	}
	if role != model.RoleUser && role != model.RoleAdmin {
		return nil, common.NewClientError(common.ErrValidation, "Invalid role")
	}

	hashedPassword, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hashedPassword,
		Role:         role,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		// Repo might return common.ErrConflict
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	user.PasswordHash = "" // Clear password before returning
	return user, nil
}

// EnsureAdmin creates the admin account unless the username is taken.
// It reports whether a user was created.
func (s *AuthService) EnsureAdmin(ctx context.Context, username, password string) (bool, error) {
	_, err := s.userRepo.FindByUsername(ctx, username)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return false, fmt.Errorf("failed to look up admin: %w", err)
	}
	if _, err := s.CreateUser(ctx, username, password, model.RoleAdmin); err != nil {
		return false, err
	}
	return true, nil
}
