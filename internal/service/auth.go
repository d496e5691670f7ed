// Package service — authentication business logic.
//
// AuthService sits between the HTTP handlers and the repository/auth
// utilities:
//
//	AuthHandler (HTTP) → AuthService (business rules) → UserRepository (DB)
//	                   ↘ TokenService (JWT) ↘ PasswordService (bcrypt)
//
// Two identity paths converge here: email+password (the terminal client
// registers and signs in this way) and Google OAuth (the browser flow).
// Both end in the same place — a user row and a signed JWT.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mshiraki/hibi/internal/apperror"
	"github.com/mshiraki/hibi/internal/auth"
	"github.com/mshiraki/hibi/internal/model"
	"github.com/mshiraki/hibi/internal/repository"
)

const (
	MinPasswordLength    = 8
	MaxDisplayNameLength = 50
)

// AuthService handles the authentication business logic.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
// Call this in server.go when wiring the dependency graph.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult bundles the user record and the issued JWT so the caller (the
// HTTP handler) can set the cookie / return the token and respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// Register creates a password account and signs the new user in.
func (s *AuthService) Register(ctx context.Context, email, password, displayName string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperror.ValidationFailed("email", "a valid email address is required")
	}
	if len(password) < MinPasswordLength {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	displayName = strings.TrimSpace(displayName)
	if len(displayName) > MaxDisplayNameLength {
		return nil, apperror.ValidationFailed("displayName",
			fmt.Sprintf("display name must be %d characters or less", MaxDisplayNameLength))
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	user := &model.User{
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: hash,
	}
	if err := s.users.CreateWithPassword(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: creating user %s: %w", email, err)
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("email", email),
	)

	return s.issue(user)
}

// Login verifies an email+password pair and returns a fresh token.
//
// SAME ERROR FOR BOTH FAILURE MODES:
// "No such account" and "wrong password" both come back as the same
// NotAuthenticated error. Distinguishing them would let an attacker probe
// which emails have accounts.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, apperror.NotAuthenticated("invalid email or password")
	}
	if user.PasswordHash == "" {
		// A Google-only account has no password to check.
		return nil, apperror.NotAuthenticated("invalid email or password")
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		s.logger.Warn("failed login attempt", slog.String("email", email))
		return nil, apperror.NotAuthenticated("invalid email or password")
	}

	s.logger.Info("user logged in",
		slog.String("userID", user.ID),
		slog.String("email", email),
	)

	return s.issue(user)
}

// LoginOrRegisterGoogle handles the Google OAuth callback: upserts the user
// (create on first login, refresh profile on later logins) and issues a JWT.
func (s *AuthService) LoginOrRegisterGoogle(ctx context.Context, gUser *auth.GoogleUser) (*AuthResult, error) {
	if gUser == nil {
		return nil, fmt.Errorf("service/auth: google user must not be nil")
	}

	user := &model.User{
		GoogleID:    gUser.Sub,
		Email:       strings.ToLower(gUser.Email),
		DisplayName: gUser.Name,
		AvatarURL:   gUser.Picture,
	}
	if err := s.users.UpsertGoogle(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: upserting google user: %w", err)
	}

	s.logger.Info("user authenticated via Google",
		slog.String("userID", user.ID),
	)

	return s.issue(user)
}

// UpdateDisplayName changes the user's display name and returns the updated
// record. The caller's local view should reflect the new name only from the
// returned record — i.e. after the store confirmed the write.
func (s *AuthService) UpdateDisplayName(ctx context.Context, userID, name string) (*model.User, error) {
	if userID == "" {
		return nil, apperror.NotAuthenticated("")
	}
	name = strings.TrimSpace(name)
	if len(name) > MaxDisplayNameLength {
		return nil, apperror.ValidationFailed("displayName",
			fmt.Sprintf("display name must be %d characters or less", MaxDisplayNameLength))
	}

	if err := s.users.UpdateDisplayName(ctx, userID, name); err != nil {
		return nil, fmt.Errorf("service/auth: updating display name for %s: %w", userID, err)
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", userID, err)
	}

	s.logger.Info("display name updated", slog.String("userID", userID))
	return user, nil
}

// GetUserByID returns the user for the given internal ID. Used by /api/me
// after the middleware validates the JWT.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, fmt.Errorf("service/auth: user ID must not be empty")
	}

	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}

	return user, nil
}

// ValidateToken validates a JWT string and returns the userID it encodes.
// Thin delegation so callers only import the service package.
func (s *AuthService) ValidateToken(tokenStr string) (string, error) {
	userID, err := s.tokens.Validate(tokenStr)
	if err != nil {
		return "", fmt.Errorf("service/auth: %w", err)
	}
	return userID, nil
}

// issue generates the JWT for an authenticated user.
func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}
