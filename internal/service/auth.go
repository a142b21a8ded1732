package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pageturnapp/pageturn-server/internal/auth"
	"github.com/pageturnapp/pageturn-server/internal/domain"
	domainerrors "github.com/pageturnapp/pageturn-server/internal/errors"
	"github.com/pageturnapp/pageturn-server/internal/id"
	"github.com/pageturnapp/pageturn-server/internal/mail"
	"github.com/pageturnapp/pageturn-server/internal/store"
	"github.com/pageturnapp/pageturn-server/internal/store/sqlite"
	"github.com/pageturnapp/pageturn-server/internal/validation"
)

const resetTokenDuration = time.Hour

// AuthService handles registration, activation, login, and password reset.
type AuthService struct {
	store              *sqlite.Store
	tokenService       *auth.TokenService
	validator          *validation.Validator
	mailer             *mail.Mailer
	logger             *slog.Logger
	activationDuration time.Duration

	now func() time.Time
}

// NewAuthService creates a new authentication service.
func NewAuthService(
	store *sqlite.Store,
	tokenService *auth.TokenService,
	validator *validation.Validator,
	mailer *mail.Mailer,
	activationDuration time.Duration,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		store:              store,
		tokenService:       tokenService,
		validator:          validator,
		mailer:             mailer,
		logger:             logger,
		activationDuration: activationDuration,
		now:                time.Now,
	}
}

// RegisterRequest is the payload for creating an account.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=1024"`
	Name     string `json:"name" validate:"required,max=255"`
}

// LoginRequest is the payload for authenticating.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the issued access token.
type LoginResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int          `json:"expires_in"`
	User        *domain.User `json:"user"`
}

// Register creates an inactive account with its profile and emails the
// activation link. The account cannot log in until activated.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*domain.User, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, domainerrors.Validation("Invalid password").WithCause(err)
	}

	activationToken, err := auth.GenerateOpaqueToken()
	if err != nil {
		return nil, fmt.Errorf("generate activation token: %w", err)
	}

	userID, err := id.Generate("user")
	if err != nil {
		return nil, fmt.Errorf("generate user ID: %w", err)
	}

	now := s.now().UTC()
	expires := now.Add(s.activationDuration)
	user := &domain.User{
		ID:                  userID,
		Email:               req.Email,
		Name:                req.Name,
		PasswordHash:        passwordHash,
		ActivationToken:     activationToken,
		ActivationExpiresAt: &expires,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := s.store.CreateUser(ctx, user, domain.NewProfile(userID, now)); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, domainerrors.AlreadyExists("A user with this email already exists")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	if err := s.mailer.SendActivation(user.Email, user.Name, activationToken); err != nil {
		// The account exists; activation can be re-requested.
		s.logger.Error("send activation mail failed", "user_id", user.ID, "error", err)
	}

	s.logger.Info("user registered", "user_id", user.ID)
	return user, nil
}

// Activate redeems an activation token and enables the account.
func (s *AuthService) Activate(ctx context.Context, token string) error {
	if token == "" {
		return domainerrors.Validation("Activation token is required")
	}

	user, err := s.store.GetUserByActivationToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domainerrors.NotFound("Invalid activation token")
		}
		return fmt.Errorf("get user by activation token: %w", err)
	}

	now := s.now().UTC()
	if user.ActivationExpiresAt != nil && now.After(*user.ActivationExpiresAt) {
		return domainerrors.ErrTokenExpired.WithDetails("activation link expired, register again")
	}

	if err := s.store.ActivateUser(ctx, user.ID, now); err != nil {
		return fmt.Errorf("activate user: %w", err)
	}

	s.logger.Info("user activated", "user_id", user.ID)
	return nil
}

// Login verifies credentials and issues an access token. Inactive accounts
// are rejected.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.store.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Same error as a wrong password so emails can't be probed.
			return nil, domainerrors.InvalidCredentials("Invalid email or password")
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}

	ok, err := auth.VerifyPassword(user.PasswordHash, req.Password)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, domainerrors.InvalidCredentials("Invalid email or password")
	}

	if !user.CanLogin() {
		return nil, domainerrors.Forbidden("Account is not activated")
	}

	accessToken, err := s.tokenService.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	s.logger.Info("user logged in", "user_id", user.ID)
	return &LoginResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.tokenService.AccessTokenDuration().Seconds()),
		User:        user,
	}, nil
}

// RequestPasswordReset stores a reset token and emails the reset link.
// Unknown emails succeed silently.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	if email == "" {
		return domainerrors.Validation("Email is required")
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.logger.Info("password reset requested for unknown email")
			return nil
		}
		return fmt.Errorf("get user by email: %w", err)
	}

	resetToken, err := auth.GenerateOpaqueToken()
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}

	now := s.now().UTC()
	if err := s.store.SetResetToken(ctx, user.ID, resetToken, now.Add(resetTokenDuration), now); err != nil {
		return fmt.Errorf("set reset token: %w", err)
	}

	if err := s.mailer.SendPasswordReset(user.Email, user.Name, resetToken); err != nil {
		return fmt.Errorf("send reset mail: %w", err)
	}

	s.logger.Info("password reset requested", "user_id", user.ID)
	return nil
}

// ConfirmPasswordReset redeems a reset token and sets the new password.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return domainerrors.Validation("Reset token is required")
	}
	if len(newPassword) < 8 {
		return domainerrors.Validation("Password must be at least 8 characters")
	}

	user, err := s.store.GetUserByResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domainerrors.NotFound("Invalid reset token")
		}
		return fmt.Errorf("get user by reset token: %w", err)
	}

	now := s.now().UTC()
	if user.ResetExpiresAt == nil || now.After(*user.ResetExpiresAt) {
		return domainerrors.ErrTokenExpired.WithDetails("reset link expired, request a new one")
	}

	passwordHash, err := auth.HashPassword(newPassword)
	if err != nil {
		return domainerrors.Validation("Invalid password").WithCause(err)
	}

	if err := s.store.UpdatePassword(ctx, user.ID, passwordHash, now); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	s.logger.Info("password reset", "user_id", user.ID)
	return nil
}

// VerifyAccessToken verifies a Bearer token and returns its claims.
func (s *AuthService) VerifyAccessToken(token string) (*auth.AccessClaims, error) {
	claims, err := s.tokenService.VerifyAccessToken(token)
	if err != nil {
		return nil, domainerrors.Unauthorized("Invalid or expired token").WithCause(err)
	}
	return claims, nil
}

// GetUser returns a user by ID.
func (s *AuthService) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("User not found")
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}
