package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pageturnapp/pageturn-server/internal/auth"
	domainerrors "github.com/pageturnapp/pageturn-server/internal/errors"
	"github.com/pageturnapp/pageturn-server/internal/mail"
	"github.com/pageturnapp/pageturn-server/internal/validation"
)

func newTestAuthService(t *testing.T) *AuthService {
	t.Helper()
	store := newTestStore(t)
	logger := testLogger()

	key, err := auth.LoadOrGenerateKey(t.TempDir())
	require.NoError(t, err)
	tokenService, err := auth.NewTokenService(key, time.Hour)
	require.NoError(t, err)

	mailer := mail.New(mail.Config{Enabled: false, FrontendURL: "http://localhost:3000"}, logger)
	return NewAuthService(store, tokenService, validation.New(), mailer, 48*time.Hour, logger)
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterRequest{
		Email:    "reader@example.com",
		Password: "password123",
		Name:     "Reader",
	})
	require.NoError(t, err)
	assert.False(t, user.IsActive)
	assert.NotEmpty(t, user.ActivationToken)
	assert.NotEqual(t, "password123", user.PasswordHash)

	// The profile is created with the account.
	profile, err := svc.store.GetProfile(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), profile.TotalReading7Days)

	// Login before activation is forbidden.
	_, err = svc.Login(ctx, LoginRequest{Email: "reader@example.com", Password: "password123"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrForbidden)

	require.NoError(t, svc.Activate(ctx, user.ActivationToken))

	resp, err := svc.Login(ctx, LoginRequest{Email: "reader@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, user.ID, resp.User.ID)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	req := RegisterRequest{Email: "dup@example.com", Password: "password123", Name: "First"}
	_, err := svc.Register(ctx, req)
	require.NoError(t, err)

	_, err = svc.Register(ctx, req)
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrAlreadyExists)
}

func TestLoginWrongPassword(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterRequest{
		Email:    "reader@example.com",
		Password: "password123",
		Name:     "Reader",
	})
	require.NoError(t, err)
	require.NoError(t, svc.Activate(ctx, user.ActivationToken))

	_, err = svc.Login(ctx, LoginRequest{Email: "reader@example.com", Password: "wrong-password"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrInvalidCredentials)

	// Unknown email yields the same error.
	_, err = svc.Login(ctx, LoginRequest{Email: "nobody@example.com", Password: "password123"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrInvalidCredentials)
}

func TestActivateInvalidToken(t *testing.T) {
	svc := newTestAuthService(t)

	err := svc.Activate(context.Background(), "bogus")
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestPasswordResetFlow(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterRequest{
		Email:    "reader@example.com",
		Password: "password123",
		Name:     "Reader",
	})
	require.NoError(t, err)
	require.NoError(t, svc.Activate(ctx, user.ActivationToken))

	require.NoError(t, svc.RequestPasswordReset(ctx, "reader@example.com"))

	stored, err := svc.store.GetUser(ctx, user.ID)
	require.NoError(t, err)
	require.NotEmpty(t, stored.ResetToken)

	require.NoError(t, svc.ConfirmPasswordReset(ctx, stored.ResetToken, "newpassword456"))

	// Old password no longer works; new one does.
	_, err = svc.Login(ctx, LoginRequest{Email: "reader@example.com", Password: "password123"})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidCredentials)

	_, err = svc.Login(ctx, LoginRequest{Email: "reader@example.com", Password: "newpassword456"})
	assert.NoError(t, err)

	// The token is single-use.
	err = svc.ConfirmPasswordReset(ctx, stored.ResetToken, "anotherpass789")
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestRequestPasswordResetUnknownEmail(t *testing.T) {
	svc := newTestAuthService(t)

	// Unknown emails succeed silently.
	assert.NoError(t, svc.RequestPasswordReset(context.Background(), "nobody@example.com"))
}
