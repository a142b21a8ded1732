package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pageturnapp/pageturn-server/internal/domain"
	"github.com/pageturnapp/pageturn-server/internal/store"
)

const userColumns = `id, email, name, password_hash, is_active,
	activation_token, activation_expires_at, reset_token, reset_expires_at,
	created_at, updated_at`

// scanUser scans a user row.
func scanUser(scanner interface{ Scan(...any) error }) (*domain.User, error) {
	var u domain.User
	var isActive int
	var activationToken, resetToken sql.NullString
	var activationExpires, resetExpires sql.NullString
	var createdAt, updatedAt string

	err := scanner.Scan(
		&u.ID, &u.Email, &u.Name, &u.PasswordHash, &isActive,
		&activationToken, &activationExpires, &resetToken, &resetExpires,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	u.IsActive = isActive != 0
	u.ActivationToken = activationToken.String
	u.ResetToken = resetToken.String

	if u.ActivationExpiresAt, err = parseNullableTime(activationExpires); err != nil {
		return nil, fmt.Errorf("parse activation_expires_at: %w", err)
	}
	if u.ResetExpiresAt, err = parseNullableTime(resetExpires); err != nil {
		return nil, fmt.Errorf("parse reset_expires_at: %w", err)
	}
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if u.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &u, nil
}

// CreateUser inserts the user and their profile in one transaction. Every
// account gets a profile row at creation so the statistics job never has to
// special-case missing profiles.
func (s *Store) CreateUser(ctx context.Context, user *domain.User, profile *domain.Profile) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		user.ID, user.Email, user.Name, user.PasswordHash, boolToInt(user.IsActive),
		nullString(user.ActivationToken), nullTimeString(user.ActivationExpiresAt),
		nullString(user.ResetToken), nullTimeString(user.ResetExpiresAt),
		formatTime(user.CreatedAt), formatTime(user.UpdatedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return store.ErrAlreadyExists.WithMessage("a user with this email already exists")
		}
		return fmt.Errorf("insert user: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO profiles (user_id, total_reading_7days, total_reading_30days, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		profile.UserID, profile.TotalReading7Days, profile.TotalReading30Days,
		formatTime(profile.CreatedAt), formatTime(profile.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetUser returns a user by ID.
func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return s.getUserWhere(ctx, "id = ?", id)
}

// GetUserByEmail returns a user by email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.getUserWhere(ctx, "email = ?", email)
}

// GetUserByActivationToken returns the user holding the activation token.
func (s *Store) GetUserByActivationToken(ctx context.Context, token string) (*domain.User, error) {
	return s.getUserWhere(ctx, "activation_token = ?", token)
}

// GetUserByResetToken returns the user holding the password reset token.
func (s *Store) GetUserByResetToken(ctx context.Context, token string) (*domain.User, error) {
	return s.getUserWhere(ctx, "reset_token = ?", token)
}

func (s *Store) getUserWhere(ctx context.Context, where string, arg any) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE `+where, arg)

	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// ActivateUser marks the user active and clears the activation token.
func (s *Store) ActivateUser(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET is_active = 1, activation_token = NULL, activation_expires_at = NULL, updated_at = ?
		WHERE id = ?
	`, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("activate user: %w", err)
	}
	return requireRow(res)
}

// SetResetToken stores a password reset token on the user.
func (s *Store) SetResetToken(ctx context.Context, id, token string, expiresAt, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET reset_token = ?, reset_expires_at = ?, updated_at = ?
		WHERE id = ?
	`, token, formatTime(expiresAt), formatTime(at), id)
	if err != nil {
		return fmt.Errorf("set reset token: %w", err)
	}
	return requireRow(res)
}

// UpdatePassword replaces the password hash and clears any reset token.
func (s *Store) UpdatePassword(ctx context.Context, id, passwordHash string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET password_hash = ?, reset_token = NULL, reset_expires_at = NULL, updated_at = ?
		WHERE id = ?
	`, passwordHash, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return requireRow(res)
}

// requireRow converts a zero-row update into store.ErrNotFound.
func requireRow(res sql.Result) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return store.ErrNotFound
	}
	return nil
}
