package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pageturnapp/pageturn-server/internal/domain"
	"github.com/pageturnapp/pageturn-server/internal/store"
)

// GetProfile returns the profile for a user.
func (s *Store) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	var p domain.Profile
	var createdAt, updatedAt string

	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, total_reading_7days, total_reading_30days, created_at, updated_at
		FROM profiles
		WHERE user_id = ?
	`, userID).Scan(&p.UserID, &p.TotalReading7Days, &p.TotalReading30Days, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}

	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &p, nil
}

// ListProfileUserIDs returns the user IDs of all profiles. The statistics
// job walks this list; IDs keep the snapshot small when profiles grow
// extra columns.
func (s *Store) ListProfileUserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id FROM profiles ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list profile user ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan profile user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdateProfileTotals overwrites the rolling reading totals for a user.
func (s *Store) UpdateProfileTotals(ctx context.Context, userID string, total7Days, total30Days int64, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE profiles
		SET total_reading_7days = ?, total_reading_30days = ?, updated_at = ?
		WHERE user_id = ?
	`, total7Days, total30Days, formatTime(at), userID)
	if err != nil {
		return fmt.Errorf("update profile totals: %w", err)
	}
	return requireRow(res)
}
