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

const readingSessionColumns = `id, user_id, book_id, started_at, stopped_at, created_at, updated_at`

// scanReadingSession scans a reading session row.
func scanReadingSession(scanner interface{ Scan(...any) error }) (*domain.ReadingSession, error) {
	var s domain.ReadingSession
	var startedAt, createdAt, updatedAt string
	var stoppedAt sql.NullString

	err := scanner.Scan(
		&s.ID, &s.UserID, &s.BookID,
		&startedAt, &stoppedAt,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if s.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	if s.StoppedAt, err = parseNullableTime(stoppedAt); err != nil {
		return nil, fmt.Errorf("parse stopped_at: %w", err)
	}
	if s.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if s.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &s, nil
}

// StartReadingSession opens a new session for session.UserID in a single
// transaction. If the user has an open session on the same book it fails
// with store.ErrSessionOpen; an open session on a different book is closed
// at session.StartedAt before the new one is inserted. Returns the session
// that was closed, if any.
//
// A concurrent start can slip between the check and the insert; the partial
// unique index on open sessions turns that race into ErrConcurrentUpdate so
// the caller can retry.
func (s *Store) StartReadingSession(ctx context.Context, session *domain.ReadingSession) (*domain.ReadingSession, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT `+readingSessionColumns+`
		FROM reading_sessions
		WHERE user_id = ? AND stopped_at IS NULL
	`, session.UserID)

	var closed *domain.ReadingSession
	open, err := scanReadingSession(row)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// No open session; nothing to close.
	case err != nil:
		return nil, fmt.Errorf("query open session: %w", err)
	case open.BookID == session.BookID:
		return nil, store.ErrSessionOpen
	default:
		open.Close(session.StartedAt)
		_, err = tx.ExecContext(ctx, `
			UPDATE reading_sessions
			SET stopped_at = ?, updated_at = ?
			WHERE id = ? AND stopped_at IS NULL
		`, nullTimeString(open.StoppedAt), formatTime(session.StartedAt), open.ID)
		if err != nil {
			return nil, fmt.Errorf("close previous session: %w", err)
		}
		closed = open
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO reading_sessions (`+readingSessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		session.ID, session.UserID, session.BookID,
		formatTime(session.StartedAt), nullTimeString(session.StoppedAt),
		formatTime(session.CreatedAt), formatTime(session.UpdatedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") ||
			strings.Contains(err.Error(), "idx_reading_sessions_one_open") {
			return nil, store.ErrConcurrentUpdate.WithCause(err)
		}
		return nil, fmt.Errorf("insert reading session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return closed, nil
}

// CloseReadingSession stops the session at the given time. It only touches
// sessions that are still open; a session that is already stopped is left
// untouched and reported as not found.
func (s *Store) CloseReadingSession(ctx context.Context, sessionID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE reading_sessions
		SET stopped_at = ?, updated_at = ?
		WHERE id = ? AND stopped_at IS NULL
	`, formatTime(at), formatTime(at), sessionID)
	if err != nil {
		return fmt.Errorf("close reading session: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return store.ErrNotFound
	}
	return nil
}

// GetOpenSession returns the user's open session, or nil if there is none.
func (s *Store) GetOpenSession(ctx context.Context, userID string) (*domain.ReadingSession, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+readingSessionColumns+`
		FROM reading_sessions
		WHERE user_id = ? AND stopped_at IS NULL
	`, userID)

	session, err := scanReadingSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get open session: %w", err)
	}
	return session, nil
}

// GetLastReadingSession returns the most recently created session for the
// user and book, open or not.
func (s *Store) GetLastReadingSession(ctx context.Context, userID, bookID string) (*domain.ReadingSession, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+readingSessionColumns+`
		FROM reading_sessions
		WHERE user_id = ? AND book_id = ?
		ORDER BY created_at DESC
		LIMIT 1
	`, userID, bookID)

	session, err := scanReadingSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get last reading session: %w", err)
	}
	return session, nil
}

// ListReadingSessions returns all sessions for the user and book, newest first.
func (s *Store) ListReadingSessions(ctx context.Context, userID, bookID string) ([]*domain.ReadingSession, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+readingSessionColumns+`
		FROM reading_sessions
		WHERE user_id = ? AND book_id = ?
		ORDER BY created_at DESC
	`, userID, bookID)
	if err != nil {
		return nil, fmt.Errorf("list reading sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*domain.ReadingSession
	for rows.Next() {
		session, err := scanReadingSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reading session: %w", err)
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// SumReadingDurations returns the total seconds the user spent reading the
// book across finished sessions. Open sessions contribute nothing. The sum
// of fractional durations is truncated to whole seconds.
func (s *Store) SumReadingDurations(ctx context.Context, userID, bookID string) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx, `
		SELECT CAST(COALESCE(SUM(
			unixepoch(stopped_at, 'subsec') - unixepoch(started_at, 'subsec')
		), 0) AS INTEGER)
		FROM reading_sessions
		WHERE user_id = ? AND book_id = ? AND stopped_at IS NOT NULL
	`, userID, bookID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum reading durations: %w", err)
	}
	return total, nil
}

// SumReadingDurationsSince returns the total seconds across the user's
// finished sessions whose stop time falls at or after the cutoff. Used by
// the rolling 7 and 30 day statistics.
func (s *Store) SumReadingDurationsSince(ctx context.Context, userID string, since time.Time) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx, `
		SELECT CAST(COALESCE(SUM(
			unixepoch(stopped_at, 'subsec') - unixepoch(started_at, 'subsec')
		), 0) AS INTEGER)
		FROM reading_sessions
		WHERE user_id = ? AND stopped_at IS NOT NULL
		  AND unixepoch(stopped_at, 'subsec') >= ?
	`, userID, unixSeconds(since)).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum reading durations since: %w", err)
	}
	return total, nil
}

// GetLastFinishedReading returns the user's most recently stopped session
// on the book, or nil if the user has never finished one. Open sessions
// are ignored.
func (s *Store) GetLastFinishedReading(ctx context.Context, userID, bookID string) (*domain.ReadingSession, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+readingSessionColumns+`
		FROM reading_sessions
		WHERE user_id = ? AND book_id = ? AND stopped_at IS NOT NULL
		ORDER BY unixepoch(stopped_at, 'subsec') DESC
		LIMIT 1
	`, userID, bookID)

	session, err := scanReadingSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get last finished reading: %w", err)
	}
	return session, nil
}
