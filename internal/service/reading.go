// Package service implements the application logic of the PageTurn server.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pageturnapp/pageturn-server/internal/domain"
	domainerrors "github.com/pageturnapp/pageturn-server/internal/errors"
	"github.com/pageturnapp/pageturn-server/internal/id"
	"github.com/pageturnapp/pageturn-server/internal/store"
	"github.com/pageturnapp/pageturn-server/internal/store/sqlite"
)

// startRetries bounds retries when a concurrent start loses the race
// against the one-open-session constraint.
const startRetries = 3

// ReadingService manages the reading session lifecycle. A user has at most
// one open session at a time; starting a book while another is open closes
// the old session at the moment the new one starts.
type ReadingService struct {
	store  *sqlite.Store
	logger *slog.Logger

	// Injectable for deterministic tests.
	now func() time.Time
}

// NewReadingService creates a new reading session service.
func NewReadingService(store *sqlite.Store, logger *slog.Logger) *ReadingService {
	return &ReadingService{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// StartReading opens a reading session for the user on the book. If the
// user already has an open session on the same book it fails with a
// conflict; an open session on a different book is closed first. Returns
// the new session.
func (s *ReadingService) StartReading(ctx context.Context, userID, bookID string) (*domain.ReadingSession, error) {
	if _, err := s.store.GetBook(ctx, bookID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("Book not found")
		}
		return nil, fmt.Errorf("get book: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < startRetries; attempt++ {
		sessionID, err := id.Generate("rs")
		if err != nil {
			return nil, fmt.Errorf("generate session ID: %w", err)
		}

		session := domain.NewReadingSession(sessionID, userID, bookID, s.now().UTC())
		closed, err := s.store.StartReadingSession(ctx, session)
		switch {
		case err == nil:
			if closed != nil {
				s.logger.Info("closed previous reading session on book switch",
					"user_id", userID,
					"closed_session_id", closed.ID,
					"closed_book_id", closed.BookID,
					"new_book_id", bookID,
				)
			}
			s.logger.Info("reading session started",
				"user_id", userID,
				"book_id", bookID,
				"session_id", session.ID,
			)
			return session, nil
		case errors.Is(err, store.ErrSessionOpen):
			return nil, domainerrors.Conflict("Active reading session already exists")
		case errors.Is(err, store.ErrConcurrentUpdate):
			lastErr = err
			continue
		default:
			return nil, fmt.Errorf("start reading session: %w", err)
		}
	}

	return nil, domainerrors.Unavailable("Could not start reading session, please retry").WithCause(lastErr)
}

// StopReading closes the user's most recent session on the book. Stopping
// a book with no session, or whose last session is already stopped, is a
// validation error.
func (s *ReadingService) StopReading(ctx context.Context, userID, bookID string) (*domain.ReadingSession, error) {
	if _, err := s.store.GetBook(ctx, bookID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("Book not found")
		}
		return nil, fmt.Errorf("get book: %w", err)
	}

	last, err := s.store.GetLastReadingSession(ctx, userID, bookID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.Validation("Session is not active")
		}
		return nil, fmt.Errorf("get last reading session: %w", err)
	}
	if !last.IsOpen() {
		return nil, domainerrors.Validation("Session is not active")
	}

	stoppedAt := s.now().UTC()
	if err := s.store.CloseReadingSession(ctx, last.ID, stoppedAt); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Lost a race against a book switch that closed it first.
			return nil, domainerrors.Validation("Session is not active")
		}
		return nil, fmt.Errorf("close reading session: %w", err)
	}
	last.Close(stoppedAt)

	s.logger.Info("reading session stopped",
		"user_id", userID,
		"book_id", bookID,
		"session_id", last.ID,
		"duration_seconds", last.Duration()/time.Second,
	)
	return last, nil
}

// TotalReadingTime returns the total whole seconds the user has spent
// reading the book across finished sessions. Open sessions count for
// nothing until stopped. A book the user never read yields zero.
func (s *ReadingService) TotalReadingTime(ctx context.Context, userID, bookID string) (int64, error) {
	if _, err := s.store.GetBook(ctx, bookID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, domainerrors.NotFound("Book not found")
		}
		return 0, fmt.Errorf("get book: %w", err)
	}

	total, err := s.store.SumReadingDurations(ctx, userID, bookID)
	if err != nil {
		return 0, fmt.Errorf("sum reading durations: %w", err)
	}
	return total, nil
}

// CurrentSession returns the user's open session, or nil if there is none.
func (s *ReadingService) CurrentSession(ctx context.Context, userID string) (*domain.ReadingSession, error) {
	session, err := s.store.GetOpenSession(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get open session: %w", err)
	}
	return session, nil
}

// LastFinishedReading returns the user's most recently stopped session on
// the book, or nil if the user never finished one. A session still in
// progress does not count.
func (s *ReadingService) LastFinishedReading(ctx context.Context, userID, bookID string) (*domain.ReadingSession, error) {
	session, err := s.store.GetLastFinishedReading(ctx, userID, bookID)
	if err != nil {
		return nil, fmt.Errorf("get last finished reading: %w", err)
	}
	return session, nil
}

// History returns the user's sessions on a book, newest first.
func (s *ReadingService) History(ctx context.Context, userID, bookID string) ([]*domain.ReadingSession, error) {
	sessions, err := s.store.ListReadingSessions(ctx, userID, bookID)
	if err != nil {
		return nil, fmt.Errorf("list reading sessions: %w", err)
	}
	return sessions, nil
}
