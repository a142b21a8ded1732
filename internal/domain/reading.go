package domain

import "time"

// ReadingSession records a span of time a user spent reading a book.
// A session with a nil StoppedAt is open; a user has at most one open
// session at any moment, across all books.
type ReadingSession struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	BookID    string     `json:"book_id"`
	StartedAt time.Time  `json:"start_reading"`
	StoppedAt *time.Time `json:"stop_reading"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// NewReadingSession creates an open session starting at startedAt.
func NewReadingSession(id, userID, bookID string, startedAt time.Time) *ReadingSession {
	return &ReadingSession{
		ID:        id,
		UserID:    userID,
		BookID:    bookID,
		StartedAt: startedAt,
		CreatedAt: startedAt,
		UpdatedAt: startedAt,
	}
}

// IsOpen reports whether the session is still active.
func (s *ReadingSession) IsOpen() bool {
	return s.StoppedAt == nil
}

// Close stops the session at the given time. Closing an already
// closed session is a no-op; StoppedAt is never rewritten.
func (s *ReadingSession) Close(at time.Time) {
	if s.StoppedAt != nil {
		return
	}
	stopped := at
	s.StoppedAt = &stopped
	s.UpdatedAt = at
}

// Duration returns the elapsed reading time of a closed session.
// Open sessions contribute zero; in-progress time is not counted
// until the session closes.
func (s *ReadingSession) Duration() time.Duration {
	if s.StoppedAt == nil {
		return 0
	}
	return s.StoppedAt.Sub(s.StartedAt)
}
