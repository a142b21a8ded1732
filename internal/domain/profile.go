package domain

import "time"

// Profile holds per-user cached reading statistics. The totals are a
// snapshot written by the aggregation job, not live figures: each run
// overwrites both fields wholesale with the sum of closed-session
// durations whose stop time falls inside the trailing window.
type Profile struct {
	UserID             string    `json:"user_id"`
	TotalReading7Days  int64     `json:"total_reading_7days"`
	TotalReading30Days int64     `json:"total_reading_30days"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// NewProfile creates an empty profile for a user.
func NewProfile(userID string, now time.Time) *Profile {
	return &Profile{
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
