package domain

import "time"

// User represents an account in the system. New accounts start
// inactive and become active once the activation link from the
// welcome email is followed.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"` // Argon2id encoded hash, never serialized
	IsActive     bool      `json:"is_active"`

	// Activation / password-reset tokens. Single-use, time-limited.
	ActivationToken     string     `json:"-"`
	ActivationExpiresAt *time.Time `json:"-"`
	ResetToken          string     `json:"-"`
	ResetExpiresAt      *time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CanLogin reports whether the account may authenticate.
func (u *User) CanLogin() bool {
	return u.IsActive
}
