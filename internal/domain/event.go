package domain

import "time"

// Auth event types published after a committed state change.
const (
	EventUserSignedUp           = "user.signed_up"
	EventEmailVerified          = "user.email_verified"
	EventPasswordResetRequested = "user.password_reset_requested"
	EventPasswordReset          = "user.password_reset"
)

// AuthEvent is the payload fanned out to downstream consumers. It never
// carries secrets: no password, hash or token.
type AuthEvent struct {
	Type   string    `json:"type"`
	UserID string    `json:"user_id"`
	Email  string    `json:"email"`
	At     time.Time `json:"at"`
}
