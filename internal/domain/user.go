package domain

import "time"

// User is the only persisted entity. Token fields are written and removed in
// pairs: a token without its expiry (or the reverse) is never stored.
type User struct {
	UserID                      string    `json:"id" dynamodbav:"user_id"`
	Name                        string    `json:"name" dynamodbav:"name"`
	Email                       string    `json:"email" dynamodbav:"email"`
	PasswordHash                string    `json:"-" dynamodbav:"password_hash"`
	IsVerified                  bool      `json:"isVerified" dynamodbav:"is_verified"`
	VerificationToken           string    `json:"-" dynamodbav:"verification_token,omitempty"`
	VerificationTokenExpiresAt  int64     `json:"-" dynamodbav:"verification_token_expires_at,omitempty"` // unix seconds
	ResetPasswordToken          string    `json:"-" dynamodbav:"reset_password_token,omitempty"`
	ResetPasswordTokenExpiresAt int64     `json:"-" dynamodbav:"reset_password_token_expires_at,omitempty"` // unix seconds
	LastLogin                   time.Time `json:"lastLogin" dynamodbav:"last_login"`
	CreatedAt                   time.Time `json:"createdAt" dynamodbav:"created_at"`
	UpdatedAt                   time.Time `json:"updatedAt" dynamodbav:"updated_at"`
}

// HasValidVerificationToken reports whether code matches the stored
// verification token and the token has not expired at now.
func (u *User) HasValidVerificationToken(code string, now time.Time) bool {
	return u.VerificationToken != "" && u.VerificationToken == code && now.Unix() < u.VerificationTokenExpiresAt
}

// HasValidResetToken reports whether token matches the stored reset token and
// the token has not expired at now.
func (u *User) HasValidResetToken(token string, now time.Time) bool {
	return u.ResetPasswordToken != "" && u.ResetPasswordToken == token && now.Unix() < u.ResetPasswordTokenExpiresAt
}

// ClearVerificationToken drops the verification token and its expiry.
func (u *User) ClearVerificationToken() {
	u.VerificationToken = ""
	u.VerificationTokenExpiresAt = 0
}

// ClearResetToken drops the reset token and its expiry.
func (u *User) ClearResetToken() {
	u.ResetPasswordToken = ""
	u.ResetPasswordTokenExpiresAt = 0
}

type SignupRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type VerifyEmailRequest struct {
	Code string `json:"verificationCode" validate:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Password string `json:"password" validate:"required,max=72"`
}
