package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/go-auth-nosql/internal/domain"
)

type Service interface {
	SendVerificationEmail(ctx context.Context, u *domain.User, code string) error
	SendWelcomeEmail(ctx context.Context, u *domain.User) error
	SendPasswordResetEmail(ctx context.Context, u *domain.User, resetURL string) error
	SendResetSuccessEmail(ctx context.Context, u *domain.User) error
}

type mailer interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// Options carries the values the email bodies mention.
type Options struct {
	AppName              string
	VerificationTokenTTL time.Duration
	ResetTokenTTL        time.Duration
}

type service struct {
	mailer mailer
	opts   Options
}

func NewService(m mailer, opts Options) Service {
	return &service{mailer: m, opts: opts}
}

func (s *service) SendVerificationEmail(ctx context.Context, u *domain.User, code string) error {
	body := fmt.Sprintf("Hello %s,\n\nThank you for signing up to %s.\nYour verification code is: %s\n\nThe code expires in %s.\n",
		greeting(u), s.opts.AppName, code, humanDuration(s.opts.VerificationTokenTTL))
	return s.send(ctx, u, "Verify your email", body)
}

func (s *service) SendWelcomeEmail(ctx context.Context, u *domain.User) error {
	body := fmt.Sprintf("Hello %s,\n\nYour email address is verified. Welcome to %s!\n", greeting(u), s.opts.AppName)
	return s.send(ctx, u, "Welcome to "+s.opts.AppName, body)
}

func (s *service) SendPasswordResetEmail(ctx context.Context, u *domain.User, resetURL string) error {
	body := fmt.Sprintf("Hello %s,\n\nWe received a request to reset your password.\nOpen the link below to choose a new one:\n\n%s\n\nThe link expires in %s. If you did not ask for a reset, ignore this email.\n",
		greeting(u), resetURL, humanDuration(s.opts.ResetTokenTTL))
	return s.send(ctx, u, "Reset your password", body)
}

func (s *service) SendResetSuccessEmail(ctx context.Context, u *domain.User) error {
	body := fmt.Sprintf("Hello %s,\n\nYour password was reset successfully.\nIf you did not make this change, contact support immediately.\n", greeting(u))
	return s.send(ctx, u, "Password reset successful", body)
}

func (s *service) send(ctx context.Context, u *domain.User, subject, body string) error {
	if err := s.mailer.SendEmail(ctx, u.Email, subject, body); err != nil {
		return fmt.Errorf("send %q to user %s: %w", subject, u.UserID, err)
	}
	return nil
}

func greeting(u *domain.User) string {
	if u.Name == "" {
		return "there"
	}
	return u.Name
}

// humanDuration renders d as "24 hours", "1 hour", "30 minutes" or, for
// values that are not whole minutes, Go's duration format.
func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	case d >= time.Minute && d%time.Minute == 0:
		return plural(int(d/time.Minute), "minute")
	default:
		return d.String()
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
