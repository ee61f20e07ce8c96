package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-auth-nosql/internal/domain"
	"github.com/go-auth-nosql/internal/pkg/id"
	pkgtoken "github.com/go-auth-nosql/internal/pkg/token"
	"github.com/go-auth-nosql/internal/pkg/validate"
)

// Public messages. Credential and token failures keep one message per flow
// whatever the underlying cause.
const (
	msgUserExists         = "User already exists"
	msgInvalidCredentials = "Invalid credentials"
	msgInvalidCode        = "Invalid or expired verification code"
	msgInvalidResetToken  = "Invalid or expired reset token"
	msgUserNotFound       = "User not found"
)

// SessionResult is returned by the flows that open a session.
type SessionResult struct {
	User  *domain.User
	Token string
}

type Service interface {
	Signup(ctx context.Context, req domain.SignupRequest) (*SessionResult, error)
	Login(ctx context.Context, req domain.LoginRequest) (*SessionResult, error)
	VerifyEmail(ctx context.Context, code string) (*domain.User, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	CheckAuth(ctx context.Context, userID string) (*domain.User, error)
}

type userStore interface {
	Create(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	RecordLogin(ctx context.Context, userID string, at time.Time) error
	SetResetToken(ctx context.Context, userID, token string, expiresAt time.Time) error
	ConsumeVerificationToken(ctx context.Context, code string, now time.Time) (*domain.User, error)
	ConsumeResetToken(ctx context.Context, token string, now time.Time, passwordHash string) (*domain.User, error)
}

type passwordHasher interface {
	Hash(plain string) (string, error)
	Compare(hash, plain string) bool
	CompareDummy(plain string) bool
}

type jwtSigner interface {
	Sign(userID string) (string, error)
}

type notifier interface {
	SendVerificationEmail(ctx context.Context, u *domain.User, code string) error
	SendWelcomeEmail(ctx context.Context, u *domain.User) error
	SendPasswordResetEmail(ctx context.Context, u *domain.User, resetURL string) error
	SendResetSuccessEmail(ctx context.Context, u *domain.User) error
}

type eventPublisher interface {
	Publish(ctx context.Context, e domain.AuthEvent) error
}

type service struct {
	repo            userStore
	hasher          passwordHasher
	jwtProvider     jwtSigner
	notifier        notifier
	events          eventPublisher
	verificationTTL time.Duration
	resetTTL        time.Duration
	clientURL       string
	now             func() time.Time
}

type ServiceDeps struct {
	UserRepo             userStore
	Hasher               passwordHasher
	JWTProvider          jwtSigner
	Notifier             notifier
	Events               eventPublisher
	VerificationTokenTTL time.Duration
	ResetTokenTTL        time.Duration
	ClientURL            string
	Now                  func() time.Time // defaults to time.Now
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:            deps.UserRepo,
		hasher:          deps.Hasher,
		jwtProvider:     deps.JWTProvider,
		notifier:        deps.Notifier,
		events:          deps.Events,
		verificationTTL: deps.VerificationTokenTTL,
		resetTTL:        deps.ResetTokenTTL,
		clientURL:       strings.TrimRight(deps.ClientURL, "/"),
		now:             now,
	}
}

func (s *service) Signup(ctx context.Context, req domain.SignupRequest) (*SessionResult, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = normalizeEmail(req.Email)
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetByEmail(ctx, req.Email); err == nil {
		return nil, fmt.Errorf("%s: %w", msgUserExists, domain.ErrConflict)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}
	code, err := pkgtoken.NewVerificationCode()
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	u := &domain.User{
		UserID:                     id.New(),
		Name:                       req.Name,
		Email:                      req.Email,
		PasswordHash:               hash,
		VerificationToken:          code,
		VerificationTokenExpiresAt: now.Add(s.verificationTTL).Unix(),
		LastLogin:                  now,
		CreatedAt:                  now,
		UpdatedAt:                  now,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, fmt.Errorf("%s: %w", msgUserExists, domain.ErrConflict)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	token, err := s.jwtProvider.Sign(u.UserID)
	if err != nil {
		return nil, fmt.Errorf("sign session: %w", err)
	}

	if err := s.notifier.SendVerificationEmail(ctx, u, code); err != nil {
		slog.Error("verification email not sent", "user_id", u.UserID, "err", err)
	}
	s.publish(ctx, domain.EventUserSignedUp, u, now)
	return &SessionResult{User: u, Token: token}, nil
}

func (s *service) Login(ctx context.Context, req domain.LoginRequest) (*SessionResult, error) {
	req.Email = normalizeEmail(req.Email)
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	u, err := s.repo.GetByEmail(ctx, req.Email)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("lookup email: %w", err)
		}
		s.hasher.CompareDummy(req.Password)
		return nil, fmt.Errorf("%s: %w", msgInvalidCredentials, domain.ErrInvalidCredentials)
	}
	if !s.hasher.Compare(u.PasswordHash, req.Password) {
		return nil, fmt.Errorf("%s: %w", msgInvalidCredentials, domain.ErrInvalidCredentials)
	}

	now := s.now().UTC()
	if err := s.repo.RecordLogin(ctx, u.UserID, now); err != nil {
		return nil, fmt.Errorf("record login: %w", err)
	}
	u.LastLogin = now
	token, err := s.jwtProvider.Sign(u.UserID)
	if err != nil {
		return nil, fmt.Errorf("sign session: %w", err)
	}
	return &SessionResult{User: u, Token: token}, nil
}

func (s *service) VerifyEmail(ctx context.Context, code string) (*domain.User, error) {
	code = strings.TrimSpace(code)
	if err := validate.Struct(domain.VerifyEmailRequest{Code: code}); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	u, err := s.repo.ConsumeVerificationToken(ctx, code, now)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidToken) {
			return nil, fmt.Errorf("%s: %w", msgInvalidCode, domain.ErrInvalidToken)
		}
		return nil, fmt.Errorf("verify email: %w", err)
	}

	if err := s.notifier.SendWelcomeEmail(ctx, u); err != nil {
		slog.Error("welcome email not sent", "user_id", u.UserID, "err", err)
	}
	s.publish(ctx, domain.EventEmailVerified, u, now)
	return u, nil
}

func (s *service) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if err := validate.Struct(domain.ForgotPasswordRequest{Email: email}); err != nil {
		return err
	}
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("%s: %w", msgUserNotFound, domain.ErrNotFound)
		}
		return fmt.Errorf("lookup email: %w", err)
	}
	resetToken, err := pkgtoken.NewResetToken()
	if err != nil {
		return err
	}
	now := s.now().UTC()
	if err := s.repo.SetResetToken(ctx, u.UserID, resetToken, now.Add(s.resetTTL)); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	if err := s.notifier.SendPasswordResetEmail(ctx, u, s.resetURL(resetToken)); err != nil {
		slog.Error("password reset email not sent", "user_id", u.UserID, "err", err)
	}
	s.publish(ctx, domain.EventPasswordResetRequested, u, now)
	return nil
}

func (s *service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := validate.Struct(domain.ResetPasswordRequest{Password: newPassword}); err != nil {
		return err
	}
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("%s: %w", msgInvalidResetToken, domain.ErrInvalidToken)
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	u, err := s.repo.ConsumeResetToken(ctx, token, now, hash)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidToken) {
			return fmt.Errorf("%s: %w", msgInvalidResetToken, domain.ErrInvalidToken)
		}
		return fmt.Errorf("reset password: %w", err)
	}

	if err := s.notifier.SendResetSuccessEmail(ctx, u); err != nil {
		slog.Error("reset confirmation email not sent", "user_id", u.UserID, "err", err)
	}
	s.publish(ctx, domain.EventPasswordReset, u, now)
	return nil
}

func (s *service) CheckAuth(ctx context.Context, userID string) (*domain.User, error) {
	u, err := s.repo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", msgUserNotFound, domain.ErrNotFound)
		}
		return nil, err
	}
	return u, nil
}

func (s *service) resetURL(token string) string {
	return s.clientURL + "/reset-password/" + token
}

func (s *service) publish(ctx context.Context, eventType string, u *domain.User, at time.Time) {
	e := domain.AuthEvent{Type: eventType, UserID: u.UserID, Email: u.Email, At: at}
	if err := s.events.Publish(ctx, e); err != nil {
		slog.Warn("auth event not published", "event", eventType, "user_id", u.UserID, "err", err)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
