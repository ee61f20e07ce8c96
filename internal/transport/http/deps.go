package http

import (
	"context"
	"time"

	"github.com/go-auth-nosql/internal/domain"
	"github.com/go-auth-nosql/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-auth-nosql/internal/infrastructure/jwt"
	"github.com/go-auth-nosql/internal/infrastructure/memory"
	"github.com/go-auth-nosql/internal/infrastructure/smtp"
	"github.com/go-auth-nosql/internal/infrastructure/sns"
	"github.com/go-auth-nosql/internal/pkg/password"
	appmiddleware "github.com/go-auth-nosql/internal/transport/http/middleware"
)

// UserRepository is the minimal interface the router requires from a user store.
type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	RecordLogin(ctx context.Context, userID string, at time.Time) error
	SetResetToken(ctx context.Context, userID, token string, expiresAt time.Time) error
	// ConsumeVerificationToken and ConsumeResetToken must check and clear the
	// token in one atomic step.
	ConsumeVerificationToken(ctx context.Context, code string, now time.Time) (*domain.User, error)
	ConsumeResetToken(ctx context.Context, token string, now time.Time, passwordHash string) (*domain.User, error)
}

var (
	_ UserRepository = (*dynamo.UserRepo)(nil)
	_ UserRepository = (*memory.UserRepo)(nil)
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	UserRepo    UserRepository
	Hasher      *password.Hasher
	JWTProvider *jwtinfra.Provider
	Mailer      smtp.Mailer
	Events      sns.EventPublisher
	// Attempts and GlobalAttempts back the per-client and all-client limiters
	// on code and token endpoints. Nil selects an in-process counter.
	Attempts       appmiddleware.AttemptCounter
	GlobalAttempts appmiddleware.AttemptCounter
}
