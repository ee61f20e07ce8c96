// Package memory is an in-process user store with the same semantics as the
// DynamoDB repository. It backs local development (STORE_DRIVER=memory) and
// end-to-end tests.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-auth-nosql/internal/domain"
)

type UserRepo struct {
	mu      sync.Mutex
	byID    map[string]*domain.User
	byEmail map[string]string
}

func NewUserRepo() *UserRepo {
	return &UserRepo{
		byID:    make(map[string]*domain.User),
		byEmail: make(map[string]string),
	}
}

func (r *UserRepo) Create(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[u.Email]; ok {
		return fmt.Errorf("email already registered: %w", domain.ErrConflict)
	}
	if _, ok := r.byID[u.UserID]; ok {
		return fmt.Errorf("user id %s already exists: %w", u.UserID, domain.ErrConflict)
	}
	cp := *u
	r.byID[u.UserID] = &cp
	r.byEmail[u.Email] = u.UserID
	return nil
}

func (r *UserRepo) Get(_ context.Context, userID string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[userID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	userID, ok := r.byEmail[email]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("user with email: %w", domain.ErrNotFound)
	}
	return r.Get(ctx, userID)
}

func (r *UserRepo) RecordLogin(_ context.Context, userID string, at time.Time) error {
	return r.mutate(userID, func(u *domain.User) {
		u.LastLogin = at.UTC()
	})
}

func (r *UserRepo) SetResetToken(_ context.Context, userID, token string, expiresAt time.Time) error {
	return r.mutate(userID, func(u *domain.User) {
		u.ResetPasswordToken = token
		u.ResetPasswordTokenExpiresAt = expiresAt.Unix()
	})
}

// ConsumeVerificationToken checks and clears the token under one lock, so a
// code is accepted at most once.
func (r *UserRepo) ConsumeVerificationToken(_ context.Context, code string, now time.Time) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if !u.HasValidVerificationToken(code, now) {
			continue
		}
		u.IsVerified = true
		u.ClearVerificationToken()
		u.UpdatedAt = now.UTC()
		cp := *u
		return &cp, nil
	}
	return nil, domain.ErrInvalidToken
}

func (r *UserRepo) ConsumeResetToken(_ context.Context, token string, now time.Time, passwordHash string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if !u.HasValidResetToken(token, now) {
			continue
		}
		u.PasswordHash = passwordHash
		u.ClearResetToken()
		u.UpdatedAt = now.UTC()
		cp := *u
		return &cp, nil
	}
	return nil, domain.ErrInvalidToken
}

func (r *UserRepo) mutate(userID string, fn func(u *domain.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[userID]
	if !ok {
		return fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	fn(u)
	u.UpdatedAt = time.Now().UTC()
	return nil
}
