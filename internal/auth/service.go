package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/articlegen/articlegen/internal/shared"
)

// Repository defines persistence operations for the auth module.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	Create(ctx context.Context, in NewUser) (*User, error)
	UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (*User, error)
}

// TokenIssuer mints bearer tokens.
type TokenIssuer interface {
	Issue(id shared.Identity) (string, time.Time, error)
}

// Service wraps authentication business rules.
type Service struct {
	repo   Repository
	hasher PasswordHasher
	tokens TokenIssuer
}

// NewService constructs a new Service.
func NewService(repo Repository, hasher PasswordHasher, tokens TokenIssuer) *Service {
	return &Service{repo: repo, hasher: hasher, tokens: tokens}
}

// Signup registers a new account and issues its first token.
func (s *Service) Signup(ctx context.Context, email, password, name string) (*AuthResult, error) {
	if email == "" || password == "" {
		return nil, shared.Validation("email and password are required")
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return nil, shared.Validation(fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	if len(password) > MaxPasswordBytes {
		return nil, shared.Validation(fmt.Sprintf("password must be at most %d bytes", MaxPasswordBytes))
	}

	existing, err := s.repo.FindByEmail(ctx, email)
	switch {
	case err == nil && existing != nil:
		return nil, shared.Conflict("user already exists")
	case err != nil && !errors.Is(err, shared.ErrNotFound):
		return nil, fmt.Errorf("auth: lookup email: %w", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}
	user, err := s.repo.Create(ctx, NewUser{Email: email, Name: strings.TrimSpace(name), PasswordHash: hash})
	if err != nil {
		// The unique index decides when two signups race on the same email.
		if errors.Is(err, shared.ErrConflict) {
			return nil, shared.Conflict("user already exists")
		}
		return nil, fmt.Errorf("auth: create user: %w", err)
	}
	return s.issue(user)
}

// Login validates email/password credentials and issues a token.
func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	if email == "" || password == "" {
		return nil, shared.Validation("email and password are required")
	}
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("auth: lookup email: %w", err)
	}
	if user.PasswordHash == "" || !s.hasher.Verify(password, user.PasswordHash) {
		return nil, shared.ErrInvalidCredentials
	}
	return s.issue(user)
}

// Profile returns the user view for id.
func (s *Service) Profile(ctx context.Context, id string) (*UserView, error) {
	user, err := s.findUser(ctx, id)
	if err != nil {
		return nil, err
	}
	view := user.View()
	return &view, nil
}

// UpdateProfile changes the name and/or email of a user.
func (s *Service) UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (*UserView, error) {
	if upd.Empty() {
		return s.Profile(ctx, id)
	}
	if upd.Email != nil {
		email := strings.TrimSpace(*upd.Email)
		if email == "" {
			return nil, shared.Validation("email must not be empty")
		}
		upd.Email = &email
		owner, err := s.repo.FindByEmail(ctx, email)
		switch {
		case err == nil && owner.ID != id:
			return nil, shared.Conflict("email already in use")
		case err != nil && !errors.Is(err, shared.ErrNotFound):
			return nil, fmt.Errorf("auth: lookup email: %w", err)
		}
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		upd.Name = &name
	}
	user, err := s.repo.UpdateProfile(ctx, id, upd)
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrConflict):
			return nil, shared.Conflict("email already in use")
		case errors.Is(err, shared.ErrNotFound):
			return nil, shared.NotFound("user not found")
		}
		return nil, fmt.Errorf("auth: update profile: %w", err)
	}
	view := user.View()
	return &view, nil
}

// DisplayName resolves the label stored on articles written by id.
func (s *Service) DisplayName(ctx context.Context, id string) (string, error) {
	user, err := s.findUser(ctx, id)
	if err != nil {
		return "", err
	}
	return user.DisplayName(), nil
}

func (s *Service) findUser(ctx context.Context, id string) (*User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NotFound("user not found")
		}
		return nil, fmt.Errorf("auth: lookup user: %w", err)
	}
	return user, nil
}

func (s *Service) issue(user *User) (*AuthResult, error) {
	token, expiresAt, err := s.tokens.Issue(shared.Identity{ID: user.ID, Email: user.Email})
	if err != nil {
		return nil, fmt.Errorf("auth: issue token: %w", err)
	}
	return &AuthResult{User: user.View(), Token: token, ExpiresAt: expiresAt}, nil
}
