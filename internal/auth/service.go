package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"rfphub.org/internal/ids"
)

const defaultAccessTTL = 15 * time.Minute

// Service authenticates credentials and manages the user directory.
type Service struct {
	store     UserStore
	now       func() time.Time
	accessTTL time.Duration
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithAccessTTL configures session token lifetime.
func WithAccessTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.accessTTL = ttl
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs a Service over the given user store.
func NewService(store UserStore, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: user store is required", ErrInvalidInput)
	}
	svc := &Service{
		store:     store,
		now:       time.Now,
		accessTTL: defaultAccessTTL,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// AccessTTL returns the configured session token lifetime.
func (s *Service) AccessTTL() time.Duration { return s.accessTTL }

// Login validates credentials and mints a session token. Every failure
// path returns ErrInvalidCredentials: unknown email, wrong password, and
// a non-Admin account that has not been accepted are indistinguishable
// to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (string, time.Time, *User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return "", time.Time{}, nil, ErrInvalidCredentials
	}
	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		burnPasswordCheck(password)
		return "", time.Time{}, nil, ErrInvalidCredentials
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return "", time.Time{}, nil, ErrInvalidCredentials
	}
	if user.Type != TypeAdmin && user.Status != StatusAccepted {
		return "", time.Time{}, nil, ErrInvalidCredentials
	}
	token, expiresAt, err := MintToken(user, s.accessTTL)
	if err != nil {
		return "", time.Time{}, nil, err
	}
	return token, expiresAt, user, nil
}

// Signup registers a new User-type account in the pending state. The
// caller is expected to have proven control of the email address through
// the OTP side-channel first.
func (s *Service) Signup(ctx context.Context, name, email, password string, role Role) (*User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	if password == "" {
		return nil, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	if !ValidRole(role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	user := &User{
		ID:           ids.New(),
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: hash,
		Type:         TypeUser,
		Role:         role,
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ListUsers returns all accounts.
func (s *Service) ListUsers(ctx context.Context) ([]*User, error) {
	return s.store.List(ctx)
}

// GetUser loads a single account by id.
func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return s.store.Find(ctx, id)
}

// UpdateUser applies a partial update to an account. Status changes here
// implement the admin approval workflow (pending -> accepted/rejected).
func (s *Service) UpdateUser(ctx context.Context, id string, upd UserUpdate) (*User, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Name != nil {
		user.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.Avatar != nil {
		user.Avatar = strings.TrimSpace(*upd.Avatar)
	}
	if upd.Password != nil {
		hash, err := HashPassword(*upd.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}
	if upd.Type != nil {
		if !ValidType(*upd.Type) {
			return nil, fmt.Errorf("%w: unknown user type %q", ErrInvalidInput, *upd.Type)
		}
		user.Type = *upd.Type
	}
	if upd.Role != nil {
		if !ValidRole(*upd.Role) {
			return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, *upd.Role)
		}
		user.Role = *upd.Role
	}
	if upd.Status != nil {
		if !ValidStatus(*upd.Status) {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, *upd.Status)
		}
		user.Status = *upd.Status
	}
	user.UpdatedAt = s.now().UTC()
	if err := s.store.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// DeleteUser removes an account.
func (s *Service) DeleteUser(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return s.store.Delete(ctx, id)
}
