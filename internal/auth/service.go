package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"campuscore.org/internal/audit"
	"campuscore.org/internal/identity"
)

// Directory is the subset of identity persistence the auth service needs.
type Directory interface {
	FindIdentity(ctx context.Context, id string) (identity.Identity, error)
	FindIdentityByEmail(ctx context.Context, email string) (identity.Identity, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

// Service verifies credentials and issues session tokens.
type Service struct {
	dir      Directory
	recorder *audit.Recorder
	tokenTTL time.Duration
	now      func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithTokenTTL overrides the session lifetime.
func WithTokenTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.tokenTTL = ttl
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

// NewService constructs the authentication service.
func NewService(dir Directory, recorder *audit.Recorder, opts ...ServiceOption) (*Service, error) {
	if dir == nil {
		return nil, errors.New("auth: directory is required")
	}
	if recorder == nil {
		return nil, errors.New("auth: audit recorder is required")
	}
	svc := &Service{
		dir:      dir,
		recorder: recorder,
		tokenTTL: TokenTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Session is the result of a successful authentication.
type Session struct {
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expires_at"`
	Identity  identity.Identity `json:"user"`
}

// Authenticate verifies the email/password pair and issues a signed
// session token. Email matching is case-sensitive and exact. An unknown
// email and a failed hash comparison produce the identical error so the
// response never reveals which half was wrong. Login itself is not
// written to the audit trail.
func (s *Service) Authenticate(ctx context.Context, email, password string) (Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return Session{}, ErrInvalidCredentials
	}
	ident, err := s.dir.FindIdentityByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}
	if err := VerifyPassword(ident.PasswordHash, password); err != nil {
		return Session{}, ErrInvalidCredentials
	}

	token, expiresAt, err := GenerateToken(ident.ID, ident.Tag, ident.DepartmentID, ident.Batch, ident.Status, s.tokenTTL)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: expiresAt, Identity: ident}, nil
}

// ChangePassword re-hashes and persists a new credential after verifying
// the current one. Complexity rules beyond the 6-character floor belong
// to the calling edge.
func (s *Service) ChangePassword(ctx context.Context, identityID, currentPassword, newPassword string) error {
	identityID = strings.TrimSpace(identityID)
	if identityID == "" {
		return fmt.Errorf("%w: identity id is required", ErrInvalidInput)
	}
	if len(newPassword) < 6 {
		return fmt.Errorf("%w: new password must be at least 6 characters", ErrInvalidInput)
	}
	ident, err := s.dir.FindIdentity(ctx, identityID)
	if err != nil {
		return err
	}
	if err := VerifyPassword(ident.PasswordHash, currentPassword); err != nil {
		return ErrInvalidCurrentPassword
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.dir.UpdatePassword(ctx, identityID, hash); err != nil {
		return err
	}
	s.recorder.Record(ctx, identityID, "identity.password.change", "identities", identityID, map[string]any{
		"message": "user changed their own password",
	})
	return nil
}
