// Package grant implements time-boxed permission delegation. A grant is
// usable iff its activation flag is set and the expiry lies strictly in
// the future; validity is computed at check time, so no background sweep
// exists. Checks are non-consuming: a grant may be used repeatedly until
// it expires.
package grant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"campuscore.org/internal/audit"
	"campuscore.org/internal/identity"
	"campuscore.org/internal/ids"
)

var (
	ErrRecipientNotFound = errors.New("grant: recipient not found")
	ErrNotFound          = errors.New("grant: not found")
	ErrInvalidInput      = errors.New("grant: invalid input")
	ErrDenied            = errors.New("grant: no active permission for action")
)

// Grant is a delegation of a named action to a recipient. After creation
// only the activation flag may change; expiry is never extended.
type Grant struct {
	ID          string    `json:"id"`
	GrantorID   string    `json:"grantor_id"`
	RecipientID string    `json:"recipient_id"`
	Action      string    `json:"action"`
	Active      bool      `json:"is_active"`
	ExpiresAt   time.Time `json:"expires_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store is the persistence behind grants.
type Store interface {
	CreateGrant(ctx context.Context, g *Grant) error
	ActiveGrants(ctx context.Context, recipientID, action string) ([]Grant, error)
	ListGrantsForRecipient(ctx context.Context, recipientID string) ([]Grant, error)
	DeactivateGrant(ctx context.Context, id string) error
	RecipientExists(ctx context.Context, id string) (bool, error)
}

// Service manages grant lifecycle and validity checks.
type Service struct {
	store    Store
	recorder *audit.Recorder
	now      func() time.Time
}

// Option configures Service behavior.
type Option func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the grant service.
func NewService(store Store, recorder *audit.Recorder, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("grant: store is required")
	}
	if recorder == nil {
		return nil, errors.New("grant: audit recorder is required")
	}
	svc := &Service{store: store, recorder: recorder, now: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Grant delegates an action to a recipient for durationMinutes. The
// grantor's own authority over the action is deliberately not checked;
// that gap exists in the deployed behavior and is preserved here rather
// than silently closed.
func (s *Service) Grant(ctx context.Context, actor identity.Actor, recipientID, action string, durationMinutes int) (Grant, error) {
	recipientID = strings.TrimSpace(recipientID)
	action = strings.TrimSpace(action)
	if recipientID == "" || action == "" {
		return Grant{}, fmt.Errorf("%w: recipient_id and action are required", ErrInvalidInput)
	}
	if durationMinutes < 0 {
		return Grant{}, fmt.Errorf("%w: duration must not be negative", ErrInvalidInput)
	}
	exists, err := s.store.RecipientExists(ctx, recipientID)
	if err != nil {
		return Grant{}, err
	}
	if !exists {
		return Grant{}, ErrRecipientNotFound
	}

	now := s.now().UTC()
	g := Grant{
		ID:          ids.New(),
		GrantorID:   actor.ID,
		RecipientID: recipientID,
		Action:      action,
		Active:      true,
		ExpiresAt:   now.Add(time.Duration(durationMinutes) * time.Minute),
		CreatedAt:   now,
	}
	if err := s.store.CreateGrant(ctx, &g); err != nil {
		return Grant{}, err
	}
	s.recorder.Record(ctx, actor.ID, "grant.temporary.create", "temporary_grants", g.ID, map[string]any{
		"recipient_id":     recipientID,
		"action":           action,
		"duration_minutes": durationMinutes,
	})
	return g, nil
}

// CheckAndConsume reports whether the recipient holds an active,
// unexpired grant for the action. The check does not deactivate the
// grant. Expiry is exclusive: now >= expires_at denies. Every successful
// use is audited under a distinct action name so delegated usage stays
// traceable apart from native authority.
func (s *Service) CheckAndConsume(ctx context.Context, recipientID, action string) (Grant, error) {
	recipientID = strings.TrimSpace(recipientID)
	action = strings.TrimSpace(action)
	if recipientID == "" || action == "" {
		return Grant{}, fmt.Errorf("%w: recipient_id and action are required", ErrInvalidInput)
	}
	candidates, err := s.store.ActiveGrants(ctx, recipientID, action)
	if err != nil {
		return Grant{}, err
	}
	now := s.now().UTC()
	for _, g := range candidates {
		if !g.Active {
			continue
		}
		if !now.Before(g.ExpiresAt) {
			continue
		}
		s.recorder.Record(ctx, recipientID, "grant.temporary.use."+action, "temporary_grants", g.ID, map[string]any{
			"grantor_id": g.GrantorID,
		})
		return g, nil
	}
	return Grant{}, ErrDenied
}

// Deactivate clears the activation flag. This is the only mutation a
// grant supports after creation.
func (s *Service) Deactivate(ctx context.Context, actor identity.Actor, grantID string) error {
	grantID = strings.TrimSpace(grantID)
	if grantID == "" {
		return fmt.Errorf("%w: grant id is required", ErrInvalidInput)
	}
	if err := s.store.DeactivateGrant(ctx, grantID); err != nil {
		return err
	}
	s.recorder.Record(ctx, actor.ID, "grant.temporary.deactivate", "temporary_grants", grantID, nil)
	return nil
}

// ListForRecipient returns all grants held by a recipient, newest first,
// including expired and deactivated ones.
func (s *Service) ListForRecipient(ctx context.Context, recipientID string) ([]Grant, error) {
	recipientID = strings.TrimSpace(recipientID)
	if recipientID == "" {
		return nil, fmt.Errorf("%w: recipient_id is required", ErrInvalidInput)
	}
	return s.store.ListGrantsForRecipient(ctx, recipientID)
}
