package grant

import (
	"context"
	"errors"
	"testing"
	"time"

	"campuscore.org/internal/audit"
	"campuscore.org/internal/hierarchy"
	"campuscore.org/internal/identity"
)

type fakeStore struct {
	grants     map[string]Grant
	recipients map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{grants: map[string]Grant{}, recipients: map[string]bool{}}
}

func (f *fakeStore) CreateGrant(_ context.Context, g *Grant) error {
	f.grants[g.ID] = *g
	return nil
}

func (f *fakeStore) ActiveGrants(_ context.Context, recipientID, action string) ([]Grant, error) {
	var out []Grant
	for _, g := range f.grants {
		if g.RecipientID == recipientID && g.Action == action && g.Active {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f *fakeStore) ListGrantsForRecipient(_ context.Context, recipientID string) ([]Grant, error) {
	var out []Grant
	for _, g := range f.grants {
		if g.RecipientID == recipientID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f *fakeStore) DeactivateGrant(_ context.Context, id string) error {
	g, ok := f.grants[id]
	if !ok {
		return ErrNotFound
	}
	g.Active = false
	f.grants[id] = g
	return nil
}

func (f *fakeStore) RecipientExists(_ context.Context, id string) (bool, error) {
	return f.recipients[id], nil
}

type recordingSink struct {
	entries []audit.Entry
}

func (r *recordingSink) Append(_ context.Context, entry *audit.Entry) error {
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *recordingSink) List(_ context.Context, _ audit.Filter) ([]audit.Entry, error) {
	return r.entries, nil
}

func newTestService(t *testing.T, now time.Time) (*Service, *fakeStore, *recordingSink, *time.Time) {
	t.Helper()
	store := newFakeStore()
	sink := &recordingSink{}
	clock := now
	svc, err := NewService(store, audit.NewRecorder(sink, nil), WithClock(func() time.Time { return clock }))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, store, sink, &clock
}

var hod = identity.Actor{ID: "u-hod", Tag: hierarchy.TagHOD, DepartmentID: "d-cs"}

func TestGrantRequiresExistingRecipient(t *testing.T) {
	svc, store, _, _ := newTestService(t, time.Now())

	if _, err := svc.Grant(context.Background(), hod, "u-ghost", "notice.create", 30); !errors.Is(err, ErrRecipientNotFound) {
		t.Fatalf("expected ErrRecipientNotFound, got %v", err)
	}

	store.recipients["u-staff"] = true
	g, err := svc.Grant(context.Background(), hod, "u-staff", "notice.create", 30)
	if err != nil {
		t.Fatalf("Grant: %v", err)
	}
	if !g.Active || g.GrantorID != "u-hod" {
		t.Fatalf("unexpected grant: %+v", g)
	}
}

func TestCheckIsNonConsuming(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	svc, store, sink, _ := newTestService(t, now)
	store.recipients["u-staff"] = true

	if _, err := svc.Grant(context.Background(), hod, "u-staff", "notice.create", 30); err != nil {
		t.Fatalf("Grant: %v", err)
	}

	first, err := svc.CheckAndConsume(context.Background(), "u-staff", "notice.create")
	if err != nil {
		t.Fatalf("first check: %v", err)
	}
	second, err := svc.CheckAndConsume(context.Background(), "u-staff", "notice.create")
	if err != nil {
		t.Fatalf("second check must also pass: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected the same grant both times")
	}

	uses := 0
	for _, e := range sink.entries {
		if e.Action == "grant.temporary.use.notice.create" {
			uses++
			if e.ActorID != "u-staff" || e.Detail["grantor_id"] != "u-hod" {
				t.Fatalf("delegated-use entry incomplete: %+v", e)
			}
		}
	}
	if uses != 2 {
		t.Fatalf("expected two delegated-use entries, got %d", uses)
	}
}

func TestExpiryBoundaryIsExclusive(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	svc, store, _, clock := newTestService(t, now)
	store.recipients["u-staff"] = true

	// zero duration expires at creation time: immediately unusable
	if _, err := svc.Grant(context.Background(), hod, "u-staff", "instant.action", 0); err != nil {
		t.Fatalf("Grant: %v", err)
	}
	if _, err := svc.CheckAndConsume(context.Background(), "u-staff", "instant.action"); !errors.Is(err, ErrDenied) {
		t.Fatalf("duration zero must deny immediately, got %v", err)
	}

	if _, err := svc.Grant(context.Background(), hod, "u-staff", "notice.create", 30); err != nil {
		t.Fatalf("Grant: %v", err)
	}

	// one instant before expiry still passes
	*clock = now.Add(30*time.Minute - time.Nanosecond)
	if _, err := svc.CheckAndConsume(context.Background(), "u-staff", "notice.create"); err != nil {
		t.Fatalf("just before expiry must pass: %v", err)
	}

	// exactly at expiry denies
	*clock = now.Add(30 * time.Minute)
	if _, err := svc.CheckAndConsume(context.Background(), "u-staff", "notice.create"); !errors.Is(err, ErrDenied) {
		t.Fatalf("at expiry must deny, got %v", err)
	}
}

func TestDeactivateStopsFurtherUse(t *testing.T) {
	now := time.Now().UTC()
	svc, store, _, _ := newTestService(t, now)
	store.recipients["u-staff"] = true

	g, err := svc.Grant(context.Background(), hod, "u-staff", "notice.create", 30)
	if err != nil {
		t.Fatalf("Grant: %v", err)
	}
	if err := svc.Deactivate(context.Background(), hod, g.ID); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	if _, err := svc.CheckAndConsume(context.Background(), "u-staff", "notice.create"); !errors.Is(err, ErrDenied) {
		t.Fatalf("deactivated grant must deny, got %v", err)
	}
	if err := svc.Deactivate(context.Background(), hod, "no-such"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGrantValidation(t *testing.T) {
	svc, _, _, _ := newTestService(t, time.Now())

	if _, err := svc.Grant(context.Background(), hod, "", "x", 1); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := svc.Grant(context.Background(), hod, "u-staff", "x", -1); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("negative duration must be refused, got %v", err)
	}
	if _, err := svc.CheckAndConsume(context.Background(), "", "x"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
