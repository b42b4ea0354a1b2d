package channel

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
	channels map[string]Channel
	messages []Message
}

func newFakeStore() *fakeStore {
	return &fakeStore{channels: map[string]Channel{}}
}

func (f *fakeStore) CreateChannel(_ context.Context, ch *Channel) error {
	ch.CreatedAt = time.Now().UTC()
	f.channels[ch.ID] = *ch
	return nil
}

func (f *fakeStore) FindChannel(_ context.Context, id string) (Channel, error) {
	ch, ok := f.channels[id]
	if !ok {
		return Channel{}, ErrNotFound
	}
	return ch, nil
}

func (f *fakeStore) ListChannels(_ context.Context) ([]Channel, error) {
	var out []Channel
	for _, ch := range f.channels {
		out = append(out, ch)
	}
	return out, nil
}

func (f *fakeStore) CreateMessage(_ context.Context, msg *Message) error {
	msg.CreatedAt = time.Now().UTC()
	f.messages = append(f.messages, *msg)
	return nil
}

func (f *fakeStore) ListMessages(_ context.Context, channelID string, limit int) ([]Message, error) {
	var out []Message
	for _, msg := range f.messages {
		if msg.ChannelID == channelID {
			out = append(out, msg)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
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

func newTestService(t *testing.T) (*Service, *fakeStore, *recordingSink) {
	t.Helper()
	store := newFakeStore()
	sink := &recordingSink{}
	svc, err := NewService(store, audit.NewRecorder(sink, nil))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, store, sink
}

func seedChannel(t *testing.T, svc *Service, minimum hierarchy.Tag) Channel {
	t.Helper()
	admin := identity.Actor{ID: "u-admin", Tag: hierarchy.TagAdmin}
	ch, err := svc.Create(context.Background(), admin, "room", minimum)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return ch
}

func TestCreateRejectsUnknownMinimumTag(t *testing.T) {
	svc, _, _ := newTestService(t)
	admin := identity.Actor{ID: "u-admin", Tag: hierarchy.TagAdmin}

	if _, err := svc.Create(context.Background(), admin, "room", "Chancellor"); !errors.Is(err, hierarchy.ErrInvalidTag) {
		t.Fatalf("expected ErrInvalidTag, got %v", err)
	}
	if _, err := svc.Create(context.Background(), admin, "  ", hierarchy.TagStaff); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for blank name, got %v", err)
	}
}

func TestGateAroundTheMinimum(t *testing.T) {
	svc, _, _ := newTestService(t)
	ch := seedChannel(t, svc, hierarchy.TagDean)

	dean := identity.Actor{ID: "u-dean", Tag: hierarchy.TagDean, DepartmentID: "d-cs"}
	root := identity.Actor{ID: "u-root", Tag: hierarchy.TagRootAdmin}
	staff := identity.Actor{ID: "u-staff", Tag: hierarchy.TagStaff, DepartmentID: "d-cs"}

	// at the minimum: allowed
	if _, err := svc.Post(context.Background(), dean, ch.ID, "hello"); err != nil {
		t.Fatalf("dean post: %v", err)
	}
	// above the minimum: allowed
	if _, err := svc.Messages(context.Background(), root, ch.ID, 0); err != nil {
		t.Fatalf("root read: %v", err)
	}
	// below the minimum: refused on both read and write
	if _, err := svc.Post(context.Background(), staff, ch.ID, "psst"); !errors.Is(err, ErrInsufficientRank) {
		t.Fatalf("staff post must be refused, got %v", err)
	}
	if _, err := svc.Messages(context.Background(), staff, ch.ID, 0); !errors.Is(err, ErrInsufficientRank) {
		t.Fatalf("staff read must be refused, got %v", err)
	}
}

func TestPostRecordsSenderTagAtSendTime(t *testing.T) {
	svc, store, _ := newTestService(t)
	ch := seedChannel(t, svc, hierarchy.TagStaff)

	hod := identity.Actor{ID: "u-hod", Tag: hierarchy.TagHOD, DepartmentID: "d-cs"}
	msg, err := svc.Post(context.Background(), hod, ch.ID, "minutes attached")
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if msg.SenderTag != hierarchy.TagHOD {
		t.Fatalf("expected sender tag denormalized, got %q", msg.SenderTag)
	}
	if len(store.messages) != 1 || store.messages[0].Content != "minutes attached" {
		t.Fatalf("message not persisted: %+v", store.messages)
	}
}

func TestListChannelsIsUngated(t *testing.T) {
	svc, _, _ := newTestService(t)
	seedChannel(t, svc, hierarchy.TagRootAdmin)

	// listing reveals channel names only, so the lowest rank may call it
	list, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected the channel to be visible, got %d", len(list))
	}
}

func TestMessagesLimitDefaultsAndCaps(t *testing.T) {
	svc, store, _ := newTestService(t)
	ch := seedChannel(t, svc, hierarchy.TagStudent)
	student := identity.Actor{ID: "u-s", Tag: hierarchy.TagStudent, DepartmentID: "d-cs"}

	for i := 0; i < 3; i++ {
		store.messages = append(store.messages, Message{ChannelID: ch.ID, Content: "x"})
	}
	msgs, err := svc.Messages(context.Background(), student, ch.ID, -5)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected default limit to cover all rows, got %d", len(msgs))
	}
}
