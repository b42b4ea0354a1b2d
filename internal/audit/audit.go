// Package audit provides the append-only trail of privileged actions.
// Writing an entry is best-effort from the caller's perspective: a failed
// write is logged and swallowed, never allowed to fail the operation it
// accompanies. When the entry is appended inside a caller's unit of work
// it commits or rolls back together with that operation.
package audit

import (
	"context"
	"time"

	"campuscore.org/internal/obs"
)

// Entry is a single audit record. Entries are never updated or deleted.
type Entry struct {
	ID         string         `json:"id"`
	ActorID    string         `json:"actor_id,omitempty"`
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	ResourceID string         `json:"resource_id,omitempty"`
	Detail     map[string]any `json:"detail,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Filter narrows List results.
type Filter struct {
	ActorID string
	Action  string
	Limit   int
}

// Sink is the persistence behind the trail.
type Sink interface {
	Append(ctx context.Context, entry *Entry) error
	List(ctx context.Context, f Filter) ([]Entry, error)
}

// Recorder writes entries to a sink.
type Recorder struct {
	sink Sink
	now  func() time.Time
}

// NewRecorder constructs a Recorder. The clock override is only used by tests.
func NewRecorder(sink Sink, clock func() time.Time) *Recorder {
	if clock == nil {
		clock = time.Now
	}
	return &Recorder{sink: sink, now: clock}
}

// Record appends an entry. It deliberately returns nothing: failures are
// reported through the shared logger and swallowed so the primary
// operation's success path is never blocked on audit.
func (r *Recorder) Record(ctx context.Context, actorID, action, resource, resourceID string, detail map[string]any) {
	entry := &Entry{
		ActorID:    actorID,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		Detail:     detail,
		CreatedAt:  r.now().UTC(),
	}
	if err := r.sink.Append(ctx, entry); err != nil {
		obs.LogRequest(map[string]any{
			"ts":     r.now().UTC().Format(time.RFC3339Nano),
			"level":  "error",
			"msg":    "audit_append_failed",
			"action": action,
			"error":  err.Error(),
		})
	}
}

// List returns entries matching the filter, newest first.
func (r *Recorder) List(ctx context.Context, f Filter) ([]Entry, error) {
	if f.Limit <= 0 || f.Limit > 1000 {
		f.Limit = 100
	}
	return r.sink.List(ctx, f)
}
