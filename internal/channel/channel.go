// Package channel implements rank-gated communication channels. A channel
// carries a minimum tag; both reading and posting require the caller's
// rank to meet it, and a failed gate never leaks message content.
package channel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"campuscore.org/internal/audit"
	"campuscore.org/internal/hierarchy"
	"campuscore.org/internal/identity"
	"campuscore.org/internal/ids"
)

var (
	ErrNotFound         = errors.New("channel: not found")
	ErrInvalidInput     = errors.New("channel: invalid input")
	ErrInsufficientRank = errors.New("channel: tag level insufficient to participate in this channel")
)

const defaultMessageLimit = 50

// Channel is a named room with a minimum rank gate.
type Channel struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	MinimumTag hierarchy.Tag `json:"minimum_tag_required"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Message belongs to exactly one channel. SenderTag is the sender's rank
// at the time of posting; later rank changes do not rewrite history.
type Message struct {
	ID        string        `json:"id"`
	ChannelID string        `json:"channel_id"`
	SenderID  string        `json:"sender_id"`
	SenderTag hierarchy.Tag `json:"sender_tag"`
	Content   string        `json:"content"`
	CreatedAt time.Time     `json:"created_at"`
}

// Store is the persistence behind channels and messages.
type Store interface {
	CreateChannel(ctx context.Context, ch *Channel) error
	FindChannel(ctx context.Context, id string) (Channel, error)
	ListChannels(ctx context.Context) ([]Channel, error)
	CreateMessage(ctx context.Context, msg *Message) error
	ListMessages(ctx context.Context, channelID string, limit int) ([]Message, error)
}

// Service enforces the gate in front of the store.
type Service struct {
	store    Store
	recorder *audit.Recorder
}

// NewService constructs the channel service.
func NewService(store Store, recorder *audit.Recorder) (*Service, error) {
	if store == nil {
		return nil, errors.New("channel: store is required")
	}
	if recorder == nil {
		return nil, errors.New("channel: audit recorder is required")
	}
	return &Service{store: store, recorder: recorder}, nil
}

// Create registers a channel with its minimum tag gate.
func (s *Service) Create(ctx context.Context, actor identity.Actor, name string, minimumTag hierarchy.Tag) (Channel, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Channel{}, fmt.Errorf("%w: channel name is required", ErrInvalidInput)
	}
	if !hierarchy.Valid(minimumTag) {
		return Channel{}, fmt.Errorf("%w: %q", hierarchy.ErrInvalidTag, minimumTag)
	}
	ch := Channel{ID: ids.New(), Name: name, MinimumTag: minimumTag}
	if err := s.store.CreateChannel(ctx, &ch); err != nil {
		return Channel{}, err
	}
	s.recorder.Record(ctx, actor.ID, "channel.create", "channels", ch.ID, map[string]any{
		"name":                 name,
		"minimum_tag_required": string(minimumTag),
	})
	return ch, nil
}

// List returns all channels. Listing does not reveal message content, so
// it is not gated; reading a particular channel is.
func (s *Service) List(ctx context.Context) ([]Channel, error) {
	return s.store.ListChannels(ctx)
}

// Post appends a message after the gate check, recording the sender's
// rank tag as of now.
func (s *Service) Post(ctx context.Context, actor identity.Actor, channelID, content string) (Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Message{}, fmt.Errorf("%w: content is required", ErrInvalidInput)
	}
	ch, err := s.store.FindChannel(ctx, channelID)
	if err != nil {
		return Message{}, err
	}
	if err := s.gate(actor.Tag, ch); err != nil {
		return Message{}, err
	}
	msg := Message{
		ID:        ids.New(),
		ChannelID: ch.ID,
		SenderID:  actor.ID,
		SenderTag: actor.Tag,
		Content:   content,
	}
	if err := s.store.CreateMessage(ctx, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}

// Messages returns the newest messages of a channel, gate permitting.
func (s *Service) Messages(ctx context.Context, actor identity.Actor, channelID string, limit int) ([]Message, error) {
	ch, err := s.store.FindChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if err := s.gate(actor.Tag, ch); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = defaultMessageLimit
	}
	return s.store.ListMessages(ctx, ch.ID, limit)
}

func (s *Service) gate(tag hierarchy.Tag, ch Channel) error {
	ok, err := hierarchy.MeetsMinimum(tag, ch.MinimumTag)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInsufficientRank
	}
	return nil
}
