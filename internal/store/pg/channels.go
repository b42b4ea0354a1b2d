package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"campuscore.org/internal/channel"
	"campuscore.org/internal/hierarchy"
)

var _ channel.Store = (*Store)(nil)

func (s *Store) CreateChannel(ctx context.Context, ch *channel.Channel) error {
	err := s.q(ctx).QueryRowContext(ctx, `
		insert into channels (id, name, minimum_tag_required) values ($1, $2, $3)
		returning created_at
	`, ch.ID, ch.Name, string(ch.MinimumTag)).Scan(&ch.CreatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return fmt.Errorf("%w: channel name already exists", channel.ErrInvalidInput)
		}
		return err
	}
	return nil
}

func (s *Store) FindChannel(ctx context.Context, id string) (channel.Channel, error) {
	var (
		ch  channel.Channel
		tag string
	)
	err := s.q(ctx).QueryRowContext(ctx, `
		select id, name, minimum_tag_required, created_at from channels where id = $1
	`, id).Scan(&ch.ID, &ch.Name, &tag, &ch.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return channel.Channel{}, channel.ErrNotFound
	}
	ch.MinimumTag = hierarchy.Tag(tag)
	return ch, err
}

func (s *Store) ListChannels(ctx context.Context) ([]channel.Channel, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		select id, name, minimum_tag_required, created_at from channels order by name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []channel.Channel
	for rows.Next() {
		var (
			ch  channel.Channel
			tag string
		)
		if err := rows.Scan(&ch.ID, &ch.Name, &tag, &ch.CreatedAt); err != nil {
			return nil, err
		}
		ch.MinimumTag = hierarchy.Tag(tag)
		result = append(result, ch)
	}
	return result, rows.Err()
}

func (s *Store) CreateMessage(ctx context.Context, msg *channel.Message) error {
	err := s.q(ctx).QueryRowContext(ctx, `
		insert into messages (id, channel_id, sender_id, sender_tag, content)
		values ($1, $2, $3, $4, $5)
		returning created_at
	`, msg.ID, msg.ChannelID, msg.SenderID, string(msg.SenderTag), msg.Content).Scan(&msg.CreatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return channel.ErrNotFound
		}
		return err
	}
	return nil
}

// ListMessages returns the newest messages first, capped by limit.
func (s *Store) ListMessages(ctx context.Context, channelID string, limit int) ([]channel.Message, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		select id, channel_id, sender_id, sender_tag, content, created_at
		from messages where channel_id = $1
		order by created_at desc limit $2
	`, channelID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []channel.Message
	for rows.Next() {
		var (
			msg channel.Message
			tag string
		)
		if err := rows.Scan(&msg.ID, &msg.ChannelID, &msg.SenderID, &tag, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, err
		}
		msg.SenderTag = hierarchy.Tag(tag)
		result = append(result, msg)
	}
	return result, rows.Err()
}
