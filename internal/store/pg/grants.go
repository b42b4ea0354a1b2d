package pg

import (
	"context"
	"database/sql"
	"errors"

	"campuscore.org/internal/grant"
)

var _ grant.Store = (*Store)(nil)

func (s *Store) CreateGrant(ctx context.Context, g *grant.Grant) error {
	err := s.q(ctx).QueryRowContext(ctx, `
		insert into temporary_grants (id, grantor_id, recipient_id, action, is_active, expires_at)
		values ($1, $2, $3, $4, $5, $6)
		returning created_at
	`, g.ID, g.GrantorID, g.RecipientID, g.Action, g.Active, g.ExpiresAt).Scan(&g.CreatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return grant.ErrRecipientNotFound
		}
		return err
	}
	return nil
}

// ActiveGrants returns rows with the activation flag set for the
// recipient and action. Expiry is evaluated by the caller against its
// own clock, not in SQL.
func (s *Store) ActiveGrants(ctx context.Context, recipientID, action string) ([]grant.Grant, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		select id, grantor_id, recipient_id, action, is_active, expires_at, created_at
		from temporary_grants
		where recipient_id = $1 and action = $2 and is_active = true
		order by expires_at desc
	`, recipientID, action)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectGrants(rows)
}

func (s *Store) ListGrantsForRecipient(ctx context.Context, recipientID string) ([]grant.Grant, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		select id, grantor_id, recipient_id, action, is_active, expires_at, created_at
		from temporary_grants
		where recipient_id = $1
		order by created_at desc
	`, recipientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectGrants(rows)
}

func (s *Store) DeactivateGrant(ctx context.Context, id string) error {
	res, err := s.q(ctx).ExecContext(ctx, `
		update temporary_grants set is_active = false where id = $1
	`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return grant.ErrNotFound
	}
	return nil
}

func (s *Store) RecipientExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.q(ctx).QueryRowContext(ctx, `
		select exists(select 1 from identities where id = $1)
	`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return exists, err
}

func collectGrants(rows *sql.Rows) ([]grant.Grant, error) {
	var result []grant.Grant
	for rows.Next() {
		var g grant.Grant
		if err := rows.Scan(&g.ID, &g.GrantorID, &g.RecipientID, &g.Action, &g.Active, &g.ExpiresAt, &g.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, g)
	}
	return result, rows.Err()
}
