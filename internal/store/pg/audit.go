package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"campuscore.org/internal/audit"
	"campuscore.org/internal/ids"
)

var _ audit.Sink = (*Store)(nil)

// Append inserts an audit entry. It goes through q(ctx), so an entry
// written inside a unit of work commits or rolls back with it.
func (s *Store) Append(ctx context.Context, entry *audit.Entry) error {
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	detailJSON, err := json.Marshal(entry.Detail)
	if err != nil {
		return fmt.Errorf("marshal audit detail: %w", err)
	}
	_, err = s.q(ctx).ExecContext(ctx, `
		insert into audit_log (id, actor_id, action, resource, resource_id, detail, created_at)
		values ($1, $2, $3, $4, $5, $6, $7)
	`, entry.ID, nullable(entry.ActorID), entry.Action, entry.Resource,
		nullable(entry.ResourceID), detailJSON, entry.CreatedAt)
	return err
}

// List returns entries newest first. Filters are conjunctive; an empty
// field matches everything.
func (s *Store) List(ctx context.Context, f audit.Filter) ([]audit.Entry, error) {
	query := `
		select id, actor_id, action, resource, resource_id, detail, created_at
		from audit_log where 1=1`
	args := []any{}
	if f.ActorID != "" {
		args = append(args, f.ActorID)
		query += fmt.Sprintf(" and actor_id = $%d", len(args))
	}
	if f.Action != "" {
		args = append(args, f.Action)
		query += fmt.Sprintf(" and action = $%d", len(args))
	}
	args = append(args, f.Limit)
	query += fmt.Sprintf(" order by created_at desc limit $%d", len(args))

	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []audit.Entry
	for rows.Next() {
		var (
			entry      audit.Entry
			actorID    sql.NullString
			resourceID sql.NullString
			rawDetail  []byte
		)
		if err := rows.Scan(&entry.ID, &actorID, &entry.Action, &entry.Resource,
			&resourceID, &rawDetail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.ActorID = fromNull(actorID)
		entry.ResourceID = fromNull(resourceID)
		if len(rawDetail) > 0 {
			if err := json.Unmarshal(rawDetail, &entry.Detail); err != nil {
				return nil, fmt.Errorf("decode audit detail: %w", err)
			}
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
