package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"campuscore.org/internal/hierarchy"
	"campuscore.org/internal/identity"
)

var _ identity.Store = (*Store)(nil)

const identityColumns = `id, email, password_hash, tag, department_id, batch, status, profile_data, created_by, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row rowScanner) (identity.Identity, error) {
	var (
		ident      identity.Identity
		tag        string
		dept       sql.NullString
		batch      sql.NullString
		createdBy  sql.NullString
		rawProfile []byte
	)
	err := row.Scan(&ident.ID, &ident.Email, &ident.PasswordHash, &tag, &dept, &batch,
		&ident.Status, &rawProfile, &createdBy, &ident.CreatedAt, &ident.UpdatedAt)
	if err != nil {
		return identity.Identity{}, err
	}
	ident.Tag = hierarchy.Tag(tag)
	ident.DepartmentID = fromNull(dept)
	ident.Batch = fromNull(batch)
	ident.CreatedBy = fromNull(createdBy)
	ident.Profile = map[string]any{}
	if len(rawProfile) > 0 {
		if err := json.Unmarshal(rawProfile, &ident.Profile); err != nil {
			return identity.Identity{}, fmt.Errorf("decode profile_data: %w", err)
		}
	}
	return ident, nil
}

// CreateIdentity inserts a new row. A duplicate email maps to
// identity.ErrConflict; a dangling department reference to invalid input.
func (s *Store) CreateIdentity(ctx context.Context, ident *identity.Identity) error {
	profJSON, err := json.Marshal(ident.Profile)
	if err != nil {
		return fmt.Errorf("marshal profile_data: %w", err)
	}
	err = s.q(ctx).QueryRowContext(ctx, `
		insert into identities (id, email, password_hash, tag, department_id, batch, status, profile_data, created_by)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		returning created_at, updated_at
	`, ident.ID, ident.Email, ident.PasswordHash, string(ident.Tag),
		nullable(ident.DepartmentID), nullable(ident.Batch), ident.Status, profJSON,
		nullable(ident.CreatedBy),
	).Scan(&ident.CreatedAt, &ident.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return identity.ErrConflict
			case pgErrForeignKeyViolation:
				return fmt.Errorf("%w: unknown department", identity.ErrInvalidInput)
			}
		}
		return err
	}
	return nil
}

// FindIdentityByEmail is intentionally unscoped: it backs credential
// verification, which runs before any security context exists.
func (s *Store) FindIdentityByEmail(ctx context.Context, email string) (identity.Identity, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		select `+identityColumns+` from identities where email = $1
	`, email)
	ident, err := scanIdentity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return identity.Identity{}, identity.ErrNotFound
	}
	return ident, err
}

// UpdatePassword persists a new credential hash for the identity itself;
// it is keyed by id and not silo-filtered (self-service path).
func (s *Store) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	res, err := s.q(ctx).ExecContext(ctx, `
		update identities set password_hash = $2, updated_at = now() where id = $1
	`, id, passwordHash)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return identity.ErrNotFound
	}
	return nil
}

// FindIdentity returns a row visible inside the bound security context.
func (s *Store) FindIdentity(ctx context.Context, id string) (identity.Identity, error) {
	actor, err := s.scope(ctx)
	if err != nil {
		return identity.Identity{}, err
	}
	var row *sql.Row
	if hierarchy.IsTopAdministrative(actor.Tag) {
		row = s.q(ctx).QueryRowContext(ctx, `
			select `+identityColumns+` from identities where id = $1
		`, id)
	} else {
		row = s.q(ctx).QueryRowContext(ctx, `
			select `+identityColumns+` from identities where id = $1 and department_id = $2
		`, id, actor.DepartmentID)
	}
	ident, err := scanIdentity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return identity.Identity{}, identity.ErrNotFound
	}
	return ident, err
}

// ListIdentities applies the department-silo policy from the bound
// claims: top administrative tags see everyone, everyone else only their
// own department.
func (s *Store) ListIdentities(ctx context.Context) ([]identity.Identity, error) {
	actor, err := s.scope(ctx)
	if err != nil {
		return nil, err
	}
	var rows *sql.Rows
	if hierarchy.IsTopAdministrative(actor.Tag) {
		rows, err = s.q(ctx).QueryContext(ctx, `
			select `+identityColumns+` from identities order by created_at
		`)
	} else {
		rows, err = s.q(ctx).QueryContext(ctx, `
			select `+identityColumns+` from identities where department_id = $1 order by created_at
		`, actor.DepartmentID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []identity.Identity
	for rows.Next() {
		ident, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, ident)
	}
	return result, rows.Err()
}

// UpdateProfile replaces the profile blob (the service merges before
// calling) for a row visible in the bound scope.
func (s *Store) UpdateProfile(ctx context.Context, id string, profile map[string]any) (identity.Identity, error) {
	actor, err := s.scope(ctx)
	if err != nil {
		return identity.Identity{}, err
	}
	profJSON, err := json.Marshal(profile)
	if err != nil {
		return identity.Identity{}, fmt.Errorf("marshal profile_data: %w", err)
	}
	var row *sql.Row
	if hierarchy.IsTopAdministrative(actor.Tag) {
		row = s.q(ctx).QueryRowContext(ctx, `
			update identities set profile_data = $2, updated_at = now()
			where id = $1
			returning `+identityColumns+`
		`, id, profJSON)
	} else {
		row = s.q(ctx).QueryRowContext(ctx, `
			update identities set profile_data = $2, updated_at = now()
			where id = $1 and department_id = $3
			returning `+identityColumns+`
		`, id, profJSON, actor.DepartmentID)
	}
	ident, err := scanIdentity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return identity.Identity{}, identity.ErrNotFound
	}
	return ident, err
}

// UpdateStatus flips the status flag for a row visible in the bound scope.
func (s *Store) UpdateStatus(ctx context.Context, id, status string) (identity.Identity, error) {
	actor, err := s.scope(ctx)
	if err != nil {
		return identity.Identity{}, err
	}
	var row *sql.Row
	if hierarchy.IsTopAdministrative(actor.Tag) {
		row = s.q(ctx).QueryRowContext(ctx, `
			update identities set status = $2, updated_at = now()
			where id = $1
			returning `+identityColumns+`
		`, id, status)
	} else {
		row = s.q(ctx).QueryRowContext(ctx, `
			update identities set status = $2, updated_at = now()
			where id = $1 and department_id = $3
			returning `+identityColumns+`
		`, id, status, actor.DepartmentID)
	}
	ident, err := scanIdentity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return identity.Identity{}, identity.ErrNotFound
	}
	return ident, err
}

// DeleteIdentity removes a row visible in the bound scope and returns it
// so the caller can record what was deleted. Messages and grants cascade
// via the schema.
func (s *Store) DeleteIdentity(ctx context.Context, id string) (identity.Identity, error) {
	ident, err := s.FindIdentity(ctx, id)
	if err != nil {
		return identity.Identity{}, err
	}
	res, err := s.q(ctx).ExecContext(ctx, `delete from identities where id = $1`, id)
	if err != nil {
		return identity.Identity{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return identity.Identity{}, err
	}
	if n == 0 {
		return identity.Identity{}, identity.ErrNotFound
	}
	return ident, nil
}

// UpdateBatchStatus bulk-updates a student cohort. Non-administrative
// actors can only reach their own department; a foreign department
// simply matches zero rows, mirroring row-policy behavior.
func (s *Store) UpdateBatchStatus(ctx context.Context, batchLabel, departmentID, status string) (int64, error) {
	actor, err := s.scope(ctx)
	if err != nil {
		return 0, err
	}
	if !hierarchy.IsTopAdministrative(actor.Tag) && departmentID != actor.DepartmentID {
		return 0, nil
	}
	res, err := s.q(ctx).ExecContext(ctx, `
		update identities set status = $3, updated_at = now()
		where tag = 'Student' and batch = $1 and department_id = $2
	`, batchLabel, departmentID, status)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
