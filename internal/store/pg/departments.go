package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"campuscore.org/internal/identity"
)

func (s *Store) CreateDepartment(ctx context.Context, dept *identity.Department) error {
	err := s.q(ctx).QueryRowContext(ctx, `
		insert into departments (id, name) values ($1, $2)
		returning created_at
	`, dept.ID, dept.Name).Scan(&dept.CreatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return identity.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) ListDepartments(ctx context.Context) ([]identity.Department, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		select id, name, created_at from departments order by name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []identity.Department
	for rows.Next() {
		var dept identity.Department
		if err := rows.Scan(&dept.ID, &dept.Name, &dept.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, dept)
	}
	return result, rows.Err()
}

func (s *Store) FindDepartment(ctx context.Context, id string) (identity.Department, error) {
	var dept identity.Department
	err := s.q(ctx).QueryRowContext(ctx, `
		select id, name, created_at from departments where id = $1
	`, id).Scan(&dept.ID, &dept.Name, &dept.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return identity.Department{}, identity.ErrNotFound
	}
	return dept, err
}

// DeleteDepartment removes the department; member identities keep their
// rows with department_id reset to null by the schema.
func (s *Store) DeleteDepartment(ctx context.Context, id string) error {
	res, err := s.q(ctx).ExecContext(ctx, `delete from departments where id = $1`, id)
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

func (s *Store) CreateBatch(ctx context.Context, batch *identity.Batch) error {
	err := s.q(ctx).QueryRowContext(ctx, `
		insert into batches (id, department_id, label) values ($1, $2, $3)
		returning created_at
	`, batch.ID, batch.DepartmentID, batch.Label).Scan(&batch.CreatedAt)
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

func (s *Store) ListBatches(ctx context.Context, departmentID string) ([]identity.Batch, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		select id, department_id, label, created_at from batches
		where department_id = $1 order by label
	`, departmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []identity.Batch
	for rows.Next() {
		var batch identity.Batch
		if err := rows.Scan(&batch.ID, &batch.DepartmentID, &batch.Label, &batch.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, batch)
	}
	return result, rows.Err()
}
