package identity

import "context"

// Store describes the persistence operations the directory service needs.
// Implementations that honour the caller's security context (department
// silo visibility) are expected to apply it inside these methods; the
// service never re-states the filter.
type Store interface {
	CreateIdentity(ctx context.Context, ident *Identity) error
	FindIdentity(ctx context.Context, id string) (Identity, error)
	FindIdentityByEmail(ctx context.Context, email string) (Identity, error)
	ListIdentities(ctx context.Context) ([]Identity, error)
	UpdateProfile(ctx context.Context, id string, profile map[string]any) (Identity, error)
	UpdateStatus(ctx context.Context, id, status string) (Identity, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	DeleteIdentity(ctx context.Context, id string) (Identity, error)
	UpdateBatchStatus(ctx context.Context, batchLabel, departmentID, status string) (int64, error)

	CreateDepartment(ctx context.Context, dept *Department) error
	ListDepartments(ctx context.Context) ([]Department, error)
	FindDepartment(ctx context.Context, id string) (Department, error)
	DeleteDepartment(ctx context.Context, id string) error

	CreateBatch(ctx context.Context, batch *Batch) error
	ListBatches(ctx context.Context, departmentID string) ([]Batch, error)
}
