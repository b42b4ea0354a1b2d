package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"campuscore.org/internal/audit"
	"campuscore.org/internal/hierarchy"
	"campuscore.org/internal/ids"
)

// Service is the directory: identity, department and batch lifecycle under
// the add-down rule. Visibility filtering is not done here; reads and
// writes go through a store whose unit of work is already scoped to the
// actor's claims.
type Service struct {
	store    Store
	recorder *audit.Recorder
}

// NewService constructs the directory service.
func NewService(store Store, recorder *audit.Recorder) (*Service, error) {
	if store == nil {
		return nil, errors.New("identity: store is required")
	}
	if recorder == nil {
		return nil, errors.New("identity: audit recorder is required")
	}
	return &Service{store: store, recorder: recorder}, nil
}

// Create applies the add-down rule and department inheritance, then
// persists the new identity. The rank tag set here is final; no other
// operation can change it.
func (s *Service) Create(ctx context.Context, actor Actor, in NewIdentity) (Identity, error) {
	email := strings.TrimSpace(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return Identity{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if in.Password == "" {
		return Identity{}, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	if err := hierarchy.CanCreate(actor.Tag, in.Tag); err != nil {
		return Identity{}, err
	}

	departmentID, err := resolveDepartment(actor, in)
	if err != nil {
		return Identity{}, err
	}

	batch := ""
	if in.Tag == hierarchy.TagStudent {
		batch = strings.TrimSpace(in.Batch)
	}

	hash, err := hashPassword(in.Password)
	if err != nil {
		return Identity{}, err
	}

	profile := in.Profile
	if profile == nil {
		profile = map[string]any{}
	}

	ident := Identity{
		ID:           ids.New(),
		Email:        email,
		PasswordHash: hash,
		Tag:          in.Tag,
		DepartmentID: departmentID,
		Batch:        batch,
		Status:       StatusActive,
		Profile:      profile,
		CreatedBy:    actor.ID,
	}
	if err := s.store.CreateIdentity(ctx, &ident); err != nil {
		return Identity{}, err
	}

	s.recorder.Record(ctx, actor.ID, "identity.create", "identities", ident.ID, map[string]any{
		"tag":           string(ident.Tag),
		"department_id": ident.DepartmentID,
	})
	return ident, nil
}

// resolveDepartment decides the target's department at creation time.
// Top administrative actors may place the target anywhere; the three
// top-most ranks themselves carry no department at all. Everyone else
// inherits the actor's own department and may not override it.
func resolveDepartment(actor Actor, in NewIdentity) (string, error) {
	requested := strings.TrimSpace(in.DepartmentID)
	if hierarchy.IsTopAdministrative(actor.Tag) {
		if hierarchy.IsTopAdministrative(in.Tag) {
			return "", nil
		}
		if requested == "" {
			return "", fmt.Errorf("%w: department is required for tag %s", ErrInvalidInput, in.Tag)
		}
		return requested, nil
	}
	if actor.DepartmentID == "" {
		return "", ErrDepartmentRequired
	}
	if requested != "" && requested != actor.DepartmentID {
		return "", ErrDepartmentOverride
	}
	return actor.DepartmentID, nil
}

// Get returns a single identity visible to the actor's scope.
func (s *Service) Get(ctx context.Context, id string) (Identity, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Identity{}, fmt.Errorf("%w: identity id is required", ErrInvalidInput)
	}
	return s.store.FindIdentity(ctx, id)
}

// List returns the identities visible to the actor. The department silo
// is enforced by the scoped unit of work underneath, not here, so new
// read paths cannot accidentally bypass it.
func (s *Service) List(ctx context.Context) ([]Identity, error) {
	return s.store.ListIdentities(ctx)
}

// Update shallow-merges the profile blob: keys present in the update
// overwrite, omitted keys persist. Core fields (email, tag, department)
// are untouchable through this path.
func (s *Service) Update(ctx context.Context, actor Actor, id string, upd ProfileUpdate) (Identity, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Identity{}, fmt.Errorf("%w: identity id is required", ErrInvalidInput)
	}
	current, err := s.store.FindIdentity(ctx, id)
	if err != nil {
		return Identity{}, err
	}

	merged := make(map[string]any, len(current.Profile)+len(upd.Profile))
	for k, v := range current.Profile {
		merged[k] = v
	}
	updatedKeys := make([]string, 0, len(upd.Profile))
	for k, v := range upd.Profile {
		merged[k] = v
		updatedKeys = append(updatedKeys, k)
	}

	ident, err := s.store.UpdateProfile(ctx, id, merged)
	if err != nil {
		return Identity{}, err
	}
	s.recorder.Record(ctx, actor.ID, "identity.profile.update", "identities", id, map[string]any{
		"updated_fields": updatedKeys,
	})
	return ident, nil
}

// UpdateStatus flips an identity between Active and Inactive.
func (s *Service) UpdateStatus(ctx context.Context, actor Actor, id, status string) (Identity, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Identity{}, fmt.Errorf("%w: identity id is required", ErrInvalidInput)
	}
	if status != StatusActive && status != StatusInactive {
		return Identity{}, fmt.Errorf("%w: unsupported status %q", ErrInvalidInput, status)
	}
	ident, err := s.store.UpdateStatus(ctx, id, status)
	if err != nil {
		return Identity{}, err
	}
	s.recorder.Record(ctx, actor.ID, "identity.status.update", "identities", id, map[string]any{
		"new_status": status,
	})
	return ident, nil
}

// Delete removes an identity. The schema cascades to their channel
// messages and to any temporary grants they granted or received.
func (s *Service) Delete(ctx context.Context, actor Actor, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: identity id is required", ErrInvalidInput)
	}
	deleted, err := s.store.DeleteIdentity(ctx, id)
	if err != nil {
		return err
	}
	s.recorder.Record(ctx, actor.ID, "identity.delete", "identities", id, map[string]any{
		"deleted_email": deleted.Email,
		"deleted_tag":   string(deleted.Tag),
	})
	return nil
}

// UpdateBatchStatus bulk-updates the status of a department's student
// cohort and returns the number of affected identities.
func (s *Service) UpdateBatchStatus(ctx context.Context, actor Actor, batchLabel, departmentID, status string) (int64, error) {
	batchLabel = strings.TrimSpace(batchLabel)
	departmentID = strings.TrimSpace(departmentID)
	if batchLabel == "" || departmentID == "" {
		return 0, fmt.Errorf("%w: batch and department_id are required", ErrInvalidInput)
	}
	if status != StatusActive && status != StatusInactive {
		return 0, fmt.Errorf("%w: unsupported status %q", ErrInvalidInput, status)
	}
	count, err := s.store.UpdateBatchStatus(ctx, batchLabel, departmentID, status)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.recorder.Record(ctx, actor.ID, "identity.batch.status.update", "identities", "", map[string]any{
			"batch":         batchLabel,
			"department_id": departmentID,
			"new_status":    status,
			"count":         count,
		})
	}
	return count, nil
}

// CreateDepartment registers a new department. Duplicate names conflict.
func (s *Service) CreateDepartment(ctx context.Context, actor Actor, name string) (Department, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Department{}, fmt.Errorf("%w: department name is required", ErrInvalidInput)
	}
	dept := Department{ID: ids.New(), Name: name}
	if err := s.store.CreateDepartment(ctx, &dept); err != nil {
		return Department{}, err
	}
	s.recorder.Record(ctx, actor.ID, "department.create", "departments", dept.ID, map[string]any{
		"name": name,
	})
	return dept, nil
}

// ListDepartments returns all departments ordered by name.
func (s *Service) ListDepartments(ctx context.Context) ([]Department, error) {
	return s.store.ListDepartments(ctx)
}

// DeleteDepartment removes a department; members keep existing but lose
// their department reference.
func (s *Service) DeleteDepartment(ctx context.Context, actor Actor, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: department id is required", ErrInvalidInput)
	}
	if err := s.store.DeleteDepartment(ctx, id); err != nil {
		return err
	}
	s.recorder.Record(ctx, actor.ID, "department.delete", "departments", id, nil)
	return nil
}

// CreateBatch registers a cohort label for a department. Batches are
// first-class rows, not placeholder identities.
func (s *Service) CreateBatch(ctx context.Context, actor Actor, departmentID, label string) (Batch, error) {
	departmentID = strings.TrimSpace(departmentID)
	label = strings.TrimSpace(label)
	if departmentID == "" || label == "" {
		return Batch{}, fmt.Errorf("%w: department_id and label are required", ErrInvalidInput)
	}
	batch := Batch{ID: ids.New(), DepartmentID: departmentID, Label: label}
	if err := s.store.CreateBatch(ctx, &batch); err != nil {
		return Batch{}, err
	}
	s.recorder.Record(ctx, actor.ID, "batch.create", "batches", batch.ID, map[string]any{
		"department_id": departmentID,
		"label":         label,
	})
	return batch, nil
}

// ListBatches returns the cohort labels for a department.
func (s *Service) ListBatches(ctx context.Context, departmentID string) ([]Batch, error) {
	departmentID = strings.TrimSpace(departmentID)
	if departmentID == "" {
		return nil, fmt.Errorf("%w: department_id is required", ErrInvalidInput)
	}
	return s.store.ListBatches(ctx, departmentID)
}

// bcryptCost mirrors the cost used for credential hashing in the auth
// package; the two must stay in step so login verification cost is uniform.
const bcryptCost = 12

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
