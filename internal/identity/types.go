package identity

import (
	"errors"
	"time"

	"campuscore.org/internal/hierarchy"
)

const (
	StatusActive   = "Active"
	StatusInactive = "Inactive"
)

var (
	ErrNotFound           = errors.New("identity: not found")
	ErrConflict           = errors.New("identity: already exists")
	ErrInvalidInput       = errors.New("identity: invalid input")
	ErrDepartmentOverride = errors.New("identity: cannot assign user to a different department")
	ErrDepartmentRequired = errors.New("identity: creator does not belong to a department to inherit")
)

// Identity is a person record. The rank tag is immutable after creation;
// no promotion or demotion operation exists.
type Identity struct {
	ID           string            `json:"id"`
	Email        string            `json:"email"`
	PasswordHash string            `json:"-"`
	Tag          hierarchy.Tag     `json:"tag"`
	DepartmentID string            `json:"department_id,omitempty"`
	Batch        string            `json:"batch,omitempty"`
	Status       string            `json:"status"`
	Profile      map[string]any    `json:"profile_data"`
	CreatedBy    string            `json:"created_by,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Department owns zero or more identities.
type Department struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Batch is a first-class student cohort label scoped to a department.
// It replaces the original design's placeholder identities that existed
// only to anchor a label.
type Batch struct {
	ID           string    `json:"id"`
	DepartmentID string    `json:"department_id"`
	Label        string    `json:"label"`
	CreatedAt    time.Time `json:"created_at"`
}

// Actor carries the caller claims a directory operation is performed under.
type Actor struct {
	ID           string
	Tag          hierarchy.Tag
	DepartmentID string
}

// NewIdentity is the creation payload.
type NewIdentity struct {
	Email        string
	Password     string
	Tag          hierarchy.Tag
	DepartmentID string
	Batch        string
	Profile      map[string]any
}

// ProfileUpdate merges into the existing profile blob: present keys
// overwrite, omitted keys persist.
type ProfileUpdate struct {
	Profile map[string]any
}
