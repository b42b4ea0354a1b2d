// Package hierarchy holds the fixed rank ladder that every authorization
// decision in the portal is anchored on. Tags and their ranks are business
// rule, not configuration: the table is immutable and loaded at compile
// time, and any lookup of a tag outside the ladder fails closed.
package hierarchy

import (
	"errors"
	"fmt"
)

// Tag is one of the fixed hierarchy levels.
type Tag string

const (
	TagRootAdmin        Tag = "Root Admin"
	TagManagingDirector Tag = "Managing Director"
	TagAdmin            Tag = "Admin"
	TagDean             Tag = "Dean"
	TagHOD              Tag = "HOD"
	TagStaff            Tag = "Staff"
	TagStudent          Tag = "Student"
)

var (
	// ErrInvalidTag is returned for any tag outside the fixed ladder.
	// Callers must treat it as a denial, never substitute a default rank.
	ErrInvalidTag = errors.New("hierarchy: invalid tag")

	// ErrViolation is returned when the add-down rule rejects an action.
	ErrViolation = errors.New("hierarchy: cannot act on a rank at or above your own")
)

var ranks = map[Tag]int{
	TagRootAdmin:        100,
	TagManagingDirector: 90,
	TagAdmin:            80,
	TagDean:             70,
	TagHOD:              60,
	TagStaff:            50,
	TagStudent:          40,
}

var ordered = []Tag{
	TagRootAdmin,
	TagManagingDirector,
	TagAdmin,
	TagDean,
	TagHOD,
	TagStaff,
	TagStudent,
}

// Rank returns the numeric rank for a tag, failing closed on unknown input.
func Rank(tag Tag) (int, error) {
	r, ok := ranks[tag]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTag, tag)
	}
	return r, nil
}

// Valid reports whether the tag belongs to the ladder.
func Valid(tag Tag) bool {
	_, ok := ranks[tag]
	return ok
}

// Tags returns the ladder from highest to lowest rank.
func Tags() []Tag {
	out := make([]Tag, len(ordered))
	copy(out, ordered)
	return out
}

// CanCreate enforces the add-down rule: an actor may create or manage
// only identities of strictly lower rank. Department membership plays no
// part here; a Dean can never create another Dean anywhere.
func CanCreate(actor, target Tag) error {
	actorRank, err := Rank(actor)
	if err != nil {
		return err
	}
	targetRank, err := Rank(target)
	if err != nil {
		return err
	}
	if actorRank <= targetRank {
		return ErrViolation
	}
	return nil
}

// MeetsMinimum reports whether the actor's rank satisfies a channel-style
// minimum-tag gate (greater than or equal).
func MeetsMinimum(actor, minimum Tag) (bool, error) {
	actorRank, err := Rank(actor)
	if err != nil {
		return false, err
	}
	minRank, err := Rank(minimum)
	if err != nil {
		return false, err
	}
	return actorRank >= minRank, nil
}

// IsTopAdministrative reports whether the tag is one of the three top
// administrative levels. These see the whole directory and may place new
// identities into any department.
func IsTopAdministrative(tag Tag) bool {
	switch tag {
	case TagRootAdmin, TagManagingDirector, TagAdmin:
		return true
	}
	return false
}
