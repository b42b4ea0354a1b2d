package hierarchy

import (
	"errors"
	"testing"
)

func TestRankOrdering(t *testing.T) {
	tags := Tags()
	if len(tags) != 7 {
		t.Fatalf("expected 7 tags, got %d", len(tags))
	}
	prev := 0
	for i, tag := range tags {
		r, err := Rank(tag)
		if err != nil {
			t.Fatalf("Rank(%s): %v", tag, err)
		}
		if i > 0 && r >= prev {
			t.Fatalf("ranks not strictly descending at %s: %d >= %d", tag, r, prev)
		}
		prev = r
	}
}

func TestRankUnknownTagFailsClosed(t *testing.T) {
	if _, err := Rank("Professor"); !errors.Is(err, ErrInvalidTag) {
		t.Fatalf("expected ErrInvalidTag, got %v", err)
	}
	if _, err := Rank(""); !errors.Is(err, ErrInvalidTag) {
		t.Fatalf("expected ErrInvalidTag for empty tag, got %v", err)
	}
}

func TestCanCreateFullGrid(t *testing.T) {
	tags := Tags()
	for _, actor := range tags {
		for _, target := range tags {
			err := CanCreate(actor, target)
			actorRank, _ := Rank(actor)
			targetRank, _ := Rank(target)
			if actorRank > targetRank {
				if err != nil {
					t.Errorf("CanCreate(%s, %s): unexpected error %v", actor, target, err)
				}
				continue
			}
			if !errors.Is(err, ErrViolation) {
				t.Errorf("CanCreate(%s, %s): expected ErrViolation, got %v", actor, target, err)
			}
		}
	}
}

func TestCanCreateExamples(t *testing.T) {
	if err := CanCreate(TagHOD, TagStaff); err != nil {
		t.Fatalf("HOD creating Staff should succeed: %v", err)
	}
	if err := CanCreate(TagHOD, TagHOD); !errors.Is(err, ErrViolation) {
		t.Fatalf("HOD creating HOD should violate, got %v", err)
	}
	if err := CanCreate(TagStaff, TagStudent); err != nil {
		t.Fatalf("Staff creating Student should succeed: %v", err)
	}
	if err := CanCreate(TagStudent, TagStudent); !errors.Is(err, ErrViolation) {
		t.Fatalf("Student creating anything should violate, got %v", err)
	}
}

func TestCanCreateInvalidTag(t *testing.T) {
	if err := CanCreate(TagAdmin, "Janitor"); !errors.Is(err, ErrInvalidTag) {
		t.Fatalf("expected ErrInvalidTag, got %v", err)
	}
	if err := CanCreate("Janitor", TagStudent); !errors.Is(err, ErrInvalidTag) {
		t.Fatalf("expected ErrInvalidTag for bad actor, got %v", err)
	}
}

func TestMeetsMinimum(t *testing.T) {
	cases := []struct {
		actor, minimum Tag
		want           bool
	}{
		{TagStaff, TagDean, false},
		{TagDean, TagDean, true},
		{TagManagingDirector, TagDean, true},
		{TagStudent, TagStudent, true},
		{TagStudent, TagStaff, false},
	}
	for _, tc := range cases {
		got, err := MeetsMinimum(tc.actor, tc.minimum)
		if err != nil {
			t.Fatalf("MeetsMinimum(%s, %s): %v", tc.actor, tc.minimum, err)
		}
		if got != tc.want {
			t.Errorf("MeetsMinimum(%s, %s) = %v, want %v", tc.actor, tc.minimum, got, tc.want)
		}
	}
	if _, err := MeetsMinimum(TagStaff, "VIP"); !errors.Is(err, ErrInvalidTag) {
		t.Fatalf("expected ErrInvalidTag, got %v", err)
	}
}

func TestIsTopAdministrative(t *testing.T) {
	for _, tag := range []Tag{TagRootAdmin, TagManagingDirector, TagAdmin} {
		if !IsTopAdministrative(tag) {
			t.Errorf("%s should be top administrative", tag)
		}
	}
	for _, tag := range []Tag{TagDean, TagHOD, TagStaff, TagStudent, "Janitor"} {
		if IsTopAdministrative(tag) {
			t.Errorf("%s should not be top administrative", tag)
		}
	}
}
