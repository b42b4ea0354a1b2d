package pg

import (
	"context"
	"errors"

	"campuscore.org/internal/hierarchy"
	"campuscore.org/internal/identity"
)

// ErrContextRequired means a scoped operation ran without a bound
// security context. This is fatal to the operation; there is no
// unscoped fallback.
var ErrContextRequired = errors.New("pg: security context required")

// Unit is one unit of work: a transaction bound to the caller's claims.
// Exactly one of Commit or Rollback must happen; whichever comes second
// is a no-op. Units are never shared between concurrent requests.
type Unit struct {
	tx       txLike
	actor    identity.Actor
	finished bool
}

type txLike interface {
	querier
	Commit() error
	Rollback() error
}

// Begin opens a unit of work for the given actor. The claims are bound
// as transaction-local settings (mirroring engine-native row policies
// keyed on them) and kept on the Unit so query-side filtering applies
// the same silo rule regardless of the storage engine's own features.
func (s *Store) Begin(ctx context.Context, actor identity.Actor) (*Unit, error) {
	if actor.ID == "" || !hierarchy.Valid(actor.Tag) {
		return nil, ErrContextRequired
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `
		select set_config('portal.claim.department_id', $1, true),
		       set_config('portal.claim.tag', $2, true),
		       set_config('portal.claim.identity_id', $3, true)
	`, actor.DepartmentID, string(actor.Tag), actor.ID); err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	return &Unit{tx: tx, actor: actor}, nil
}

// Commit finalizes the unit. Calling it after Rollback is a no-op.
func (u *Unit) Commit() error {
	if u.finished {
		return nil
	}
	u.finished = true
	return u.tx.Commit()
}

// Rollback discards the unit. Calling it after Commit is a no-op, which
// allows the deferred-rollback idiom at call sites.
func (u *Unit) Rollback() error {
	if u.finished {
		return nil
	}
	u.finished = true
	return u.tx.Rollback()
}

// Actor returns the claims the unit was opened with.
func (u *Unit) Actor() identity.Actor { return u.actor }

type unitContextKey struct{}

// ContextWithUnit binds the unit of work to the context so every store
// call within the operation runs inside it.
func ContextWithUnit(ctx context.Context, u *Unit) context.Context {
	return context.WithValue(ctx, unitContextKey{}, u)
}

// UnitFromContext returns the bound unit, if any.
func UnitFromContext(ctx context.Context) *Unit {
	if ctx == nil {
		return nil
	}
	u, _ := ctx.Value(unitContextKey{}).(*Unit)
	return u
}

// scope returns the actor bound to the context's unit of work. Scoped
// operations fail closed when no unit is present.
func (s *Store) scope(ctx context.Context) (identity.Actor, error) {
	u := UnitFromContext(ctx)
	if u == nil || u.finished {
		return identity.Actor{}, ErrContextRequired
	}
	return u.actor, nil
}
