package repository

import (
	"context"

	"github.com/abdosalm555/visit-pass/internal/model"
)

// VisitStore is the durable mapping from visit token to VisitRecord.  It
// is the only shared mutable resource in the system and its Update method
// is the single serialization point for all stateful transitions: no
// component may read-then-write outside of it.
//
// Contention semantics, identical across implementations: competing
// updates on the same token are linearized by blocking.  The loser's
// mutator re-runs against the winner's committed state, so a transition
// that has become stale (e.g. a second confirmation) surfaces as the typed
// error the mutator returns.  Updates on different tokens never block each
// other.
type VisitStore interface {
	// Put inserts a new record.  It never overwrites: ErrTokenExists is
	// returned when a record already exists for the token.
	Put(ctx context.Context, rec model.VisitRecord) error

	// Get returns the record for a token, or ErrVisitNotFound.  Get is
	// read-only and safe for polling callers.
	Get(ctx context.Context, token string) (model.VisitRecord, error)

	// Update atomically applies mutate to the current record and persists
	// the result.  When mutate returns an error the record is left
	// unchanged and the error is returned verbatim.  Returns the record as
	// persisted, or ErrVisitNotFound for unknown tokens.
	Update(ctx context.Context, token string, mutate func(*model.VisitRecord) error) (model.VisitRecord, error)
}
