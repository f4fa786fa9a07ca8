package service

import (
	"context"
	"time"

	"github.com/abdosalm555/visit-pass/internal/metrics"
	"github.com/abdosalm555/visit-pass/internal/model"
	"github.com/abdosalm555/visit-pass/internal/repository"
)

// ConfirmationEngine turns a verified, unexpired, not-yet-confirmed token
// into a confirmed entry exactly once.  It exclusively owns ConfirmedAt.
// Role authorization of the confirming principal (security) is the HTTP
// layer's concern.
type ConfirmationEngine struct {
	Store repository.VisitStore
	Auth  *Authenticator
	// RequireIdentity gates confirmation behind identity verification.
	// Strict by default in deployment config.
	RequireIdentity bool
	Now             func() time.Time // test seam; defaults to time.Now
}

// NewConfirmationEngine wires the engine over the store and authenticator.
func NewConfirmationEngine(store repository.VisitStore, auth *Authenticator, requireIdentity bool) *ConfirmationEngine {
	return &ConfirmationEngine{Store: store, Auth: auth, RequireIdentity: requireIdentity}
}

func (e *ConfirmationEngine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Confirm marks entry for the token, exactly once.  Each condition is
// checked against the freshly-loaded record inside the store's atomic
// update, so two guards racing to scan the same QR code resolve to
// exactly one winner; the loser's mutator re-runs against the committed
// state and returns ErrAlreadyConfirmed.
//
// Check order: unknown token, invalid signature, daily expiry, identity
// gate (when required), prior confirmation.  A second confirmation is
// rejected, never re-stamped: a single QR code must not grant multiple
// physical entries, nor refresh the stay countdown.
func (e *ConfirmationEngine) Confirm(ctx context.Context, token string, sig []byte) (model.VisitRecord, error) {
	// Signature and expiry are validated up front so a forged credential
	// never reaches the store's write path.  Expiry and the identity gate
	// are re-checked inside the mutator against the current record.
	if _, err := e.Auth.Authenticate(ctx, token, sig); err != nil {
		return model.VisitRecord{}, err
	}

	now := e.now()
	rec, err := e.Store.Update(ctx, token, func(v *model.VisitRecord) error {
		if v.TokenExpired(now) {
			return ErrTokenExpired
		}
		if e.RequireIdentity && !v.IdentityVerified {
			return ErrNotVerified
		}
		if v.ConfirmedAt != nil {
			return ErrAlreadyConfirmed
		}
		stamp := now
		v.ConfirmedAt = &stamp
		return nil
	})
	if err != nil {
		if err == ErrAlreadyConfirmed {
			metrics.ConfirmConflicts.Inc()
		}
		return model.VisitRecord{}, err
	}
	metrics.VisitsConfirmed.Inc()
	return rec, nil
}

// RemainingStay reports how much of the confirmed stay is left right now,
// clamped to zero.  Derived, never stored.  A stay running out does not
// expire the token itself: the daily cutoff and the stay countdown are
// independent clocks.
func (e *ConfirmationEngine) RemainingStay(rec model.VisitRecord) time.Duration {
	return rec.RemainingStay(e.now())
}

// StayExpired reports whether the confirmed stay has run out, on the same
// clock as RemainingStay so values derived from both agree.
func (e *ConfirmationEngine) StayExpired(rec model.VisitRecord) bool {
	return rec.StayExpired(e.now())
}
