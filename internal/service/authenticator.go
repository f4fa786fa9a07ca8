package service

import (
	"context"
	"time"

	"github.com/abdosalm555/visit-pass/internal/metrics"
	"github.com/abdosalm555/visit-pass/internal/model"
	"github.com/abdosalm555/visit-pass/internal/repository"
)

// Authenticator verifies presented visit credentials against the store.
// It is strictly read-only: repeated calls are idempotent and safe for
// polling or autorefresh use.
type Authenticator struct {
	Store  repository.VisitStore
	Signer TokenSigner
	Now    func() time.Time // test seam; defaults to time.Now
}

// NewAuthenticator returns an authenticator over the given store and the
// deployment's signer.
func NewAuthenticator(store repository.VisitStore, signer TokenSigner) *Authenticator {
	return &Authenticator{Store: store, Signer: signer}
}

func (a *Authenticator) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// Authenticate looks up the token and validates the presented signature
// and the daily expiry, in that order.  The signature is checked even
// though the token already matched: an attacker who captured a token but
// not its signature, or who tampered with signed visitor metadata, must
// still be rejected.  Returns repository.ErrVisitNotFound,
// ErrSignatureInvalid or ErrTokenExpired.
func (a *Authenticator) Authenticate(ctx context.Context, token string, sig []byte) (model.VisitRecord, error) {
	rec, err := a.Store.Get(ctx, token)
	if err != nil {
		return model.VisitRecord{}, err
	}
	if err := a.Signer.Verify(rec.SignedPayload(), sig); err != nil {
		metrics.SignatureFailures.Inc()
		return model.VisitRecord{}, err
	}
	if rec.TokenExpired(a.now()) {
		return model.VisitRecord{}, ErrTokenExpired
	}
	return rec, nil
}
