// Package service implements the visit authorization lifecycle: issuing
// tokens, authenticating presented credentials, gating redemption behind
// identity verification and confirming physical entry exactly once.
package service

import (
	"errors"
	"fmt"
)

// ErrTokenExpired is returned once the hard daily cutoff has passed.
// Terminal for that credential.
var ErrTokenExpired = errors.New("token expired")

// ErrSignatureInvalid is returned when a presented signature does not
// verify against the record's signed payload.  This covers both a
// captured token presented without its signature and tampered visitor
// metadata; it is a security-relevant event and is never swallowed.
var ErrSignatureInvalid = errors.New("signature invalid")

// ErrNotVerified is returned by the confirmation engine when the
// deployment requires identity verification and the record has not yet
// passed the gate.
var ErrNotVerified = errors.New("identity not verified")

// ErrAlreadyConfirmed is returned on a duplicate confirmation attempt.
// Entry confirmation is one-time only; surfacing this distinctly lets
// operators investigate potential credential sharing.
var ErrAlreadyConfirmed = errors.New("entry already confirmed")

// ErrDetectorUnavailable is returned when the external identity detector
// cannot be reached or errors out.  Callers must be able to distinguish
// "your ID looks invalid" from "we could not check your ID".
var ErrDetectorUnavailable = errors.New("identity detector unavailable")

// ErrIssuance is returned when a visit record could not be created even
// after retrying token generation.
var ErrIssuance = errors.New("could not issue visit token")

// IdentityRejectedError reports that an uploaded artifact was scored but
// did not qualify as an identity document.  The record is unchanged and
// the caller may retry with a new artifact until the daily expiry.
type IdentityRejectedError struct {
	Reason string
}

func (e *IdentityRejectedError) Error() string {
	return fmt.Sprintf("identity artifact rejected: %s", e.Reason)
}
