package model

import (
	"encoding/binary"
	"time"
)

// VisitRecord is the sole persistent entity of the visit authorization
// lifecycle.  A record is created by the issuer, optionally gated behind
// an identity verification step, and consumed exactly once by an
// authorized confirmer.  Every transition is monotonic: no component may
// revert a previously-true flag or a previously-set timestamp.
//
// Fields:
//  Token             – opaque unguessable credential; immutable after creation.
//  Signature         – present iff the deployment signs tokens; covers the
//                      canonical payload (token plus bound visitor metadata).
//  VisitorName       – informational, non-empty at issuance.
//  HostName          – informational, non-empty at issuance.
//  Location          – informational.
//  Purpose           – informational.
//  RequestedDuration – parsed once at issuance, stored normalized; the stay
//                      countdown starts only at confirmation.
//  IssuedAt          – set once by the issuer.
//  DailyExpiry       – end-of-day boundary at issuance time; the token is
//                      unusable after this instant regardless of other state.
//  IdentityVerified  – false until the identity gate accepts an artifact.
//  IdentityArtifact  – audit reference (generated ID + filename) of the
//                      accepted artifact; never the raw image.
//  ConfirmedAt       – set exactly once by the confirmation engine; nil
//                      means "not yet entered".
type VisitRecord struct {
	Token             string        `json:"token"`                        // visits.token
	Signature         []byte        `json:"signature,omitempty"`          // visits.signature (nullable)
	VisitorName       string        `json:"visitor_name"`                 // visits.visitor_name
	HostName          string        `json:"host_name"`                    // visits.host_name
	Location          string        `json:"location"`                     // visits.location
	Purpose           string        `json:"purpose"`                      // visits.purpose
	RequestedDuration time.Duration `json:"requested_duration_secs"`      // visits.requested_duration_secs
	IssuedAt          time.Time     `json:"issued_at"`                    // visits.issued_at
	DailyExpiry       time.Time     `json:"daily_expiry"`                 // visits.daily_expiry
	IdentityVerified  bool          `json:"identity_verified"`            // visits.identity_verified
	IdentityArtifact  string        `json:"identity_artifact,omitempty"`  // visits.identity_artifact (nullable)
	ConfirmedAt       *time.Time    `json:"confirmed_at,omitempty"`       // visits.confirmed_at (nullable)
}

// SignedPayload returns the canonical byte sequence a deployment's signer
// covers: the token plus the visitor metadata bound at issuance.  Each
// field is length-prefixed (uvarint) so field boundaries are unambiguous
// no matter what the host typed into the free-text fields; any mutation of
// a covered field after issuance invalidates the signature.
func (v VisitRecord) SignedPayload() []byte {
	fields := []string{
		v.Token, v.VisitorName, v.HostName,
		v.Location, v.Purpose, v.RequestedDuration.String(),
	}
	payload := make([]byte, 0, 128)
	for _, f := range fields {
		payload = binary.AppendUvarint(payload, uint64(len(f)))
		payload = append(payload, f...)
	}
	return payload
}

// Confirmed reports whether entry has been granted for this record.
func (v VisitRecord) Confirmed() bool { return v.ConfirmedAt != nil }

// TokenExpired reports whether the hard daily cutoff has passed.  This
// clock governs token usability and is independent of the stay countdown.
func (v VisitRecord) TokenExpired(now time.Time) bool {
	return now.After(v.DailyExpiry)
}

// StayDeadline returns the instant the confirmed stay ends.  The second
// return value is false until the record has been confirmed.
func (v VisitRecord) StayDeadline() (time.Time, bool) {
	if v.ConfirmedAt == nil {
		return time.Time{}, false
	}
	return v.ConfirmedAt.Add(v.RequestedDuration), true
}

// RemainingStay returns how much of the confirmed stay is left at the
// given instant, clamped to zero.  It returns zero for unconfirmed
// records; callers should check Confirmed() when the distinction matters.
func (v VisitRecord) RemainingStay(now time.Time) time.Duration {
	deadline, ok := v.StayDeadline()
	if !ok {
		return 0
	}
	remaining := deadline.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// StayExpired reports whether a confirmed stay has run out.  This is
// informational only: it never feeds back into token expiry.
func (v VisitRecord) StayExpired(now time.Time) bool {
	deadline, ok := v.StayDeadline()
	return ok && now.After(deadline)
}
