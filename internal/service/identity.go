package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/abdosalm555/visit-pass/internal/metrics"
	"github.com/abdosalm555/visit-pass/internal/model"
	"github.com/abdosalm555/visit-pass/internal/repository"
)

// DefaultConfidenceThreshold is the minimum detector confidence for an
// artifact to count as a verified identity document.  A policy constant,
// not derived; override via IDENTITY_CONFIDENCE_THRESHOLD.
const DefaultConfidenceThreshold = 0.70

// Detection is one (label, confidence) pair returned by the external
// identity detector for an uploaded artifact.
type Detection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Detector scores an uploaded artifact.  The implementation is an
// external collaborator (an object-detection model); this package only
// consumes its results.  A returned error means the detector could not be
// consulted at all, which the gate surfaces as ErrDetectorUnavailable.
type Detector interface {
	Detect(ctx context.Context, artifact io.Reader, filename string) ([]Detection, error)
}

// identityLabels are the detector classes accepted as identity documents.
var identityLabels = map[string]bool{
	"id_card":         true,
	"identity_card":   true,
	"passport":        true,
	"drivers_license": true,
}

// IdentityGate orchestrates the optional "verified identity required
// before the token is redeemable" step.  It exclusively owns the
// IdentityVerified flag; no other component may flip it, and once true it
// is never reverted.
type IdentityGate struct {
	Store     repository.VisitStore
	Auth      *Authenticator
	Detector  Detector
	Threshold float64
	Now       func() time.Time // test seam; defaults to time.Now
}

// NewIdentityGate wires the gate with the deployment's confidence
// threshold.  A zero threshold falls back to the default policy constant.
func NewIdentityGate(store repository.VisitStore, auth *Authenticator, det Detector, threshold float64) *IdentityGate {
	if threshold <= 0 {
		threshold = DefaultConfidenceThreshold
	}
	return &IdentityGate{Store: store, Auth: auth, Detector: det, Threshold: threshold}
}

func (g *IdentityGate) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

// Submit scores an identity artifact for the visit identified by token.
//
// The credential must authenticate first (unknown, forged and expired
// tokens are rejected before the detector is consulted).  A record whose
// identity is already verified accepts immediately without re-scoring,
// so the call is idempotent and re-upload loops are harmless.  On acceptance only
// an audit reference (generated ID + filename) is recorded, never the raw
// image.  On rejection the record is unchanged and the caller may retry
// with a new artifact until the daily expiry.
func (g *IdentityGate) Submit(ctx context.Context, token string, sig []byte, artifact io.Reader, filename string) (model.VisitRecord, error) {
	rec, err := g.Auth.Authenticate(ctx, token, sig)
	if err != nil {
		return model.VisitRecord{}, err
	}
	if rec.IdentityVerified {
		return rec, nil
	}

	detections, err := g.Detector.Detect(ctx, artifact, filename)
	if err != nil {
		metrics.IdentityChecks.WithLabelValues("unavailable").Inc()
		return model.VisitRecord{}, fmt.Errorf("%w: %v", ErrDetectorUnavailable, err)
	}

	best := 0.0
	accepted := false
	for _, d := range detections {
		if !identityLabels[strings.ToLower(d.Label)] {
			continue
		}
		if d.Confidence > best {
			best = d.Confidence
		}
		if d.Confidence >= g.Threshold {
			accepted = true
		}
	}
	if !accepted {
		metrics.IdentityChecks.WithLabelValues("rejected").Inc()
		if best > 0 {
			return model.VisitRecord{}, &IdentityRejectedError{
				Reason: fmt.Sprintf("best identity-document confidence %.2f below threshold %.2f", best, g.Threshold),
			}
		}
		return model.VisitRecord{}, &IdentityRejectedError{Reason: "no identity document detected"}
	}

	audit := uuid.NewString() + ":" + filename
	now := g.now()
	updated, err := g.Store.Update(ctx, token, func(v *model.VisitRecord) error {
		// Detector scoring takes time; the daily cutoff may have passed
		// since the authentication check, and an expired record must not
		// flip to verified.
		if v.TokenExpired(now) {
			return ErrTokenExpired
		}
		if v.IdentityVerified {
			// Lost a race with a concurrent upload; the flag stays true.
			return nil
		}
		v.IdentityVerified = true
		v.IdentityArtifact = audit
		return nil
	})
	if err != nil {
		return model.VisitRecord{}, err
	}
	metrics.IdentityChecks.WithLabelValues("accepted").Inc()
	return updated, nil
}
