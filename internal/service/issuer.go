package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/abdosalm555/visit-pass/internal/metrics"
	"github.com/abdosalm555/visit-pass/internal/model"
	"github.com/abdosalm555/visit-pass/internal/repository"
	"github.com/abdosalm555/visit-pass/internal/utils"
)

// tokenPutAttempts bounds the retry loop around token collisions.  A
// collision on a 256-bit token is astronomically unlikely; the bound only
// keeps a misbehaving store from looping forever.
const tokenPutAttempts = 3

var (
	ErrVisitorNameRequired = errors.New("visitor_name is required")
	ErrHostNameRequired    = errors.New("host_name is required")
)

// IssueRequest carries the host-entered fields of a new visit
// authorization.  Duration is free text ("1 hour", "30 mins", "1:30") and
// is parsed exactly once, at issuance.
type IssueRequest struct {
	VisitorName string
	HostName    string
	Location    string
	Purpose     string
	Duration    string
}

// Issuer creates visit records: it generates an unguessable token, binds
// the visitor metadata, computes the daily expiry and, when the
// deployment signs tokens, a signature over the canonical payload.
// Role authorization of the calling host is the HTTP layer's concern.
type Issuer struct {
	Store  repository.VisitStore
	Signer TokenSigner
	Now    func() time.Time // test seam; defaults to time.Now
}

// NewIssuer returns an issuer over the given store and signer.
func NewIssuer(store repository.VisitStore, signer TokenSigner) *Issuer {
	return &Issuer{Store: store, Signer: signer}
}

func (i *Issuer) now() time.Time {
	if i.Now != nil {
		return i.Now()
	}
	return time.Now()
}

// Issue creates and persists a new visit record.  Visitor and host names
// must be non-empty; everything else is informational and stored as
// entered.  The record is written with Put, which never overwrites; on
// the freak chance of a token collision a fresh token is generated.
func (i *Issuer) Issue(ctx context.Context, req IssueRequest) (model.VisitRecord, error) {
	if strings.TrimSpace(req.VisitorName) == "" {
		return model.VisitRecord{}, ErrVisitorNameRequired
	}
	if strings.TrimSpace(req.HostName) == "" {
		return model.VisitRecord{}, ErrHostNameRequired
	}

	now := i.now()
	rec := model.VisitRecord{
		VisitorName:       strings.TrimSpace(req.VisitorName),
		HostName:          strings.TrimSpace(req.HostName),
		Location:          strings.TrimSpace(req.Location),
		Purpose:           strings.TrimSpace(req.Purpose),
		RequestedDuration: utils.ParseVisitDuration(req.Duration),
		IssuedAt:          now,
		DailyExpiry:       utils.EndOfDay(now),
	}

	for attempt := 0; attempt < tokenPutAttempts; attempt++ {
		token, err := utils.NewVisitToken()
		if err != nil {
			return model.VisitRecord{}, err
		}
		rec.Token = token
		rec.Signature, err = i.Signer.Sign(rec.SignedPayload())
		if err != nil {
			return model.VisitRecord{}, err
		}
		err = i.Store.Put(ctx, rec)
		if err == nil {
			metrics.VisitsIssued.Inc()
			return rec, nil
		}
		if !errors.Is(err, repository.ErrTokenExists) {
			return model.VisitRecord{}, err
		}
	}
	return model.VisitRecord{}, ErrIssuance
}
