package handler

import (
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/abdosalm555/visit-pass/internal/config"
	"github.com/abdosalm555/visit-pass/internal/model"
	"github.com/abdosalm555/visit-pass/internal/queue"
	"github.com/abdosalm555/visit-pass/internal/repository"
	"github.com/abdosalm555/visit-pass/internal/service"
)

// VisitHandler exposes the visit authorization lifecycle over HTTP.  Role
// checks (HOST issues, SECURITY confirms) are applied by the router's
// middleware; the visitor-facing endpoints authenticate with the visit
// token itself and need no account.
type VisitHandler struct {
	Cfg    config.Config
	Issuer *service.Issuer
	Auth   *service.Authenticator
	Gate   *service.IdentityGate
	Engine *service.ConfirmationEngine
}

// NewVisitHandler constructs a VisitHandler.  All dependencies must be
// non-nil.
func NewVisitHandler(cfg config.Config, issuer *service.Issuer, auth *service.Authenticator, gate *service.IdentityGate, engine *service.ConfirmationEngine) *VisitHandler {
	if issuer == nil || auth == nil || gate == nil || engine == nil {
		panic("nil service passed to NewVisitHandler")
	}
	return &VisitHandler{Cfg: cfg, Issuer: issuer, Auth: auth, Gate: gate, Engine: engine}
}

// ----- DTOs -----

type issueReq struct {
	VisitorName string `json:"visitor_name"`
	HostName    string `json:"host_name"`
	Location    string `json:"location"`
	Purpose     string `json:"purpose"`
	Duration    string `json:"duration"` // free text, e.g. "1 hour", "30 mins", "1:30"
}

type visitResp struct {
	Token             string     `json:"token"`
	Signature         string     `json:"signature,omitempty"` // base64url
	VisitorName       string     `json:"visitor_name"`
	HostName          string     `json:"host_name"`
	Location          string     `json:"location"`
	Purpose           string     `json:"purpose"`
	RequestedDuration string     `json:"requested_duration"`
	IssuedAt          time.Time  `json:"issued_at"`
	DailyExpiry       time.Time  `json:"daily_expiry"`
	IdentityVerified  bool       `json:"identity_verified"`
	ConfirmedAt       *time.Time `json:"confirmed_at,omitempty"`
	RemainingStaySecs int64      `json:"remaining_stay_secs"`
	StayExpired       bool       `json:"stay_expired"`
	RedeemURL         string     `json:"redeem_url,omitempty"`
}

func (h *VisitHandler) toResp(rec model.VisitRecord, withRedeemURL bool) visitResp {
	resp := visitResp{
		Token:             rec.Token,
		VisitorName:       rec.VisitorName,
		HostName:          rec.HostName,
		Location:          rec.Location,
		Purpose:           rec.Purpose,
		RequestedDuration: rec.RequestedDuration.String(),
		IssuedAt:          rec.IssuedAt,
		DailyExpiry:       rec.DailyExpiry,
		IdentityVerified:  rec.IdentityVerified,
		ConfirmedAt:       rec.ConfirmedAt,
		RemainingStaySecs: int64(h.Engine.RemainingStay(rec) / time.Second),
		StayExpired:       h.Engine.StayExpired(rec),
	}
	if len(rec.Signature) > 0 {
		resp.Signature = base64.RawURLEncoding.EncodeToString(rec.Signature)
	}
	if withRedeemURL {
		resp.RedeemURL = h.redeemURL(rec)
	}
	return resp
}

// redeemURL builds the reference the excluded UI embeds in a QR code: it
// carries the token and, for signed deployments, the signature, which is
// enough for the authenticator to locate and verify the record with no
// extra lookups.
func (h *VisitHandler) redeemURL(rec model.VisitRecord) string {
	url := h.Cfg.PublicBaseURL + "/v1/visits/" + rec.Token
	if len(rec.Signature) > 0 {
		url += "?sig=" + base64.RawURLEncoding.EncodeToString(rec.Signature)
	}
	return url
}

// presentedSig decodes the base64url signature query parameter.  An empty
// or undecodable value is passed to the signer as nil; signed deployments
// reject it there as a signature mismatch.
func presentedSig(c echo.Context) []byte {
	raw := c.QueryParam("sig")
	if raw == "" {
		return nil
	}
	sig, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return nil
	}
	return sig
}

// Issue handles POST /v1/visits (role HOST or ADMIN).  It parses the
// requested duration once, generates the credential and returns the
// record together with the redemption URL.
func (h *VisitHandler) Issue(c echo.Context) error {
	var req issueReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	rec, err := h.Issuer.Issue(c.Request().Context(), service.IssueRequest{
		VisitorName: req.VisitorName,
		HostName:    req.HostName,
		Location:    req.Location,
		Purpose:     req.Purpose,
		Duration:    req.Duration,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrVisitorNameRequired), errors.Is(err, service.ErrHostNameRequired):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		case errors.Is(err, service.ErrIssuance):
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not issue token"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue failed"})
		}
	}
	return c.JSON(http.StatusCreated, h.toResp(rec, true))
}

// Show handles GET /v1/visits/:token.  Read-only and idempotent: the UI
// polls it for "has security confirmed yet" and for the countdown.
func (h *VisitHandler) Show(c echo.Context) error {
	token := c.Param("token")
	rec, err := h.Auth.Authenticate(c.Request().Context(), token, presentedSig(c))
	if err != nil {
		return h.visitError(c, token, err)
	}
	return c.JSON(http.StatusOK, h.toResp(rec, false))
}

// SubmitIdentity handles POST /v1/visits/:token/identity.  The artifact
// is uploaded as multipart form file "id_card" and scored by the external
// detector; only an audit reference is ever stored.
func (h *VisitHandler) SubmitIdentity(c echo.Context) error {
	token := c.Param("token")

	fh, err := c.FormFile("id_card")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "id_card file is required"})
	}
	f, err := fh.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "could not read uploaded file"})
	}
	defer f.Close()

	rec, err := h.Gate.Submit(c.Request().Context(), token, presentedSig(c), f, fh.Filename)
	if err != nil {
		var rejected *service.IdentityRejectedError
		if errors.As(err, &rejected) {
			return c.JSON(http.StatusUnprocessableEntity, echo.Map{
				"error":  "identity rejected",
				"reason": rejected.Reason,
			})
		}
		if errors.Is(err, service.ErrDetectorUnavailable) {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "identity check unavailable, try again"})
		}
		return h.visitError(c, token, err)
	}
	return c.JSON(http.StatusOK, h.toResp(rec, false))
}

// Confirm handles POST /v1/visits/:token/confirm (role SECURITY or
// ADMIN).  Confirmation is one-time: the first caller wins and starts the
// stay countdown, every later attempt gets 409.
func (h *VisitHandler) Confirm(c echo.Context) error {
	token := c.Param("token")
	rec, err := h.Engine.Confirm(c.Request().Context(), token, presentedSig(c))
	if err != nil {
		return h.visitError(c, token, err)
	}

	// Best effort: a broker outage must not fail the confirmation the
	// guard already performed.
	stayEnds, _ := rec.StayDeadline()
	_ = queue.PublishEntryConfirmed(c.Request().Context(), queue.EntryConfirmedEvent{
		EventID:     uuid.NewString(),
		Token:       rec.Token,
		VisitorName: rec.VisitorName,
		HostName:    rec.HostName,
		Location:    rec.Location,
		ConfirmedAt: rec.ConfirmedAt.UTC().Format(time.RFC3339),
		StayEndsAt:  stayEnds.UTC().Format(time.RFC3339),
	})

	return c.JSON(http.StatusOK, h.toResp(rec, false))
}

// visitError maps lifecycle errors to HTTP responses and raises alerts
// for the security-relevant ones.
func (h *VisitHandler) visitError(c echo.Context, token string, err error) error {
	switch {
	case errors.Is(err, repository.ErrVisitNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown token"})
	case errors.Is(err, service.ErrSignatureInvalid):
		h.alert(c, token, queue.AlertSignatureInvalid, "presented signature failed verification")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid signature"})
	case errors.Is(err, service.ErrTokenExpired):
		return c.JSON(http.StatusGone, echo.Map{"error": "token expired"})
	case errors.Is(err, service.ErrNotVerified):
		return c.JSON(http.StatusPreconditionFailed, echo.Map{"error": "identity not verified"})
	case errors.Is(err, service.ErrAlreadyConfirmed):
		h.alert(c, token, queue.AlertDuplicateConfirmation, "second confirmation attempt on a confirmed token")
		return c.JSON(http.StatusConflict, echo.Map{"error": "entry already confirmed"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}

func (h *VisitHandler) alert(c echo.Context, token, kind, detail string) {
	_ = queue.PublishSecurityAlert(c.Request().Context(), queue.SecurityAlertEvent{
		EventID:    uuid.NewString(),
		Kind:       kind,
		Token:      token,
		Detail:     detail,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	})
}
