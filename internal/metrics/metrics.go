package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// VisitsIssued counts visit authorizations created by the issuer.
	VisitsIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "visitpass_visits_issued_total",
		Help: "Total number of visit authorizations issued",
	})

	// VisitsConfirmed counts entries confirmed by security.
	VisitsConfirmed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "visitpass_visits_confirmed_total",
		Help: "Total number of visit entries confirmed",
	})

	// ConfirmConflicts counts duplicate confirmation attempts; a spike may
	// indicate credential sharing.
	ConfirmConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "visitpass_confirm_conflicts_total",
		Help: "Total number of rejected duplicate confirmation attempts",
	})

	// SignatureFailures counts presented credentials whose signature did
	// not verify (forgery or tampering).
	SignatureFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "visitpass_signature_failures_total",
		Help: "Total number of signature verification failures",
	})

	// IdentityChecks tracks identity gate outcomes by result
	// (accepted, rejected, unavailable).
	IdentityChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "visitpass_identity_checks_total",
		Help: "Total number of identity artifact submissions by outcome",
	}, []string{"result"})
)
