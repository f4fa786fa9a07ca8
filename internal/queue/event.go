// Package queue defines message payloads exchanged over the message broker.
package queue

// EntryConfirmedEvent is published when security confirms a visitor's
// entry.  It contains enough information for downstream consumers to log,
// notify, or trigger analytics without querying the primary database.
type EntryConfirmedEvent struct {
	EventID     string `json:"event_id"`
	Token       string `json:"token"`
	VisitorName string `json:"visitor_name"`
	HostName    string `json:"host_name"`
	Location    string `json:"location"`
	ConfirmedAt string `json:"confirmed_at"`
	StayEndsAt  string `json:"stay_ends_at"`
}

// SecurityAlertEvent is published on security-relevant conditions the
// core never swallows: signature verification failures and duplicate
// confirmation attempts.  Operators consume these to investigate forgery
// or credential sharing.
type SecurityAlertEvent struct {
	EventID    string `json:"event_id"`
	Kind       string `json:"kind"` // signature_invalid | duplicate_confirmation
	Token      string `json:"token"`
	Detail     string `json:"detail"`
	OccurredAt string `json:"occurred_at"`
}

// Alert kinds.
const (
	AlertSignatureInvalid      = "signature_invalid"
	AlertDuplicateConfirmation = "duplicate_confirmation"
)
