// Package repository defines the credential store contract and its
// implementations, along with sentinel error values shared across them.
// These sentinels let higher layers such as services and handlers
// distinguish failure scenarios with errors.Is instead of string matching.
package repository

import "errors"

// ErrVisitNotFound is returned when no record exists for a token.  It is
// always surfaced to the caller and never retried.
var ErrVisitNotFound = errors.New("visit not found")

// ErrTokenExists is returned by Put when a record already exists for the
// token.  The issuer treats this as a (vanishingly unlikely) collision and
// retries with a fresh token; a record is never overwritten.
var ErrTokenExists = errors.New("token already exists")

// ErrUserNotFound is returned when a principal lookup matches no row.
var ErrUserNotFound = errors.New("user not found")
