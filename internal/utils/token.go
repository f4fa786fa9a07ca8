package utils

import (
	"crypto/rand"
	"encoding/base64"
)

// visitTokenBytes is the entropy of a visit token.  32 bytes (256 bits)
// is far beyond the minimum needed to make guessing infeasible and keeps
// the base64url form short enough for a QR code.
const visitTokenBytes = 32

// NewVisitToken returns a cryptographically secure random token encoded
// with base64url (no padding).  Tokens identify exactly one VisitRecord
// and are the visitor's credential, so they must be unguessable.
func NewVisitToken() (string, error) {
	buf := make([]byte, visitTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
