package service

import (
	"crypto"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

// Signing modes a deployment may choose.  The choice is made once at
// configuration time and applied consistently: signed and unsigned tokens
// are never mixed within one store.
const (
	SigningNone = "none"
	SigningHMAC = "hmac"
	SigningRSA  = "rsa"
)

// TokenSigner is the pluggable signing strategy binding a token (and the
// visitor metadata) to the issuer.  Implementations must be safe for
// concurrent use; keys are read-only after initialization.
type TokenSigner interface {
	// Mode returns the configured signing mode.
	Mode() string
	// Sign computes a signature over the canonical payload.  The none
	// strategy returns a nil signature.
	Sign(payload []byte) ([]byte, error)
	// Verify checks a presented signature against the payload, returning
	// ErrSignatureInvalid on mismatch.
	Verify(payload, sig []byte) error
}

// NewSigner builds the deployment's signer.  hmac derives its key from
// secret; rsa loads a PKCS#1 or PKCS#8 private key from the PEM file at
// keyPath and signs with RSA-PKCS1v15/SHA-256.
func NewSigner(mode, secret, keyPath string) (TokenSigner, error) {
	switch mode {
	case "", SigningNone:
		return noneSigner{}, nil
	case SigningHMAC:
		if secret == "" {
			return nil, errors.New("signing mode hmac requires a secret")
		}
		return &hmacSigner{key: []byte(secret)}, nil
	case SigningRSA:
		key, err := loadRSAKey(keyPath)
		if err != nil {
			return nil, fmt.Errorf("load rsa signing key: %w", err)
		}
		return &rsaSigner{key: key}, nil
	default:
		return nil, fmt.Errorf("unknown signing mode %q", mode)
	}
}

// noneSigner is the unsigned deployment strategy: tokens rely on their
// entropy alone and presented signatures are ignored.
type noneSigner struct{}

func (noneSigner) Mode() string                  { return SigningNone }
func (noneSigner) Sign([]byte) ([]byte, error)   { return nil, nil }
func (noneSigner) Verify([]byte, []byte) error   { return nil }

// hmacSigner binds tokens with HMAC-SHA-256 over the canonical payload.
type hmacSigner struct {
	key []byte
}

func (s *hmacSigner) Mode() string { return SigningHMAC }

func (s *hmacSigner) Sign(payload []byte) ([]byte, error) {
	mac := hmac.New(sha256.New, s.key)
	mac.Write(payload)
	return mac.Sum(nil), nil
}

func (s *hmacSigner) Verify(payload, sig []byte) error {
	want, _ := s.Sign(payload)
	if !hmac.Equal(want, sig) {
		return ErrSignatureInvalid
	}
	return nil
}

// rsaSigner binds tokens with RSA-PKCS1v15/SHA-256.
type rsaSigner struct {
	key *rsa.PrivateKey
}

func (s *rsaSigner) Mode() string { return SigningRSA }

func (s *rsaSigner) Sign(payload []byte) ([]byte, error) {
	digest := sha256.Sum256(payload)
	return rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, digest[:])
}

func (s *rsaSigner) Verify(payload, sig []byte) error {
	digest := sha256.Sum256(payload)
	if err := rsa.VerifyPKCS1v15(&s.key.PublicKey, crypto.SHA256, digest[:], sig); err != nil {
		return ErrSignatureInvalid
	}
	return nil
}

func loadRSAKey(path string) (*rsa.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, errors.New("no PEM block in key file")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("key file does not contain an RSA private key")
	}
	return key, nil
}
