package utils_test

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdosalm555/visit-pass/internal/utils"
)

func TestNewVisitTokenShape(t *testing.T) {
	tok, err := utils.NewVisitToken()
	require.NoError(t, err)

	raw, err := base64.RawURLEncoding.DecodeString(tok)
	require.NoError(t, err, "token must be valid base64url")
	assert.Equal(t, 32, len(raw), "token must carry 256 bits of entropy")
}

func TestNewVisitTokenUnique(t *testing.T) {
	const n = 1000
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		tok, err := utils.NewVisitToken()
		require.NoError(t, err)
		_, dup := seen[tok]
		require.False(t, dup, "duplicate token generated")
		seen[tok] = struct{}{}
	}
}
