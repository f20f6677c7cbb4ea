package adminserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword_VerifyPassword_RoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.True(t, VerifyPassword("correct horse battery staple", hash))
}

func TestVerifyPassword_RejectsWrongPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.False(t, VerifyPassword("wrong password", hash))
}

func TestVerifyPassword_RejectsMalformedHash(t *testing.T) {
	cases := map[string]string{
		"empty string":        "",
		"wrong field count":   "argon2id$3$65536$2$salt",
		"unknown algorithm":   "bcrypt$3$65536$2$c2FsdA$aGFzaA",
		"non-numeric params":  "argon2id$x$65536$2$c2FsdA$aGFzaA",
		"bad base64 salt":     "argon2id$3$65536$2$!!!notbase64!!!$aGFzaA",
		"bad base64 hash":     "argon2id$3$65536$2$c2FsdA$!!!notbase64!!!",
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			assert.False(t, VerifyPassword("anything", h))
		})
	}
}

func TestHashPassword_ProducesUniqueSaltPerCall(t *testing.T) {
	h1, err := HashPassword("same-password")
	require.NoError(t, err)
	h2, err := HashPassword("same-password")
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2, "two hashes of the same password must differ by salt")
	assert.True(t, VerifyPassword("same-password", h1))
	assert.True(t, VerifyPassword("same-password", h2))
}
