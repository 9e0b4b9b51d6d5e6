package oidc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	got := normalize(map[string]interface{}{"sub": "u1", "preferred_username": "budi"})
	assert.Equal(t, "budi", got["name"])

	got = normalize(map[string]interface{}{"sub": "u1", "name": "Budi Santoso", "preferred_username": "budi"})
	assert.Equal(t, "Budi Santoso", got["name"])
}

func TestMapTokenClaims(t *testing.T) {
	tok := &mapToken{claims: map[string]interface{}{"sub": "u1", "email": "u1@example.com"}}
	var out struct {
		Sub   string `json:"sub"`
		Email string `json:"email"`
	}
	require.NoError(t, tok.Claims(&out))
	assert.Equal(t, "u1", out.Sub)
	assert.Equal(t, "u1@example.com", out.Email)
}
