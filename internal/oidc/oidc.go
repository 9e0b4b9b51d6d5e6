// Package oidc verifies bearer tokens for middleware.AuthMiddleware.
package oidc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/tandatangan/tandatangan/backend/go-services/pkg/middleware"
)

// Verifier checks ID tokens issued by an OIDC provider such as Keycloak.
type Verifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewVerifier discovers the provider at issuer. It performs a network call.
func NewVerifier(ctx context.Context, issuer, clientID string) (*Verifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}
	return &Verifier{verifier: provider.Verifier(&oidc.Config{ClientID: clientID})}, nil
}

func (v *Verifier) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	idToken, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	var claims map[string]interface{}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("decode claims: %w", err)
	}
	return &mapToken{claims: normalize(claims)}, nil
}

// normalize fills "name" from Keycloak's preferred_username when the realm
// does not map the full name.
func normalize(claims map[string]interface{}) map[string]interface{} {
	if name, _ := claims["name"].(string); name == "" {
		if u, _ := claims["preferred_username"].(string); u != "" {
			claims["name"] = u
		}
	}
	return claims
}

type mapToken struct {
	claims map[string]interface{}
}

func (t *mapToken) Claims(v interface{}) error {
	b, err := json.Marshal(t.claims)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}
