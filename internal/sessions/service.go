package sessions

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"
)

// DefaultTTL bounds how long a grant stays valid after unlocking.
const DefaultTTL = 15 * time.Minute

// Service wraps repository operations with business logic
type Service struct {
	repo Repository
	ttl  time.Duration
}

func NewService(r Repository, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{repo: r, ttl: ttl}
}

// Issue stores a new grant for signatureID and returns its token.
func (s *Service) Issue(ctx context.Context, signatureID string) (*Grant, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	g := &Grant{
		Token:       hex.EncodeToString(b),
		SignatureID: signatureID,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.ttl),
	}
	if err := s.repo.Create(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

// Valid reports whether token is a live grant for signatureID.
func (s *Service) Valid(ctx context.Context, token, signatureID string) (bool, error) {
	if token == "" {
		return false, nil
	}
	g, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		return false, err
	}
	if g == nil {
		return false, nil
	}
	if time.Now().UTC().After(g.ExpiresAt) {
		_ = s.repo.DeleteByToken(ctx, token)
		return false, nil
	}
	return g.SignatureID == signatureID, nil
}

// Revoke removes the grant.
func (s *Service) Revoke(ctx context.Context, token string) error {
	return s.repo.DeleteByToken(ctx, token)
}
