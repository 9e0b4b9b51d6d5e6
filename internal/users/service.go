package users

import (
	"context"
	"fmt"
	"time"
)

// Service encapsulates user-related business logic and answers tier
// questions for quota checks.
type Service struct {
	repo UserRepository
	now  func() time.Time
}

func NewService(r UserRepository) *Service {
	return &Service{repo: r, now: time.Now}
}

// UpsertFromClaims creates or updates a user using OIDC claims map
func (s *Service) UpsertFromClaims(ctx context.Context, claims map[string]interface{}) (*User, error) {
	sub, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)
	if sub == "" {
		return nil, nil
	}
	return s.repo.UpsertBySub(ctx, &User{Sub: sub, Email: email, Name: name})
}

// IsUserPremium reports the current tier of userID. Unknown users are on the
// free tier. The answer is read from the repository on every call.
func (s *Service) IsUserPremium(ctx context.Context, userID string) (bool, error) {
	u, err := s.repo.GetBySub(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("lookup user %s: %w", userID, err)
	}
	return u.IsPremium(s.now()), nil
}
