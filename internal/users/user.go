package users

import "time"

// Plan names a subscription tier.
type Plan string

const (
	PlanFree    Plan = "free"
	PlanPremium Plan = "premium"
)

// User represents an application user (mapped from identity provider claims).
type User struct {
	ID           string     `bson:"_id,omitempty" json:"id"`
	Sub          string     `bson:"sub" json:"sub"` // OIDC subject, used as user id across services
	Email        string     `bson:"email" json:"email"`
	Name         string     `bson:"name" json:"name"`
	Plan         Plan       `bson:"plan" json:"plan"`
	PremiumUntil *time.Time `bson:"premiumUntil,omitempty" json:"premiumUntil,omitempty"`
	CreatedAt    time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time  `bson:"updatedAt" json:"updatedAt"`
}

// IsPremium reports whether the subscription is active at now. A premium
// plan without an end date never expires.
func (u *User) IsPremium(now time.Time) bool {
	if u == nil || u.Plan != PlanPremium {
		return false
	}
	return u.PremiumUntil == nil || u.PremiumUntil.After(now)
}
