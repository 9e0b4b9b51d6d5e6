// Package sessions issues short-lived unlock grants. A grant proves that the
// caller entered the correct PIN for one signature and lets it upload the
// file for hash comparison without sending the PIN again.
package sessions

import "time"

// Grant is a verification session bound to a single signature.
type Grant struct {
	Token       string    `json:"token"`
	SignatureID string    `json:"signatureId"`
	ExpiresAt   time.Time `json:"expiresAt"`
	CreatedAt   time.Time `json:"createdAt"`
}
