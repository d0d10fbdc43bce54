package models

import (
	"time"

	"github.com/google/uuid"
)

// CredentialChallenge holds the exact claims a holder was asked to sign.
// It is consumed once when the signature is submitted.
type CredentialChallenge struct {
	ID              uuid.UUID `json:"id"`
	Contract        string    `json:"contract_address"`
	TokenID         uint64    `json:"token_id"`
	Owner           string    `json:"owner_address"`
	EventID         string    `json:"event_id,omitempty"`
	ClaimsTimestamp int64     `json:"claims_timestamp"`
	Used            bool      `json:"used"`
	CreatedAt       time.Time `json:"created_at"`
	ExpiresAt       time.Time `json:"expires_at"`
}
