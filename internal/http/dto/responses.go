package dto

import (
	"encoding/base64"
	"time"

	"github.com/nft-tickets/backend/internal/issuer"
	"github.com/nft-tickets/backend/internal/models"
	"github.com/nft-tickets/backend/internal/verifier"
)

type AuthResponse struct {
	Token     string    `json:"token"`
	StaffID   string    `json:"staff_id"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

type TicketResponse struct {
	TokenID           uint64     `json:"token_id"`
	Contract          string     `json:"contract_address"`
	EventID           string     `json:"event_id"`
	Tier              string     `json:"tier"`
	OriginalPriceWei  string     `json:"original_price_wei"`
	OriginalPriceEth  string     `json:"original_price_eth"`
	Owner             string     `json:"owner"`
	Used              bool       `json:"used"`
	PurchaseTimestamp time.Time  `json:"purchase_timestamp"`
	TransferLockUntil time.Time  `json:"transfer_lock_until"`
	EventDate         *time.Time `json:"event_date,omitempty"`
	CheckInOpens      *time.Time `json:"check_in_opens,omitempty"`
	CheckInCloses     *time.Time `json:"check_in_closes,omitempty"`
}

func NewTicketResponse(t *models.Ticket) TicketResponse {
	r := TicketResponse{
		TokenID:           t.TokenID,
		Contract:          t.Contract,
		EventID:           t.EventID,
		Tier:              t.Tier,
		OriginalPriceWei:  models.EtherToWei(t.OriginalPrice).String(),
		OriginalPriceEth:  t.OriginalPrice.String(),
		Owner:             t.Owner,
		Used:              t.Used,
		PurchaseTimestamp: t.PurchaseTimestamp,
		TransferLockUntil: t.TransferLockUntil,
	}
	if from, to, ok := t.CheckInWindow(); ok {
		eventDate := t.EventDate
		r.EventDate = &eventDate
		r.CheckInOpens = &from
		r.CheckInCloses = &to
	}
	return r
}

type CredentialResponse struct {
	TicketID string `json:"ticket_id"`
	Contract string `json:"contract_address"`
	Owner    string `json:"owner"`
	Payload  string `json:"payload"` // QR text
	QRPNG    string `json:"qr_png"`  // base64
	Cached   bool   `json:"cached"`
}

func NewCredentialResponse(i *issuer.Issued) CredentialResponse {
	return CredentialResponse{
		TicketID: i.Credential.TicketID,
		Contract: i.Credential.ContractAddress,
		Owner:    i.Credential.OwnerAddress,
		Payload:  string(i.Payload),
		QRPNG:    base64.StdEncoding.EncodeToString(i.Image),
		Cached:   i.Cached,
	}
}

// ChallengeResponse carries either a ready credential or a message to sign.
type ChallengeResponse struct {
	ChallengeID string              `json:"challenge_id,omitempty"`
	Message     string              `json:"message,omitempty"`
	ExpiresAt   *time.Time          `json:"expires_at,omitempty"`
	Credential  *CredentialResponse `json:"credential,omitempty"`
}

type StationResponse struct {
	StationID string           `json:"station_id"`
	EventID   string           `json:"event_id,omitempty"`
	State     string           `json:"state"`
	Last      *verifier.Result `json:"last,omitempty"`
}

type ScanResponse struct {
	State  string           `json:"state"`
	Result *verifier.Result `json:"result"`
}
