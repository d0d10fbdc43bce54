// Package verifier decides admission at the gate. A scanned payload is
// decoded, its signature checked offline, cross-checked against the
// ledger, and finally committed with markAsUsed. Only a landed
// transaction admits.
package verifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nft-tickets/backend/internal/credential"
	"github.com/nft-tickets/backend/internal/ledger"
	"github.com/nft-tickets/backend/internal/models"
	"go.uber.org/zap"
)

// Reason is why a scan was denied.
type Reason string

const (
	ReasonMalformedCredential Reason = "MalformedCredential"
	ReasonInvalidSignature    Reason = "InvalidSignature"
	ReasonTicketNotFound      Reason = "TicketNotFound"
	ReasonOwnerMismatch       Reason = "OwnerMismatch"
	ReasonAlreadyUsed         Reason = "AlreadyUsed"
	ReasonWrongEvent          Reason = "WrongEvent"
	ReasonTooEarly            Reason = "TooEarly"
	ReasonTooLate             Reason = "TooLate"
	ReasonUnknown             Reason = "Unknown"
)

// Result is the terminal outcome of one scan.
type Result struct {
	Status    string    `json:"status"` // models.ScanStatusValid or models.ScanStatusInvalid
	Reason    Reason    `json:"reason,omitempty"`
	TokenID   uint64    `json:"token_id,omitempty"`
	Contract  string    `json:"contract_address,omitempty"`
	EventID   string    `json:"event_id,omitempty"`
	Tier      string    `json:"tier,omitempty"`
	Owner     string    `json:"owner,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	TxHash    string    `json:"tx_hash,omitempty"`
}

func (r *Result) Admitted() bool {
	return r.Status == models.ScanStatusValid
}

type Verifier struct {
	ledger      ledger.Ledger
	eventID     string
	readTimeout time.Duration
	now         func() time.Time
	log         *zap.Logger
}

// New returns a verifier bound to eventID. An empty eventID accepts
// credentials for any event.
func New(l ledger.Ledger, eventID string, readTimeout time.Duration, now func() time.Time, log *zap.Logger) *Verifier {
	if now == nil {
		now = time.Now
	}
	return &Verifier{ledger: l, eventID: eventID, readTimeout: readTimeout, now: now, log: log}
}

func (v *Verifier) EventID() string {
	return v.eventID
}

// Verify runs a full scan. The returned error is ledger.ErrUnavailable or
// a context error; every deterministic outcome is a Result.
func (v *Verifier) Verify(ctx context.Context, raw []byte) (*Result, error) {
	c, denied := v.Decode(raw)
	if denied != nil {
		return denied, nil
	}
	ticket, denied, err := v.CrossCheck(ctx, c)
	if err != nil || denied != nil {
		return denied, err
	}
	return v.Commit(ctx, c, ticket)
}

// Decode parses the payload. It never touches the ledger.
func (v *Verifier) Decode(raw []byte) (*credential.Credential, *Result) {
	c, err := credential.Parse(raw)
	if err != nil {
		v.log.Debug("malformed credential", zap.Error(err))
		return nil, v.deny(nil, nil, ReasonMalformedCredential)
	}
	return c, nil
}

// CrossCheck verifies the signature offline, then reads the ticket and
// checks owner, used flag and event.
func (v *Verifier) CrossCheck(ctx context.Context, c *credential.Credential) (*models.Ticket, *Result, error) {
	if c.OwnerAddress == "" || c.Signature == "" {
		return nil, v.deny(c, nil, ReasonInvalidSignature), nil
	}
	if signer, ok := c.SignedBy(); !ok {
		v.log.Debug("signature does not match owner",
			zap.String("owner", c.OwnerAddress),
			zap.String("recovered", signer.Hex()),
		)
		return nil, v.deny(c, nil, ReasonInvalidSignature), nil
	}

	tokenID, _ := c.TokenID()
	readCtx := ctx
	if v.readTimeout > 0 {
		var cancel context.CancelFunc
		readCtx, cancel = context.WithTimeout(ctx, v.readTimeout)
		defer cancel()
	}

	ticket, err := v.ledger.GetTicket(readCtx, c.ContractAddress, tokenID)
	switch {
	case err == nil:
	case errors.Is(err, ledger.ErrTicketNotFound):
		return nil, v.deny(c, nil, ReasonTicketNotFound), nil
	case ctx.Err() != nil:
		return nil, nil, ctx.Err()
	case errors.Is(err, ledger.ErrUnavailable):
		return nil, nil, err
	default:
		return nil, nil, fmt.Errorf("%w: %v", ledger.ErrUnavailable, err)
	}

	if !ticket.OwnedBy(c.OwnerAddress) {
		return nil, v.deny(c, ticket, ReasonOwnerMismatch), nil
	}
	if ticket.Used {
		return nil, v.deny(c, ticket, ReasonAlreadyUsed), nil
	}
	if v.eventID != "" {
		if (c.EventID != "" && c.EventID != v.eventID) || (ticket.EventID != "" && ticket.EventID != v.eventID) {
			return nil, v.deny(c, ticket, ReasonWrongEvent), nil
		}
	}
	return ticket, nil, nil
}

// Commit submits markAsUsed and waits for the outcome. The transaction is
// not abandoned if ctx is cancelled: once submitted it runs to completion.
func (v *Verifier) Commit(ctx context.Context, c *credential.Credential, ticket *models.Ticket) (*Result, error) {
	receipt, err := v.ledger.MarkAsUsed(context.WithoutCancel(ctx), ticket.Contract, ticket.TokenID)
	if err != nil {
		var rej *ledger.RejectError
		switch {
		case errors.As(err, &rej):
			v.log.Info("check-in rejected by ledger",
				zap.String("contract", ticket.Contract),
				zap.Uint64("token_id", ticket.TokenID),
				zap.String("reason", string(rej.Reason)),
				zap.String("message", rej.Message),
			)
			return v.deny(c, ticket, fromLedger(rej.Reason)), nil
		case errors.Is(err, ledger.ErrUnavailable):
			return nil, err
		default:
			// ledger.ErrOutcomeUnknown or an unexpected failure: the
			// transaction may or may not have landed.
			v.log.Error("check-in outcome unknown",
				zap.String("contract", ticket.Contract),
				zap.Uint64("token_id", ticket.TokenID),
				zap.Error(err),
			)
			return v.deny(c, ticket, ReasonUnknown), nil
		}
	}

	r := v.result(c, ticket)
	r.Status = models.ScanStatusValid
	r.TxHash = receipt.TxHash
	return r, nil
}

func fromLedger(r ledger.Reason) Reason {
	switch r {
	case ledger.ReasonTooEarly:
		return ReasonTooEarly
	case ledger.ReasonTooLate:
		return ReasonTooLate
	case ledger.ReasonAlreadyUsed:
		return ReasonAlreadyUsed
	default:
		return ReasonUnknown
	}
}

func (v *Verifier) deny(c *credential.Credential, ticket *models.Ticket, reason Reason) *Result {
	r := v.result(c, ticket)
	r.Status = models.ScanStatusInvalid
	r.Reason = reason
	return r
}

func (v *Verifier) result(c *credential.Credential, ticket *models.Ticket) *Result {
	r := &Result{Timestamp: v.now(), EventID: v.eventID}
	if c != nil {
		r.TokenID, _ = c.TokenID()
		r.Contract = c.ContractAddress
		r.Owner = c.OwnerAddress
		if r.EventID == "" {
			r.EventID = c.EventID
		}
	}
	if ticket != nil {
		r.Tier = ticket.Tier
		if r.EventID == "" {
			r.EventID = ticket.EventID
		}
	}
	return r
}
