// Package ledger adapts the ticket smart contract: a read of the ticket
// record and the one-time markAsUsed transition. The contract is the only
// authority on owner and used state.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nft-tickets/backend/internal/models"
)

var (
	ErrTicketNotFound = errors.New("ledger: ticket not found")
	ErrUnavailable    = errors.New("ledger: unavailable")
	// ErrOutcomeUnknown means a transaction was broadcast but its receipt
	// was not seen in time. It may still land.
	ErrOutcomeUnknown = errors.New("ledger: transaction outcome unknown")
)

// Reason is why the ledger rejected a markAsUsed transition.
type Reason string

const (
	ReasonTooEarly     Reason = "TooEarly"
	ReasonTooLate      Reason = "TooLate"
	ReasonAlreadyUsed  Reason = "AlreadyUsed"
	ReasonUnauthorized Reason = "Unauthorized"
	ReasonOther        Reason = "Other"
)

// RejectError is a deterministic refusal by the contract. Message keeps
// the raw revert string for logs only.
type RejectError struct {
	Reason  Reason
	Message string
}

func (e *RejectError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("ledger: rejected: %s", e.Reason)
	}
	return fmt.Sprintf("ledger: rejected: %s (%s)", e.Reason, e.Message)
}

// Reject builds a RejectError from a raw revert message.
func Reject(message string) *RejectError {
	return &RejectError{Reason: NormalizeReason(message), Message: message}
}

// Receipt is the outcome of a landed markAsUsed transaction.
type Receipt struct {
	TxHash      string
	BlockNumber uint64
}

type Reader interface {
	GetTicket(ctx context.Context, contract string, tokenID uint64) (*models.Ticket, error)
}

type Writer interface {
	MarkAsUsed(ctx context.Context, contract string, tokenID uint64) (*Receipt, error)
}

type Ledger interface {
	Reader
	Writer
}

var reasonMarkers = []struct {
	reason  Reason
	markers []string
}{
	{ReasonTooEarly, []string{"too early", "tooearly", "not started", "check-in not open"}},
	{ReasonTooLate, []string{"too late", "toolate", "ended", "check-in closed"}},
	{ReasonAlreadyUsed, []string{"already used", "alreadyused", "already checked"}},
	{ReasonUnauthorized, []string{"unauthorized", "not authorized", "caller is not", "ownable", "accesscontrol"}},
}

// NormalizeReason maps a contract revert message onto the fixed reason set.
func NormalizeReason(message string) Reason {
	m := strings.ToLower(message)
	for _, rm := range reasonMarkers {
		for _, marker := range rm.markers {
			if strings.Contains(m, marker) {
				return rm.reason
			}
		}
	}
	return ReasonOther
}
