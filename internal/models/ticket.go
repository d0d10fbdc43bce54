package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CheckInMargin is how far before and after the event start check-in is open.
const CheckInMargin = 4 * time.Hour

// TransferLock is how long a freshly purchased ticket cannot change hands.
const TransferLock = 48 * time.Hour

// Ticket is the ledger's view of one NFT ticket.
type Ticket struct {
	TokenID           uint64          `json:"token_id"`
	Contract          string          `json:"contract_address"`
	EventID           string          `json:"event_id"`
	Tier              string          `json:"tier"`
	OriginalPrice     decimal.Decimal `json:"original_price"` // ETH
	Owner             string          `json:"owner"`
	Used              bool            `json:"used"`
	PurchaseTimestamp time.Time       `json:"purchase_timestamp"`
	TransferLockUntil time.Time       `json:"transfer_lock_until"`
	EventDate         time.Time       `json:"event_date,omitempty"` // zero when the ledger does not expose it
}

// CheckInWindow returns [eventDate-4h, eventDate+4h]. ok is false when the
// event date is unknown.
func (t *Ticket) CheckInWindow() (from, to time.Time, ok bool) {
	if t.EventDate.IsZero() {
		return time.Time{}, time.Time{}, false
	}
	return t.EventDate.Add(-CheckInMargin), t.EventDate.Add(CheckInMargin), true
}

// OwnedBy compares addresses case-insensitively.
func (t *Ticket) OwnedBy(address string) bool {
	return SameAddress(t.Owner, address)
}

// SameAddress compares two hex addresses ignoring checksum casing.
func SameAddress(a, b string) bool {
	return a != "" && strings.EqualFold(a, b)
}

// WeiToEther converts an integer wei amount to ETH.
func WeiToEther(wei decimal.Decimal) decimal.Decimal {
	return wei.Shift(-18)
}

// EtherToWei converts an ETH amount to integer wei.
func EtherToWei(eth decimal.Decimal) decimal.Decimal {
	return eth.Shift(18).Truncate(0)
}
