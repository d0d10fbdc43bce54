package ledger

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nft-tickets/backend/internal/models"
)

// Memory is an in-process ledger with the contract's check-in rules: the
// used flag flips once, inside [eventDate-4h, eventDate+4h], and concurrent
// callers are serialized so at most one succeeds. Used for dev mode and
// tests.
type Memory struct {
	mu      sync.Mutex
	tickets map[string]*models.Ticket
	now     func() time.Time
	block   uint64
}

func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{tickets: make(map[string]*models.Ticket), now: now}
}

func memoryKey(contract string, tokenID uint64) string {
	return fmt.Sprintf("%s:%d", strings.ToLower(contract), tokenID)
}

// Mint records a ticket. PurchaseTimestamp and TransferLockUntil are set
// from the clock when zero.
func (m *Memory) Mint(t models.Ticket) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t.PurchaseTimestamp.IsZero() {
		t.PurchaseTimestamp = m.now()
	}
	if t.TransferLockUntil.IsZero() {
		t.TransferLockUntil = t.PurchaseTimestamp.Add(models.TransferLock)
	}
	m.tickets[memoryKey(t.Contract, t.TokenID)] = &t
}

// Transfer changes the owner, honoring the post-purchase transfer lock.
func (m *Memory) Transfer(contract string, tokenID uint64, to string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tickets[memoryKey(contract, tokenID)]
	if !ok {
		return ErrTicketNotFound
	}
	if m.now().Before(t.TransferLockUntil) {
		return &RejectError{Reason: ReasonOther, Message: "transfer locked"}
	}
	t.Owner = to
	return nil
}

func (m *Memory) GetTicket(ctx context.Context, contract string, tokenID uint64) (*models.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tickets[memoryKey(contract, tokenID)]
	if !ok {
		return nil, ErrTicketNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *Memory) MarkAsUsed(ctx context.Context, contract string, tokenID uint64) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tickets[memoryKey(contract, tokenID)]
	if !ok {
		return nil, Reject("ERC721NonexistentToken")
	}
	if t.Used {
		return nil, Reject("Ticket already used")
	}
	if from, to, ok := t.CheckInWindow(); ok {
		now := m.now()
		if now.Before(from) {
			return nil, Reject("Too early for check-in")
		}
		if now.After(to) {
			return nil, Reject("Too late for check-in")
		}
	}

	t.Used = true
	m.block++
	return &Receipt{
		TxHash:      fmt.Sprintf("0xmem%060d", m.block),
		BlockNumber: m.block,
	}, nil
}
