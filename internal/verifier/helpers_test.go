package verifier

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nft-tickets/backend/internal/credential"
	"github.com/nft-tickets/backend/internal/ledger"
	"github.com/nft-tickets/backend/internal/models"
	"github.com/nft-tickets/backend/internal/wallet"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testContract = "0x5FbDB2315678afecb367f032d93F642f64180aa3"

var eventDate = time.Date(2026, 11, 20, 20, 0, 0, 0, time.UTC)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

// spyLedger wraps the in-memory ledger, counting calls and optionally
// failing or blocking them.
type spyLedger struct {
	*ledger.Memory

	reads   atomic.Int32
	commits atomic.Int32

	readErr   error
	commitErr error
	// blockRead, when set, holds GetTicket until ctx is done.
	blockRead bool
	// commitGate, when set, holds MarkAsUsed until it is closed.
	commitGate chan struct{}
	commitSeen chan struct{}
}

func (l *spyLedger) GetTicket(ctx context.Context, contract string, tokenID uint64) (*models.Ticket, error) {
	l.reads.Add(1)
	if l.blockRead {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if l.readErr != nil {
		return nil, l.readErr
	}
	return l.Memory.GetTicket(ctx, contract, tokenID)
}

func (l *spyLedger) MarkAsUsed(ctx context.Context, contract string, tokenID uint64) (*ledger.Receipt, error) {
	l.commits.Add(1)
	if l.commitSeen != nil {
		close(l.commitSeen)
	}
	if l.commitGate != nil {
		<-l.commitGate
	}
	if l.commitErr != nil {
		return nil, l.commitErr
	}
	return l.Memory.MarkAsUsed(ctx, contract, tokenID)
}

type fixture struct {
	clock  *clock
	ledger *spyLedger
	holder *wallet.KeySigner
	other  *wallet.KeySigner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	holder, err := wallet.GenerateKeySigner()
	require.NoError(t, err)
	other, err := wallet.GenerateKeySigner()
	require.NoError(t, err)

	c := &clock{t: eventDate.Add(-time.Hour)}
	mem := ledger.NewMemory(c.now)
	for id := uint64(1); id <= 3; id++ {
		mem.Mint(models.Ticket{
			TokenID:   id,
			Contract:  testContract,
			EventID:   "7",
			Tier:      "GA",
			Owner:     holder.Address().Hex(),
			EventDate: eventDate,
			// transfer lock expired a day before the event
			PurchaseTimestamp: eventDate.Add(-72 * time.Hour),
		})
	}
	return &fixture{clock: c, ledger: &spyLedger{Memory: mem}, holder: holder, other: other}
}

func (f *fixture) verifier(eventID string) *Verifier {
	return New(f.ledger, eventID, time.Second, f.clock.now, zap.NewNop())
}

// credentialFor signs claims for tokenID with signer and returns the QR
// payload.
func (f *fixture) credentialFor(t *testing.T, tokenID uint64, owner string, signer wallet.Signer, eventID string) []byte {
	t.Helper()
	claims := credential.Claims{
		TicketID:        strconv.FormatUint(tokenID, 10),
		ContractAddress: testContract,
		OwnerAddress:    owner,
		Timestamp:       f.clock.now().UnixMilli(),
	}
	sig, err := credential.Sign(context.Background(), claims, signer)
	require.NoError(t, err)
	payload, err := credential.Credential{Claims: claims, EventID: eventID, Signature: sig}.Payload()
	require.NoError(t, err)
	return payload
}

func (f *fixture) holderCredential(t *testing.T, tokenID uint64) []byte {
	t.Helper()
	return f.credentialFor(t, tokenID, f.holder.Address().Hex(), f.holder, "7")
}
