package issuer

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nft-tickets/backend/internal/credential"
	"github.com/nft-tickets/backend/internal/models"
	"github.com/nft-tickets/backend/internal/wallet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testContract = "0x5FbDB2315678afecb367f032d93F642f64180aa3"

// countingSigner records how often the holder was prompted.
type countingSigner struct {
	wallet.Signer
	prompts atomic.Int32
}

func (s *countingSigner) SignMessage(ctx context.Context, msg []byte) ([]byte, error) {
	s.prompts.Add(1)
	return s.Signer.SignMessage(ctx, msg)
}

type decliningSigner struct{ addr common.Address }

func (s decliningSigner) Address() common.Address { return s.addr }

func (s decliningSigner) SignMessage(context.Context, []byte) ([]byte, error) {
	return nil, wallet.ErrSignatureDeclined
}

// foreignSigner claims one address but signs with another key.
type foreignSigner struct {
	addr common.Address
	key  *wallet.KeySigner
}

func (s foreignSigner) Address() common.Address { return s.addr }

func (s foreignSigner) SignMessage(ctx context.Context, msg []byte) ([]byte, error) {
	return s.key.SignMessage(ctx, msg)
}

type echoRenderer struct{}

func (echoRenderer) Render(payload []byte) ([]byte, error) { return payload, nil }

type failingCache struct{ *MemoryCache }

func (*failingCache) Put(context.Context, credential.Key, *credential.Credential) error {
	return errors.New("cache down")
}

var fixedNow = time.Date(2026, 11, 1, 12, 0, 0, 0, time.UTC)

func newIssuer(cache Cache) *Issuer {
	return New(cache, echoRenderer{}, func() time.Time { return fixedNow }, zap.NewNop())
}

func newHolder(t *testing.T) *countingSigner {
	t.Helper()
	k, err := wallet.GenerateKeySigner()
	require.NoError(t, err)
	return &countingSigner{Signer: k}
}

func ticketFor(owner common.Address, id uint64) *models.Ticket {
	return &models.Ticket{TokenID: id, Contract: testContract, EventID: "7", Tier: "GA", Owner: owner.Hex()}
}

func TestIssueProducesVerifiableCredential(t *testing.T) {
	holder := newHolder(t)
	iss := newIssuer(NewMemoryCache())

	issued, err := iss.Issue(context.Background(), ticketFor(holder.Address(), 42), holder)
	require.NoError(t, err)
	assert.False(t, issued.Cached)

	c := issued.Credential
	assert.Equal(t, "42", c.TicketID)
	assert.Equal(t, testContract, c.ContractAddress)
	assert.Equal(t, holder.Address().Hex(), c.OwnerAddress)
	assert.Equal(t, "7", c.EventID)
	assert.Equal(t, fixedNow.UnixMilli(), c.Timestamp)

	signer, err := credential.Verify(c.Claims, c.Signature)
	require.NoError(t, err)
	assert.Equal(t, holder.Address(), signer)

	parsed, err := credential.Parse(issued.Payload)
	require.NoError(t, err)
	assert.Equal(t, *c, *parsed)
	assert.Equal(t, issued.Payload, issued.Image)
}

func TestIssueCachedCredentialDoesNotPromptAgain(t *testing.T) {
	holder := newHolder(t)
	iss := newIssuer(NewMemoryCache())
	ticket := ticketFor(holder.Address(), 1)

	first, err := iss.Issue(context.Background(), ticket, holder)
	require.NoError(t, err)
	second, err := iss.Issue(context.Background(), ticket, holder)
	require.NoError(t, err)

	assert.Equal(t, int32(1), holder.prompts.Load())
	assert.True(t, second.Cached)
	assert.Equal(t, first.Payload, second.Payload)
}

func TestIssueDropsCredentialOfPreviousOwner(t *testing.T) {
	alice, bob := newHolder(t), newHolder(t)
	cache := NewMemoryCache()
	iss := newIssuer(cache)

	_, err := iss.Issue(context.Background(), ticketFor(alice.Address(), 1), alice)
	require.NoError(t, err)

	// Ticket transferred to bob
	issued, err := iss.Issue(context.Background(), ticketFor(bob.Address(), 1), bob)
	require.NoError(t, err)
	assert.False(t, issued.Cached)
	assert.Equal(t, bob.Address().Hex(), issued.Credential.OwnerAddress)
	assert.Equal(t, int32(1), bob.prompts.Load())
}

func TestIssueErrors(t *testing.T) {
	holder := newHolder(t)
	other := newHolder(t)

	used := ticketFor(holder.Address(), 2)
	used.Used = true

	tests := []struct {
		name    string
		ticket  *models.Ticket
		signer  wallet.Signer
		wantErr error
	}{
		{"no signer", ticketFor(holder.Address(), 1), nil, wallet.ErrNoSigningCapability},
		{"not owner", ticketFor(holder.Address(), 1), other, ErrNotOwner},
		{"used ticket", used, holder, ErrTicketUsed},
		{"declined", ticketFor(holder.Address(), 1), decliningSigner{addr: holder.Address()}, wallet.ErrSignatureDeclined},
		{"presigned without signature", ticketFor(holder.Address(), 1), wallet.NewPresigned(holder.Address(), nil, nil), wallet.ErrNoSigningCapability},
		{"signed with another key", ticketFor(holder.Address(), 1), foreignSigner{addr: holder.Address(), key: other.Signer.(*wallet.KeySigner)}, credential.ErrInvalidSignature},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := NewMemoryCache()
			iss := newIssuer(cache)
			_, err := iss.Issue(context.Background(), tt.ticket, tt.signer)
			assert.ErrorIs(t, err, tt.wantErr)

			c, _ := cache.Get(context.Background(), credential.Key{Contract: testContract, TokenID: tt.ticket.TokenID})
			assert.Nil(t, c, "failed issuance must not be cached")
		})
	}
}

func TestIssueSurvivesCacheFailure(t *testing.T) {
	holder := newHolder(t)
	iss := newIssuer(&failingCache{MemoryCache: NewMemoryCache()})

	issued, err := iss.Issue(context.Background(), ticketFor(holder.Address(), 1), holder)
	require.NoError(t, err)
	assert.NotEmpty(t, issued.Credential.Signature)
}

func TestIssueAll(t *testing.T) {
	holder := newHolder(t)
	iss := newIssuer(NewMemoryCache())

	tickets := []*models.Ticket{ticketFor(holder.Address(), 1), ticketFor(holder.Address(), 2), ticketFor(holder.Address(), 3)}
	issued, err := iss.IssueAll(context.Background(), tickets, holder)
	require.NoError(t, err)
	require.Len(t, issued, 3)
	for i, it := range issued {
		assert.Equal(t, tickets[i].TokenID, mustTokenID(t, it.Credential))
	}

	_, err = iss.IssueAll(context.Background(), nil, holder)
	assert.ErrorIs(t, err, ErrBatchSize)
	_, err = iss.IssueAll(context.Background(), append(tickets, ticketFor(holder.Address(), 4)), holder)
	assert.ErrorIs(t, err, ErrBatchSize)

	// Stops at the first failure
	used := ticketFor(holder.Address(), 9)
	used.Used = true
	fresh := newIssuer(NewMemoryCache())
	partial, err := fresh.IssueAll(context.Background(), []*models.Ticket{ticketFor(holder.Address(), 5), used, ticketFor(holder.Address(), 6)}, holder)
	assert.ErrorIs(t, err, ErrTicketUsed)
	assert.Len(t, partial, 1)
}

func mustTokenID(t *testing.T, c *credential.Credential) uint64 {
	t.Helper()
	id, err := c.TokenID()
	require.NoError(t, err)
	return id
}

func TestQRRendererProducesPNG(t *testing.T) {
	img, err := NewQRRenderer().Render([]byte(`{"ticketId":"1"}`))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(img, []byte("\x89PNG")))
}
