// Package issuer produces signed QR credentials for purchased tickets.
// It never touches the ledger: callers pass the ticket as read at purchase
// or view time.
package issuer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nft-tickets/backend/internal/credential"
	"github.com/nft-tickets/backend/internal/models"
	"github.com/nft-tickets/backend/internal/monitoring"
	"github.com/nft-tickets/backend/internal/wallet"
	"go.uber.org/zap"
)

// MaxPerPurchase is the most tickets one purchase transaction can mint.
const MaxPerPurchase = 3

var (
	ErrNotOwner   = errors.New("issuer: signer does not own the ticket")
	ErrTicketUsed = errors.New("issuer: ticket already used")
	ErrBatchSize  = fmt.Errorf("issuer: a purchase holds 1 to %d tickets", MaxPerPurchase)
)

// Issued is a credential plus its rendered forms.
type Issued struct {
	Credential *credential.Credential
	Payload    []byte
	Image      []byte // PNG
	Cached     bool
}

type Issuer struct {
	cache    Cache
	renderer Renderer
	now      func() time.Time
	log      *zap.Logger
}

func New(cache Cache, renderer Renderer, now func() time.Time, log *zap.Logger) *Issuer {
	if cache == nil {
		cache = NewMemoryCache()
	}
	if renderer == nil {
		renderer = NewQRRenderer()
	}
	if now == nil {
		now = time.Now
	}
	return &Issuer{cache: cache, renderer: renderer, now: now, log: log}
}

// Issue returns the ticket's credential, asking signer for a signature
// only when no valid cached credential exists. Signing failures are
// returned as-is and never retried.
func (i *Issuer) Issue(ctx context.Context, ticket *models.Ticket, signer wallet.Signer) (*Issued, error) {
	if signer == nil {
		monitoring.TrackIssue("no_signer")
		return nil, wallet.ErrNoSigningCapability
	}
	if !ticket.OwnedBy(signer.Address().Hex()) {
		monitoring.TrackIssue("not_owner")
		return nil, ErrNotOwner
	}
	if ticket.Used {
		monitoring.TrackIssue("used")
		return nil, ErrTicketUsed
	}

	cached, err := i.Cached(ctx, ticket)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		monitoring.TrackIssue("cached")
		return i.Render(cached, true)
	}

	return i.IssueClaims(ctx, i.Claims(ticket), ticket.EventID, signer)
}

// IssueAll issues credentials for the tickets of one purchase, in order.
// It stops at the first failure and returns what was issued so far.
func (i *Issuer) IssueAll(ctx context.Context, tickets []*models.Ticket, signer wallet.Signer) ([]*Issued, error) {
	if len(tickets) == 0 || len(tickets) > MaxPerPurchase {
		return nil, ErrBatchSize
	}
	out := make([]*Issued, 0, len(tickets))
	for _, t := range tickets {
		issued, err := i.Issue(ctx, t, signer)
		if err != nil {
			return out, fmt.Errorf("token %d: %w", t.TokenID, err)
		}
		out = append(out, issued)
	}
	return out, nil
}

// Claims builds fresh claims for the ticket, timestamped now.
func (i *Issuer) Claims(ticket *models.Ticket) credential.Claims {
	return credential.Claims{
		TicketID:        strconv.FormatUint(ticket.TokenID, 10),
		ContractAddress: ticket.Contract,
		OwnerAddress:    ticket.Owner,
		Timestamp:       i.now().UnixMilli(),
	}
}

// Cached returns the stored credential for the ticket, or nil. A stored
// credential bound to a previous owner is dropped.
func (i *Issuer) Cached(ctx context.Context, ticket *models.Ticket) (*credential.Credential, error) {
	key := credential.Key{Contract: ticket.Contract, TokenID: ticket.TokenID}
	c, err := i.cache.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("issuer: cache get: %w", err)
	}
	if c == nil {
		return nil, nil
	}
	if !ticket.OwnedBy(c.OwnerAddress) {
		i.log.Info("dropping credential bound to previous owner",
			zap.String("key", key.String()),
			zap.String("cached_owner", c.OwnerAddress),
			zap.String("owner", ticket.Owner),
		)
		if err := i.cache.Delete(ctx, key); err != nil {
			i.log.Warn("failed to drop stale credential", zap.Error(err))
		}
		return nil, nil
	}
	return c, nil
}

// IssueClaims signs prepared claims. The signature must recover to the
// claims' owner; a capability that signs with another key is refused.
func (i *Issuer) IssueClaims(ctx context.Context, claims credential.Claims, eventID string, signer wallet.Signer) (*Issued, error) {
	if signer == nil {
		monitoring.TrackIssue("no_signer")
		return nil, wallet.ErrNoSigningCapability
	}
	if _, err := claims.TokenID(); err != nil {
		return nil, err
	}
	key := claims.Key()
	if !models.SameAddress(claims.OwnerAddress, signer.Address().Hex()) {
		monitoring.TrackIssue("not_owner")
		return nil, ErrNotOwner
	}

	sig, err := credential.Sign(ctx, claims, signer)
	if err != nil {
		switch {
		case errors.Is(err, wallet.ErrSignatureDeclined):
			monitoring.TrackIssue("declined")
		case errors.Is(err, wallet.ErrNoSigningCapability):
			monitoring.TrackIssue("no_signer")
		default:
			monitoring.TrackIssue("error")
		}
		return nil, err
	}

	c := &credential.Credential{Claims: claims, EventID: eventID, Signature: sig}
	if _, ok := c.SignedBy(); !ok {
		monitoring.TrackIssue("bad_signature")
		return nil, credential.ErrInvalidSignature
	}

	if err := i.cache.Put(ctx, key, c); err != nil {
		// The credential is valid without the cache; the holder is just
		// prompted again next time.
		i.log.Warn("failed to cache credential", zap.String("key", key.String()), zap.Error(err))
	}

	i.log.Info("credential issued",
		zap.String("contract", claims.ContractAddress),
		zap.String("ticket_id", claims.TicketID),
		zap.String("owner", claims.OwnerAddress),
	)
	monitoring.TrackIssue("issued")
	return i.Render(c, false)
}

// Render encodes the credential payload and its QR image.
func (i *Issuer) Render(c *credential.Credential, cached bool) (*Issued, error) {
	payload, err := c.Payload()
	if err != nil {
		return nil, err
	}
	img, err := i.renderer.Render(payload)
	if err != nil {
		return nil, fmt.Errorf("issuer: render: %w", err)
	}
	return &Issued{Credential: c, Payload: payload, Image: img, Cached: cached}, nil
}
