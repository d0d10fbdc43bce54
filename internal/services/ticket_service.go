package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"github.com/nft-tickets/backend/internal/credential"
	"github.com/nft-tickets/backend/internal/issuer"
	"github.com/nft-tickets/backend/internal/ledger"
	"github.com/nft-tickets/backend/internal/models"
	"github.com/nft-tickets/backend/internal/wallet"
	"go.uber.org/zap"
)

var ErrInvalidAddress = errors.New("invalid address")

// ChallengeStore keeps the claims a holder was asked to sign.
type ChallengeStore interface {
	Create(ctx context.Context, ch *models.CredentialChallenge, ttl time.Duration) error
	Consume(ctx context.Context, id uuid.UUID) (*models.CredentialChallenge, error)
}

type TicketService struct {
	ledger       ledger.Reader
	issuer       *issuer.Issuer
	challenges   ChallengeStore
	challengeTTL time.Duration
	log          *zap.Logger
}

func NewTicketService(
	l ledger.Reader,
	iss *issuer.Issuer,
	challenges ChallengeStore,
	challengeTTL time.Duration,
	log *zap.Logger,
) *TicketService {
	return &TicketService{
		ledger:       l,
		issuer:       iss,
		challenges:   challenges,
		challengeTTL: challengeTTL,
		log:          log,
	}
}

// Challenge is either a ready credential or the message the holder must
// personal_sign to get one.
type Challenge struct {
	ID        uuid.UUID
	Message   string
	ExpiresAt time.Time
	Issued    *issuer.Issued
}

// RequestCredential возвращает кешированный креденшл или создаёт challenge
// с каноническими claims для подписи кошельком владельца.
func (s *TicketService) RequestCredential(ctx context.Context, contract string, tokenID uint64, owner string) (*Challenge, error) {
	if !common.IsHexAddress(contract) || !common.IsHexAddress(owner) {
		return nil, ErrInvalidAddress
	}

	ticket, err := s.ownedTicket(ctx, contract, tokenID, owner)
	if err != nil {
		return nil, err
	}

	cached, err := s.issuer.Cached(ctx, ticket)
	if err != nil {
		s.log.Warn("credential cache unavailable", zap.Error(err))
	}
	if cached != nil {
		issued, err := s.issuer.Render(cached, true)
		if err != nil {
			return nil, err
		}
		return &Challenge{Issued: issued}, nil
	}

	claims := s.issuer.Claims(ticket)
	ch := &models.CredentialChallenge{
		Contract:        claims.ContractAddress,
		TokenID:         ticket.TokenID,
		Owner:           claims.OwnerAddress,
		EventID:         ticket.EventID,
		ClaimsTimestamp: claims.Timestamp,
	}
	if err := s.challenges.Create(ctx, ch, s.challengeTTL); err != nil {
		return nil, fmt.Errorf("failed to create challenge: %w", err)
	}

	return &Challenge{
		ID:        ch.ID,
		Message:   string(credential.Encode(claims)),
		ExpiresAt: ch.ExpiresAt,
	}, nil
}

// ConfirmCredential принимает подпись challenge и выпускает креденшл.
// Challenge одноразовый: повторная отправка той же подписи отклоняется.
func (s *TicketService) ConfirmCredential(ctx context.Context, challengeID uuid.UUID, signature string) (*issuer.Issued, error) {
	// 1. Consume challenge, защита от replay
	ch, err := s.challenges.Consume(ctx, challengeID)
	if err != nil {
		return nil, err
	}

	// 2. Владелец мог смениться, пока кошелёк подписывал
	ticket, err := s.ownedTicket(ctx, ch.Contract, ch.TokenID, ch.Owner)
	if err != nil {
		return nil, err
	}

	claims := credential.Claims{
		TicketID:        strconv.FormatUint(ch.TokenID, 10),
		ContractAddress: ch.Contract,
		OwnerAddress:    ch.Owner,
		Timestamp:       ch.ClaimsTimestamp,
	}

	sig, err := hexutil.Decode(signature)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", credential.ErrInvalidSignature, err)
	}

	// 3. Подпись проверяется в issuer: она должна восстанавливаться в адрес владельца
	signer := wallet.NewPresigned(common.HexToAddress(ch.Owner), credential.Encode(claims), sig)
	return s.issuer.IssueClaims(ctx, claims, ticket.EventID, signer)
}

// BatchItem is one signed challenge of a purchase.
type BatchItem struct {
	ChallengeID uuid.UUID
	Signature   string
}

// ConfirmBatch confirms the challenges of one purchase in order, stopping
// at the first failure.
func (s *TicketService) ConfirmBatch(ctx context.Context, items []BatchItem) ([]*issuer.Issued, error) {
	if len(items) == 0 || len(items) > issuer.MaxPerPurchase {
		return nil, issuer.ErrBatchSize
	}
	out := make([]*issuer.Issued, 0, len(items))
	for _, it := range items {
		issued, err := s.ConfirmCredential(ctx, it.ChallengeID, it.Signature)
		if err != nil {
			return out, fmt.Errorf("challenge %s: %w", it.ChallengeID, err)
		}
		out = append(out, issued)
	}
	return out, nil
}

// GetTicket reads the ticket record from the ledger.
func (s *TicketService) GetTicket(ctx context.Context, contract string, tokenID uint64) (*models.Ticket, error) {
	if !common.IsHexAddress(contract) {
		return nil, ErrInvalidAddress
	}
	return s.ledger.GetTicket(ctx, contract, tokenID)
}

func (s *TicketService) ownedTicket(ctx context.Context, contract string, tokenID uint64, owner string) (*models.Ticket, error) {
	ticket, err := s.ledger.GetTicket(ctx, contract, tokenID)
	if err != nil {
		return nil, err
	}
	if !ticket.OwnedBy(owner) {
		return nil, issuer.ErrNotOwner
	}
	if ticket.Used {
		return nil, issuer.ErrTicketUsed
	}
	return ticket, nil
}
