package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/nft-tickets/backend/internal/credential"
	"github.com/nft-tickets/backend/internal/http/dto"
	"github.com/nft-tickets/backend/internal/issuer"
	"github.com/nft-tickets/backend/internal/ledger"
	"github.com/nft-tickets/backend/internal/repositories"
	"github.com/nft-tickets/backend/internal/services"
	"github.com/nft-tickets/backend/internal/wallet"
	"go.uber.org/zap"
)

type TicketHandler struct {
	ticketService *services.TicketService
	log           *zap.Logger
}

func NewTicketHandler(ticketService *services.TicketService, log *zap.Logger) *TicketHandler {
	return &TicketHandler{ticketService: ticketService, log: log}
}

func parseTicketParams(c *fiber.Ctx) (string, uint64, error) {
	tokenID, err := strconv.ParseUint(c.Params("tokenId"), 10, 64)
	if err != nil {
		return "", 0, errors.New("tokenId must be a non-negative integer")
	}
	return c.Params("contract"), tokenID, nil
}

// GetTicket возвращает запись билета из контракта.
// GET /tickets/:contract/:tokenId
func (h *TicketHandler) GetTicket(c *fiber.Ctx) error {
	contract, tokenID, err := parseTicketParams(c)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "bad_request", err.Error())
	}
	ticket, err := h.ticketService.GetTicket(c.UserContext(), contract, tokenID)
	if err != nil {
		return h.issuanceError(c, err)
	}
	return c.JSON(dto.NewTicketResponse(ticket))
}

// RequestCredential returns the cached credential or a challenge to sign.
// POST /tickets/:contract/:tokenId/credential/challenge
func (h *TicketHandler) RequestCredential(c *fiber.Ctx) error {
	contract, tokenID, err := parseTicketParams(c)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "bad_request", err.Error())
	}
	var req dto.CredentialChallengeRequest
	if err := c.BodyParser(&req); err != nil || req.Owner == "" {
		return fail(c, fiber.StatusBadRequest, "bad_request", "owner is required")
	}

	ch, err := h.ticketService.RequestCredential(c.UserContext(), contract, tokenID, req.Owner)
	if err != nil {
		return h.issuanceError(c, err)
	}

	if ch.Issued != nil {
		cred := dto.NewCredentialResponse(ch.Issued)
		return c.JSON(dto.ChallengeResponse{Credential: &cred})
	}
	expires := ch.ExpiresAt
	return c.Status(fiber.StatusCreated).JSON(dto.ChallengeResponse{
		ChallengeID: ch.ID.String(),
		Message:     ch.Message,
		ExpiresAt:   &expires,
	})
}

// ConfirmCredential issues a credential from a signed challenge.
// POST /tickets/credentials
func (h *TicketHandler) ConfirmCredential(c *fiber.Ctx) error {
	var req dto.ConfirmCredentialRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "bad_request", "invalid request body")
	}
	id, err := uuid.Parse(req.ChallengeID)
	if err != nil || req.Signature == "" {
		return fail(c, fiber.StatusBadRequest, "bad_request", "challenge_id and signature are required")
	}

	issued, err := h.ticketService.ConfirmCredential(c.UserContext(), id, req.Signature)
	if err != nil {
		return h.issuanceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.NewCredentialResponse(issued))
}

// ConfirmBatch issues the credentials of one purchase.
// POST /tickets/credentials/batch
func (h *TicketHandler) ConfirmBatch(c *fiber.Ctx) error {
	var req dto.ConfirmBatchRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "bad_request", "invalid request body")
	}

	items := make([]services.BatchItem, 0, len(req.Items))
	for _, it := range req.Items {
		id, err := uuid.Parse(it.ChallengeID)
		if err != nil {
			return fail(c, fiber.StatusBadRequest, "bad_request", "invalid challenge_id")
		}
		items = append(items, services.BatchItem{ChallengeID: id, Signature: it.Signature})
	}

	issued, err := h.ticketService.ConfirmBatch(c.UserContext(), items)
	out := make([]dto.CredentialResponse, 0, len(issued))
	for _, i := range issued {
		out = append(out, dto.NewCredentialResponse(i))
	}
	if err != nil {
		if len(out) == 0 {
			return h.issuanceError(c, err)
		}
		// Partial success: report what was issued before the failure.
		h.log.Debug("batch stopped early", zap.Int("issued", len(out)), zap.Error(err))
		return c.Status(fiber.StatusMultiStatus).JSON(fiber.Map{"credentials": out, "error": err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"credentials": out})
}

func (h *TicketHandler) issuanceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidAddress):
		return fail(c, fiber.StatusBadRequest, "invalid_address", err.Error())
	case errors.Is(err, issuer.ErrBatchSize):
		return fail(c, fiber.StatusBadRequest, "batch_size", err.Error())
	case errors.Is(err, ledger.ErrTicketNotFound):
		return fail(c, fiber.StatusNotFound, "ticket_not_found", "ticket not found")
	case errors.Is(err, repositories.ErrChallengeNotFound):
		return fail(c, fiber.StatusNotFound, "challenge_not_found", err.Error())
	case errors.Is(err, issuer.ErrNotOwner):
		return fail(c, fiber.StatusForbidden, "not_owner", err.Error())
	case errors.Is(err, issuer.ErrTicketUsed):
		return fail(c, fiber.StatusConflict, "ticket_used", err.Error())
	case errors.Is(err, credential.ErrInvalidSignature):
		return fail(c, fiber.StatusUnprocessableEntity, "invalid_signature", err.Error())
	case errors.Is(err, wallet.ErrSignatureDeclined):
		return fail(c, fiber.StatusUnprocessableEntity, "signature_declined", err.Error())
	case errors.Is(err, wallet.ErrNoSigningCapability):
		return fail(c, fiber.StatusUnprocessableEntity, "no_signing_capability", err.Error())
	case errors.Is(err, credential.ErrMalformed):
		return fail(c, fiber.StatusBadRequest, "malformed", err.Error())
	case errors.Is(err, ledger.ErrUnavailable):
		h.log.Warn("ledger unavailable", zap.Error(err))
		return fail(c, fiber.StatusServiceUnavailable, "ledger_unavailable", "ledger unavailable, try again")
	default:
		h.log.Error("issuance failed", zap.Error(err))
		return fail(c, fiber.StatusInternalServerError, "internal", "internal server error")
	}
}
