package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/nft-tickets/backend/internal/verifier"
)

type MetaHandler struct{}

func NewMetaHandler() *MetaHandler {
	return &MetaHandler{}
}

type MetaReason struct {
	ID    verifier.Reason `json:"id"`
	Label string          `json:"label"`
}

var denialReasons = []MetaReason{
	{ID: verifier.ReasonMalformedCredential, Label: "Not a ticket QR code"},
	{ID: verifier.ReasonInvalidSignature, Label: "Signature does not match the owner"},
	{ID: verifier.ReasonTicketNotFound, Label: "Ticket does not exist"},
	{ID: verifier.ReasonOwnerMismatch, Label: "Ticket changed hands after this code was issued"},
	{ID: verifier.ReasonAlreadyUsed, Label: "Ticket already used"},
	{ID: verifier.ReasonWrongEvent, Label: "Ticket is for another event"},
	{ID: verifier.ReasonTooEarly, Label: "Check-in has not opened yet"},
	{ID: verifier.ReasonTooLate, Label: "Check-in has closed"},
	{ID: verifier.ReasonUnknown, Label: "Check-in failed, call a supervisor"},
}

// GetReasons lists denial reasons with display labels for station UIs.
// GET /meta/reasons
func (h *MetaHandler) GetReasons(c *fiber.Ctx) error {
	return c.JSON(denialReasons)
}
