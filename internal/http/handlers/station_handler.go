package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/nft-tickets/backend/internal/http/dto"
	"github.com/nft-tickets/backend/internal/ledger"
	"github.com/nft-tickets/backend/internal/models"
	"github.com/nft-tickets/backend/internal/verifier"
	"go.uber.org/zap"
)

// ScanHistory is the durable scan log. Optional.
type ScanHistory interface {
	ListByStation(ctx context.Context, stationID string, limit, offset int) ([]models.ScanRecord, error)
	EventStats(ctx context.Context, eventID string) (map[string]int64, error)
}

type StationHandler struct {
	station *verifier.Station
	history ScanHistory
	log     *zap.Logger
}

func NewStationHandler(station *verifier.Station, history ScanHistory, log *zap.Logger) *StationHandler {
	return &StationHandler{station: station, history: history, log: log}
}

// GetStation
// GET /station
func (h *StationHandler) GetStation(c *fiber.Ctx) error {
	return c.JSON(dto.StationResponse{
		StationID: h.station.ID(),
		EventID:   h.station.EventID(),
		State:     h.station.State(),
		Last:      h.station.Last(),
	})
}

// Scan проверяет payload, считанный камерой клиента.
// POST /station/scan
func (h *StationHandler) Scan(c *fiber.Ctx) error {
	var req dto.ScanRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "bad_request", "invalid request body")
	}
	if strings.TrimSpace(req.Payload) == "" {
		return fail(c, fiber.StatusBadRequest, "bad_request", "payload is required")
	}

	res, err := h.station.Submit(c.UserContext(), []byte(req.Payload))
	if err != nil {
		return h.stationError(c, err)
	}
	return c.JSON(dto.ScanResponse{State: h.station.State(), Result: res})
}

// Cancel
// POST /station/cancel
func (h *StationHandler) Cancel(c *fiber.Ctx) error {
	if !h.station.Cancel() {
		return fail(c, fiber.StatusConflict, "not_cancellable", "no cancellable scan in progress")
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: fiber.Map{"state": h.station.State()}})
}

// Next acknowledges the shown result.
// POST /station/next
func (h *StationHandler) Next(c *fiber.Ctx) error {
	if err := h.station.Next(); err != nil {
		return h.stationError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: fiber.Map{"state": h.station.State()}})
}

// Log returns recent decisions, most recent first. With ?source=db the
// durable log is paged instead of the in-memory one.
// GET /station/log
func (h *StationHandler) Log(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	if c.Query("source") == "db" {
		if h.history == nil {
			return fail(c, fiber.StatusNotFound, "no_history", "durable scan log is not configured")
		}
		records, err := h.history.ListByStation(c.UserContext(), h.station.ID(), limit, c.QueryInt("offset", 0))
		if err != nil {
			h.log.Error("failed to list scan log", zap.Error(err))
			return fail(c, fiber.StatusInternalServerError, "internal", "internal server error")
		}
		return c.JSON(fiber.Map{"records": records})
	}

	return c.JSON(fiber.Map{"records": h.station.Log(limit)})
}

// Stats
// GET /station/stats
func (h *StationHandler) Stats(c *fiber.Ctx) error {
	if h.history == nil {
		return fail(c, fiber.StatusNotFound, "no_history", "durable scan log is not configured")
	}
	eventID := c.Query("event_id", h.station.EventID())
	stats, err := h.history.EventStats(c.UserContext(), eventID)
	if err != nil {
		h.log.Error("failed to load scan stats", zap.Error(err))
		return fail(c, fiber.StatusInternalServerError, "internal", "internal server error")
	}
	return c.JSON(fiber.Map{"event_id": eventID, "counts": stats})
}

func (h *StationHandler) stationError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, verifier.ErrBusy):
		return fail(c, fiber.StatusConflict, "busy", err.Error())
	case errors.Is(err, verifier.ErrNotIdle):
		return fail(c, fiber.StatusConflict, "awaiting_next", err.Error())
	case errors.Is(err, verifier.ErrCancelled):
		return fail(c, fiber.StatusConflict, "cancelled", err.Error())
	case errors.Is(err, ledger.ErrUnavailable):
		return fail(c, fiber.StatusServiceUnavailable, "ledger_unavailable", "ledger unavailable, retry the scan")
	default:
		h.log.Error("scan failed", zap.Error(err))
		return fail(c, fiber.StatusInternalServerError, "internal", "internal server error")
	}
}
