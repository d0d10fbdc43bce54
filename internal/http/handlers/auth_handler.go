package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nft-tickets/backend/internal/auth"
	"github.com/nft-tickets/backend/internal/config"
	"github.com/nft-tickets/backend/internal/http/dto"
	"github.com/nft-tickets/backend/internal/rbac"
	"go.uber.org/zap"
)

type AuthHandler struct {
	cfg *config.Config
	log *zap.Logger
}

func NewAuthHandler(cfg *config.Config, log *zap.Logger) *AuthHandler {
	return &AuthHandler{cfg: cfg, log: log}
}

// StaffAuth выдаёт JWT сотруднику по общему API-ключу.
// POST /auth/staff
func (h *AuthHandler) StaffAuth(c *fiber.Ctx) error {
	var req dto.StaffAuthRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "bad_request", "invalid request body")
	}
	if req.StaffID == "" {
		return fail(c, fiber.StatusBadRequest, "bad_request", "staff_id is required")
	}
	if req.Role == "" {
		req.Role = rbac.RoleGate
	}
	if !rbac.IsRole(req.Role) {
		return fail(c, fiber.StatusBadRequest, "bad_request", "unknown role")
	}

	if err := auth.CheckAPIKey(h.cfg.StaffAPIKey, req.APIKey); err != nil {
		if errors.Is(err, auth.ErrStaffLoginDisabled) {
			return fail(c, fiber.StatusServiceUnavailable, "login_disabled", err.Error())
		}
		h.log.Warn("staff login rejected", zap.String("staff_id", req.StaffID), zap.String("ip", c.IP()))
		return fail(c, fiber.StatusUnauthorized, "unauthorized", err.Error())
	}

	token, err := auth.GenerateJWT(h.cfg.JWTSecret, req.StaffID, req.Role, req.StationID, h.cfg.JWTExpiration)
	if err != nil {
		h.log.Error("failed to generate jwt", zap.Error(err))
		return fail(c, fiber.StatusInternalServerError, "internal", "internal server error")
	}

	h.log.Info("staff logged in", zap.String("staff_id", req.StaffID), zap.String("role", req.Role))
	return c.JSON(dto.AuthResponse{
		Token:     token,
		StaffID:   req.StaffID,
		Role:      req.Role,
		ExpiresAt: time.Now().Add(h.cfg.JWTExpiration),
	})
}
