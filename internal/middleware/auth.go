package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/nft-tickets/backend/internal/auth"
	"github.com/nft-tickets/backend/internal/rbac"
	"go.uber.org/zap"
)

const (
	CtxStaffID   = "staff_id"
	CtxRole      = "role"
	CtxStationID = "station_id"
)

func AuthMiddleware(jwtSecret string, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing authorization header"})
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenStr == authHeader {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid authorization format"})
		}

		claims, err := auth.ParseJWT(jwtSecret, tokenStr)
		if err != nil {
			log.Debug("jwt parse error", zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid or expired token"})
		}

		c.Locals(CtxStaffID, claims.StaffID)
		c.Locals(CtxRole, claims.Role)
		c.Locals(CtxStationID, claims.StationID)

		return c.Next()
	}
}

func GetStaffID(c *fiber.Ctx) string {
	id, _ := c.Locals(CtxStaffID).(string)
	return id
}

func GetRole(c *fiber.Ctx) string {
	role, _ := c.Locals(CtxRole).(string)
	return role
}

// RequirePermission must run after AuthMiddleware.
func RequirePermission(perm string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !rbac.HasPermission(GetRole(c), perm) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "permission denied: " + perm})
		}
		return c.Next()
	}
}

// RequireStation rejects tokens bound to a different station.
func RequireStation(stationID string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		bound, _ := c.Locals(CtxStationID).(string)
		if bound != "" && bound != stationID {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "token is bound to another station"})
		}
		return c.Next()
	}
}
