package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/nft-tickets/backend/internal/http/dto"
	"github.com/nft-tickets/backend/internal/middleware"
)

func fail(c *fiber.Ctx, status int, code, msg string) error {
	reqID, _ := c.Locals(middleware.CtxRequestID).(string)
	return c.Status(status).JSON(dto.ErrorResponse{Error: msg, Code: code, RequestID: reqID})
}
