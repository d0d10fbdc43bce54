package http

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/nft-tickets/backend/internal/config"
	"github.com/nft-tickets/backend/internal/http/handlers"
	"github.com/nft-tickets/backend/internal/middleware"
	"github.com/nft-tickets/backend/internal/rbac"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Handlers struct {
	Auth    *handlers.AuthHandler
	Ticket  *handlers.TicketHandler
	Station *handlers.StationHandler // nil when the process runs no station
	WSHub   *handlers.WSHub          // nil disables /ws
}

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb redis.Cmdable,
	h Handlers,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api/v1")

	// Rate-limited public endpoints
	if rdb != nil {
		api.Use(middleware.RateLimitMiddleware(rdb, cfg.RateLimitPerMinute, time.Minute, log))
	}

	// Auth (public)
	api.Post("/auth/staff", h.Auth.StaffAuth)

	// Meta
	metaHandler := handlers.NewMetaHandler()
	api.Get("/meta/reasons", metaHandler.GetReasons)

	// Tickets and credential issuance (holder side, wallet-signed)
	api.Get("/tickets/:contract/:tokenId", h.Ticket.GetTicket)
	api.Post("/tickets/:contract/:tokenId/credential/challenge", h.Ticket.RequestCredential)
	api.Post("/tickets/credentials", h.Ticket.ConfirmCredential)
	api.Post("/tickets/credentials/batch", h.Ticket.ConfirmBatch)

	// Station (staff only)
	if h.Station != nil {
		station := api.Group("/station",
			middleware.AuthMiddleware(cfg.JWTSecret, log),
			middleware.RequireStation(cfg.StationID),
		)
		station.Get("", middleware.RequirePermission(rbac.PermViewLog), h.Station.GetStation)
		station.Get("/log", middleware.RequirePermission(rbac.PermViewLog), h.Station.Log)
		station.Get("/stats", middleware.RequirePermission(rbac.PermViewStats), h.Station.Stats)
		station.Post("/scan", middleware.RequirePermission(rbac.PermScan), h.Station.Scan)
		station.Post("/cancel", middleware.RequirePermission(rbac.PermScan), h.Station.Cancel)
		station.Post("/next", middleware.RequirePermission(rbac.PermScan), h.Station.Next)
	}

	// WebSocket
	if h.WSHub != nil {
		app.Use("/ws", handlers.WSUpgradeMiddleware())
		app.Get("/ws", websocket.New(h.WSHub.HandleWS))
	}
}
