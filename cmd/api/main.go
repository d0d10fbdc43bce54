package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/nft-tickets/backend/internal/config"
	"github.com/nft-tickets/backend/internal/db"
	"github.com/nft-tickets/backend/internal/events"
	apphttp "github.com/nft-tickets/backend/internal/http"
	"github.com/nft-tickets/backend/internal/http/handlers"
	"github.com/nft-tickets/backend/internal/issuer"
	"github.com/nft-tickets/backend/internal/ledger"
	"github.com/nft-tickets/backend/internal/repositories"
	"github.com/nft-tickets/backend/internal/services"
	"github.com/nft-tickets/backend/internal/verifier"
	"github.com/nft-tickets/backend/migrations"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	// Run migrations
	if err := db.RunMigrations(ctx, pool, migrations.FS, log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Ledger
	l, err := ledger.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to open ledger", zap.Error(err))
	}

	// Repositories
	challengeRepo := repositories.NewChallengeRepo(pool)
	scanRepo := repositories.NewScanRepo(pool)

	// Events
	publisher := events.NewRedisPublisher(rdb, log)
	subscriber := events.NewRedisSubscriber(rdb, log)

	// Issuance
	iss := issuer.New(repositories.NewCredentialCache(cfg, pool, rdb, log), issuer.NewQRRenderer(), nil, log)
	ticketService := services.NewTicketService(l, iss, challengeRepo, cfg.ChallengeTTL, log)

	// Station
	v := verifier.New(l, cfg.StationEventID, cfg.LedgerTimeout, nil, log)
	station := verifier.NewStation(v, verifier.StationOptions{
		ID:        cfg.StationID,
		Publisher: publisher,
		Recorder:  scanRepo,
		LogSize:   cfg.ScanLogSize,
	}, log)

	// Handlers
	wsHub := handlers.NewWSHub(cfg.JWTSecret, subscriber, log)
	if err := wsHub.Start(ctx); err != nil {
		log.Fatal("failed to start ws hub", zap.Error(err))
	}

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, apphttp.Handlers{
		Auth:    handlers.NewAuthHandler(cfg, log),
		Ticket:  handlers.NewTicketHandler(ticketService, log),
		Station: handlers.NewStationHandler(station, scanRepo, log),
		WSHub:   wsHub,
	})

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.ShutdownWithTimeout(cfg.CommitTimeout)
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server",
		zap.String("addr", addr),
		zap.String("station_id", cfg.StationID),
		zap.Bool("dev_ledger", cfg.DevLedger()),
	)
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
