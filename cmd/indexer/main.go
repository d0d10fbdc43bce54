package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nft-tickets/backend/internal/config"
	"github.com/nft-tickets/backend/internal/db"
	"github.com/nft-tickets/backend/internal/events"
	"github.com/nft-tickets/backend/internal/indexer"
	"github.com/nft-tickets/backend/internal/ledger"
	"github.com/nft-tickets/backend/internal/repositories"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.DevLedger() {
		log.Fatal("ETH_RPC_URL is required")
	}
	if len(cfg.TicketContracts) == 0 {
		log.Fatal("TICKET_CONTRACTS is required")
	}

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	source, err := ledger.Dial(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to connect to ledger", zap.Error(err))
	}

	ix := indexer.New(
		source,
		repositories.NewCredentialCache(cfg, pool, rdb, log),
		events.NewRedisPublisher(rdb, log),
		rdb,
		indexer.Options{Contracts: cfg.TicketContracts, StartBlock: cfg.IndexerStartBlock},
		log,
	)

	log.Info("ticket indexer started",
		zap.Strings("contracts", cfg.TicketContracts),
		zap.Duration("poll_interval", cfg.IndexerPollInterval),
	)

	ticker := time.NewTicker(cfg.IndexerPollInterval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			if _, err := ix.Poll(ctx); err != nil {
				log.Error("poll cycle failed", zap.Error(err))
			}
		case <-sigCh:
			log.Info("shutting down ticket indexer")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}
