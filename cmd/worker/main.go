package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nft-tickets/backend/internal/config"
	"github.com/nft-tickets/backend/internal/db"
	"github.com/nft-tickets/backend/internal/repositories"
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

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, pool, migrations.FS, log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Repos
	challengeRepo := repositories.NewChallengeRepo(pool)
	scanRepo := repositories.NewScanRepo(pool)

	log.Info("worker started",
		zap.Duration("challenge_sweep", cfg.ChallengeSweepInterval),
		zap.Duration("scan_log_retention", cfg.ScanLogRetention),
	)

	// Run jobs on tickers
	sweepTicker := time.NewTicker(cfg.ChallengeSweepInterval)
	retentionTicker := time.NewTicker(1 * time.Hour)
	defer sweepTicker.Stop()
	defer retentionTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-sweepTicker.C:
			runChallengeSweep(ctx, challengeRepo, log)
		case <-retentionTicker.C:
			runScanLogRetention(ctx, scanRepo, cfg.ScanLogRetention, log)
		case <-sigCh:
			log.Info("shutting down worker")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}

// runChallengeSweep удаляет использованные и просроченные challenge.
func runChallengeSweep(ctx context.Context, repo *repositories.ChallengeRepo, log *zap.Logger) {
	n, err := repo.DeleteExpired(ctx)
	if err != nil {
		log.Error("challenge sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		log.Info("expired challenges removed", zap.Int64("count", n))
	}
}

func runScanLogRetention(ctx context.Context, repo *repositories.ScanRepo, retention time.Duration, log *zap.Logger) {
	if retention <= 0 {
		return
	}
	before := time.Now().Add(-retention)
	n, err := repo.DeleteBefore(ctx, before)
	if err != nil {
		log.Error("scan log retention failed", zap.Error(err))
		return
	}
	if n > 0 {
		log.Info("old scan records removed", zap.Int64("count", n), zap.Time("before", before))
	}
}
