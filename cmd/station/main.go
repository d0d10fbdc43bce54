// Command station runs a check-in terminal. Codes arrive on stdin, one per
// line, as typed by a keyboard-wedge scanner; an empty line acknowledges
// the shown result.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/nft-tickets/backend/internal/config"
	"github.com/nft-tickets/backend/internal/db"
	"github.com/nft-tickets/backend/internal/events"
	"github.com/nft-tickets/backend/internal/ledger"
	"github.com/nft-tickets/backend/internal/repositories"
	"github.com/nft-tickets/backend/internal/scanner"
	"github.com/nft-tickets/backend/internal/verifier"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	l, err := ledger.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to open ledger", zap.Error(err))
	}

	opts := verifier.StationOptions{
		ID:      cfg.StationID,
		Device:  scanner.NewLineDevice(os.Stdin),
		LogSize: cfg.ScanLogSize,
	}

	// Redis and Postgres are optional for a terminal: without them the
	// station still admits, it just does not report.
	if rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log); err != nil {
		log.Warn("redis unavailable, live feed disabled", zap.Error(err))
	} else {
		defer rdb.Close()
		opts.Publisher = events.NewRedisPublisher(rdb, log)
	}
	if pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, 2, log); err != nil {
		log.Warn("postgres unavailable, scan audit disabled", zap.Error(err))
	} else {
		defer pool.Close()
		opts.Recorder = repositories.NewScanRepo(pool)
	}

	v := verifier.New(l, cfg.StationEventID, cfg.LedgerTimeout, nil, log)
	station := verifier.NewStation(v, opts, log)

	err = run(ctx, station, opts.Device, os.Stdout)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, scanner.ErrClosed) {
		log.Fatal("station stopped", zap.Error(err))
	}
	log.Info("station stopped")
}

func run(ctx context.Context, station *verifier.Station, device scanner.Device, out io.Writer) error {
	fmt.Fprintf(out, "station %s ready (event %q)\n", station.ID(), station.EventID())

	for {
		fmt.Fprintln(out, "scan a ticket...")
		res, err := station.Scan(ctx)
		switch {
		case err == nil:
		case errors.Is(err, verifier.ErrCancelled):
			if ctx.Err() != nil {
				return nil
			}
			continue
		case errors.Is(err, ledger.ErrUnavailable):
			fmt.Fprintln(out, "LEDGER UNAVAILABLE - scan again")
			continue
		default:
			return err
		}

		printResult(out, res)
		if err := awaitNext(ctx, device, out); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := station.Next(); err != nil {
			return err
		}
	}
}

func printResult(out io.Writer, res *verifier.Result) {
	if res.Admitted() {
		fmt.Fprintf(out, "\n  ADMITTED  token #%d  %s\n  tx %s\n\n", res.TokenID, res.Tier, res.TxHash)
		return
	}
	fmt.Fprintf(out, "\n  DENIED    %s\n", res.Reason)
	if res.TokenID != 0 || res.Contract != "" {
		fmt.Fprintf(out, "  token #%d  %s\n", res.TokenID, res.Contract)
	}
	fmt.Fprintln(out)
}

// awaitNext blocks until an empty line. Codes scanned meanwhile are
// ignored.
func awaitNext(ctx context.Context, device scanner.Device, out io.Writer) error {
	fmt.Fprintln(out, "press Enter for next")

	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	captures, err := device.Start(sessCtx)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c, ok := <-captures:
			if !ok {
				return io.EOF
			}
			if c.Err != nil {
				return c.Err
			}
			if strings.TrimSpace(c.Text) == "" {
				return nil
			}
			fmt.Fprintln(out, "result still shown, press Enter first")
		}
	}
}
