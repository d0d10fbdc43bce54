// Package indexer follows ticket contracts' TicketUsed and Transfer logs.
// A credential is void once its ticket is used or changes hands, so every
// such log evicts the cached credential and is announced on the ledger
// events channel.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nft-tickets/backend/internal/credential"
	"github.com/nft-tickets/backend/internal/events"
	"github.com/nft-tickets/backend/internal/issuer"
	"github.com/nft-tickets/backend/internal/ledger"
	"github.com/nft-tickets/backend/internal/monitoring"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	CursorKey = "ticket-indexer:cursor:block"

	// DefaultMaxRange caps the blocks scanned per poll; most RPC providers
	// refuse larger eth_getLogs ranges.
	DefaultMaxRange = 2000
)

// Source is the chain view the indexer polls.
type Source interface {
	HeadBlock(ctx context.Context) (uint64, error)
	UsageEvents(ctx context.Context, contracts []string, from, to uint64) ([]ledger.UsageEvent, error)
}

type Options struct {
	Contracts  []string
	StartBlock uint64 // 0 = start at the current head
	MaxRange   uint64
}

type Indexer struct {
	source    Source
	cache     issuer.Cache
	publisher events.Publisher
	rdb       redis.Cmdable
	opts      Options
	log       *zap.Logger
}

func New(source Source, cache issuer.Cache, publisher events.Publisher, rdb redis.Cmdable, opts Options, log *zap.Logger) *Indexer {
	if opts.MaxRange == 0 {
		opts.MaxRange = DefaultMaxRange
	}
	return &Indexer{source: source, cache: cache, publisher: publisher, rdb: rdb, opts: opts, log: log}
}

// Poll runs a single cycle:
// 1. Load the cursor (initializing it on first run)
// 2. Fetch logs in (cursor, min(head, cursor+MaxRange)]
// 3. Evict credentials and publish events
// 4. Advance the cursor
// It returns the number of logs processed.
func (ix *Indexer) Poll(ctx context.Context) (int, error) {
	head, err := ix.source.HeadBlock(ctx)
	if err != nil {
		return 0, fmt.Errorf("head block: %w", err)
	}

	cursor, ok, err := ix.loadCursor(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ix.initCursor(ctx, head)
	}
	if head <= cursor {
		return 0, nil
	}

	from := cursor + 1
	to := head
	if to-from+1 > ix.opts.MaxRange {
		to = from + ix.opts.MaxRange - 1
	}

	evs, err := ix.source.UsageEvents(ctx, ix.opts.Contracts, from, to)
	if err != nil {
		return 0, fmt.Errorf("usage events [%d, %d]: %w", from, to, err)
	}

	if len(evs) > 0 {
		ix.log.Info("found ticket logs", zap.Int("count", len(evs)), zap.Uint64("from", from), zap.Uint64("to", to))
	}
	for _, ev := range evs {
		ix.process(ctx, ev)
	}

	if err := ix.rdb.Set(ctx, CursorKey, strconv.FormatUint(to, 10), 0).Err(); err != nil {
		return len(evs), fmt.Errorf("save cursor: %w", err)
	}
	return len(evs), nil
}

func (ix *Indexer) loadCursor(ctx context.Context) (uint64, bool, error) {
	val, err := ix.rdb.Get(ctx, CursorKey).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("load cursor: %w", err)
	}
	n, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt cursor %q: %w", val, err)
	}
	return n, true, nil
}

// initCursor stores the starting position. Without a configured start
// block only logs after startup are processed.
func (ix *Indexer) initCursor(ctx context.Context, head uint64) error {
	cursor := head
	if ix.opts.StartBlock > 0 && ix.opts.StartBlock <= head {
		cursor = ix.opts.StartBlock - 1
	}
	if err := ix.rdb.Set(ctx, CursorKey, strconv.FormatUint(cursor, 10), 0).Err(); err != nil {
		return fmt.Errorf("init cursor: %w", err)
	}
	ix.log.Info("cursor initialized", zap.Uint64("block", cursor))
	return nil
}

func (ix *Indexer) process(ctx context.Context, ev ledger.UsageEvent) {
	kind := "used"
	eventType := events.EventTicketUsed
	if ev.Kind == ledger.UsageTransfer {
		kind = "transfer"
		eventType = events.EventTicketTransferred
		if common.HexToAddress(ev.From) == (common.Address{}) {
			kind = "mint"
		}
	}
	monitoring.TrackIndexedEvent(kind)

	if kind == "mint" {
		return
	}

	key := credential.Key{Contract: ev.Contract, TokenID: ev.TokenID}
	if err := ix.cache.Delete(ctx, key); err != nil {
		ix.log.Warn("failed to evict credential", zap.String("key", key.String()), zap.Error(err))
	}

	payload := map[string]any{
		"contract_address": ev.Contract,
		"token_id":         ev.TokenID,
		"block_number":     ev.BlockNumber,
		"tx_hash":          ev.TxHash,
	}
	if ev.Kind == ledger.UsageTransfer {
		payload["from"] = ev.From
		payload["to"] = ev.To
	}
	if ix.publisher != nil {
		if err := ix.publisher.Publish(ctx, events.ChannelLedger, events.Event{Type: eventType, Payload: payload}); err != nil {
			ix.log.Warn("failed to publish ledger event", zap.Error(err))
		}
	}

	ix.log.Debug("ticket log processed",
		zap.String("kind", kind),
		zap.String("contract", ev.Contract),
		zap.Uint64("token_id", ev.TokenID),
		zap.Uint64("block", ev.BlockNumber),
	)
}
