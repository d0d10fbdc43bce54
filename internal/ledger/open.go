package ledger

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"time"

	"github.com/nft-tickets/backend/internal/config"
	"github.com/nft-tickets/backend/internal/models"
	"github.com/nft-tickets/backend/internal/wallet"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DevContract is the address demo tickets are minted under in dev mode.
const DevContract = "0x5FbDB2315678afecb367f032d93F642f64180aa3"

// Open returns the configured ledger: JSON-RPC when ETH_RPC_URL is set,
// otherwise an in-process one.
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger) (Ledger, error) {
	if cfg.DevLedger() {
		mem := NewMemory(nil)
		if cfg.DevSeedOwner != "" {
			seedDemo(mem, cfg.DevSeedOwner, cfg.StationEventID, log)
		}
		return mem, nil
	}

	l, err := Dial(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// Dial connects to ETH_RPC_URL with the operator key, if any.
func Dial(ctx context.Context, cfg *config.Config, log *zap.Logger) (*EthLedger, error) {
	if cfg.OperatorPrivateKey == "" {
		return DialEth(ctx, cfg.EthRPCURL, cfg.ChainID, nil, cfg.CommitTimeout, log)
	}
	pk, err := operatorKey(cfg.OperatorPrivateKey)
	if err != nil {
		return nil, err
	}
	return DialEth(ctx, cfg.EthRPCURL, cfg.ChainID, pk, cfg.CommitTimeout, log)
}

func operatorKey(hexKey string) (*ecdsa.PrivateKey, error) {
	op, err := wallet.KeySignerFromHex(hexKey)
	if err != nil {
		return nil, fmt.Errorf("ledger: invalid OPERATOR_PRIVATE_KEY: %w", err)
	}
	return op.PrivateKey(), nil
}

func seedDemo(mem *Memory, owner, eventID string, log *zap.Logger) {
	if eventID == "" {
		eventID = "dev-event"
	}
	eventDate := time.Now().Add(time.Hour)
	tiers := []string{"GA", "GA", "VIP"}
	for i, tier := range tiers {
		price := decimal.RequireFromString("0.05")
		if tier == "VIP" {
			price = decimal.RequireFromString("0.2")
		}
		mem.Mint(models.Ticket{
			TokenID:       uint64(i + 1),
			Contract:      DevContract,
			EventID:       eventID,
			Tier:          tier,
			OriginalPrice: price,
			Owner:         owner,
			EventDate:     eventDate,
		})
	}
	log.Info("dev ledger seeded",
		zap.String("contract", DevContract),
		zap.String("owner", owner),
		zap.String("event_id", eventID),
		zap.Int("tickets", len(tiers)),
	)
}
