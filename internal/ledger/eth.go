package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/nft-tickets/backend/internal/models"
	"github.com/nft-tickets/backend/internal/monitoring"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Backend is the subset of ethclient.Client the adapter needs.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	BlockNumber(ctx context.Context) (uint64, error)
}

// EthLedger talks to per-event ticket contracts over JSON-RPC.
type EthLedger struct {
	backend       Backend
	abi           abi.ABI
	opts          *bind.TransactOpts // nil = read-only
	commitTimeout time.Duration
	log           *zap.Logger

	mu         sync.Mutex
	contracts  map[common.Address]*bind.BoundContract
	eventDates map[common.Address]time.Time

	txMu sync.Mutex
}

// DialEth connects to an RPC endpoint. operatorKey may be nil for a
// read-only ledger (issuance only).
func DialEth(ctx context.Context, url string, chainID int64, operatorKey *ecdsa.PrivateKey, commitTimeout time.Duration, log *zap.Logger) (*EthLedger, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrUnavailable, url, err)
	}
	return NewEthLedger(client, chainID, operatorKey, commitTimeout, log)
}

func NewEthLedger(backend Backend, chainID int64, operatorKey *ecdsa.PrivateKey, commitTimeout time.Duration, log *zap.Logger) (*EthLedger, error) {
	parsed, err := abi.JSON(strings.NewReader(ticketABI))
	if err != nil {
		return nil, fmt.Errorf("ledger: parse abi: %w", err)
	}

	l := &EthLedger{
		backend:       backend,
		abi:           parsed,
		commitTimeout: commitTimeout,
		log:           log,
		contracts:     make(map[common.Address]*bind.BoundContract),
		eventDates:    make(map[common.Address]time.Time),
	}

	if operatorKey != nil {
		opts, err := bind.NewKeyedTransactorWithChainID(operatorKey, big.NewInt(chainID))
		if err != nil {
			return nil, fmt.Errorf("ledger: operator transactor: %w", err)
		}
		l.opts = opts
		log.Info("ledger operator configured", zap.String("operator", opts.From.Hex()))
	}

	return l, nil
}

func (l *EthLedger) contract(address common.Address) *bind.BoundContract {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.contracts[address]
	if !ok {
		c = bind.NewBoundContract(address, l.abi, l.backend, l.backend, l.backend)
		l.contracts[address] = c
	}
	return c
}

func (l *EthLedger) GetTicket(ctx context.Context, contract string, tokenID uint64) (t *models.Ticket, err error) {
	start := time.Now()
	defer func() { monitoring.TrackLedgerCall("get_ticket", start, err) }()

	if !common.IsHexAddress(contract) {
		return nil, ErrTicketNotFound
	}
	address := common.HexToAddress(contract)

	var out []interface{}
	err = l.contract(address).Call(&bind.CallOpts{Context: ctx}, &out, "getTicket", new(big.Int).SetUint64(tokenID))
	if err != nil {
		if rej, ok := classify(err).(*RejectError); ok {
			l.log.Debug("getTicket reverted", zap.String("contract", contract), zap.Uint64("token_id", tokenID), zap.String("revert", rej.Message))
			return nil, ErrTicketNotFound
		}
		return nil, classify(err)
	}
	if len(out) != 7 {
		return nil, fmt.Errorf("ledger: getTicket returned %d values", len(out))
	}

	owner := *abi.ConvertType(out[0], new(common.Address)).(*common.Address)
	if owner == (common.Address{}) {
		return nil, ErrTicketNotFound
	}
	tier := *abi.ConvertType(out[1], new(string)).(*string)
	price := *abi.ConvertType(out[2], new(*big.Int)).(**big.Int)
	used := *abi.ConvertType(out[3], new(bool)).(*bool)
	eventID := *abi.ConvertType(out[4], new(*big.Int)).(**big.Int)
	purchased := *abi.ConvertType(out[5], new(*big.Int)).(**big.Int)
	lockUntil := *abi.ConvertType(out[6], new(*big.Int)).(**big.Int)

	return &models.Ticket{
		TokenID:           tokenID,
		Contract:          address.Hex(),
		EventID:           eventID.String(),
		Tier:              tier,
		OriginalPrice:     models.WeiToEther(decimal.NewFromBigInt(price, 0)),
		Owner:             owner.Hex(),
		Used:              used,
		PurchaseTimestamp: time.Unix(purchased.Int64(), 0).UTC(),
		TransferLockUntil: time.Unix(lockUntil.Int64(), 0).UTC(),
		EventDate:         l.eventDate(ctx, address),
	}, nil
}

// eventDate is immutable per contract; failures leave it unknown.
func (l *EthLedger) eventDate(ctx context.Context, address common.Address) time.Time {
	l.mu.Lock()
	d, ok := l.eventDates[address]
	l.mu.Unlock()
	if ok {
		return d
	}

	var out []interface{}
	if err := l.contract(address).Call(&bind.CallOpts{Context: ctx}, &out, "eventDate"); err != nil || len(out) != 1 {
		return time.Time{}
	}
	ts := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)
	d = time.Unix(ts.Int64(), 0).UTC()

	l.mu.Lock()
	l.eventDates[address] = d
	l.mu.Unlock()
	return d
}

// MarkAsUsed sends the check-in transaction and waits for it to be mined.
// Sending and waiting are each bounded by the commit timeout. Failures
// before broadcast are ErrUnavailable; once broadcast, ctx cancellation is
// ignored and a missed receipt is ErrOutcomeUnknown.
func (l *EthLedger) MarkAsUsed(ctx context.Context, contract string, tokenID uint64) (r *Receipt, err error) {
	start := time.Now()
	defer func() { monitoring.TrackLedgerCall("mark_as_used", start, err) }()

	if l.opts == nil {
		return nil, &RejectError{Reason: ReasonUnauthorized, Message: "no operator key configured"}
	}
	if !common.IsHexAddress(contract) {
		return nil, Reject("ERC721NonexistentToken")
	}
	address := common.HexToAddress(contract)

	l.txMu.Lock()
	sendCtx, cancelSend := l.withCommitTimeout(ctx)
	opts := *l.opts
	opts.Context = sendCtx
	tx, err := l.contract(address).Transact(&opts, "markAsUsed", new(big.Int).SetUint64(tokenID))
	cancelSend()
	l.txMu.Unlock()
	if err != nil {
		return nil, classify(err)
	}

	l.log.Info("check-in transaction sent",
		zap.String("contract", address.Hex()),
		zap.Uint64("token_id", tokenID),
		zap.String("tx", tx.Hash().Hex()),
	)

	waitCtx, cancel := l.withCommitTimeout(context.WithoutCancel(ctx))
	defer cancel()

	receipt, err := bind.WaitMined(waitCtx, l.backend, tx)
	if err != nil {
		return nil, fmt.Errorf("%w: waiting for %s: %v", ErrOutcomeUnknown, tx.Hash().Hex(), err)
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		// The revert reason is not in the receipt. A lost race is the
		// common cause, so re-read the ticket to tell it apart.
		t, rerr := l.GetTicket(waitCtx, contract, tokenID)
		if rerr == nil && t.Used {
			return nil, &RejectError{Reason: ReasonAlreadyUsed, Message: "transaction reverted, ticket used"}
		}
		return nil, &RejectError{Reason: ReasonOther, Message: "transaction reverted " + tx.Hash().Hex()}
	}

	return &Receipt{TxHash: tx.Hash().Hex(), BlockNumber: receipt.BlockNumber.Uint64()}, nil
}

func (l *EthLedger) withCommitTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.commitTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, l.commitTimeout)
}

// classify splits contract refusals from transport failures. Node errors
// that carry a JSON-RPC code are answers from the chain; anything else
// means the ledger could not be reached.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		if isTransientCode(rpcErr.ErrorCode()) {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return Reject(revertMessage(err))
	}
	if strings.Contains(strings.ToLower(err.Error()), "execution reverted") {
		return Reject(revertMessage(err))
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// -32005 limit exceeded, -32603 internal error, -32099..-32000 is
// server-defined but geth uses -32000 for reverts and nonce errors.
func isTransientCode(code int) bool {
	return code == -32005 || code == -32603
}

// revertMessage prefers the ABI-decoded Error(string) payload over the
// node's message text.
func revertMessage(err error) string {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if s, ok := dataErr.ErrorData().(string); ok {
			if data, derr := hexutil.Decode(s); derr == nil {
				if reason, uerr := abi.UnpackRevert(data); uerr == nil {
					return reason
				}
			}
		}
	}
	msg := err.Error()
	if i := strings.Index(msg, "execution reverted:"); i >= 0 {
		return strings.TrimSpace(msg[i+len("execution reverted:"):])
	}
	return msg
}

// UsageKind distinguishes the logs the indexer follows.
type UsageKind string

const (
	UsageUsed     UsageKind = "used"
	UsageTransfer UsageKind = "transfer"
)

// UsageEvent is a ticket state change read from contract logs.
type UsageEvent struct {
	Kind        UsageKind
	Contract    string
	TokenID     uint64
	From        string
	To          string
	BlockNumber uint64
	TxHash      string
}

func (l *EthLedger) HeadBlock(ctx context.Context) (uint64, error) {
	n, err := l.backend.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n, nil
}

// UsageEvents returns TicketUsed and Transfer logs in [from, to].
func (l *EthLedger) UsageEvents(ctx context.Context, contracts []string, from, to uint64) ([]UsageEvent, error) {
	usedID := l.abi.Events["TicketUsed"].ID
	transferID := l.abi.Events["Transfer"].ID

	addresses := make([]common.Address, 0, len(contracts))
	for _, c := range contracts {
		if common.IsHexAddress(c) {
			addresses = append(addresses, common.HexToAddress(c))
		}
	}

	logs, err := l.backend.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: addresses,
		Topics:    [][]common.Hash{{usedID, transferID}},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: filter logs: %v", ErrUnavailable, err)
	}

	events := make([]UsageEvent, 0, len(logs))
	for _, lg := range logs {
		if lg.Removed || len(lg.Topics) == 0 {
			continue
		}
		ev := UsageEvent{
			Contract:    lg.Address.Hex(),
			BlockNumber: lg.BlockNumber,
			TxHash:      lg.TxHash.Hex(),
		}
		switch {
		case lg.Topics[0] == usedID && len(lg.Topics) >= 2:
			ev.Kind = UsageUsed
			ev.TokenID = new(big.Int).SetBytes(lg.Topics[1].Bytes()).Uint64()
		case lg.Topics[0] == transferID && len(lg.Topics) >= 4:
			ev.Kind = UsageTransfer
			ev.From = common.BytesToAddress(lg.Topics[1].Bytes()).Hex()
			ev.To = common.BytesToAddress(lg.Topics[2].Bytes()).Hex()
			ev.TokenID = new(big.Int).SetBytes(lg.Topics[3].Bytes()).Uint64()
		default:
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}
