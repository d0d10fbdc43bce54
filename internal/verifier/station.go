package verifier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nft-tickets/backend/internal/events"
	"github.com/nft-tickets/backend/internal/models"
	"github.com/nft-tickets/backend/internal/monitoring"
	"github.com/nft-tickets/backend/internal/scanner"
	"go.uber.org/zap"
)

var (
	ErrBusy      = errors.New("verifier: scan in progress")
	ErrNotIdle   = errors.New("verifier: last result not acknowledged")
	ErrCancelled = errors.New("verifier: scan cancelled")
	ErrNoDevice  = errors.New("verifier: no capture device")
)

// Recorder persists terminal scan decisions.
type Recorder interface {
	Record(ctx context.Context, rec *models.ScanRecord) error
}

type StationOptions struct {
	ID        string
	Device    scanner.Device   // optional, required by Scan
	Publisher events.Publisher // optional
	Recorder  Recorder         // optional
	LogSize   int
}

// Station runs one scan at a time through the verifier. After a terminal
// result it waits in Admitted or Denied until Next is called.
type Station struct {
	id        string
	verifier  *Verifier
	device    scanner.Device
	publisher events.Publisher
	recorder  Recorder
	logSize   int
	log       *zap.Logger

	mu      sync.Mutex
	state   string
	current *scan
	last    *Result
	history []models.ScanRecord // most recent first
}

type scan struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func NewStation(v *Verifier, opts StationOptions, log *zap.Logger) *Station {
	if opts.LogSize <= 0 {
		opts.LogSize = 200
	}
	return &Station{
		id:        opts.ID,
		verifier:  v,
		device:    opts.Device,
		publisher: opts.Publisher,
		recorder:  opts.Recorder,
		logSize:   opts.LogSize,
		log:       log.With(zap.String("station_id", opts.ID)),
		state:     models.StationIdle,
	}
}

func (s *Station) ID() string { return s.id }

func (s *Station) EventID() string { return s.verifier.EventID() }

func (s *Station) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Last returns the most recent terminal result, or nil.
func (s *Station) Last() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Log returns up to limit scan records, most recent first.
func (s *Station) Log(limit int) []models.ScanRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 || limit > len(s.history) {
		limit = len(s.history)
	}
	out := make([]models.ScanRecord, limit)
	copy(out, s.history[:limit])
	return out
}

// Scan captures one code from the device and verifies it. The device is
// stopped as soon as the first code arrives.
func (s *Station) Scan(ctx context.Context) (*Result, error) {
	if s.device == nil {
		return nil, ErrNoDevice
	}
	sc, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}

	devCtx, stop := context.WithCancel(sc.ctx)
	defer stop()

	captures, err := s.device.Start(devCtx)
	if err != nil {
		s.abort(sc)
		return nil, fmt.Errorf("verifier: start device: %w", err)
	}

	var raw string
	for raw == "" {
		select {
		case <-devCtx.Done():
			s.abort(sc)
			return nil, ErrCancelled
		case c, ok := <-captures:
			if !ok {
				cancelled := sc.ctx.Err() != nil
				s.abort(sc)
				if cancelled {
					return nil, ErrCancelled
				}
				return nil, scanner.ErrClosed
			}
			if c.Err != nil {
				if errors.Is(c.Err, io.EOF) {
					s.abort(sc)
					return nil, c.Err
				}
				s.log.Warn("capture error", zap.Error(c.Err))
				continue
			}
			raw = strings.TrimSpace(c.Text)
		}
	}
	stop()

	return s.process(sc, []byte(raw))
}

// Submit verifies a payload captured elsewhere, such as a phone camera
// posting to the station API.
func (s *Station) Submit(ctx context.Context, raw []byte) (*Result, error) {
	sc, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	return s.process(sc, raw)
}

// Cancel abandons the scan in progress and returns to Idle. It has no
// effect once the check-in transaction has been submitted.
func (s *Station) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return false
	}
	switch s.state {
	case models.StationScanning, models.StationDecoding, models.StationCrossChecking:
	default:
		return false
	}
	s.current.cancel()
	s.current = nil
	s.state = models.StationIdle
	s.log.Info("scan cancelled")
	return true
}

// Next acknowledges the last result and readies the station for the next
// scan.
func (s *Station) Next() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case models.StationIdle:
		return nil
	case models.StationAdmitted, models.StationDenied:
		s.state = models.StationIdle
		return nil
	default:
		return ErrBusy
	}
}

func (s *Station) begin(ctx context.Context) (*scan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.state == models.StationAdmitted || s.state == models.StationDenied:
		return nil, ErrNotIdle
	case s.state != models.StationIdle:
		return nil, ErrBusy
	}
	sctx, cancel := context.WithCancel(ctx)
	sc := &scan{ctx: sctx, cancel: cancel}
	s.current = sc
	s.state = models.StationScanning
	return sc, nil
}

// advance moves sc to the next state unless it was cancelled meanwhile.
func (s *Station) advance(sc *scan, to string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != sc || sc.ctx.Err() != nil {
		return ErrCancelled
	}
	if !models.IsValidStationTransition(s.state, to) {
		return fmt.Errorf("verifier: invalid transition %s -> %s", s.state, to)
	}
	s.state = to
	return nil
}

// abort returns sc to Idle if it is still the current scan.
func (s *Station) abort(sc *scan) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc.cancel()
	if s.current == sc {
		s.current = nil
		s.state = models.StationIdle
	}
}

func (s *Station) process(sc *scan, raw []byte) (*Result, error) {
	if err := s.advance(sc, models.StationDecoding); err != nil {
		s.abort(sc)
		return nil, err
	}
	c, denied := s.verifier.Decode(raw)
	if denied != nil {
		return s.finish(sc, denied)
	}

	if err := s.advance(sc, models.StationCrossChecking); err != nil {
		s.abort(sc)
		return nil, err
	}
	ticket, denied, err := s.verifier.CrossCheck(sc.ctx, c)
	if err != nil {
		cancelled := sc.ctx.Err() != nil
		s.abort(sc)
		if cancelled {
			return nil, ErrCancelled
		}
		s.log.Warn("ledger unavailable during cross-check", zap.Error(err))
		return nil, err
	}
	if denied != nil {
		return s.finish(sc, denied)
	}

	if err := s.advance(sc, models.StationCommitting); err != nil {
		s.abort(sc)
		return nil, err
	}
	res, err := s.verifier.Commit(sc.ctx, c, ticket)
	if err != nil {
		s.abort(sc)
		s.log.Warn("ledger unavailable during commit", zap.Error(err))
		return nil, err
	}
	return s.finish(sc, res)
}

func (s *Station) finish(sc *scan, res *Result) (*Result, error) {
	to := models.StationDenied
	if res.Admitted() {
		to = models.StationAdmitted
	}

	s.mu.Lock()
	if s.current != sc || (sc.ctx.Err() != nil && s.state != models.StationCommitting) {
		if s.current == sc {
			s.current = nil
			s.state = models.StationIdle
		}
		s.mu.Unlock()
		sc.cancel()
		return nil, ErrCancelled
	}
	if !models.IsValidStationTransition(s.state, to) {
		from := s.state
		s.mu.Unlock()
		return nil, fmt.Errorf("verifier: invalid transition %s -> %s", from, to)
	}
	s.state = to
	s.current = nil
	s.last = res
	rec := s.record(res)
	s.history = append([]models.ScanRecord{rec}, s.history...)
	if len(s.history) > s.logSize {
		s.history = s.history[:s.logSize]
	}
	s.mu.Unlock()

	sc.cancel()
	s.report(sc.ctx, res, &rec)
	return res, nil
}

func (s *Station) record(res *Result) models.ScanRecord {
	return models.ScanRecord{
		ID:        uuid.New(),
		StationID: s.id,
		EventID:   res.EventID,
		Contract:  res.Contract,
		TokenID:   res.TokenID,
		Owner:     res.Owner,
		Tier:      res.Tier,
		Status:    res.Status,
		Reason:    string(res.Reason),
		TxHash:    res.TxHash,
		ScannedAt: res.Timestamp,
	}
}

func (s *Station) report(ctx context.Context, res *Result, rec *models.ScanRecord) {
	monitoring.TrackScan(res.EventID, res.Status, string(res.Reason))

	fields := []zap.Field{
		zap.String("status", res.Status),
		zap.String("contract", res.Contract),
		zap.Uint64("token_id", res.TokenID),
	}
	if res.Admitted() {
		s.log.Info("ticket admitted", append(fields, zap.String("tx_hash", res.TxHash))...)
	} else {
		s.log.Info("ticket denied", append(fields, zap.String("reason", string(res.Reason)))...)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if s.recorder != nil {
		if err := s.recorder.Record(ctx, rec); err != nil {
			s.log.Error("failed to record scan", zap.Error(err))
		}
	}
	if s.publisher != nil {
		eventType := events.EventTicketDenied
		if res.Admitted() {
			eventType = events.EventTicketAdmitted
		}
		err := s.publisher.Publish(ctx, events.ChannelCheckIn, events.Event{
			Type: eventType,
			Payload: map[string]any{
				"station_id": s.id,
				"record":     rec,
			},
		})
		if err != nil {
			s.log.Error("failed to publish scan event", zap.Error(err))
		}
	}
}
