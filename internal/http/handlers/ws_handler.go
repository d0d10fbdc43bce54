package handlers

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/nft-tickets/backend/internal/auth"
	"github.com/nft-tickets/backend/internal/events"
	"github.com/nft-tickets/backend/internal/rbac"
	"go.uber.org/zap"
)

// WSHub fans check-in and ledger events out to connected staff screens.
type WSHub struct {
	jwtSecret  string
	subscriber events.Subscriber
	log        *zap.Logger

	mu      sync.RWMutex
	screens map[*screen]struct{}
}

const (
	screenQueue = 64
	writeWait   = 10 * time.Second
)

// screen is one connected client. Only its writer goroutine touches the
// conn for writing; broadcast never blocks on it.
type screen struct {
	staffID string
	types   map[string]bool // nil = every event type
	out     chan []byte
}

func newScreen(staffID string, types map[string]bool) *screen {
	return &screen{staffID: staffID, types: types, out: make(chan []byte, screenQueue)}
}

func (s *screen) wants(eventType string) bool {
	return s.types == nil || s.types[eventType]
}

// enqueue reports false when the screen is too far behind.
func (s *screen) enqueue(data []byte) bool {
	select {
	case s.out <- data:
		return true
	default:
		return false
	}
}

func (s *screen) writeLoop(conn *websocket.Conn, log *zap.Logger) {
	for data := range s.out {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Debug("ws write failed", zap.String("staff_id", s.staffID), zap.Error(err))
			_ = conn.Close()
			// Drain so the hub can close out without blocking.
			for range s.out {
			}
			return
		}
	}
}

func NewWSHub(jwtSecret string, subscriber events.Subscriber, log *zap.Logger) *WSHub {
	return &WSHub{
		jwtSecret:  jwtSecret,
		subscriber: subscriber,
		log:        log,
		screens:    make(map[*screen]struct{}),
	}
}

// Start subscribes to the check-in and ledger channels.
func (h *WSHub) Start(ctx context.Context) error {
	for _, ch := range []string{events.ChannelCheckIn, events.ChannelLedger} {
		if err := h.subscriber.Subscribe(ctx, ch, h.broadcast); err != nil {
			return err
		}
	}
	return nil
}

func (h *WSHub) broadcast(event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Error("failed to marshal ws event", zap.String("type", event.Type), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for s := range h.screens {
		if !s.wants(event.Type) {
			continue
		}
		if !s.enqueue(data) {
			h.log.Warn("ws screen lagging, event dropped", zap.String("staff_id", s.staffID), zap.String("type", event.Type))
		}
	}
}

func (h *WSHub) register(s *screen) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.screens[s] = struct{}{}
}

// unregister removes s and closes its queue. broadcast only sends under
// the read lock, so nothing sends on a closed queue.
func (h *WSHub) unregister(s *screen) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.screens[s]; ok {
		delete(h.screens, s)
		close(s.out)
	}
}

func (h *WSHub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.screens)
}

// WSUpgradeMiddleware checks for websocket upgrade
func WSUpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

// parseTypes reads ?types=ticket_admitted,ticket_denied. Empty means all.
func parseTypes(raw string) map[string]bool {
	var types map[string]bool
	for _, t := range strings.Split(raw, ",") {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if types == nil {
			types = make(map[string]bool)
		}
		types[t] = true
	}
	return types
}

// HandleWS streams events to a staff screen.
// GET /ws?token=<jwt>&types=<comma list>
func (h *WSHub) HandleWS(conn *websocket.Conn) {
	claims, err := auth.ParseJWT(h.jwtSecret, conn.Query("token"))
	if err != nil || !rbac.HasPermission(claims.Role, rbac.PermViewLog) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"invalid token"}`))
		conn.Close()
		return
	}

	s := newScreen(claims.StaffID, parseTypes(conn.Query("types")))
	written := make(chan struct{})
	go func() {
		defer close(written)
		s.writeLoop(conn, h.log)
	}()

	h.register(s)
	h.log.Debug("ws screen connected", zap.String("staff_id", s.staffID))

	defer func() {
		h.unregister(s)
		<-written
		conn.Close()
	}()

	// Read until the client goes away; pings are answered by the library.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
