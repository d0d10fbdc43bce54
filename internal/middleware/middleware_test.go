package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/gofiber/fiber/v2"
	"github.com/nft-tickets/backend/internal/auth"
	"github.com/nft-tickets/backend/internal/rbac"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const clientIP = "203.0.113.7"

func ok(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) }

func newLimitedApp(rdb redis.Cmdable, limit int) *fiber.App {
	app := fiber.New(fiber.Config{ProxyHeader: fiber.HeaderXForwardedFor})
	app.Get("/scan", RateLimitMiddleware(rdb, limit, time.Minute, zap.NewNop()), ok)
	return app
}

func scanRequest() *http.Request {
	req := httptest.NewRequest(fiber.MethodGet, "/scan", nil)
	req.Header.Set(fiber.HeaderXForwardedFor, clientIP)
	return req
}

func TestRateLimitMiddleware(t *testing.T) {
	db, mock := redismock.NewClientMock()
	app := newLimitedApp(db, 2)

	key := "rl:/scan:" + clientIP
	mock.ExpectIncr(key).SetVal(1)
	mock.ExpectExpire(key, time.Minute).SetVal(true)
	mock.ExpectIncr(key).SetVal(2)
	mock.ExpectIncr(key).SetVal(3)

	wantStatus := []int{fiber.StatusOK, fiber.StatusOK, fiber.StatusTooManyRequests}
	wantRemaining := []string{"1", "0", "0"}
	for i := range wantStatus {
		resp, err := app.Test(scanRequest())
		require.NoError(t, err)
		assert.Equal(t, wantStatus[i], resp.StatusCode, "request %d", i)
		assert.Equal(t, wantRemaining[i], resp.Header.Get("X-RateLimit-Remaining"))
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRateLimitMiddlewareFailsOpen(t *testing.T) {
	db, mock := redismock.NewClientMock()
	app := newLimitedApp(db, 1)

	mock.ExpectIncr("rl:/scan:" + clientIP).SetErr(errors.New("redis down"))

	resp, err := app.Test(scanRequest())
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRequestIDMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(RequestIDMiddleware())
	app.Get("/", ok)

	req := httptest.NewRequest(fiber.MethodGet, "/", nil)
	req.Header.Set(fiber.HeaderXRequestID, "abc-123")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "abc-123", resp.Header.Get(fiber.HeaderXRequestID))

	req = httptest.NewRequest(fiber.MethodGet, "/", nil)
	req.Header.Set(fiber.HeaderXRequestID, strings.Repeat("x", 200))
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Len(t, resp.Header.Get(fiber.HeaderXRequestID), 36)
}

func TestAuthAndPermissions(t *testing.T) {
	const secret = "s"
	app := fiber.New()
	app.Get("/stats", AuthMiddleware(secret, zap.NewNop()), RequireStation("gate-1"), RequirePermission(rbac.PermViewStats), ok)

	token := func(role, station string) string {
		tok, err := auth.GenerateJWT(secret, "staff-1", role, station, time.Hour)
		require.NoError(t, err)
		return tok
	}

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", fiber.StatusUnauthorized},
		{"no bearer prefix", token(rbac.RoleOrganizer, ""), fiber.StatusUnauthorized},
		{"gate lacks stats", "Bearer " + token(rbac.RoleGate, ""), fiber.StatusForbidden},
		{"organizer", "Bearer " + token(rbac.RoleOrganizer, ""), fiber.StatusOK},
		{"organizer bound here", "Bearer " + token(rbac.RoleOrganizer, "gate-1"), fiber.StatusOK},
		{"organizer bound elsewhere", "Bearer " + token(rbac.RoleOrganizer, "gate-9"), fiber.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(fiber.MethodGet, "/stats", nil)
			if tt.header != "" {
				req.Header.Set(fiber.HeaderAuthorization, tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}
