package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/nft-tickets/backend/internal/config"
	"github.com/nft-tickets/backend/internal/credential"
	"github.com/nft-tickets/backend/internal/issuer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testCredential = &credential.Credential{
	Claims: credential.Claims{
		TicketID:        "12",
		ContractAddress: "0x5FbDB2315678afecb367f032d93F642f64180aa3",
		OwnerAddress:    "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
		Timestamp:       1763668800000,
	},
	EventID:   "7",
	Signature: "0x" + "ab",
}

var testKey = credential.Key{Contract: "0x5FbDB2315678afecb367f032d93F642f64180aa3", TokenID: 12}

const testRedisKey = "credential:0x5fbdb2315678afecb367f032d93f642f64180aa3:12"

func TestRedisCredentialCache_Put(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := NewRedisCredentialCache(db, time.Hour)

	payload, err := testCredential.Payload()
	require.NoError(t, err)
	mock.ExpectSet(testRedisKey, payload, time.Hour).SetVal("OK")

	require.NoError(t, cache.Put(context.Background(), testKey, testCredential))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCredentialCache_Get(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := NewRedisCredentialCache(db, time.Hour)

	payload, err := testCredential.Payload()
	require.NoError(t, err)
	mock.ExpectGet(testRedisKey).SetVal(string(payload))

	got, err := cache.Get(context.Background(), testKey)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, *testCredential, *got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCredentialCache_GetMiss(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := NewRedisCredentialCache(db, 0)

	mock.ExpectGet(testRedisKey).RedisNil()

	got, err := cache.Get(context.Background(), testKey)
	assert.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCredentialCache_GetErrors(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := NewRedisCredentialCache(db, 0)

	mock.ExpectGet(testRedisKey).SetErr(errors.New("connection reset"))
	_, err := cache.Get(context.Background(), testKey)
	assert.Error(t, err)

	mock.ExpectGet(testRedisKey).SetVal("garbage")
	_, err = cache.Get(context.Background(), testKey)
	assert.ErrorIs(t, err, credential.ErrMalformed)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCredentialCache_Delete(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := NewRedisCredentialCache(db, 0)

	mock.ExpectDel(testRedisKey).SetVal(1)
	require.NoError(t, cache.Delete(context.Background(), testKey))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewCredentialCache(t *testing.T) {
	db, _ := redismock.NewClientMock()

	tests := []struct {
		backend string
		want    any
	}{
		{config.CacheRedis, &RedisCredentialCache{}},
		{config.CacheMemory, &issuer.MemoryCache{}},
		{"", &issuer.MemoryCache{}},
	}
	for _, tt := range tests {
		cfg := &config.Config{CredentialCache: tt.backend, CredentialCacheTTL: time.Minute}
		got := NewCredentialCache(cfg, nil, db, zap.NewNop())
		assert.IsType(t, tt.want, got, tt.backend)
	}
}
