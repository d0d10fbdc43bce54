package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nft-tickets/backend/internal/config"
	"github.com/nft-tickets/backend/internal/credential"
	"github.com/nft-tickets/backend/internal/issuer"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const credentialKeyPrefix = "credential:"

// RedisCredentialCache keeps issued credentials as their wire payload with
// a TTL. A zero TTL keeps entries until deleted.
type RedisCredentialCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisCredentialCache(client redis.Cmdable, ttl time.Duration) *RedisCredentialCache {
	return &RedisCredentialCache{client: client, ttl: ttl}
}

func credentialKey(key credential.Key) string {
	return credentialKeyPrefix + key.String()
}

func (c *RedisCredentialCache) Get(ctx context.Context, key credential.Key) (*credential.Credential, error) {
	raw, err := c.client.Get(ctx, credentialKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	cred, err := credential.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("cached credential %s: %w", key, err)
	}
	return cred, nil
}

func (c *RedisCredentialCache) Put(ctx context.Context, key credential.Key, cred *credential.Credential) error {
	payload, err := cred.Payload()
	if err != nil {
		return err
	}
	return c.client.Set(ctx, credentialKey(key), payload, c.ttl).Err()
}

func (c *RedisCredentialCache) Delete(ctx context.Context, key credential.Key) error {
	return c.client.Del(ctx, credentialKey(key)).Err()
}

// NewCredentialCache returns the issued-credential store selected by
// CREDENTIAL_CACHE.
func NewCredentialCache(cfg *config.Config, pool *pgxpool.Pool, rdb redis.Cmdable, log *zap.Logger) issuer.Cache {
	log.Info("credential cache", zap.String("backend", cfg.CredentialCache))
	switch cfg.CredentialCache {
	case config.CachePostgres:
		return NewCredentialRepo(pool)
	case config.CacheRedis:
		return NewRedisCredentialCache(rdb, cfg.CredentialCacheTTL)
	default:
		return issuer.NewMemoryCache()
	}
}
