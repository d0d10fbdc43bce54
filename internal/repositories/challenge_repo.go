package repositories

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nft-tickets/backend/internal/models"
)

var ErrChallengeNotFound = errors.New("challenge not found, expired or already used")

type ChallengeRepo struct {
	pool *pgxpool.Pool
}

func NewChallengeRepo(pool *pgxpool.Pool) *ChallengeRepo {
	return &ChallengeRepo{pool: pool}
}

func (r *ChallengeRepo) Create(ctx context.Context, ch *models.CredentialChallenge, ttl time.Duration) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO credential_challenges (contract_address, token_id, owner_address, event_id, claims_timestamp, expires_at)
		VALUES ($1, $2, $3, $4, $5, now() + $6::interval)
		RETURNING id, created_at, expires_at
	`, ch.Contract, strconv.FormatUint(ch.TokenID, 10), ch.Owner, ch.EventID, ch.ClaimsTimestamp, ttl.String(),
	).Scan(&ch.ID, &ch.CreatedAt, &ch.ExpiresAt)
}

// Consume marks the challenge used and returns it. A challenge can be
// consumed once, before it expires.
func (r *ChallengeRepo) Consume(ctx context.Context, id uuid.UUID) (*models.CredentialChallenge, error) {
	var ch models.CredentialChallenge
	var tokenID string
	err := r.pool.QueryRow(ctx, `
		UPDATE credential_challenges
		SET used = true
		WHERE id = $1 AND used = false AND expires_at > now()
		RETURNING id, contract_address, token_id::text, owner_address, event_id, claims_timestamp, used, created_at, expires_at
	`, id).Scan(&ch.ID, &ch.Contract, &tokenID, &ch.Owner, &ch.EventID, &ch.ClaimsTimestamp, &ch.Used, &ch.CreatedAt, &ch.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrChallengeNotFound
	}
	if err != nil {
		return nil, err
	}
	ch.TokenID, err = strconv.ParseUint(tokenID, 10, 64)
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

// DeleteExpired removes challenges that can no longer be consumed.
func (r *ChallengeRepo) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM credential_challenges WHERE used = true OR expires_at < now()
	`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
