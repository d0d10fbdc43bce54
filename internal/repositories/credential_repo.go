package repositories

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nft-tickets/backend/internal/credential"
)

// CredentialRepo stores issued credentials in Postgres, one row per ticket.
type CredentialRepo struct {
	pool *pgxpool.Pool
}

func NewCredentialRepo(pool *pgxpool.Pool) *CredentialRepo {
	return &CredentialRepo{pool: pool}
}

func (r *CredentialRepo) Get(ctx context.Context, key credential.Key) (*credential.Credential, error) {
	var c credential.Credential
	var tokenID string
	err := r.pool.QueryRow(ctx, `
		SELECT contract_address, token_id::text, owner_address, event_id, claims_timestamp, signature
		FROM issued_credentials
		WHERE contract_key = $1 AND token_id = $2
	`, strings.ToLower(key.Contract), strconv.FormatUint(key.TokenID, 10)).Scan(
		&c.ContractAddress, &tokenID, &c.OwnerAddress, &c.EventID, &c.Timestamp, &c.Signature,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.TicketID = tokenID
	return &c, nil
}

// Put replaces any credential stored for the ticket. The contract address
// is stored as signed; lookups go through the lowercased contract_key.
func (r *CredentialRepo) Put(ctx context.Context, key credential.Key, c *credential.Credential) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO issued_credentials (contract_key, token_id, contract_address, owner_address, event_id, claims_timestamp, signature)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (contract_key, token_id) DO UPDATE SET
			contract_address = EXCLUDED.contract_address,
			owner_address = EXCLUDED.owner_address,
			event_id = EXCLUDED.event_id,
			claims_timestamp = EXCLUDED.claims_timestamp,
			signature = EXCLUDED.signature,
			updated_at = now()
	`, strings.ToLower(key.Contract), strconv.FormatUint(key.TokenID, 10), c.ContractAddress, c.OwnerAddress, c.EventID, c.Timestamp, c.Signature)
	return err
}

func (r *CredentialRepo) Delete(ctx context.Context, key credential.Key) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM issued_credentials WHERE contract_key = $1 AND token_id = $2
	`, strings.ToLower(key.Contract), strconv.FormatUint(key.TokenID, 10))
	return err
}
