package repositories

import (
	"context"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nft-tickets/backend/internal/models"
)

// ScanRepo is the durable audit trail of gate decisions.
type ScanRepo struct {
	pool *pgxpool.Pool
}

func NewScanRepo(pool *pgxpool.Pool) *ScanRepo {
	return &ScanRepo{pool: pool}
}

func (r *ScanRepo) Record(ctx context.Context, rec *models.ScanRecord) error {
	var tokenID *string
	if rec.Contract != "" {
		s := strconv.FormatUint(rec.TokenID, 10)
		tokenID = &s
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO scan_log (id, station_id, event_id, contract_address, token_id, owner_address, tier, status, reason, tx_hash, scanned_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, rec.ID, rec.StationID, rec.EventID, rec.Contract, tokenID, rec.Owner, rec.Tier,
		rec.Status, rec.Reason, rec.TxHash, rec.ScannedAt)
	return err
}

func (r *ScanRepo) ListByStation(ctx context.Context, stationID string, limit, offset int) ([]models.ScanRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, station_id, event_id, contract_address, COALESCE(token_id::text, ''), owner_address, tier, status, reason, tx_hash, scanned_at
		FROM scan_log WHERE station_id = $1
		ORDER BY scanned_at DESC LIMIT $2 OFFSET $3
	`, stationID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ScanRecord
	for rows.Next() {
		var rec models.ScanRecord
		var tokenID string
		if err := rows.Scan(&rec.ID, &rec.StationID, &rec.EventID, &rec.Contract, &tokenID, &rec.Owner,
			&rec.Tier, &rec.Status, &rec.Reason, &rec.TxHash, &rec.ScannedAt); err != nil {
			return nil, err
		}
		if tokenID != "" {
			rec.TokenID, _ = strconv.ParseUint(tokenID, 10, 64)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// EventStats counts decisions per status and reason for one event.
func (r *ScanRepo) EventStats(ctx context.Context, eventID string) (map[string]int64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT status, reason, count(*) FROM scan_log WHERE event_id = $1 GROUP BY status, reason
	`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := make(map[string]int64)
	for rows.Next() {
		var status, reason string
		var n int64
		if err := rows.Scan(&status, &reason, &n); err != nil {
			return nil, err
		}
		key := status
		if reason != "" {
			key += ":" + reason
		}
		stats[key] += n
	}
	return stats, rows.Err()
}

// DeleteBefore removes decisions older than before.
func (r *ScanRepo) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM scan_log WHERE scanned_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
