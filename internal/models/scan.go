package models

import (
	"time"

	"github.com/google/uuid"
)

// Scan statuses
const (
	ScanStatusValid   = "valid"
	ScanStatusInvalid = "invalid"
)

// ScanRecord is one terminal check-in decision at a station.
type ScanRecord struct {
	ID        uuid.UUID `json:"id"`
	StationID string    `json:"station_id"`
	EventID   string    `json:"event_id,omitempty"`
	Contract  string    `json:"contract_address,omitempty"`
	TokenID   uint64    `json:"token_id,omitempty"`
	Owner     string    `json:"owner,omitempty"`
	Tier      string    `json:"tier,omitempty"`
	Status    string    `json:"status"`
	Reason    string    `json:"reason,omitempty"`
	TxHash    string    `json:"tx_hash,omitempty"`
	ScannedAt time.Time `json:"scanned_at"`
}
