package dto

type StaffAuthRequest struct {
	APIKey    string `json:"api_key"`
	StaffID   string `json:"staff_id"`
	Role      string `json:"role,omitempty"`       // defaults to gate
	StationID string `json:"station_id,omitempty"` // empty = any station
}

type CredentialChallengeRequest struct {
	Owner string `json:"owner"`
}

type ConfirmCredentialRequest struct {
	ChallengeID string `json:"challenge_id"`
	Signature   string `json:"signature"` // 0x-prefixed personal_sign output
}

type ConfirmBatchRequest struct {
	Items []ConfirmCredentialRequest `json:"items"`
}

// ScanRequest carries a payload captured by a client-side camera.
// Payload is the raw QR text.
type ScanRequest struct {
	Payload string `json:"payload"`
}
