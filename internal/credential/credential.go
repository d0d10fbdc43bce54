// Package credential encodes, signs and verifies the QR credential a ticket
// holder presents at the gate.
//
// The signed message is the canonical JSON of the claims
// {ticketId, contractAddress, ownerAddress, timestamp}, in that order. The
// transmitted payload adds eventId and signature, which are not covered by
// the signature.
package credential

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrMalformed        = errors.New("credential: malformed credential")
	ErrInvalidSignature = errors.New("credential: invalid signature")
)

// Claims are the fields covered by the signature. Field order is the
// canonical encoding order and must not change.
type Claims struct {
	TicketID        string `json:"ticketId"`
	ContractAddress string `json:"contractAddress"`
	OwnerAddress    string `json:"ownerAddress"`
	Timestamp       int64  `json:"timestamp"` // unix milliseconds
}

// Credential is the full QR payload.
type Credential struct {
	Claims
	EventID   string
	Signature string // 0x-prefixed 65-byte hex
}

// Key identifies the ticket a credential belongs to.
type Key struct {
	Contract string
	TokenID  uint64
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%d", strings.ToLower(k.Contract), k.TokenID)
}

type wireCredential struct {
	TicketID        string `json:"ticketId"`
	ContractAddress string `json:"contractAddress"`
	OwnerAddress    string `json:"ownerAddress"`
	EventID         string `json:"eventId"`
	Timestamp       int64  `json:"timestamp"`
	Signature       string `json:"signature"`
}

// Encode returns the exact bytes that get signed.
func Encode(c Claims) []byte {
	// Claims holds only strings and an int64; Marshal cannot fail.
	b, _ := json.Marshal(c)
	return b
}

// TokenID parses the ticket id as an NFT token id.
func (c Claims) TokenID() (uint64, error) {
	id, err := strconv.ParseUint(c.TicketID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: ticketId %q is not a token id", ErrMalformed, c.TicketID)
	}
	return id, nil
}

// Key returns the cache key for the claims. The ticket id must be valid.
func (c Claims) Key() Key {
	id, _ := c.TokenID()
	return Key{Contract: c.ContractAddress, TokenID: id}
}

// Payload returns the wire-format JSON shown in the QR code.
func (c Credential) Payload() ([]byte, error) {
	return json.Marshal(wireCredential{
		TicketID:        c.TicketID,
		ContractAddress: c.ContractAddress,
		OwnerAddress:    c.OwnerAddress,
		EventID:         c.EventID,
		Timestamp:       c.Timestamp,
		Signature:       c.Signature,
	})
}

func (c Credential) MarshalJSON() ([]byte, error) {
	return c.Payload()
}

func (c *Credential) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*c = *parsed
	return nil
}

// Parse decodes a scanned payload. Only the structure is checked here: the
// payload must be a JSON object carrying a numeric ticketId and a hex
// contractAddress. The signature is checked by Verify.
func Parse(raw []byte) (*Credential, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, ErrMalformed
	}

	var w struct {
		TicketID        json.RawMessage `json:"ticketId"`
		ContractAddress string          `json:"contractAddress"`
		OwnerAddress    string          `json:"ownerAddress"`
		EventID         json.RawMessage `json:"eventId"`
		Timestamp       int64           `json:"timestamp"`
		Signature       string          `json:"signature"`
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	ticketID, ok := scalarString(w.TicketID)
	if !ok || ticketID == "" {
		return nil, fmt.Errorf("%w: missing ticketId", ErrMalformed)
	}
	if w.ContractAddress == "" {
		return nil, fmt.Errorf("%w: missing contractAddress", ErrMalformed)
	}
	if !common.IsHexAddress(w.ContractAddress) {
		return nil, fmt.Errorf("%w: contractAddress %q is not an address", ErrMalformed, w.ContractAddress)
	}
	eventID, _ := scalarString(w.EventID)

	c := &Credential{
		Claims: Claims{
			TicketID:        ticketID,
			ContractAddress: w.ContractAddress,
			OwnerAddress:    w.OwnerAddress,
			Timestamp:       w.Timestamp,
		},
		EventID:   eventID,
		Signature: w.Signature,
	}
	if _, err := c.TokenID(); err != nil {
		return nil, err
	}
	return c, nil
}

// scalarString accepts a JSON string or number. Some wallets emit numeric
// ids for ticketId and eventId.
func scalarString(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	return "", false
}
