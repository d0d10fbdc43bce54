package credential

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testContract = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	testOwner    = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
)

func testClaims() Claims {
	return Claims{
		TicketID:        "42",
		ContractAddress: testContract,
		OwnerAddress:    testOwner,
		Timestamp:       1767225600000,
	}
}

func TestEncodeIsCanonical(t *testing.T) {
	want := `{"ticketId":"42","contractAddress":"` + testContract + `","ownerAddress":"` + testOwner + `","timestamp":1767225600000}`
	assert.Equal(t, want, string(Encode(testClaims())))
	assert.Equal(t, Encode(testClaims()), Encode(testClaims()))
}

func TestPayloadFieldOrder(t *testing.T) {
	c := Credential{Claims: testClaims(), EventID: "7", Signature: "0xabcd"}
	payload, err := c.Payload()
	require.NoError(t, err)

	want := `{"ticketId":"42","contractAddress":"` + testContract + `","ownerAddress":"` + testOwner +
		`","eventId":"7","timestamp":1767225600000,"signature":"0xabcd"}`
	assert.Equal(t, want, string(payload))

	viaJSON, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Equal(t, payload, viaJSON)
}

func TestParseRoundTrip(t *testing.T) {
	c := Credential{Claims: testClaims(), EventID: "7", Signature: "0xabcd"}
	payload, err := c.Payload()
	require.NoError(t, err)

	parsed, err := Parse(payload)
	require.NoError(t, err)
	assert.Equal(t, c, *parsed)

	var viaJSON Credential
	require.NoError(t, json.Unmarshal(payload, &viaJSON))
	assert.Equal(t, c, viaJSON)
}

func TestParseNumericIDs(t *testing.T) {
	raw := `{"ticketId":42,"contractAddress":"` + testContract + `","ownerAddress":"` + testOwner + `","eventId":7,"timestamp":1,"signature":"0x"}`
	c, err := Parse([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "42", c.TicketID)
	assert.Equal(t, "7", c.EventID)

	id, err := c.TokenID()
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)
}

func TestParseMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"plain text", "hello world"},
		{"url", "https://example.com/ticket/42"},
		{"array", `[1,2,3]`},
		{"broken json", `{"ticketId":"42",`},
		{"missing ticketId", `{"contractAddress":"` + testContract + `"}`},
		{"missing contract", `{"ticketId":"42"}`},
		{"bad contract", `{"ticketId":"42","contractAddress":"0x1234"}`},
		{"non-numeric ticketId", `{"ticketId":"abc","contractAddress":"` + testContract + `"}`},
		{"negative ticketId", `{"ticketId":"-1","contractAddress":"` + testContract + `"}`},
		{"object ticketId", `{"ticketId":{},"contractAddress":"` + testContract + `"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.raw))
			assert.True(t, errors.Is(err, ErrMalformed), "got %v", err)
		})
	}
}

func TestKeyIgnoresChecksumCase(t *testing.T) {
	a := Key{Contract: testContract, TokenID: 1}
	b := Key{Contract: "0x5fbdb2315678afecb367f032d93f642f64180aa3", TokenID: 1}
	assert.Equal(t, a.String(), b.String())
	assert.Equal(t, "0x5fbdb2315678afecb367f032d93f642f64180aa3:1", a.String())
}
