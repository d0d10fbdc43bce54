package ledger

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperatorKey(t *testing.T) {
	const key = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	const operator = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

	for _, k := range []string{key, "0x" + key, "0X" + key} {
		pk, err := operatorKey(k)
		require.NoError(t, err, k)
		assert.Equal(t, operator, crypto.PubkeyToAddress(pk.PublicKey).Hex())
	}

	_, err := operatorKey("0xdeadbeef")
	assert.ErrorContains(t, err, "OPERATOR_PRIVATE_KEY")
}
