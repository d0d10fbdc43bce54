package credential

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/nft-tickets/backend/internal/wallet"
)

// Sign asks the signer to personal_sign the canonical claims.
// Capability failures (wallet.ErrSignatureDeclined,
// wallet.ErrNoSigningCapability) are returned unwrapped.
func Sign(ctx context.Context, claims Claims, signer wallet.Signer) (string, error) {
	if signer == nil {
		return "", wallet.ErrNoSigningCapability
	}
	sig, err := signer.SignMessage(ctx, Encode(claims))
	if err != nil {
		return "", err
	}
	return hexutil.Encode(sig), nil
}

// Verify recovers the address that produced signature over Encode(claims).
// It does no I/O.
func Verify(claims Claims, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return Recover(Encode(claims), sig)
}

// Recover returns the signer of an EIP-191 personal message. Both the
// 27/28 (wallet) and 0/1 (raw) recovery id forms are accepted.
func Recover(message, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidSignature, crypto.SignatureLength, len(sig))
	}

	normalized := make([]byte, crypto.SignatureLength)
	copy(normalized, sig)
	if normalized[crypto.RecoveryIDOffset] >= 27 {
		normalized[crypto.RecoveryIDOffset] -= 27
	}
	if normalized[crypto.RecoveryIDOffset] > 1 {
		return common.Address{}, fmt.Errorf("%w: bad recovery id", ErrInvalidSignature)
	}

	pub, err := crypto.SigToPub(accounts.TextHash(message), normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// SignedBy reports whether the credential's signature recovers to its
// declared owner.
func (c *Credential) SignedBy() (common.Address, bool) {
	signer, err := Verify(c.Claims, c.Signature)
	if err != nil || !common.IsHexAddress(c.OwnerAddress) {
		return signer, false
	}
	return signer, signer == common.HexToAddress(c.OwnerAddress)
}
