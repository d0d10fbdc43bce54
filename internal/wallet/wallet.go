// Package wallet models the holder's signing capability. Key custody stays
// with the wallet; this package only sees addresses and signatures.
package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrSignatureDeclined   = errors.New("wallet: signature declined")
	ErrNoSigningCapability = errors.New("wallet: no signing capability")
)

// Signer is bound to a single address and produces EIP-191 personal_sign
// signatures (65 bytes, recovery id 27/28). It may decline.
type Signer interface {
	Address() common.Address
	SignMessage(ctx context.Context, message []byte) ([]byte, error)
}

// KeySigner signs with a local private key. Used by the station operator,
// tooling and tests.
type KeySigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

func NewKeySigner(key *ecdsa.PrivateKey) *KeySigner {
	return &KeySigner{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}
}

// KeySignerFromHex parses a hex private key (with or without 0x).
func KeySignerFromHex(hexKey string) (*KeySigner, error) {
	hexKey = strings.TrimSpace(hexKey)
	if len(hexKey) > 1 && (hexKey[:2] == "0x" || hexKey[:2] == "0X") {
		hexKey = hexKey[2:]
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("wallet: invalid private key: %w", err)
	}
	return NewKeySigner(key), nil
}

// GenerateKeySigner creates a signer with a fresh random key.
func GenerateKeySigner() (*KeySigner, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	return NewKeySigner(key), nil
}

func (s *KeySigner) Address() common.Address { return s.address }

func (s *KeySigner) PrivateKey() *ecdsa.PrivateKey { return s.key }

func (s *KeySigner) SignMessage(ctx context.Context, message []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sig, err := crypto.Sign(accounts.TextHash(message), s.key)
	if err != nil {
		return nil, err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

// Presigned replays a signature the holder's wallet produced client-side.
// It only signs the exact message it was created for; anything else is
// declined. An empty signature means the client had no wallet to sign with.
type Presigned struct {
	address   common.Address
	message   []byte
	signature []byte
}

func NewPresigned(address common.Address, message, signature []byte) *Presigned {
	return &Presigned{address: address, message: message, signature: signature}
}

func (p *Presigned) Address() common.Address { return p.address }

func (p *Presigned) SignMessage(_ context.Context, message []byte) ([]byte, error) {
	if len(p.signature) == 0 {
		return nil, ErrNoSigningCapability
	}
	if string(message) != string(p.message) {
		return nil, ErrSignatureDeclined
	}
	out := make([]byte, len(p.signature))
	copy(out, p.signature)
	return out, nil
}
