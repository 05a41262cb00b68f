package settlement

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/base58"
)

// Signing capability held by the caller. The engine never stores keys.
type Signer interface {
	// Base58 encoded public key
	Address() string

	// Signs a serialized instruction message. Returns ErrSignerRejected if the user declines.
	SignTransaction(ctx context.Context, message []byte) ([]byte, error)

	// Signs an off-band authorization message. Returns ErrSignerRejected if the user declines.
	SignMessage(ctx context.Context, message []byte) ([]byte, error)
}

// Signs with a local ed25519 key
type KeySigner struct {
	key     ed25519.PrivateKey
	address string
}

func NewKeySigner(key ed25519.PrivateKey) (self *KeySigner) {
	self = new(KeySigner)
	self.key = key
	self.address = base58.Encode(key.Public().(ed25519.PublicKey))
	return
}

// Accepts a base58 encoded 64 byte secret key or a 32 byte seed
func NewKeySignerFromBase58(encoded string) (self *KeySigner, err error) {
	raw := base58.Decode(encoded)
	switch len(raw) {
	case ed25519.PrivateKeySize:
		return NewKeySigner(ed25519.PrivateKey(raw)), nil
	case ed25519.SeedSize:
		return NewKeySigner(ed25519.NewKeyFromSeed(raw)), nil
	}
	return nil, fmt.Errorf("invalid signer key length: %d", len(raw))
}

func (self *KeySigner) Address() string {
	return self.address
}

func (self *KeySigner) SignTransaction(ctx context.Context, message []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ed25519.Sign(self.key, message), nil
}

func (self *KeySigner) SignMessage(ctx context.Context, message []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ed25519.Sign(self.key, message), nil
}

// Decodes a base58 address into a public key
func PublicKey(address string) (out [32]byte, err error) {
	raw := base58.Decode(address)
	if len(raw) != len(out) {
		return out, errors.New("invalid address")
	}
	copy(out[:], raw)
	return
}
