package settlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/base58"
)

const (
	signatureLength  = 64
	publicKeyLength  = 32
	checkpointLength = 32

	// Set in the first message byte of versioned instructions
	versionPrefix = 0x80
)

type Format int

const (
	FormatLegacy Format = iota
	FormatVersioned
)

func (self Format) String() string {
	if self == FormatVersioned {
		return "versioned"
	}
	return "legacy"
}

var (
	errNotVersioned       = errors.New("not a versioned instruction")
	errUnsupportedVersion = errors.New("unsupported instruction version")
)

// Unsigned ledger instruction produced by the pool.
// Only the parts needed to attach a checkpoint and signatures are decoded, the rest stays opaque.
type Instruction struct {
	Format  Format
	Version byte

	Signatures [][signatureLength]byte

	// Signed bytes
	Message []byte

	NumRequiredSignatures byte
	AccountKeys           [][publicKeyLength]byte

	// Position of the checkpoint within the message
	checkpointOffset int
}

// Tries the versioned format first, falls back to legacy
func DecodeInstruction(raw []byte) (out *Instruction, err error) {
	out, err = decode(raw, FormatVersioned)
	if err == nil {
		return
	}

	out, legacyErr := decode(raw, FormatLegacy)
	if legacyErr != nil {
		return nil, fmt.Errorf("%w: versioned: %v, legacy: %v", ErrInvalidInstruction, err, legacyErr)
	}
	return out, nil
}

func decode(raw []byte, format Format) (self *Instruction, err error) {
	self = &Instruction{Format: format}

	numSignatures, n, err := decodeCompactU16(raw)
	if err != nil {
		return nil, err
	}
	raw = raw[n:]

	if len(raw) < numSignatures*signatureLength {
		return nil, errors.New("signatures truncated")
	}
	self.Signatures = make([][signatureLength]byte, numSignatures)
	for i := range self.Signatures {
		copy(self.Signatures[i][:], raw[i*signatureLength:])
	}
	self.Message = append([]byte(nil), raw[numSignatures*signatureLength:]...)

	msg := self.Message
	offset := 0
	if len(msg) == 0 {
		return nil, errors.New("empty message")
	}

	switch format {
	case FormatVersioned:
		if msg[0]&versionPrefix == 0 {
			return nil, errNotVersioned
		}
		self.Version = msg[0] &^ versionPrefix
		if self.Version != 0 {
			return nil, errUnsupportedVersion
		}
		offset = 1
	case FormatLegacy:
		if msg[0]&versionPrefix != 0 {
			return nil, errors.New("versioned prefix in legacy instruction")
		}
	}

	// Header: required signatures, readonly signed, readonly unsigned
	if len(msg) < offset+3 {
		return nil, errors.New("header truncated")
	}
	self.NumRequiredSignatures = msg[offset]
	offset += 3

	numKeys, n, err := decodeCompactU16(msg[offset:])
	if err != nil {
		return nil, err
	}
	offset += n

	if len(msg) < offset+numKeys*publicKeyLength+checkpointLength {
		return nil, errors.New("account keys truncated")
	}
	self.AccountKeys = make([][publicKeyLength]byte, numKeys)
	for i := range self.AccountKeys {
		copy(self.AccountKeys[i][:], msg[offset+i*publicKeyLength:])
	}
	offset += numKeys * publicKeyLength

	self.checkpointOffset = offset

	if int(self.NumRequiredSignatures) > numKeys {
		return nil, errors.New("more required signatures than account keys")
	}
	if int(self.NumRequiredSignatures) != numSignatures {
		return nil, fmt.Errorf("expected %d signatures, got %d", self.NumRequiredSignatures, numSignatures)
	}

	return
}

func (self *Instruction) Checkpoint() (out [checkpointLength]byte) {
	copy(out[:], self.Message[self.checkpointOffset:])
	return
}

// Replaces the recent blockhash. Existing signatures become invalid and are cleared.
func (self *Instruction) SetCheckpoint(blockhash string) error {
	raw := base58.Decode(blockhash)
	if len(raw) != checkpointLength {
		return fmt.Errorf("%w: checkpoint length %d", ErrInvalidInstruction, len(raw))
	}
	copy(self.Message[self.checkpointOffset:], raw)

	for i := range self.Signatures {
		self.Signatures[i] = [signatureLength]byte{}
	}
	return nil
}

// Position of the key among the required signers
func (self *Instruction) SignerIndex(address string) (int, error) {
	key, err := PublicKey(address)
	if err != nil {
		return -1, err
	}
	for i := 0; i < int(self.NumRequiredSignatures); i++ {
		if self.AccountKeys[i] == key {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %s is not a required signer", ErrSignerMismatch, address)
}

func (self *Instruction) Sign(ctx context.Context, signer Signer) (err error) {
	idx, err := self.SignerIndex(signer.Address())
	if err != nil {
		return
	}

	signature, err := signer.SignTransaction(ctx, self.Message)
	if err != nil {
		return signerError(err)
	}
	if len(signature) != signatureLength {
		return fmt.Errorf("%w: signature length %d", ErrSignerRejected, len(signature))
	}

	copy(self.Signatures[idx][:], signature)
	return nil
}

// Signature of the fee payer identifies the instruction on the ledger
func (self *Instruction) Reference() string {
	if len(self.Signatures) == 0 {
		return ""
	}
	return base58.Encode(self.Signatures[0][:])
}

func (self *Instruction) Serialize() []byte {
	out := encodeCompactU16(len(self.Signatures))
	for _, signature := range self.Signatures {
		out = append(out, signature[:]...)
	}
	return append(out, self.Message...)
}

// Length prefix of ledger arrays: 7 bits per byte, at most 3 bytes
func decodeCompactU16(buf []byte) (value int, n int, err error) {
	for n < 3 {
		if n >= len(buf) {
			return 0, 0, errors.New("compact-u16 truncated")
		}
		b := buf[n]
		value |= int(b&0x7f) << (7 * n)
		n++
		if b&0x80 == 0 {
			if value > 0xffff {
				return 0, 0, errors.New("compact-u16 overflow")
			}
			return value, n, nil
		}
	}
	return 0, 0, errors.New("compact-u16 too long")
}

func encodeCompactU16(value int) (out []byte) {
	for {
		b := byte(value & 0x7f)
		value >>= 7
		if value == 0 {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

// Signer failures are rejections, unless the caller gave up
func signerError(err error) error {
	switch {
	case errors.Is(err, ErrSignerRejected),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return fmt.Errorf("%w: %w", ErrSignerRejected, err)
}
