package program

import (
	"bytes"
	"crypto/ed25519"
	"fmt"

	bin "github.com/gagliardetto/binary"

	"verification/registry"
)

// Transaction is a single signed instruction.
type Transaction struct {
	Signer      registry.Address
	Instruction Instruction
	Signature   [ed25519.SignatureSize]byte
}

// message is the signed portion of a transaction.
type message struct {
	Signer      registry.Address
	Instruction Instruction
}

// NewTransaction returns an unsigned transaction.
func NewTransaction(signer registry.Address, ix *Instruction) *Transaction {
	return &Transaction{Signer: signer, Instruction: *ix}
}

// Message returns the bytes covered by the signature.
func (tx *Transaction) Message() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := bin.NewBorshEncoder(buf).Encode(message{Signer: tx.Signer, Instruction: tx.Instruction}); err != nil {
		return nil, fmt.Errorf("failed to encode transaction message: %w", err)
	}
	return buf.Bytes(), nil
}

// Sign signs the message with key, whose public half must be the transaction signer.
func (tx *Transaction) Sign(key ed25519.PrivateKey) error {
	pub, ok := key.Public().(ed25519.PublicKey)
	if !ok || !bytes.Equal(pub, tx.Signer[:]) {
		return fmt.Errorf("Sign: key does not belong to signer %s", tx.Signer)
	}
	msg, err := tx.Message()
	if err != nil {
		return fmt.Errorf("Sign: %w", err)
	}
	copy(tx.Signature[:], ed25519.Sign(key, msg))
	return nil
}

// Verify checks the signature against the signer's public key.
func (tx *Transaction) Verify() error {
	msg, err := tx.Message()
	if err != nil {
		return err
	}
	if !ed25519.Verify(ed25519.PublicKey(tx.Signer[:]), msg, tx.Signature[:]) {
		return fmt.Errorf("signer %s: %w", tx.Signer, registry.ErrSignatureVerification)
	}
	return nil
}

// Encode serializes the whole transaction for relaying.
func (tx *Transaction) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := bin.NewBorshEncoder(buf).Encode(*tx); err != nil {
		return nil, fmt.Errorf("failed to encode transaction: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeTransaction parses bytes produced by Encode.
func DecodeTransaction(data []byte) (*Transaction, error) {
	var tx Transaction
	if err := decodeExact(data, &tx); err != nil {
		return nil, fmt.Errorf("failed to decode transaction: %w", err)
	}
	return &tx, nil
}

// SignTransaction builds and signs a transaction for ix with key.
func SignTransaction(key ed25519.PrivateKey, ix *Instruction) (*Transaction, error) {
	signer, err := registry.AddressFromBytes(key.Public().(ed25519.PublicKey))
	if err != nil {
		return nil, err
	}
	tx := NewTransaction(signer, ix)
	if err := tx.Sign(key); err != nil {
		return nil, err
	}
	return tx, nil
}
