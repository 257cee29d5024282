// Package program is the signed-transaction surface of the registry. Callers build an
// Instruction naming the operation and the records it touches, sign it as a Transaction
// with their ed25519 key, and hand it to a Processor, which checks the account list
// against the operation before running it on a registry.Registry.
package program

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	bin "github.com/gagliardetto/binary"

	"verification/registry"
)

// Op is the 8-byte operation identifier at the head of every instruction.
type Op [8]byte

// Operation names as they appear on the wire and in results.
const (
	OpNameInitializeEvent = "initialize_event"
	OpNameRegisterWallet  = "register_wallet"
	OpNameMarkValid       = "mark_valid"
	OpNameMarkInvalid     = "mark_invalid"
	OpNameCloseEvent      = "close_event"
)

var (
	OpInitializeEvent = opFor(OpNameInitializeEvent)
	OpRegisterWallet  = opFor(OpNameRegisterWallet)
	OpMarkValid       = opFor(OpNameMarkValid)
	OpMarkInvalid     = opFor(OpNameMarkInvalid)
	OpCloseEvent      = opFor(OpNameCloseEvent)
)

var opNames = map[Op]string{
	OpInitializeEvent: OpNameInitializeEvent,
	OpRegisterWallet:  OpNameRegisterWallet,
	OpMarkValid:       OpNameMarkValid,
	OpMarkInvalid:     OpNameMarkInvalid,
	OpCloseEvent:      OpNameCloseEvent,
}

func opFor(name string) Op {
	var op Op
	sum := sha256.Sum256([]byte("global:" + name))
	copy(op[:], sum[:len(op)])
	return op
}

// Name returns the operation name, or "" for unknown identifiers.
func (op Op) Name() string {
	return opNames[op]
}

// OpByName looks up an operation identifier.
func OpByName(name string) (Op, bool) {
	for op, n := range opNames {
		if n == name {
			return op, true
		}
	}
	return Op{}, false
}

// AccountMeta names a record an instruction touches and how.
type AccountMeta struct {
	Address  registry.Address
	Signer   bool
	Writable bool
	// Init marks a record the instruction allocates; it must not exist yet.
	Init bool
}

// Instruction is one operation invocation.
type Instruction struct {
	Op       Op
	Accounts []AccountMeta
	Data     []byte
}

type initializeEventArgs struct {
	EventID      string
	MaxWinners   uint32
	Requirements []registry.Requirement
}

type registerWalletArgs struct {
	EventID string
}

func encodeArgs(v interface{}) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := bin.NewBorshEncoder(buf).Encode(v); err != nil {
		return nil, fmt.Errorf("failed to encode instruction data: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeArgs(data []byte, v interface{}) error {
	if err := decodeExact(data, v); err != nil {
		return fmt.Errorf("failed to decode instruction data: %w", err)
	}
	return nil
}

// decodeExact decodes v from data and rejects any bytes left over.
func decodeExact(data []byte, v interface{}) error {
	dec := bin.NewBorshDecoder(data)
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.HasRemaining() {
		return fmt.Errorf("%d trailing bytes after %d", dec.Remaining(), dec.Position())
	}
	return nil
}

// NewInitializeEvent builds an initialize_event instruction. The event record address is
// derived from eventID under programID.
func NewInitializeEvent(programID, authority registry.Address, eventID string, maxWinners uint32, requirements []registry.Requirement) (*Instruction, error) {
	eventAddr, _, err := registry.EventAddress(programID, eventID)
	if err != nil {
		return nil, fmt.Errorf("NewInitializeEvent: %w", err)
	}
	data, err := encodeArgs(initializeEventArgs{EventID: eventID, MaxWinners: maxWinners, Requirements: requirements})
	if err != nil {
		return nil, fmt.Errorf("NewInitializeEvent: %w", err)
	}
	return &Instruction{
		Op: OpInitializeEvent,
		Accounts: []AccountMeta{
			{Address: authority, Signer: true, Writable: true},
			{Address: eventAddr, Writable: true, Init: true},
		},
		Data: data,
	}, nil
}

// NewRegisterWallet builds a register_wallet instruction for wallet on the event named
// eventID.
func NewRegisterWallet(programID, wallet registry.Address, eventID string) (*Instruction, error) {
	eventAddr, _, err := registry.EventAddress(programID, eventID)
	if err != nil {
		return nil, fmt.Errorf("NewRegisterWallet: %w", err)
	}
	entryAddr, _, err := registry.EntryAddress(programID, eventAddr, wallet)
	if err != nil {
		return nil, fmt.Errorf("NewRegisterWallet: %w", err)
	}
	data, err := encodeArgs(registerWalletArgs{EventID: eventID})
	if err != nil {
		return nil, fmt.Errorf("NewRegisterWallet: %w", err)
	}
	return &Instruction{
		Op: OpRegisterWallet,
		Accounts: []AccountMeta{
			{Address: wallet, Signer: true, Writable: true},
			{Address: eventAddr, Writable: true},
			{Address: entryAddr, Writable: true, Init: true},
		},
		Data: data,
	}, nil
}

// NewMarkValid builds a mark_valid instruction.
func NewMarkValid(authority, event, entry registry.Address) *Instruction {
	return newMark(OpMarkValid, authority, event, entry)
}

// NewMarkInvalid builds a mark_invalid instruction.
func NewMarkInvalid(authority, event, entry registry.Address) *Instruction {
	return newMark(OpMarkInvalid, authority, event, entry)
}

func newMark(op Op, authority, event, entry registry.Address) *Instruction {
	return &Instruction{
		Op: op,
		Accounts: []AccountMeta{
			{Address: authority, Signer: true, Writable: true},
			{Address: event},
			{Address: entry, Writable: true},
		},
	}
}

// NewCloseEvent builds a close_event instruction.
func NewCloseEvent(authority, event registry.Address) *Instruction {
	return &Instruction{
		Op: OpCloseEvent,
		Accounts: []AccountMeta{
			{Address: authority, Signer: true},
			{Address: event, Writable: true},
		},
	}
}

// accountRule is the expected shape of one account slot.
type accountRule struct {
	name     string
	signer   bool
	writable bool
	init     bool
}

var accountRules = map[Op][]accountRule{
	OpInitializeEvent: {
		{name: "authority", signer: true, writable: true},
		{name: "event", writable: true, init: true},
	},
	OpRegisterWallet: {
		{name: "wallet", signer: true, writable: true},
		{name: "event", writable: true},
		{name: "entry", writable: true, init: true},
	},
	OpMarkValid: {
		{name: "authority", signer: true, writable: true},
		{name: "event"},
		{name: "entry", writable: true},
	},
	OpMarkInvalid: {
		{name: "authority", signer: true, writable: true},
		{name: "event"},
		{name: "entry", writable: true},
	},
	OpCloseEvent: {
		{name: "authority", signer: true},
		{name: "event", writable: true},
	},
}

// checkAccounts validates the account list against the operation's rules. The signer
// slot is always first and must carry the transaction signer.
func checkAccounts(ix *Instruction, signer registry.Address) error {
	rules, ok := accountRules[ix.Op]
	if !ok {
		return fmt.Errorf("op %x: %w", ix.Op[:], registry.ErrUnknownInstruction)
	}
	if len(ix.Accounts) != len(rules) {
		return fmt.Errorf("%s expects %d accounts, got %d: %w", ix.Op.Name(), len(rules), len(ix.Accounts), registry.ErrAccountMetaMismatch)
	}
	for i, rule := range rules {
		meta := ix.Accounts[i]
		if meta.Signer != rule.signer || meta.Writable != rule.writable || meta.Init != rule.init {
			return fmt.Errorf("%s account %d (%s) has signer=%t writable=%t init=%t: %w",
				ix.Op.Name(), i, rule.name, meta.Signer, meta.Writable, meta.Init, registry.ErrAccountMetaMismatch)
		}
	}
	if ix.Accounts[0].Address != signer {
		return fmt.Errorf("%s %s account %s is not the transaction signer %s: %w",
			ix.Op.Name(), rules[0].name, ix.Accounts[0].Address, signer, registry.ErrAccountMetaMismatch)
	}
	return nil
}
