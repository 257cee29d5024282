package program

import (
	"context"
	"fmt"

	"github.com/hyperledger/fabric/common/flogging"

	"verification/registry"
)

var logger = flogging.MustGetLogger("verification.program")

// Result describes a processed transaction.
type Result struct {
	Op     string           `json:"op"`
	Signer registry.Address `json:"signer"`
	Event  registry.Address `json:"event"`
	// Entry is zero for event-only operations.
	Entry       registry.Address `json:"entry"`
	EventRecord *registry.Event  `json:"eventRecord,omitempty"`
	EntryRecord *registry.Entry  `json:"entryRecord,omitempty"`
}

// Processor verifies signed transactions and runs them on a registry.
type Processor struct {
	registry *registry.Registry
}

func NewProcessor(reg *registry.Registry) *Processor {
	return &Processor{registry: reg}
}

// Process verifies tx, validates its account list and executes it. Nothing is written
// unless every check passes.
func (p *Processor) Process(ctx context.Context, tx *Transaction) (*Result, error) {
	if err := tx.Verify(); err != nil {
		return nil, fmt.Errorf("Process: %w", err)
	}
	ix := &tx.Instruction
	if err := checkAccounts(ix, tx.Signer); err != nil {
		return nil, fmt.Errorf("Process: %w", err)
	}
	logger.Debugf("Processing %s signed by %s", ix.Op.Name(), tx.Signer)

	var (
		res *Result
		err error
	)
	switch ix.Op {
	case OpInitializeEvent:
		res, err = p.initializeEvent(ctx, tx.Signer, ix)
	case OpRegisterWallet:
		res, err = p.registerWallet(ctx, tx.Signer, ix)
	case OpMarkValid:
		res, err = p.mark(ctx, tx.Signer, ix, true)
	case OpMarkInvalid:
		res, err = p.mark(ctx, tx.Signer, ix, false)
	case OpCloseEvent:
		res, err = p.closeEvent(ctx, tx.Signer, ix)
	default:
		err = registry.ErrUnknownInstruction
	}
	if err != nil {
		return nil, fmt.Errorf("Process %s: %w", ix.Op.Name(), err)
	}
	return res, nil
}

func (p *Processor) initializeEvent(ctx context.Context, signer registry.Address, ix *Instruction) (*Result, error) {
	var args initializeEventArgs
	if err := decodeArgs(ix.Data, &args); err != nil {
		return nil, err
	}
	if err := registry.ValidateEventInputs(args.EventID, args.Requirements); err != nil {
		return nil, err
	}
	want, _, err := registry.EventAddress(p.registry.ProgramID(), args.EventID)
	if err != nil {
		return nil, err
	}
	if ix.Accounts[1].Address != want {
		return nil, fmt.Errorf("event account %s, derived %s: %w", ix.Accounts[1].Address, want, registry.ErrAddressMismatch)
	}

	event, addr, err := p.registry.InitializeEvent(ctx, signer, args.EventID, args.MaxWinners, args.Requirements)
	if err != nil {
		return nil, err
	}
	return &Result{Op: OpNameInitializeEvent, Signer: signer, Event: addr, EventRecord: event}, nil
}

func (p *Processor) registerWallet(ctx context.Context, signer registry.Address, ix *Instruction) (*Result, error) {
	var args registerWalletArgs
	if err := decodeArgs(ix.Data, &args); err != nil {
		return nil, err
	}
	eventAddr := ix.Accounts[1].Address
	wantEvent, _, err := registry.EventAddress(p.registry.ProgramID(), args.EventID)
	if err != nil {
		return nil, err
	}
	if eventAddr != wantEvent {
		return nil, fmt.Errorf("event account %s, derived %s for '%s': %w", eventAddr, wantEvent, args.EventID, registry.ErrAddressMismatch)
	}
	wantEntry, _, err := registry.EntryAddress(p.registry.ProgramID(), eventAddr, signer)
	if err != nil {
		return nil, err
	}
	if ix.Accounts[2].Address != wantEntry {
		return nil, fmt.Errorf("entry account %s, derived %s: %w", ix.Accounts[2].Address, wantEntry, registry.ErrAddressMismatch)
	}

	entry, addr, err := p.registry.RegisterWallet(ctx, signer, eventAddr)
	if err != nil {
		return nil, err
	}
	return &Result{Op: OpNameRegisterWallet, Signer: signer, Event: eventAddr, Entry: addr, EntryRecord: entry}, nil
}

func (p *Processor) mark(ctx context.Context, signer registry.Address, ix *Instruction, valid bool) (*Result, error) {
	eventAddr, entryAddr := ix.Accounts[1].Address, ix.Accounts[2].Address
	var (
		entry *registry.Entry
		err   error
		op    = OpNameMarkInvalid
	)
	if valid {
		op = OpNameMarkValid
		entry, err = p.registry.MarkValid(ctx, signer, eventAddr, entryAddr)
	} else {
		entry, err = p.registry.MarkInvalid(ctx, signer, eventAddr, entryAddr)
	}
	if err != nil {
		return nil, err
	}
	return &Result{Op: op, Signer: signer, Event: eventAddr, Entry: entryAddr, EntryRecord: entry}, nil
}

func (p *Processor) closeEvent(ctx context.Context, signer registry.Address, ix *Instruction) (*Result, error) {
	eventAddr := ix.Accounts[1].Address
	event, err := p.registry.CloseEvent(ctx, signer, eventAddr)
	if err != nil {
		return nil, err
	}
	return &Result{Op: OpNameCloseEvent, Signer: signer, Event: eventAddr, EventRecord: event}, nil
}
