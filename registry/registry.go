// Package registry implements the verification registry: deterministic record
// addressing, the event and entry record schemas, and the guarded state transitions
// that create and mutate them.
//
// An authority opens an event with InitializeEvent, wallet owners register entries
// with RegisterWallet, the authority flips each entry's validity with MarkValid and
// MarkInvalid, and CloseEvent stops further registrations. Authorization is a direct
// equality check between the signer and the authority stored in the event record.
package registry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/hyperledger/fabric/common/flogging"
)

var logger = flogging.MustGetLogger("verification.registry")

// Registry executes registry operations against a Store. It holds no state of its own,
// so one Registry may serve concurrent callers as long as the Store does.
type Registry struct {
	store     Store
	programID Address
}

// New returns a Registry whose records are namespaced under programID.
func New(store Store, programID Address) *Registry {
	return &Registry{store: store, programID: programID}
}

// ProgramID returns the namespace used for address derivation.
func (r *Registry) ProgramID() Address {
	return r.programID
}

// InitializeEvent creates the event record for eventID with signer as its authority.
func (r *Registry) InitializeEvent(ctx context.Context, signer Address, eventID string, maxWinners uint32, requirements []Requirement) (*Event, Address, error) {
	if err := ValidateEventInputs(eventID, requirements); err != nil {
		return nil, ZeroAddress, fmt.Errorf("InitializeEvent: %w", err)
	}
	addr, bump, err := EventAddress(r.programID, eventID)
	if err != nil {
		return nil, ZeroAddress, fmt.Errorf("InitializeEvent: failed to derive address for event '%s': %w", eventID, err)
	}
	if len(requirements) == 0 {
		requirements = nil
	}

	event := &Event{
		Authority:    signer,
		EventID:      eventID,
		MaxWinners:   maxWinners,
		Requirements: requirements,
		Active:       true,
		Bump:         bump,
	}
	data, err := MarshalEvent(event)
	if err != nil {
		return nil, ZeroAddress, fmt.Errorf("InitializeEvent: %w", err)
	}
	if err := r.store.Create(ctx, addr, data); err != nil {
		return nil, ZeroAddress, fmt.Errorf("InitializeEvent: event '%s' at %s: %w", eventID, addr, err)
	}

	logger.Infof("Event '%s' initialized at %s by authority %s (maxWinners %d, %d requirements)", eventID, addr, signer, maxWinners, len(requirements))
	return event, addr, nil
}

// RegisterWallet creates the entry record binding signer to the event at eventAddr.
func (r *Registry) RegisterWallet(ctx context.Context, signer, eventAddr Address) (*Entry, Address, error) {
	event, err := r.Event(ctx, eventAddr)
	if err != nil {
		return nil, ZeroAddress, fmt.Errorf("RegisterWallet: %w", err)
	}
	if !event.Active {
		return nil, ZeroAddress, fmt.Errorf("RegisterWallet: event '%s' at %s: %w", event.EventID, eventAddr, ErrEventNotActive)
	}

	addr, _, err := EntryAddress(r.programID, eventAddr, signer)
	if err != nil {
		return nil, ZeroAddress, fmt.Errorf("RegisterWallet: failed to derive entry address: %w", err)
	}
	entry := &Entry{
		Event:    eventAddr,
		Wallet:   signer,
		Verified: true,
		Valid:    false,
	}
	data, err := MarshalEntry(entry)
	if err != nil {
		return nil, ZeroAddress, fmt.Errorf("RegisterWallet: %w", err)
	}
	if err := r.store.Create(ctx, addr, data); err != nil {
		if errors.Is(err, ErrRecordAlreadyExists) {
			return nil, ZeroAddress, fmt.Errorf("RegisterWallet: wallet %s on event '%s': %w", signer, event.EventID, walletAlreadyRegistered(addr))
		}
		return nil, ZeroAddress, fmt.Errorf("RegisterWallet: failed to create entry %s: %w", addr, err)
	}

	logger.Infof("Wallet %s registered for event '%s' (entry %s)", signer, event.EventID, addr)
	return entry, addr, nil
}

// MarkValid sets the entry's validity flag. Only the event authority may call it.
func (r *Registry) MarkValid(ctx context.Context, signer, eventAddr, entryAddr Address) (*Entry, error) {
	entry, err := r.setValidity(ctx, signer, eventAddr, entryAddr, true)
	if err != nil {
		return nil, fmt.Errorf("MarkValid: %w", err)
	}
	return entry, nil
}

// MarkInvalid clears the entry's validity flag. Only the event authority may call it.
func (r *Registry) MarkInvalid(ctx context.Context, signer, eventAddr, entryAddr Address) (*Entry, error) {
	entry, err := r.setValidity(ctx, signer, eventAddr, entryAddr, false)
	if err != nil {
		return nil, fmt.Errorf("MarkInvalid: %w", err)
	}
	return entry, nil
}

// setValidity is shared by MarkValid and MarkInvalid. Closed events still accept it so
// entries can be re-verified after registration ends.
func (r *Registry) setValidity(ctx context.Context, signer, eventAddr, entryAddr Address, valid bool) (*Entry, error) {
	event, err := r.Event(ctx, eventAddr)
	if err != nil {
		return nil, err
	}
	if err := requireAuthority(event, signer); err != nil {
		return nil, err
	}
	entry, err := r.Entry(ctx, entryAddr)
	if err != nil {
		return nil, err
	}
	if entry.Event != eventAddr {
		return nil, fmt.Errorf("entry %s references event %s, not %s: %w", entryAddr, entry.Event, eventAddr, ErrEntryEventMismatch)
	}

	if entry.Valid == valid {
		logger.Debugf("Entry %s already has valid=%t; no change", entryAddr, valid)
		return entry, nil
	}
	entry.Valid = valid
	data, err := MarshalEntry(entry)
	if err != nil {
		return nil, err
	}
	if err := r.store.Save(ctx, entryAddr, data); err != nil {
		return nil, fmt.Errorf("failed to save entry %s: %w", entryAddr, err)
	}

	logger.Infof("Entry %s (wallet %s, event '%s') marked valid=%t by %s", entryAddr, entry.Wallet, event.EventID, valid, signer)
	return entry, nil
}

// CloseEvent stops new registrations on the event. Closing a closed event succeeds.
func (r *Registry) CloseEvent(ctx context.Context, signer, eventAddr Address) (*Event, error) {
	event, err := r.Event(ctx, eventAddr)
	if err != nil {
		return nil, fmt.Errorf("CloseEvent: %w", err)
	}
	if err := requireAuthority(event, signer); err != nil {
		return nil, fmt.Errorf("CloseEvent: %w", err)
	}
	if !event.Active {
		logger.Debugf("Event '%s' at %s already closed", event.EventID, eventAddr)
		return event, nil
	}

	event.Active = false
	data, err := MarshalEvent(event)
	if err != nil {
		return nil, fmt.Errorf("CloseEvent: %w", err)
	}
	if err := r.store.Save(ctx, eventAddr, data); err != nil {
		return nil, fmt.Errorf("CloseEvent: failed to save event %s: %w", eventAddr, err)
	}

	logger.Infof("Event '%s' at %s closed by %s", event.EventID, eventAddr, signer)
	return event, nil
}

func requireAuthority(event *Event, signer Address) error {
	if event.Authority != signer {
		return fmt.Errorf("signer %s is not the authority of event '%s': %w", signer, event.EventID, ErrInvalidAuthority)
	}
	return nil
}

// Event loads the event record at addr.
func (r *Registry) Event(ctx context.Context, addr Address) (*Event, error) {
	data, err := r.store.Load(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("event %s: %w", addr, err)
	}
	event, err := UnmarshalEvent(data)
	if err != nil {
		return nil, fmt.Errorf("event %s: %w", addr, err)
	}
	return event, nil
}

// Entry loads the entry record at addr.
func (r *Registry) Entry(ctx context.Context, addr Address) (*Entry, error) {
	data, err := r.store.Load(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("entry %s: %w", addr, err)
	}
	entry, err := UnmarshalEntry(data)
	if err != nil {
		return nil, fmt.Errorf("entry %s: %w", addr, err)
	}
	return entry, nil
}

// EventByID derives the event address for eventID and loads it.
func (r *Registry) EventByID(ctx context.Context, eventID string) (*Event, Address, error) {
	addr, _, err := EventAddress(r.programID, eventID)
	if err != nil {
		return nil, ZeroAddress, err
	}
	event, err := r.Event(ctx, addr)
	if err != nil {
		return nil, ZeroAddress, err
	}
	return event, addr, nil
}

// EntryFor derives the entry address for (eventAddr, wallet) and loads it.
func (r *Registry) EntryFor(ctx context.Context, eventAddr, wallet Address) (*Entry, Address, error) {
	addr, _, err := EntryAddress(r.programID, eventAddr, wallet)
	if err != nil {
		return nil, ZeroAddress, err
	}
	entry, err := r.Entry(ctx, addr)
	if err != nil {
		return nil, ZeroAddress, err
	}
	return entry, addr, nil
}

// EntryRecord pairs an entry with its address.
type EntryRecord struct {
	Address Address `json:"address"`
	Entry
}

// Entries lists every entry registered against eventAddr, ordered by wallet. The store
// must implement EventScanner or Scanner.
func (r *Registry) Entries(ctx context.Context, eventAddr Address) ([]EntryRecord, error) {
	var scan func(fn func(Address, []byte) error) error
	switch st := r.store.(type) {
	case EventScanner:
		scan = func(fn func(Address, []byte) error) error { return st.ScanEvent(ctx, eventAddr, fn) }
	case Scanner:
		scan = func(fn func(Address, []byte) error) error { return st.Scan(ctx, fn) }
	default:
		return nil, fmt.Errorf("Entries: store %T cannot enumerate records", r.store)
	}
	entries := []EntryRecord{}
	err := scan(func(addr Address, data []byte) error {
		if KindOf(data) != KindEntry {
			return nil
		}
		entry, err := UnmarshalEntry(data)
		if err != nil {
			logger.Warningf("Entries: skipping undecodable entry %s: %v", addr, err)
			return nil
		}
		if entry.Event == eventAddr {
			entries = append(entries, EntryRecord{Address: addr, Entry: *entry})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("Entries: failed to scan records: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare(entries[i].Wallet[:], entries[j].Wallet[:]) < 0
	})
	return entries, nil
}
