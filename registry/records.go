package registry

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	bin "github.com/gagliardetto/binary"
)

// Byte budgets of the variable-length event fields.
const (
	MaxEventIDLen      = 50
	MaxRequirementsLen = 256
)

const discriminatorLen = 8

// Fixed persisted sizes. Records are allocated at these sizes and never grow.
const (
	EventSpace = discriminatorLen + AddressLength + (4 + MaxEventIDLen) + 4 + (4 + MaxRequirementsLen) + 1 + 1
	EntrySpace = discriminatorLen + AddressLength + AddressLength + 1 + 1
)

// RecordKind identifies what a stored record holds.
type RecordKind uint8

const (
	KindUnknown RecordKind = iota
	KindEvent
	KindEntry
)

func (k RecordKind) String() string {
	switch k {
	case KindEvent:
		return "Event"
	case KindEntry:
		return "Entry"
	default:
		return "Unknown"
	}
}

var (
	eventDiscriminator = discriminator("account:Event")
	entryDiscriminator = discriminator("account:Entry")
)

func discriminator(name string) [discriminatorLen]byte {
	var d [discriminatorLen]byte
	sum := sha256.Sum256([]byte(name))
	copy(d[:], sum[:discriminatorLen])
	return d
}

// Requirement is an opaque eligibility descriptor. It is stored and returned verbatim.
type Requirement struct {
	RequirementType string `json:"requirementType" yaml:"type"`
	Config          string `json:"config" yaml:"config"`
}

// Event is the per-event configuration and lifecycle record.
type Event struct {
	Authority    Address       `json:"authority"`
	EventID      string        `json:"eventId"`
	MaxWinners   uint32        `json:"maxWinners"` // advisory only
	Requirements []Requirement `json:"requirements"`
	Active       bool          `json:"active"`
	Bump         uint8         `json:"bump"`
}

// Entry is the per-(event, wallet) registration and verification outcome.
type Entry struct {
	Event    Address `json:"event"`
	Wallet   Address `json:"wallet"`
	Verified bool    `json:"verified"`
	Valid    bool    `json:"valid"`
}

// RequirementsSize returns the serialized size of the requirement list body, excluding
// its 4-byte count prefix.
func RequirementsSize(reqs []Requirement) int {
	n := 0
	for _, r := range reqs {
		n += 4 + len(r.RequirementType) + 4 + len(r.Config)
	}
	return n
}

// ValidateEventInputs checks the byte budgets of an event's variable-length fields.
func ValidateEventInputs(eventID string, reqs []Requirement) error {
	if len(eventID) > MaxEventIDLen {
		return fmt.Errorf("event_id is %d bytes, max %d: %w", len(eventID), MaxEventIDLen, ErrSerializedSizeExceeded)
	}
	if size := RequirementsSize(reqs); size > MaxRequirementsLen {
		return fmt.Errorf("requirements serialize to %d bytes, max %d: %w", size, MaxRequirementsLen, ErrSerializedSizeExceeded)
	}
	return nil
}

// KindOf inspects the discriminator of a stored record.
func KindOf(data []byte) RecordKind {
	if len(data) < discriminatorLen {
		return KindUnknown
	}
	switch {
	case bytes.Equal(data[:discriminatorLen], eventDiscriminator[:]):
		return KindEvent
	case bytes.Equal(data[:discriminatorLen], entryDiscriminator[:]):
		return KindEntry
	default:
		return KindUnknown
	}
}

// MarshalEvent encodes an event into its fixed-size persisted form.
func MarshalEvent(e *Event) ([]byte, error) {
	if err := ValidateEventInputs(e.EventID, e.Requirements); err != nil {
		return nil, err
	}
	return marshalRecord(eventDiscriminator, *e, EventSpace)
}

// MarshalEntry encodes an entry into its fixed-size persisted form.
func MarshalEntry(e *Entry) ([]byte, error) {
	return marshalRecord(entryDiscriminator, *e, EntrySpace)
}

// UnmarshalEvent decodes a persisted event record.
func UnmarshalEvent(data []byte) (*Event, error) {
	if kind := KindOf(data); kind != KindEvent {
		return nil, fmt.Errorf("expected Event, found %s: %w", kind, ErrRecordTypeMismatch)
	}
	var e Event
	if err := bin.NewBorshDecoder(data[discriminatorLen:]).Decode(&e); err != nil {
		return nil, fmt.Errorf("failed to decode event record: %w", err)
	}
	if len(e.Requirements) == 0 {
		e.Requirements = nil
	}
	return &e, nil
}

// UnmarshalEntry decodes a persisted entry record.
func UnmarshalEntry(data []byte) (*Entry, error) {
	if kind := KindOf(data); kind != KindEntry {
		return nil, fmt.Errorf("expected Entry, found %s: %w", kind, ErrRecordTypeMismatch)
	}
	var e Entry
	if err := bin.NewBorshDecoder(data[discriminatorLen:]).Decode(&e); err != nil {
		return nil, fmt.Errorf("failed to decode entry record: %w", err)
	}
	return &e, nil
}

func marshalRecord(disc [discriminatorLen]byte, v interface{}, space int) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Write(disc[:])
	if err := bin.NewBorshEncoder(buf).Encode(v); err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	if buf.Len() > space {
		return nil, fmt.Errorf("record encodes to %d bytes, space is %d: %w", buf.Len(), space, ErrSerializedSizeExceeded)
	}
	out := make([]byte, space)
	copy(out, buf.Bytes())
	return out, nil
}
