package registry

import (
	"crypto/sha256"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// AddressLength is the size in bytes of every identity handle and record address.
const AddressLength = 32

// Seed tags that namespace the two record types.
const (
	eventSeed = "event"
	entrySeed = "entry"
)

// pdaMarker is appended to every derivation so that derived addresses can never be
// produced by hashing arbitrary user data the same way.
var pdaMarker = []byte("ProgramDerivedAddress")

// Address is a 32-byte identity handle or record address.
type Address [AddressLength]byte

// ZeroAddress is the all-zero address. It is never a valid derived address.
var ZeroAddress Address

// DefaultProgramID namespaces records when no program ID is configured.
var DefaultProgramID = Address(sha256.Sum256([]byte("verification-registry")))

// ParseAddress decodes a base58 address.
func ParseAddress(s string) (Address, error) {
	var a Address
	raw, err := base58.Decode(s)
	if err != nil {
		return a, fmt.Errorf("invalid base58 address '%s': %w", s, err)
	}
	if len(raw) != AddressLength {
		return a, fmt.Errorf("invalid address '%s': decoded length %d, expected %d", s, len(raw), AddressLength)
	}
	copy(a[:], raw)
	return a, nil
}

// AddressFromBytes copies a 32-byte slice into an Address.
func AddressFromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != AddressLength {
		return a, fmt.Errorf("invalid address length %d, expected %d", len(b), AddressLength)
	}
	copy(a[:], b)
	return a, nil
}

func (a Address) String() string {
	return base58.Encode(a[:])
}

func (a Address) Bytes() []byte {
	return a[:]
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// IsOnCurve reports whether the address decodes as a valid ed25519 point, i.e. whether
// some private key could control it.
func IsOnCurve(a Address) bool {
	_, err := new(edwards25519.Point).SetBytes(a[:])
	return err == nil
}

// CreateProgramAddress hashes the seeds, bump and program ID into an address. It fails
// with ErrInvalidSeeds when the result lies on the ed25519 curve.
func CreateProgramAddress(seeds [][]byte, bump uint8, programID Address) (Address, error) {
	h := sha256.New()
	for _, seed := range seeds {
		h.Write(seed)
	}
	h.Write([]byte{bump})
	h.Write(programID[:])
	h.Write(pdaMarker)

	var addr Address
	copy(addr[:], h.Sum(nil))
	if IsOnCurve(addr) {
		return ZeroAddress, ErrInvalidSeeds
	}
	return addr, nil
}

// FindProgramAddress searches bumps from 255 down to 0 and returns the first off-curve
// address together with the bump that produced it.
func FindProgramAddress(seeds [][]byte, programID Address) (Address, uint8, error) {
	for bump := 255; bump >= 0; bump-- {
		addr, err := CreateProgramAddress(seeds, uint8(bump), programID)
		if err == nil {
			return addr, uint8(bump), nil
		}
	}
	return ZeroAddress, 0, ErrInvalidSeeds
}

// EventAddress derives the canonical address of the event record for eventID.
func EventAddress(programID Address, eventID string) (Address, uint8, error) {
	return FindProgramAddress(eventSeeds(eventID), programID)
}

// EntryAddress derives the canonical address of the entry record for (event, wallet).
func EntryAddress(programID, event, wallet Address) (Address, uint8, error) {
	return FindProgramAddress(entrySeeds(event, wallet), programID)
}

func eventSeeds(eventID string) [][]byte {
	return [][]byte{[]byte(eventSeed), []byte(eventID)}
}

func entrySeeds(event, wallet Address) [][]byte {
	return [][]byte{[]byte(entrySeed), event.Bytes(), wallet.Bytes()}
}
