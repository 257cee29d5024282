package registry

import (
	"errors"
	"fmt"
)

// Error is a named registry failure. Every rejected operation surfaces exactly one of
// the sentinels below, possibly wrapped with context.
type Error struct {
	Code uint32
	Name string
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Name, e.Msg)
}

var (
	ErrEventNotActive          = &Error{Code: 6000, Name: "EventNotActive", Msg: "event is not active"}
	ErrWalletAlreadyRegistered = &Error{Code: 6001, Name: "WalletAlreadyRegistered", Msg: "wallet already registered"}
	ErrInvalidAuthority        = &Error{Code: 6002, Name: "InvalidAuthority", Msg: "invalid authority"}
	ErrRecordAlreadyExists     = &Error{Code: 6003, Name: "RecordAlreadyExists", Msg: "record already exists at address"}
	ErrSerializedSizeExceeded  = &Error{Code: 6004, Name: "SerializedSizeExceeded", Msg: "serialized size exceeds the record budget"}
	ErrEntryEventMismatch      = &Error{Code: 6005, Name: "EntryEventMismatch", Msg: "entry does not belong to event"}
	ErrRecordNotFound          = &Error{Code: 6006, Name: "RecordNotFound", Msg: "record does not exist"}
	ErrRecordTypeMismatch      = &Error{Code: 6007, Name: "RecordTypeMismatch", Msg: "record holds a different record type"}
	ErrAddressMismatch         = &Error{Code: 6008, Name: "AddressMismatch", Msg: "address does not match derived address"}
	ErrInvalidSeeds            = &Error{Code: 6009, Name: "InvalidSeeds", Msg: "no off-curve address for seeds"}
	ErrAccountMetaMismatch     = &Error{Code: 6010, Name: "AccountMetaMismatch", Msg: "instruction accounts do not match operation"}
	ErrSignatureVerification   = &Error{Code: 6011, Name: "SignatureVerificationFailed", Msg: "transaction signature is invalid"}
	ErrUnknownInstruction      = &Error{Code: 6012, Name: "UnknownInstruction", Msg: "unknown instruction"}
)

var allErrors = []*Error{
	ErrEventNotActive,
	ErrWalletAlreadyRegistered,
	ErrInvalidAuthority,
	ErrRecordAlreadyExists,
	ErrSerializedSizeExceeded,
	ErrEntryEventMismatch,
	ErrRecordNotFound,
	ErrRecordTypeMismatch,
	ErrAddressMismatch,
	ErrInvalidSeeds,
	ErrAccountMetaMismatch,
	ErrSignatureVerification,
	ErrUnknownInstruction,
}

// ErrorByName returns the sentinel with the given name.
func ErrorByName(name string) (*Error, bool) {
	for _, e := range allErrors {
		if e.Name == name {
			return e, true
		}
	}
	return nil, false
}

// NameOf returns the name of the first registry error in err's chain, or "" if none.
func NameOf(err error) string {
	var re *Error
	if errors.As(err, &re) {
		return re.Name
	}
	return ""
}

// CodeOf returns the code of the first registry error in err's chain, or 0 if none.
func CodeOf(err error) uint32 {
	var re *Error
	if errors.As(err, &re) {
		return re.Code
	}
	return 0
}

// walletAlreadyRegistered reports a duplicate entry while still matching
// ErrRecordAlreadyExists for callers that only care about the allocation collision.
func walletAlreadyRegistered(entry Address) error {
	return fmt.Errorf("%w (entry %s): %w", ErrWalletAlreadyRegistered, entry, ErrRecordAlreadyExists)
}
