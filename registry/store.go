package registry

import "context"

// Store is the address-keyed record storage the registry runs on.
//
// Create must be an atomic insert on the address: when two callers race to create the
// same address exactly one succeeds and the other gets ErrRecordAlreadyExists. A
// lookup followed by a separate write does not satisfy this.
type Store interface {
	// Load returns the record at addr or ErrRecordNotFound.
	Load(ctx context.Context, addr Address) ([]byte, error)
	// Create allocates addr with data, or fails with ErrRecordAlreadyExists.
	Create(ctx context.Context, addr Address, data []byte) error
	// Save overwrites an existing record, or fails with ErrRecordNotFound.
	Save(ctx context.Context, addr Address, data []byte) error
}

// Scanner is implemented by stores that can enumerate their records.
type Scanner interface {
	Scan(ctx context.Context, fn func(addr Address, data []byte) error) error
}

// EventScanner is implemented by stores that index entries by their event, so listing
// one event's entries does not walk every record.
type EventScanner interface {
	ScanEvent(ctx context.Context, event Address, fn func(addr Address, data []byte) error) error
}
