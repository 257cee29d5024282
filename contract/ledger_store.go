package contract

import (
	"context"
	"fmt"

	"github.com/hyperledger/fabric-chaincode-go/shim"

	"verification/registry"
)

const (
	// recordObjectType is the composite key namespace for registry records.
	recordObjectType = "Record"
	// entryIndexName keys entries by event: EntryByEvent~<event>~<entry>.
	entryIndexName = "EntryByEvent"
)

// ledgerStore is a registry.Store over the world state of one transaction. Create reads
// the key before writing it; MVCC validation at commit rejects the loser of two racing
// creates, so the check-then-put is safe here.
type ledgerStore struct {
	stub shim.ChaincodeStubInterface
}

func newLedgerStore(stub shim.ChaincodeStubInterface) *ledgerStore {
	return &ledgerStore{stub: stub}
}

func (s *ledgerStore) recordKey(addr registry.Address) (string, error) {
	return s.stub.CreateCompositeKey(recordObjectType, []string{addr.String()})
}

func (s *ledgerStore) Load(_ context.Context, addr registry.Address) ([]byte, error) {
	key, err := s.recordKey(addr)
	if err != nil {
		return nil, fmt.Errorf("failed to create record key for %s: %w", addr, err)
	}
	data, err := s.stub.GetState(key)
	if err != nil {
		return nil, fmt.Errorf("failed to read record %s from world state: %w", addr, err)
	}
	if len(data) == 0 {
		return nil, registry.ErrRecordNotFound
	}
	return data, nil
}

func (s *ledgerStore) Create(_ context.Context, addr registry.Address, data []byte) error {
	key, err := s.recordKey(addr)
	if err != nil {
		return fmt.Errorf("failed to create record key for %s: %w", addr, err)
	}
	existing, err := s.stub.GetState(key)
	if err != nil {
		return fmt.Errorf("failed to check existence of record %s: %w", addr, err)
	}
	if len(existing) != 0 {
		return registry.ErrRecordAlreadyExists
	}
	if err := s.stub.PutState(key, data); err != nil {
		return fmt.Errorf("failed to put record %s: %w", addr, err)
	}
	if registry.KindOf(data) == registry.KindEntry {
		return s.indexEntry(addr, data)
	}
	return nil
}

// indexEntry writes the event index key for a new entry. An entry never changes event,
// so Save leaves the index alone.
func (s *ledgerStore) indexEntry(addr registry.Address, data []byte) error {
	entry, err := registry.UnmarshalEntry(data)
	if err != nil {
		return fmt.Errorf("failed to decode entry %s for indexing: %w", addr, err)
	}
	indexKey, err := s.stub.CreateCompositeKey(entryIndexName, []string{entry.Event.String(), addr.String()})
	if err != nil {
		return fmt.Errorf("failed to create index key for entry %s: %w", addr, err)
	}
	if err := s.stub.PutState(indexKey, []byte{0x00}); err != nil {
		return fmt.Errorf("failed to put index key for entry %s: %w", addr, err)
	}
	return nil
}

func (s *ledgerStore) Save(_ context.Context, addr registry.Address, data []byte) error {
	key, err := s.recordKey(addr)
	if err != nil {
		return fmt.Errorf("failed to create record key for %s: %w", addr, err)
	}
	existing, err := s.stub.GetState(key)
	if err != nil {
		return fmt.Errorf("failed to read record %s: %w", addr, err)
	}
	if len(existing) == 0 {
		return registry.ErrRecordNotFound
	}
	if err := s.stub.PutState(key, data); err != nil {
		return fmt.Errorf("failed to put record %s: %w", addr, err)
	}
	return nil
}

// ScanEvent visits the entries of event through the EntryByEvent index.
func (s *ledgerStore) ScanEvent(ctx context.Context, event registry.Address, fn func(registry.Address, []byte) error) error {
	resultsIterator, err := s.stub.GetStateByPartialCompositeKey(entryIndexName, []string{event.String()})
	if err != nil {
		return fmt.Errorf("failed to get entry index iterator for event %s: %w", event, err)
	}
	defer resultsIterator.Close()

	for resultsIterator.HasNext() {
		queryResponse, iterErr := resultsIterator.Next()
		if iterErr != nil {
			return fmt.Errorf("failed to iterate entry index: %w", iterErr)
		}
		_, attrs, err := s.stub.SplitCompositeKey(queryResponse.Key)
		if err != nil || len(attrs) != 2 {
			logger.Warningf("ScanEvent: unexpected index key '%s': %v. Skipping.", queryResponse.Key, err)
			continue
		}
		addr, err := registry.ParseAddress(attrs[1])
		if err != nil {
			logger.Warningf("ScanEvent: index key '%s' does not hold an entry address: %v. Skipping.", queryResponse.Key, err)
			continue
		}
		data, err := s.Load(ctx, addr)
		if err != nil {
			return fmt.Errorf("failed to load indexed entry %s: %w", addr, err)
		}
		if err := fn(addr, data); err != nil {
			return err
		}
	}
	return nil
}
