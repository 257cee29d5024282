// Package memory provides an in-process registry.Store guarded by a mutex.
package memory

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"verification/registry"
)

// Store keeps records in a map keyed by address.
type Store struct {
	mu      sync.RWMutex
	records map[registry.Address][]byte
}

func New() *Store {
	return &Store{records: make(map[registry.Address][]byte)}
}

func (s *Store) Load(_ context.Context, addr registry.Address) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.records[addr]
	if !ok {
		return nil, registry.ErrRecordNotFound
	}
	return bytes.Clone(data), nil
}

func (s *Store) Create(_ context.Context, addr registry.Address, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[addr]; ok {
		return registry.ErrRecordAlreadyExists
	}
	s.records[addr] = bytes.Clone(data)
	return nil
}

func (s *Store) Save(_ context.Context, addr registry.Address, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[addr]; !ok {
		return registry.ErrRecordNotFound
	}
	s.records[addr] = bytes.Clone(data)
	return nil
}

// Scan visits records in address order over a snapshot taken at call time.
func (s *Store) Scan(ctx context.Context, fn func(registry.Address, []byte) error) error {
	s.mu.RLock()
	addrs := make([]registry.Address, 0, len(s.records))
	snapshot := make(map[registry.Address][]byte, len(s.records))
	for addr, data := range s.records {
		addrs = append(addrs, addr)
		snapshot[addr] = bytes.Clone(data)
	}
	s.mu.RUnlock()

	sort.Slice(addrs, func(i, j int) bool {
		return bytes.Compare(addrs[i][:], addrs[j][:]) < 0
	})
	for _, addr := range addrs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(addr, snapshot[addr]); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
