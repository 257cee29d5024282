// Package storetest holds the behavior every registry.Store backend must share.
package storetest

import (
	"context"
	"crypto/sha256"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"verification/registry"
)

// Suite runs the store contract against the store returned by NewStore. Backends embed
// it in their own suite and set NewStore before suite.Run.
type Suite struct {
	suite.Suite
	NewStore func() registry.Store

	store registry.Store
	ctx   context.Context
}

func (s *Suite) SetupTest() {
	s.Require().NotNil(s.NewStore, "NewStore must be set")
	s.store = s.NewStore()
	s.ctx = context.Background()
}

// freshAddress is unique per call so backends shared across tests never collide.
func freshAddress() registry.Address {
	return registry.Address(sha256.Sum256([]byte(uuid.NewString())))
}

func (s *Suite) entryRecord(valid bool) []byte {
	data, err := registry.MarshalEntry(&registry.Entry{
		Event:    freshAddress(),
		Wallet:   freshAddress(),
		Verified: true,
		Valid:    valid,
	})
	s.Require().NoError(err)
	return data
}

func (s *Suite) TestLoadMissing() {
	_, err := s.store.Load(s.ctx, freshAddress())
	s.ErrorIs(err, registry.ErrRecordNotFound)
}

func (s *Suite) TestCreateAndLoad() {
	addr := freshAddress()
	data := s.entryRecord(false)

	s.Require().NoError(s.store.Create(s.ctx, addr, data))

	got, err := s.store.Load(s.ctx, addr)
	s.Require().NoError(err)
	s.Equal(data, got)
}

func (s *Suite) TestCreateConflictKeepsOriginal() {
	addr := freshAddress()
	original := s.entryRecord(false)
	s.Require().NoError(s.store.Create(s.ctx, addr, original))

	err := s.store.Create(s.ctx, addr, s.entryRecord(true))
	s.ErrorIs(err, registry.ErrRecordAlreadyExists)

	got, err := s.store.Load(s.ctx, addr)
	s.Require().NoError(err)
	s.Equal(original, got)
}

func (s *Suite) TestSave() {
	s.Run("missing record", func() {
		err := s.store.Save(s.ctx, freshAddress(), s.entryRecord(true))
		s.ErrorIs(err, registry.ErrRecordNotFound)
	})

	s.Run("overwrites existing record", func() {
		addr := freshAddress()
		s.Require().NoError(s.store.Create(s.ctx, addr, s.entryRecord(false)))

		updated := s.entryRecord(true)
		s.Require().NoError(s.store.Save(s.ctx, addr, updated))

		got, err := s.store.Load(s.ctx, addr)
		s.Require().NoError(err)
		s.Equal(updated, got)
	})
}

// TestConcurrentCreate verifies that racing creators of one address see exactly one
// success.
func (s *Suite) TestConcurrentCreate() {
	const goroutines = 16
	addr := freshAddress()
	data := s.entryRecord(false)

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		conflicts atomic.Int32
	)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.Create(s.ctx, addr, data)
			if err == nil {
				successes.Add(1)
			} else if errors.Is(err, registry.ErrRecordAlreadyExists) {
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successes.Load(), "exactly one create should succeed")
	s.Equal(int32(goroutines-1), conflicts.Load())
}

func (s *Suite) TestScan() {
	scanner, ok := s.store.(registry.Scanner)
	if !ok {
		s.T().Skip("store does not enumerate records")
	}

	created := map[registry.Address][]byte{}
	for i := 0; i < 3; i++ {
		addr := freshAddress()
		data := s.entryRecord(i%2 == 0)
		s.Require().NoError(s.store.Create(s.ctx, addr, data))
		created[addr] = data
	}

	seen := map[registry.Address][]byte{}
	err := scanner.Scan(s.ctx, func(addr registry.Address, data []byte) error {
		seen[addr] = data
		return nil
	})
	s.Require().NoError(err)
	for addr, data := range created {
		s.Equal(data, seen[addr], "record %s should be visited", addr)
	}

	stop := errors.New("stop")
	visits := 0
	err = scanner.Scan(s.ctx, func(registry.Address, []byte) error {
		visits++
		return stop
	})
	s.ErrorIs(err, stop)
	s.Equal(1, visits)
}
