package sqlite_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"verification/registry"
	"verification/store/sqlite"
	"verification/store/storetest"
)

type SQLiteStoreSuite struct {
	storetest.Suite
}

func TestSQLiteStoreSuite(t *testing.T) {
	s := new(SQLiteStoreSuite)
	s.NewStore = func() registry.Store {
		db, err := sqlite.Open(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		store, err := sqlite.New(context.Background(), db)
		require.NoError(t, err)
		return store
	}
	suite.Run(t, s)
}

func TestSQLiteFileStoreSuite(t *testing.T) {
	s := new(SQLiteStoreSuite)
	s.NewStore = func() registry.Store {
		return openFileStore(t, filepath.Join(t.TempDir(), "registry.db"))
	}
	suite.Run(t, s)
}

func TestFileStoreRacingCreatesReportConflict(t *testing.T) {
	ctx := context.Background()
	store := openFileStore(t, filepath.Join(t.TempDir(), "registry.db"))

	for round := 0; round < 20; round++ {
		var addr registry.Address
		addr[0] = byte(round + 1)

		const writers = 16
		errs := make(chan error, writers)
		var wg sync.WaitGroup
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- store.Create(ctx, addr, []byte("record"))
			}()
		}
		wg.Wait()
		close(errs)

		created := 0
		for err := range errs {
			if err == nil {
				created++
				continue
			}
			require.ErrorIs(t, err, registry.ErrRecordAlreadyExists, "round %d", round)
		}
		require.Equal(t, 1, created, "round %d", round)
	}
}

func openFileStore(t *testing.T, path string) *sqlite.Store {
	t.Helper()
	db, err := sqlite.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	store, err := sqlite.New(context.Background(), db)
	require.NoError(t, err)
	return store
}

func TestScanSkipsRowsWithBadAddress(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	defer db.Close()
	store, err := sqlite.New(ctx, db)
	require.NoError(t, err)

	var addr registry.Address
	addr[31] = 9
	require.NoError(t, store.Create(ctx, addr, []byte("record")))
	_, err = db.ExecContext(ctx, `INSERT INTO registry_records (address, kind, data) VALUES ('not-an-address', 0, x'00')`)
	require.NoError(t, err)

	var seen []registry.Address
	err = store.Scan(ctx, func(a registry.Address, _ []byte) error {
		seen = append(seen, a)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []registry.Address{addr}, seen)
}

func TestReopenKeepsRecords(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "registry.db")
	var addr registry.Address
	addr[31] = 7

	db, err := sqlite.Open(path)
	require.NoError(t, err)
	store, err := sqlite.New(ctx, db)
	require.NoError(t, err)
	require.NoError(t, store.Create(ctx, addr, []byte("record")))
	require.NoError(t, db.Close())

	db, err = sqlite.Open(path)
	require.NoError(t, err)
	defer db.Close()
	store, err = sqlite.New(ctx, db)
	require.NoError(t, err)

	got, err := store.Load(ctx, addr)
	require.NoError(t, err)
	require.Equal(t, []byte("record"), got)
}
