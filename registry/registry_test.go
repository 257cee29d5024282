package registry_test

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verification/registry"
	"verification/store/memory"
)

func identity(label string) registry.Address {
	seed := sha256.Sum256([]byte(label))
	pub := ed25519.NewKeyFromSeed(seed[:]).Public().(ed25519.PublicKey)
	addr, _ := registry.AddressFromBytes(pub)
	return addr
}

var hackRequirements = []registry.Requirement{
	{RequirementType: "DISCORD_MEMBER_REQUIRED", Config: `{"guildId":"1234"}`},
	{RequirementType: "SOLANA_TOKEN_HOLDING", Config: `{"mint":"So11111111111111111111111111111111111111112","amount":1}`},
}

func newRegistry() (*registry.Registry, *memory.Store) {
	store := memory.New()
	return registry.New(store, registry.DefaultProgramID), store
}

func TestInitializeEvent(t *testing.T) {
	ctx := context.Background()
	authority := identity("A")

	t.Run("lookup at the derived address returns the inputs", func(t *testing.T) {
		reg, _ := newRegistry()
		created, addr, err := reg.InitializeEvent(ctx, authority, "hack-2024", 10, hackRequirements)
		require.NoError(t, err)

		want, bump, err := registry.EventAddress(registry.DefaultProgramID, "hack-2024")
		require.NoError(t, err)
		assert.Equal(t, want, addr)

		got, err := reg.Event(ctx, want)
		require.NoError(t, err)
		assert.Equal(t, created, got)
		assert.Equal(t, authority, got.Authority)
		assert.Equal(t, "hack-2024", got.EventID)
		assert.Equal(t, uint32(10), got.MaxWinners)
		assert.Equal(t, hackRequirements, got.Requirements)
		assert.True(t, got.Active)
		assert.Equal(t, bump, got.Bump)
	})

	t.Run("second initialize with the same id fails and leaves the first intact", func(t *testing.T) {
		reg, _ := newRegistry()
		_, addr, err := reg.InitializeEvent(ctx, authority, "hack-2024", 10, hackRequirements)
		require.NoError(t, err)

		_, _, err = reg.InitializeEvent(ctx, identity("B"), "hack-2024", 99, nil)
		require.ErrorIs(t, err, registry.ErrRecordAlreadyExists)
		assert.Equal(t, "RecordAlreadyExists", registry.NameOf(err))

		got, err := reg.Event(ctx, addr)
		require.NoError(t, err)
		assert.Equal(t, authority, got.Authority)
		assert.Equal(t, uint32(10), got.MaxWinners)
	})

	t.Run("oversized inputs are rejected before allocation", func(t *testing.T) {
		reg, store := newRegistry()
		_, _, err := reg.InitializeEvent(ctx, authority, strings.Repeat("x", 51), 1, nil)
		assert.ErrorIs(t, err, registry.ErrSerializedSizeExceeded)

		big := []registry.Requirement{{RequirementType: "T", Config: strings.Repeat("c", 300)}}
		_, _, err = reg.InitializeEvent(ctx, authority, "ok", 1, big)
		assert.ErrorIs(t, err, registry.ErrSerializedSizeExceeded)
		assert.Equal(t, 0, store.Len())
	})

	t.Run("empty requirement list is stored as none", func(t *testing.T) {
		reg, _ := newRegistry()
		_, addr, err := reg.InitializeEvent(ctx, authority, "bare", 0, []registry.Requirement{})
		require.NoError(t, err)
		got, err := reg.Event(ctx, addr)
		require.NoError(t, err)
		assert.Empty(t, got.Requirements)
	})
}

func TestRegisterWallet(t *testing.T) {
	ctx := context.Background()
	authority := identity("A")
	wallet := identity("W")

	t.Run("creates a verified, not yet valid entry", func(t *testing.T) {
		reg, _ := newRegistry()
		_, eventAddr, err := reg.InitializeEvent(ctx, authority, "e1", 1, nil)
		require.NoError(t, err)

		entry, entryAddr, err := reg.RegisterWallet(ctx, wallet, eventAddr)
		require.NoError(t, err)
		assert.Equal(t, eventAddr, entry.Event)
		assert.Equal(t, wallet, entry.Wallet)
		assert.True(t, entry.Verified)
		assert.False(t, entry.Valid)

		want, _, err := registry.EntryAddress(registry.DefaultProgramID, eventAddr, wallet)
		require.NoError(t, err)
		assert.Equal(t, want, entryAddr)
	})

	t.Run("second registration of the same wallet fails", func(t *testing.T) {
		reg, _ := newRegistry()
		_, eventAddr, err := reg.InitializeEvent(ctx, authority, "e1", 1, nil)
		require.NoError(t, err)
		_, _, err = reg.RegisterWallet(ctx, wallet, eventAddr)
		require.NoError(t, err)

		_, _, err = reg.RegisterWallet(ctx, wallet, eventAddr)
		require.ErrorIs(t, err, registry.ErrWalletAlreadyRegistered)
		assert.ErrorIs(t, err, registry.ErrRecordAlreadyExists)
		assert.Equal(t, "WalletAlreadyRegistered", registry.NameOf(err))
		assert.Equal(t, uint32(6001), registry.CodeOf(err))
	})

	t.Run("closed event rejects registration and creates nothing", func(t *testing.T) {
		reg, store := newRegistry()
		_, eventAddr, err := reg.InitializeEvent(ctx, authority, "e1", 1, nil)
		require.NoError(t, err)
		_, err = reg.CloseEvent(ctx, authority, eventAddr)
		require.NoError(t, err)

		_, _, err = reg.RegisterWallet(ctx, wallet, eventAddr)
		require.ErrorIs(t, err, registry.ErrEventNotActive)
		assert.Equal(t, 1, store.Len())
	})

	t.Run("unknown event", func(t *testing.T) {
		reg, _ := newRegistry()
		_, _, err := reg.RegisterWallet(ctx, wallet, identity("nowhere"))
		assert.ErrorIs(t, err, registry.ErrRecordNotFound)
	})

	t.Run("entry address passed as event", func(t *testing.T) {
		reg, _ := newRegistry()
		_, eventAddr, err := reg.InitializeEvent(ctx, authority, "e1", 1, nil)
		require.NoError(t, err)
		_, entryAddr, err := reg.RegisterWallet(ctx, wallet, eventAddr)
		require.NoError(t, err)

		_, _, err = reg.RegisterWallet(ctx, identity("X"), entryAddr)
		assert.ErrorIs(t, err, registry.ErrRecordTypeMismatch)
	})
}

func TestMarkValidity(t *testing.T) {
	ctx := context.Background()
	authority := identity("A")
	wallet := identity("W")

	setup := func(t *testing.T) (*registry.Registry, registry.Address, registry.Address) {
		reg, _ := newRegistry()
		_, eventAddr, err := reg.InitializeEvent(ctx, authority, "e1", 1, nil)
		require.NoError(t, err)
		_, entryAddr, err := reg.RegisterWallet(ctx, wallet, eventAddr)
		require.NoError(t, err)
		return reg, eventAddr, entryAddr
	}

	t.Run("valid then invalid", func(t *testing.T) {
		reg, eventAddr, entryAddr := setup(t)
		entry, err := reg.MarkValid(ctx, authority, eventAddr, entryAddr)
		require.NoError(t, err)
		assert.True(t, entry.Valid)

		entry, err = reg.MarkInvalid(ctx, authority, eventAddr, entryAddr)
		require.NoError(t, err)
		assert.False(t, entry.Valid)

		stored, err := reg.Entry(ctx, entryAddr)
		require.NoError(t, err)
		assert.False(t, stored.Valid)
	})

	t.Run("mark valid is idempotent", func(t *testing.T) {
		reg, eventAddr, entryAddr := setup(t)
		_, err := reg.MarkValid(ctx, authority, eventAddr, entryAddr)
		require.NoError(t, err)
		_, err = reg.MarkValid(ctx, authority, eventAddr, entryAddr)
		require.NoError(t, err)

		stored, err := reg.Entry(ctx, entryAddr)
		require.NoError(t, err)
		assert.True(t, stored.Valid)
	})

	t.Run("non-authority is rejected and nothing changes", func(t *testing.T) {
		reg, eventAddr, entryAddr := setup(t)
		_, err := reg.MarkValid(ctx, wallet, eventAddr, entryAddr)
		require.ErrorIs(t, err, registry.ErrInvalidAuthority)
		_, err = reg.MarkInvalid(ctx, identity("X"), eventAddr, entryAddr)
		require.ErrorIs(t, err, registry.ErrInvalidAuthority)

		stored, err := reg.Entry(ctx, entryAddr)
		require.NoError(t, err)
		assert.False(t, stored.Valid)
		assert.True(t, stored.Verified)
	})

	t.Run("entry from another event", func(t *testing.T) {
		reg, eventAddr, _ := setup(t)
		_, otherEvent, err := reg.InitializeEvent(ctx, authority, "e2", 1, nil)
		require.NoError(t, err)
		_, foreignEntry, err := reg.RegisterWallet(ctx, wallet, otherEvent)
		require.NoError(t, err)

		_, err = reg.MarkValid(ctx, authority, eventAddr, foreignEntry)
		require.ErrorIs(t, err, registry.ErrEntryEventMismatch)

		stored, err := reg.Entry(ctx, foreignEntry)
		require.NoError(t, err)
		assert.False(t, stored.Valid)
	})

	t.Run("authority is checked before the entry reference", func(t *testing.T) {
		reg, eventAddr, _ := setup(t)
		_, err := reg.MarkValid(ctx, wallet, eventAddr, identity("missing-entry"))
		assert.ErrorIs(t, err, registry.ErrInvalidAuthority)
	})
}

func TestCloseEvent(t *testing.T) {
	ctx := context.Background()
	authority := identity("A")

	reg, _ := newRegistry()
	_, eventAddr, err := reg.InitializeEvent(ctx, authority, "e1", 1, hackRequirements)
	require.NoError(t, err)

	_, err = reg.CloseEvent(ctx, identity("B"), eventAddr)
	require.ErrorIs(t, err, registry.ErrInvalidAuthority)
	stored, err := reg.Event(ctx, eventAddr)
	require.NoError(t, err)
	assert.True(t, stored.Active)

	closed, err := reg.CloseEvent(ctx, authority, eventAddr)
	require.NoError(t, err)
	assert.False(t, closed.Active)

	again, err := reg.CloseEvent(ctx, authority, eventAddr)
	require.NoError(t, err, "closing twice succeeds")
	assert.False(t, again.Active)

	stored, err = reg.Event(ctx, eventAddr)
	require.NoError(t, err)
	assert.False(t, stored.Active)
	assert.Equal(t, hackRequirements, stored.Requirements, "closing keeps the configuration")
}

func TestHackathonScenario(t *testing.T) {
	ctx := context.Background()
	a, w, x := identity("A"), identity("W"), identity("X")
	reg, _ := newRegistry()

	_, eventAddr, err := reg.InitializeEvent(ctx, a, "hack-2024", 10, hackRequirements)
	require.NoError(t, err)

	entry, entryAddr, err := reg.RegisterWallet(ctx, w, eventAddr)
	require.NoError(t, err)
	assert.True(t, entry.Verified)
	assert.False(t, entry.Valid)

	entry, err = reg.MarkValid(ctx, a, eventAddr, entryAddr)
	require.NoError(t, err)
	assert.True(t, entry.Valid)

	event, err := reg.CloseEvent(ctx, a, eventAddr)
	require.NoError(t, err)
	assert.False(t, event.Active)

	_, _, err = reg.RegisterWallet(ctx, x, eventAddr)
	require.ErrorIs(t, err, registry.ErrEventNotActive)

	entry, err = reg.MarkInvalid(ctx, a, eventAddr, entryAddr)
	require.NoError(t, err)
	assert.False(t, entry.Valid)

	entries, err := reg.Entries(ctx, eventAddr)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entryAddr, entries[0].Address)
	assert.Equal(t, w, entries[0].Wallet)
}

func TestEntriesAreScopedToEvent(t *testing.T) {
	ctx := context.Background()
	a := identity("A")
	reg, _ := newRegistry()

	_, e1, err := reg.InitializeEvent(ctx, a, "e1", 1, nil)
	require.NoError(t, err)
	_, e2, err := reg.InitializeEvent(ctx, a, "e2", 1, nil)
	require.NoError(t, err)

	for _, label := range []string{"w1", "w2", "w3"} {
		_, _, err := reg.RegisterWallet(ctx, identity(label), e1)
		require.NoError(t, err)
	}
	_, _, err = reg.RegisterWallet(ctx, identity("w1"), e2)
	require.NoError(t, err)

	entries, err := reg.Entries(ctx, e1)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
	for i := 1; i < len(entries); i++ {
		assert.Negative(t, bytes.Compare(entries[i-1].Wallet[:], entries[i].Wallet[:]), "entries ordered by wallet")
	}

	_, addr, err := reg.EntryFor(ctx, e2, identity("w1"))
	require.NoError(t, err)
	entries, err = reg.Entries(ctx, e2)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, addr, entries[0].Address)
}

func TestConcurrentCreatesHaveOneWinner(t *testing.T) {
	ctx := context.Background()
	const goroutines = 32

	t.Run("initialize_event", func(t *testing.T) {
		reg, _ := newRegistry()
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
			conflicts int
		)
		wg.Add(goroutines)
		for i := 0; i < goroutines; i++ {
			go func() {
				defer wg.Done()
				_, _, err := reg.InitializeEvent(ctx, identity("A"), "race", 1, nil)
				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					successes++
				} else if assert.ErrorIs(t, err, registry.ErrRecordAlreadyExists) {
					conflicts++
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, successes)
		assert.Equal(t, goroutines-1, conflicts)
	})

	t.Run("register_wallet", func(t *testing.T) {
		reg, _ := newRegistry()
		_, eventAddr, err := reg.InitializeEvent(ctx, identity("A"), "race", 1, nil)
		require.NoError(t, err)

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
		)
		wg.Add(goroutines)
		for i := 0; i < goroutines; i++ {
			go func() {
				defer wg.Done()
				_, _, err := reg.RegisterWallet(ctx, identity("W"), eventAddr)
				if err == nil {
					mu.Lock()
					successes++
					mu.Unlock()
					return
				}
				assert.ErrorIs(t, err, registry.ErrWalletAlreadyRegistered)
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, successes)
	})
}
