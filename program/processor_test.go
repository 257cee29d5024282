package program_test

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verification/program"
	"verification/registry"
	"verification/store/memory"
)

type signer struct {
	key  ed25519.PrivateKey
	addr registry.Address
}

func newSigner(label string) signer {
	seed := sha256.Sum256([]byte(label))
	key := ed25519.NewKeyFromSeed(seed[:])
	addr, _ := registry.AddressFromBytes(key.Public().(ed25519.PublicKey))
	return signer{key: key, addr: addr}
}

func (s signer) sign(t *testing.T, ix *program.Instruction) *program.Transaction {
	t.Helper()
	tx, err := program.SignTransaction(s.key, ix)
	require.NoError(t, err)
	return tx
}

func newProcessor() (*program.Processor, *registry.Registry) {
	reg := registry.New(memory.New(), registry.DefaultProgramID)
	return program.NewProcessor(reg), reg
}

var programID = registry.DefaultProgramID

func TestProcessHackathonScenario(t *testing.T) {
	ctx := context.Background()
	a, w, x := newSigner("A"), newSigner("W"), newSigner("X")
	proc, reg := newProcessor()

	reqs := []registry.Requirement{
		{RequirementType: "DISCORD_MEMBER_REQUIRED", Config: `{"guildId":"1"}`},
		{RequirementType: "SOLANA_TOKEN_HOLDING", Config: `{"amount":1}`},
	}
	ix, err := program.NewInitializeEvent(programID, a.addr, "hack-2024", 10, reqs)
	require.NoError(t, err)
	res, err := proc.Process(ctx, a.sign(t, ix))
	require.NoError(t, err)
	assert.Equal(t, program.OpNameInitializeEvent, res.Op)
	eventAddr := res.Event

	ix, err = program.NewRegisterWallet(programID, w.addr, "hack-2024")
	require.NoError(t, err)
	res, err = proc.Process(ctx, w.sign(t, ix))
	require.NoError(t, err)
	entryAddr := res.Entry
	assert.True(t, res.EntryRecord.Verified)
	assert.False(t, res.EntryRecord.Valid)

	res, err = proc.Process(ctx, a.sign(t, program.NewMarkValid(a.addr, eventAddr, entryAddr)))
	require.NoError(t, err)
	assert.True(t, res.EntryRecord.Valid)

	res, err = proc.Process(ctx, a.sign(t, program.NewCloseEvent(a.addr, eventAddr)))
	require.NoError(t, err)
	assert.False(t, res.EventRecord.Active)

	ix, err = program.NewRegisterWallet(programID, x.addr, "hack-2024")
	require.NoError(t, err)
	_, err = proc.Process(ctx, x.sign(t, ix))
	require.ErrorIs(t, err, registry.ErrEventNotActive)

	res, err = proc.Process(ctx, a.sign(t, program.NewMarkInvalid(a.addr, eventAddr, entryAddr)))
	require.NoError(t, err)
	assert.False(t, res.EntryRecord.Valid)

	entry, err := reg.Entry(ctx, entryAddr)
	require.NoError(t, err)
	assert.False(t, entry.Valid)
}

func TestProcessRejectsBadSignatures(t *testing.T) {
	ctx := context.Background()
	a := newSigner("A")
	proc, _ := newProcessor()

	ix, err := program.NewInitializeEvent(programID, a.addr, "e1", 1, nil)
	require.NoError(t, err)

	t.Run("unsigned", func(t *testing.T) {
		_, err := proc.Process(ctx, program.NewTransaction(a.addr, ix))
		assert.ErrorIs(t, err, registry.ErrSignatureVerification)
	})

	t.Run("tampered after signing", func(t *testing.T) {
		tx := a.sign(t, ix)
		tx.Instruction.Data = append([]byte(nil), tx.Instruction.Data...)
		tx.Instruction.Data[len(tx.Instruction.Data)-1] ^= 0xff
		_, err := proc.Process(ctx, tx)
		assert.ErrorIs(t, err, registry.ErrSignatureVerification)
	})

	t.Run("signed by someone else", func(t *testing.T) {
		tx := program.NewTransaction(a.addr, ix)
		assert.Error(t, tx.Sign(newSigner("B").key))
	})
}

func TestProcessRejectsBadAccounts(t *testing.T) {
	ctx := context.Background()
	a, b, w := newSigner("A"), newSigner("B"), newSigner("W")
	proc, reg := newProcessor()

	ix, err := program.NewInitializeEvent(programID, a.addr, "e1", 1, nil)
	require.NoError(t, err)
	res, err := proc.Process(ctx, a.sign(t, ix))
	require.NoError(t, err)
	eventAddr := res.Event

	t.Run("authority slot is not the signer", func(t *testing.T) {
		ix := program.NewCloseEvent(a.addr, eventAddr)
		tx := program.NewTransaction(b.addr, ix)
		require.NoError(t, tx.Sign(b.key))
		_, err := proc.Process(ctx, tx)
		assert.ErrorIs(t, err, registry.ErrAccountMetaMismatch)
	})

	t.Run("missing account", func(t *testing.T) {
		ix := program.NewCloseEvent(a.addr, eventAddr)
		ix.Accounts = ix.Accounts[:1]
		_, err := proc.Process(ctx, a.sign(t, ix))
		assert.ErrorIs(t, err, registry.ErrAccountMetaMismatch)
	})

	t.Run("init flag dropped", func(t *testing.T) {
		ix, err := program.NewRegisterWallet(programID, w.addr, "e1")
		require.NoError(t, err)
		ix.Accounts[2].Init = false
		_, err = proc.Process(ctx, w.sign(t, ix))
		assert.ErrorIs(t, err, registry.ErrAccountMetaMismatch)
	})

	t.Run("event address not derived from event id", func(t *testing.T) {
		ix, err := program.NewInitializeEvent(programID, a.addr, "e2", 1, nil)
		require.NoError(t, err)
		ix.Accounts[1].Address = eventAddr
		_, err = proc.Process(ctx, a.sign(t, ix))
		assert.ErrorIs(t, err, registry.ErrAddressMismatch)
	})

	t.Run("entry address for another wallet", func(t *testing.T) {
		ix, err := program.NewRegisterWallet(programID, w.addr, "e1")
		require.NoError(t, err)
		other, _, err := registry.EntryAddress(programID, eventAddr, b.addr)
		require.NoError(t, err)
		ix.Accounts[2].Address = other
		_, err = proc.Process(ctx, w.sign(t, ix))
		assert.ErrorIs(t, err, registry.ErrAddressMismatch)

		_, err = reg.Entry(ctx, other)
		assert.ErrorIs(t, err, registry.ErrRecordNotFound)
	})

	t.Run("unknown op", func(t *testing.T) {
		ix := program.NewCloseEvent(a.addr, eventAddr)
		ix.Op = program.Op{1, 2, 3}
		_, err := proc.Process(ctx, a.sign(t, ix))
		assert.ErrorIs(t, err, registry.ErrUnknownInstruction)
	})

	t.Run("non-authority close", func(t *testing.T) {
		_, err := proc.Process(ctx, b.sign(t, program.NewCloseEvent(b.addr, eventAddr)))
		assert.ErrorIs(t, err, registry.ErrInvalidAuthority)
		event, err := reg.Event(ctx, eventAddr)
		require.NoError(t, err)
		assert.True(t, event.Active)
	})
}

func TestTransactionEncoding(t *testing.T) {
	a := newSigner("A")
	ix, err := program.NewInitializeEvent(programID, a.addr, "hack-2024", 3, []registry.Requirement{{RequirementType: "T", Config: "{}"}})
	require.NoError(t, err)
	tx := a.sign(t, ix)

	data, err := tx.Encode()
	require.NoError(t, err)
	decoded, err := program.DecodeTransaction(data)
	require.NoError(t, err)

	assert.Equal(t, tx.Signer, decoded.Signer)
	assert.Equal(t, tx.Signature, decoded.Signature)
	assert.Equal(t, tx.Instruction.Op, decoded.Instruction.Op)
	assert.Equal(t, tx.Instruction.Accounts, decoded.Instruction.Accounts)
	assert.Equal(t, tx.Instruction.Data, decoded.Instruction.Data)
	assert.NoError(t, decoded.Verify())
}

func TestDecodeRejectsTrailingBytes(t *testing.T) {
	ctx := context.Background()
	a := newSigner("A")

	t.Run("transaction", func(t *testing.T) {
		ix, err := program.NewInitializeEvent(programID, a.addr, "e1", 1, nil)
		require.NoError(t, err)
		data, err := a.sign(t, ix).Encode()
		require.NoError(t, err)

		_, err = program.DecodeTransaction(append(data, 0, 0, 0))
		assert.ErrorContains(t, err, "trailing bytes")
	})

	t.Run("instruction data", func(t *testing.T) {
		proc, reg := newProcessor()
		ix, err := program.NewInitializeEvent(programID, a.addr, "e1", 1, nil)
		require.NoError(t, err)
		ix.Data = append(ix.Data, 0xaa)

		_, err = proc.Process(ctx, a.sign(t, ix))
		assert.ErrorContains(t, err, "trailing bytes")

		_, _, err = reg.EventByID(ctx, "e1")
		assert.ErrorIs(t, err, registry.ErrRecordNotFound)
	})
}

func TestOpNames(t *testing.T) {
	for _, name := range []string{"initialize_event", "register_wallet", "mark_valid", "mark_invalid", "close_event"} {
		op, ok := program.OpByName(name)
		require.True(t, ok, name)
		assert.Equal(t, name, op.Name())
	}
	_, ok := program.OpByName("withdraw")
	assert.False(t, ok)
	assert.NotEqual(t, program.OpMarkValid, program.OpMarkInvalid)
}
