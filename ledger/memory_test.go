package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitwit/payments/types"
)

const asset types.AssetID = "usd"

func newFunded(t *testing.T, balances map[types.AccountID]types.Balance, opts ...MemoryOption) *Memory {
	t.Helper()
	m := NewMemory(opts...)
	for who, amount := range balances {
		require.NoError(t, m.Mint(asset, who, amount))
	}
	return m
}

func TestMemory_HoldAndRelease(t *testing.T) {
	ctx := context.Background()
	m := newFunded(t, map[types.AccountID]types.Balance{"alice": 100})

	require.NoError(t, m.Hold(ctx, asset, ReasonTransferPayment, "alice", 30))

	free, err := m.Balance(ctx, asset, "alice")
	require.NoError(t, err)
	held, err := m.BalanceOnHold(ctx, asset, ReasonTransferPayment, "alice")
	require.NoError(t, err)
	assert.Equal(t, types.Balance(70), free)
	assert.Equal(t, types.Balance(30), held)
	assert.Equal(t, types.Balance(100), m.Total(asset, "alice"))

	released, err := m.Release(ctx, asset, ReasonTransferPayment, "alice", 30, Exact)
	require.NoError(t, err)
	assert.Equal(t, types.Balance(30), released)

	held, err = m.BalanceOnHold(ctx, asset, ReasonTransferPayment, "alice")
	require.NoError(t, err)
	assert.Zero(t, held)
}

func TestMemory_HoldInsufficient(t *testing.T) {
	ctx := context.Background()
	m := newFunded(t, map[types.AccountID]types.Balance{"alice": 10})

	err := m.Hold(ctx, asset, ReasonTransferPayment, "alice", 11)
	require.ErrorIs(t, err, ErrInsufficientBalance)

	free, _ := m.Balance(ctx, asset, "alice")
	assert.Equal(t, types.Balance(10), free)
}

func TestMemory_ReleasePrecision(t *testing.T) {
	ctx := context.Background()
	m := newFunded(t, map[types.AccountID]types.Balance{"alice": 10})
	require.NoError(t, m.Hold(ctx, asset, ReasonTransferPayment, "alice", 5))

	_, err := m.Release(ctx, asset, ReasonTransferPayment, "alice", 6, Exact)
	require.ErrorIs(t, err, ErrInsufficientHeld)

	released, err := m.Release(ctx, asset, ReasonTransferPayment, "alice", 6, BestEffort)
	require.NoError(t, err)
	assert.Equal(t, types.Balance(5), released)
	free, _ := m.Balance(ctx, asset, "alice")
	assert.Equal(t, types.Balance(10), free)
}

func TestMemory_HoldsAreScopedByReason(t *testing.T) {
	ctx := context.Background()
	m := newFunded(t, map[types.AccountID]types.Balance{"alice": 10})
	require.NoError(t, m.Hold(ctx, asset, "staking", "alice", 4))

	_, err := m.Release(ctx, asset, ReasonTransferPayment, "alice", 4, Exact)
	require.ErrorIs(t, err, ErrInsufficientHeld)

	held, _ := m.BalanceOnHold(ctx, asset, "staking", "alice")
	assert.Equal(t, types.Balance(4), held)
}

func TestMemory_TransferPreservation(t *testing.T) {
	ctx := context.Background()
	m := newFunded(t, map[types.AccountID]types.Balance{"alice": 10}, WithExistentialDeposit(2))

	_, err := m.Transfer(ctx, asset, "alice", "bob", 9, Preserve)
	require.ErrorIs(t, err, ErrWouldReap)

	moved, err := m.Transfer(ctx, asset, "alice", "bob", 9, Expendable)
	require.NoError(t, err)
	assert.Equal(t, types.Balance(9), moved)
	assert.Equal(t, types.Balance(1), m.Total(asset, "alice"))
	assert.Equal(t, types.Balance(9), m.Total(asset, "bob"))
}

func TestMemory_TransferAndHold(t *testing.T) {
	ctx := context.Background()
	m := newFunded(t, map[types.AccountID]types.Balance{"alice": 10})

	_, err := m.TransferAndHold(ctx, asset, ReasonTransferPayment, "alice", "bob", 7, Expendable)
	require.NoError(t, err)

	bobFree, _ := m.Balance(ctx, asset, "bob")
	bobHeld, _ := m.BalanceOnHold(ctx, asset, ReasonTransferPayment, "bob")
	assert.Zero(t, bobFree)
	assert.Equal(t, types.Balance(7), bobHeld)
	assert.Equal(t, types.Balance(10), m.Issuance(asset))

	_, err = m.TransferAndHold(ctx, asset, ReasonTransferPayment, "alice", "bob", 4, Expendable)
	require.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestMemory_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := newFunded(t, map[types.AccountID]types.Balance{"alice": 10})

	require.ErrorIs(t, m.Hold(ctx, asset, ReasonTransferPayment, "alice", 1), context.Canceled)
}
