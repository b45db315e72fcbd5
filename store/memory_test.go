package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitwit/payments/types"
)

func samplePayment() *types.Payment {
	return &types.Payment{
		Asset:           "usd",
		Amount:          20,
		IncentiveAmount: 2,
		State:           types.Created(),
		Fees: types.Fees{
			SenderPays: []types.Fee{{Recipient: "fees", Amount: 3, Mandatory: true}},
		},
	}
}

func TestMemory_NextIDIsMonotonic(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var last types.PaymentID
	for i := 0; i < 5; i++ {
		id, err := m.NextID(ctx)
		require.NoError(t, err)
		assert.Greater(t, id, last)
		last = id
	}
	assert.Equal(t, types.PaymentID(5), last)
}

func TestMemory_NextIDOverflow(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryFrom(types.MaxPaymentID - 1)

	id, err := m.NextID(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.MaxPaymentID, id)

	_, err = m.NextID(ctx)
	require.ErrorIs(t, err, ErrIDOverflow)
}

func TestMemory_PutGetRemove(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	key := types.PaymentKey{Sender: "alice", Beneficiary: "bob", ID: 1}

	_, err := m.Get(ctx, key)
	require.ErrorIs(t, err, ErrNotFound)

	p := samplePayment()
	require.NoError(t, m.Put(ctx, key, p))

	// the store keeps its own copy
	p.Fees.SenderPays[0].Amount = 99
	got, err := m.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, types.Balance(3), got.Fees.SenderPays[0].Amount)

	_, err = m.Get(ctx, types.PaymentKey{Sender: "bob", Beneficiary: "alice", ID: 1})
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.Remove(ctx, key))
	require.ErrorIs(t, m.Remove(ctx, key), ErrNotFound)
}

func TestMemory_PartiesIndex(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	parties := types.Parties{Sender: "alice", Beneficiary: "bob"}

	require.NoError(t, m.PutParties(ctx, 9, parties))
	got, err := m.Parties(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, parties, got)
	assert.Equal(t, types.PaymentKey{Sender: "alice", Beneficiary: "bob", ID: 9}, got.Key(9))

	require.NoError(t, m.RemoveParties(ctx, 9))
	_, err = m.Parties(ctx, 9)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_ListBySender(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Put(ctx, types.PaymentKey{Sender: "alice", Beneficiary: "carol", ID: 3}, samplePayment()))
	require.NoError(t, m.Put(ctx, types.PaymentKey{Sender: "alice", Beneficiary: "bob", ID: 1}, samplePayment()))
	require.NoError(t, m.Put(ctx, types.PaymentKey{Sender: "dave", Beneficiary: "bob", ID: 2}, samplePayment()))

	entries, err := m.ListBySender(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, types.PaymentID(1), entries[0].Key.ID)
	assert.Equal(t, types.AccountID("carol"), entries[1].Key.Beneficiary)
}

func TestMemory_ListByStatus(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	pending := samplePayment()
	pending.State = types.RefundRequested(40)
	require.NoError(t, m.Put(ctx, types.PaymentKey{Sender: "dave", Beneficiary: "bob", ID: 4}, pending))
	require.NoError(t, m.Put(ctx, types.PaymentKey{Sender: "alice", Beneficiary: "bob", ID: 1}, samplePayment()))
	require.NoError(t, m.Put(ctx, types.PaymentKey{Sender: "alice", Beneficiary: "carol", ID: 2}, pending))

	entries, err := m.ListByStatus(ctx, types.StatusRefundRequested)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, types.PaymentKey{Sender: "alice", Beneficiary: "carol", ID: 2}, entries[0].Key)
	assert.Equal(t, types.PaymentKey{Sender: "dave", Beneficiary: "bob", ID: 4}, entries[1].Key)
	assert.Equal(t, types.BlockNumber(40), entries[1].Payment.State.CancelAt)

	none, err := m.ListByStatus(ctx, types.StatusNeedsReview)
	require.NoError(t, err)
	assert.Empty(t, none)
}
