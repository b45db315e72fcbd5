package payments

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitwit/payments/ledger"
	"github.com/vitwit/payments/store"
	"github.com/vitwit/payments/types"
)

var errInjected = errors.New("injected failure")

// faultyLedger fails movements touching the configured accounts.
type faultyLedger struct {
	*ledger.Memory
	failTransferTo types.AccountID
	failHoldOn     types.AccountID
}

func (f *faultyLedger) Transfer(ctx context.Context, asset types.AssetID, from, to types.AccountID, amount types.Balance, p ledger.Preservation) (types.Balance, error) {
	if to == f.failTransferTo {
		return 0, errInjected
	}
	return f.Memory.Transfer(ctx, asset, from, to, amount, p)
}

func (f *faultyLedger) Hold(ctx context.Context, asset types.AssetID, reason ledger.Reason, who types.AccountID, amount types.Balance) error {
	if who == f.failHoldOn {
		return errInjected
	}
	return f.Memory.Hold(ctx, asset, reason, who, amount)
}

func withFaults(transferTo, holdOn types.AccountID) harnessOption {
	return withLedger(func(m *ledger.Memory) ledger.Ledger {
		return &faultyLedger{Memory: m, failTransferTo: transferTo, failHoldOn: holdOn}
	})
}

type faultyStore struct {
	*store.Memory
	failPutParties bool
}

func (f *faultyStore) PutParties(ctx context.Context, id types.PaymentID, parties types.Parties) error {
	if f.failPutParties {
		return errInjected
	}
	return f.Memory.PutParties(ctx, id, parties)
}

func TestRollback_ReleaseFeeTransferFails(t *testing.T) {
	h := newHarness(t, withFaults(system, ""))
	id := h.pay()

	err := h.engine.Release(h.ctx, alice, bob, id)
	requireCode(t, err, types.ErrTransferFailed)
	assert.ErrorIs(t, err, errInjected)

	assert.Equal(t, types.StatusCreated, h.payment(id).State.Status)
	h.balances(map[types.AccountID][2]types.Balance{
		alice: {73, 7},
		bob:   {10, 20},
		ops:   {0, 0},
	})
	assert.Equal(t, []types.EventKind{types.EventPaymentCreated}, h.events.Kinds())
}

func TestRollback_ResolveIncentiveTransferFails(t *testing.T) {
	h := newHarness(t, withFaults(judge, ""))
	id := disputed(t, h)

	err := h.engine.ResolveDispute(h.ctx, types.Signed(judge), alice, bob, id,
		types.DisputeResult{InFavorOf: types.RoleBeneficiary, PercentBeneficiary: 90})
	requireCode(t, err, types.ErrTransferFailed)

	assert.Equal(t, types.StatusNeedsReview, h.payment(id).State.Status)
	h.balances(map[types.AccountID][2]types.Balance{
		alice:  {73, 7},
		bob:    {8, 22},
		system: {0, 0},
	})
}

func TestRollback_CancelReturnFails(t *testing.T) {
	h := newHarness(t, withFaults(alice, ""))
	id := h.pay()
	_, err := h.engine.RequestRefund(h.ctx, alice, bob, id)
	require.NoError(t, err)

	requireCode(t, h.engine.Cancel(h.ctx, bob, alice, id), types.ErrTransferFailed)

	p := h.payment(id)
	assert.Equal(t, types.StatusRefundRequested, p.State.Status)
	task, ok := h.engine.RefundTask(id)
	require.True(t, ok, "refund task must be restored")
	assert.Equal(t, p.State.CancelAt, task.At)
	h.balances(map[types.AccountID][2]types.Balance{alice: {73, 7}, bob: {10, 20}})
}

func TestRollback_DisputeHoldFails(t *testing.T) {
	h := newHarness(t, withFaults("", bob))
	id := h.pay()
	cancelAt, err := h.engine.RequestRefund(h.ctx, alice, bob, id)
	require.NoError(t, err)

	requireCode(t, h.engine.DisputeRefund(h.ctx, bob, alice, id), types.ErrHoldFailed)

	assert.Equal(t, types.RefundRequested(cancelAt), h.payment(id).State)
	task, ok := h.engine.RefundTask(id)
	require.True(t, ok)
	assert.Equal(t, cancelAt, task.At)
}

func TestRollback_ScheduledRefundFails(t *testing.T) {
	h := newHarness(t, withFaults(alice, ""))
	id := h.pay()
	cancelAt, err := h.engine.RequestRefund(h.ctx, alice, bob, id)
	require.NoError(t, err)

	h.clock.Set(cancelAt)
	n, err := h.engine.ServiceAgenda(h.ctx)
	requireCode(t, err, types.ErrTransferFailed)
	assert.Zero(t, n)

	assert.Equal(t, types.StatusRefundRequested, h.payment(id).State.Status)
	task, ok := h.engine.RefundTask(id)
	require.True(t, ok, "failed refund must stay scheduled")
	assert.Equal(t, cancelAt, task.At)
	assert.Equal(t, bob, task.Call.Origin)
	h.balances(map[types.AccountID][2]types.Balance{alice: {73, 7}, bob: {10, 20}})
}

func TestRollback_ScheduledRefundRetriesAfterCancelledContext(t *testing.T) {
	h := newHarness(t)
	id := h.pay()
	cancelAt, err := h.engine.RequestRefund(h.ctx, alice, bob, id)
	require.NoError(t, err)
	h.clock.Set(cancelAt)

	ctx, cancel := context.WithCancel(h.ctx)
	cancel()
	n, err := h.engine.ServiceAgenda(ctx)
	requireCode(t, err, types.ErrStorage)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, n)

	task, ok := h.engine.RefundTask(id)
	require.True(t, ok)
	assert.Equal(t, cancelAt, task.At)
	assert.Equal(t, types.RefundRequested(cancelAt), h.payment(id).State)

	h.nextBlock()
	n, err = h.engine.ServiceAgenda(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	h.absent(id)
	_, ok = h.engine.RefundTask(id)
	assert.False(t, ok)
	h.balances(map[types.AccountID][2]types.Balance{alice: {100, 0}, bob: {10, 0}})
}

func TestRollback_StoreFailure(t *testing.T) {
	s := &faultyStore{Memory: store.NewMemory(), failPutParties: true}
	h := newHarness(t, withOptions(WithStore(s)))

	_, err := h.engine.Pay(h.ctx, alice, bob, usd, 20, "")
	requireCode(t, err, types.ErrStorage)

	h.absent(1)
	h.balances(map[types.AccountID][2]types.Balance{alice: {100, 0}, bob: {10, 0}})
	assert.Zero(t, h.events.Len())

	s.failPutParties = false
	id := h.pay()
	assert.Equal(t, types.PaymentID(2), id, "a failed operation does not reuse its id")
}
