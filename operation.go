package payments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/vitwit/payments/ledger"
	"github.com/vitwit/payments/logger"
	"github.com/vitwit/payments/metrics"
	"github.com/vitwit/payments/scheduler"
	"github.com/vitwit/payments/types"
	"github.com/vitwit/payments/utils"
	"github.com/vitwit/payments/verification"
)

const outcomeOK = "ok"

// operation carries the state of one engine call. Every effect goes through
// the journal so the whole call can be undone.
type operation struct {
	id      string
	name    verification.Action
	now     types.BlockNumber
	asset   types.AssetID
	journal *ledger.Journal
	emitted []types.Event
}

func (op *operation) emit(ev types.Event) {
	ev.Block = op.now
	op.emitted = append(op.emitted, ev)
}

// run executes fn as a single atomic operation. If fn fails every recorded
// effect is compensated in reverse order and its events are dropped.
func (e *Engine) run(ctx context.Context, name verification.Action, fn func(op *operation) error) error {
	start := time.Now()

	e.mu.Lock()
	defer e.mu.Unlock()

	op := &operation{
		id:      uuid.NewString(),
		name:    name,
		now:     e.clock.CurrentBlock(),
		journal: ledger.NewJournal(e.ledger),
	}

	err := fn(op)
	if err != nil {
		if rbErr := op.journal.Rollback(ctx); rbErr != nil {
			e.logger.Error("Rollback failed", logger.Fields{
				"opId":      op.id,
				"operation": string(name),
				"block":     op.now,
				"error":     rbErr,
			})
		}
		e.logger.Warn("Operation rejected", logger.Fields{
			"opId":      op.id,
			"operation": string(name),
			"block":     op.now,
			"code":      types.CodeOf(err),
			"error":     err,
		})
		e.record(op, types.CodeOf(err), start)
		return err
	}
	op.journal.Commit()

	for _, ev := range op.emitted {
		e.logger.Info("Payment event", logger.Fields{
			"opId":        op.id,
			"event":       string(ev.Kind),
			"block":       ev.Block,
			"paymentId":   ev.PaymentID,
			"sender":      string(ev.Sender),
			"beneficiary": string(ev.Beneficiary),
		})
		e.events.Emit(ev)
	}
	e.record(op, outcomeOK, start)
	return nil
}

func (e *Engine) record(op *operation, outcome string, start time.Time) {
	if outcome == "" {
		outcome = "internal"
	}
	e.metrics.IncCounter(string(op.name), map[string]string{
		metrics.LabelOutcome: outcome,
		metrics.LabelAsset:   string(op.asset),
	})
	e.metrics.ObserveLatency(string(op.name), time.Since(start), nil)
}

// putPayment stores p under key. On rollback prev is restored, or the record
// removed when there was none.
func (e *Engine) putPayment(ctx context.Context, op *operation, key types.PaymentKey, p, prev *types.Payment) error {
	if err := e.store.Put(ctx, key, p); err != nil {
		return types.WrapError(types.ErrStorage, err, "store payment %s", key)
	}
	op.journal.Defer(func(ctx context.Context) error {
		if prev == nil {
			return e.store.Remove(ctx, key)
		}
		return e.store.Put(ctx, key, prev)
	})
	return nil
}

func (e *Engine) removePayment(ctx context.Context, op *operation, key types.PaymentKey, prev *types.Payment) error {
	if err := e.store.Remove(ctx, key); err != nil {
		return types.WrapError(types.ErrStorage, err, "remove payment %s", key)
	}
	op.journal.Defer(func(ctx context.Context) error {
		return e.store.Put(ctx, key, prev)
	})

	parties := types.Parties{Sender: key.Sender, Beneficiary: key.Beneficiary}
	if err := e.store.RemoveParties(ctx, key.ID); err != nil {
		return types.WrapError(types.ErrStorage, err, "remove parties of %d", key.ID)
	}
	op.journal.Defer(func(ctx context.Context) error {
		return e.store.PutParties(ctx, key.ID, parties)
	})
	return nil
}

func (e *Engine) putParties(ctx context.Context, op *operation, key types.PaymentKey) error {
	parties := types.Parties{Sender: key.Sender, Beneficiary: key.Beneficiary}
	if err := e.store.PutParties(ctx, key.ID, parties); err != nil {
		return types.WrapError(types.ErrStorage, err, "store parties of %d", key.ID)
	}
	op.journal.Defer(func(ctx context.Context) error {
		return e.store.RemoveParties(ctx, key.ID)
	})
	return nil
}

func (e *Engine) scheduleRefundTask(op *operation, id types.PaymentID, at types.BlockNumber, call scheduler.Call) error {
	name := utils.TaskName(id)
	if err := e.scheduler.ScheduleNamed(name, at, call); err != nil {
		return types.WrapError(types.ErrRefundQueueFull, err, "schedule refund of %d at block %d", id, at)
	}
	op.journal.Defer(func(context.Context) error {
		return e.scheduler.CancelNamed(name)
	})
	return nil
}

// cancelRefundTask drops the pending refund of id. A missing task is not an error.
func (e *Engine) cancelRefundTask(op *operation, id types.PaymentID) error {
	name := utils.TaskName(id)
	task, ok := e.scheduler.Lookup(name)
	if !ok {
		return nil
	}
	if err := e.scheduler.CancelNamed(name); err != nil {
		if errors.Is(err, scheduler.ErrNotFound) {
			return nil
		}
		return types.WrapError(types.ErrInvalidAction, err, "cancel refund of %d", id)
	}
	op.journal.Defer(func(context.Context) error {
		return e.scheduler.ScheduleNamed(task.Name, task.At, task.Call)
	})
	return nil
}
