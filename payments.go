// Package payments provides an escrowed payments engine: funds move from a
// sender into custody on the beneficiary, and are released, refunded on a
// timer, or split by a dispute resolver.
package payments

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vitwit/payments/config"
	"github.com/vitwit/payments/events"
	"github.com/vitwit/payments/fees"
	"github.com/vitwit/payments/ledger"
	"github.com/vitwit/payments/logger"
	"github.com/vitwit/payments/metrics"
	"github.com/vitwit/payments/scheduler"
	"github.com/vitwit/payments/settlement"
	"github.com/vitwit/payments/store"
	"github.com/vitwit/payments/types"
	"github.com/vitwit/payments/utils"
	"github.com/vitwit/payments/verification"
)

// Engine runs payment operations. Operations are serialized and atomic: a
// rejected operation leaves no ledger, store or scheduler effect and emits no event.
type Engine struct {
	cfg        *config.Config
	ledger     ledger.Ledger
	clock      scheduler.Clock
	store      store.Store
	scheduler  scheduler.Scheduler
	fees       fees.Handler
	resolver   DisputeResolver
	events     events.Sink
	logger     logger.Logger
	metrics    metrics.Recorder
	verifier   *verification.Verifier
	settlement *settlement.Service

	mu sync.Mutex
}

// New creates an engine over the given ledger and block clock. A nil config
// means config.Default(). Unless overridden by options the engine keeps
// payments in memory, schedules on an in-memory agenda, charges no fees and
// accepts no dispute resolver.
func New(cfg *config.Config, l ledger.Ledger, clock scheduler.Clock, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if l == nil {
		return nil, fmt.Errorf("ledger is required")
	}
	if clock == nil {
		return nil, fmt.Errorf("clock is required")
	}

	e := &Engine{
		cfg:        cfg,
		ledger:     l,
		clock:      clock,
		fees:       fees.None{},
		resolver:   NewStaticResolvers(),
		events:     events.Discard,
		logger:     logger.NoopLogger{},
		metrics:    metrics.Noop{},
		verifier:   verification.NewVerifier(),
		settlement: settlement.NewSettlementService(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.store == nil {
		e.store = store.NewMemory()
	}
	if e.scheduler == nil {
		agenda, err := scheduler.NewAgenda(cfg.MaxScheduledPerBlock)
		if err != nil {
			return nil, fmt.Errorf("create agenda: %w", err)
		}
		e.scheduler = agenda
	}
	if err := e.restoreRefundTasks(context.Background()); err != nil {
		return nil, err
	}
	return e, nil
}

// restoreRefundTasks schedules the pending refund of every stored
// refund-requested payment the agenda does not already hold, so a store
// reopened after a restart keeps its timed refunds.
func (e *Engine) restoreRefundTasks(ctx context.Context) error {
	entries, err := e.store.ListByStatus(ctx, types.StatusRefundRequested)
	if err != nil {
		return types.WrapError(types.ErrStorage, err, "list pending refunds")
	}
	restored := 0
	for _, entry := range entries {
		name := utils.TaskName(entry.Key.ID)
		if _, ok := e.scheduler.Lookup(name); ok {
			continue
		}
		call := scheduler.Call{Origin: entry.Key.Beneficiary, PaymentID: entry.Key.ID}
		if err := e.scheduler.ScheduleNamed(name, entry.Payment.State.CancelAt, call); err != nil {
			return types.WrapError(types.ErrRefundQueueFull, err, "restore refund of %d at block %d", entry.Key.ID, entry.Payment.State.CancelAt)
		}
		restored++
	}
	if restored > 0 {
		e.logger.Info("Refund tasks restored", logger.Fields{"count": restored})
	}
	return nil
}

// Config returns the engine configuration.
func (e *Engine) Config() *config.Config {
	return e.cfg
}

// Pay creates a payment from sender to beneficiary and moves its funds into custody.
func (e *Engine) Pay(
	ctx context.Context,
	sender, beneficiary types.AccountID,
	asset types.AssetID,
	amount types.Balance,
	remark string,
) (types.PaymentID, error) {
	var id types.PaymentID
	err := e.run(ctx, verification.ActionPay, func(op *operation) error {
		op.asset = asset
		if amount == 0 {
			return types.NewError(types.ErrInvalidAmount, "amount must be greater than zero")
		}
		if err := utils.ValidateRemark(remark, e.cfg.MaxRemarkLength); err != nil {
			return err
		}
		paymentFees, err := e.applyFees(asset, sender, beneficiary, amount, remark)
		if err != nil {
			return err
		}
		if id, err = e.nextID(ctx); err != nil {
			return err
		}

		key := types.PaymentKey{Sender: sender, Beneficiary: beneficiary, ID: id}
		if _, err := e.createPayment(ctx, op, key, asset, amount, paymentFees, verification.ActionPay); err != nil {
			return err
		}
		op.emit(types.Event{
			Kind:        types.EventPaymentCreated,
			Sender:      sender,
			Beneficiary: beneficiary,
			PaymentID:   id,
			Asset:       asset,
			Amount:      amount,
			Remark:      remark,
		})
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Release pays a created payment out to the beneficiary and its fee recipients.
func (e *Engine) Release(ctx context.Context, sender, beneficiary types.AccountID, id types.PaymentID) error {
	key := types.PaymentKey{Sender: sender, Beneficiary: beneficiary, ID: id}
	return e.run(ctx, verification.ActionRelease, func(op *operation) error {
		p, err := e.load(ctx, op, key, verification.ActionRelease)
		if err != nil {
			return err
		}
		if err := e.settlement.Settle(ctx, op.journal, key, p, nil); err != nil {
			return err
		}
		if err := e.finish(ctx, op, key, p, verification.ActionRelease); err != nil {
			return err
		}
		op.emit(types.Event{Kind: types.EventPaymentReleased, Sender: sender, Beneficiary: beneficiary, PaymentID: id})
		return nil
	})
}

// Cancel returns a created or refund-requested payment to the sender and
// deletes it. Only the beneficiary may cancel.
func (e *Engine) Cancel(ctx context.Context, beneficiary, sender types.AccountID, id types.PaymentID) error {
	key := types.PaymentKey{Sender: sender, Beneficiary: beneficiary, ID: id}
	return e.run(ctx, verification.ActionCancel, func(op *operation) error {
		return e.cancel(ctx, op, key)
	})
}

func (e *Engine) cancel(ctx context.Context, op *operation, key types.PaymentKey) error {
	p, err := e.load(ctx, op, key, verification.ActionCancel)
	if err != nil {
		return err
	}

	kind := types.EventPaymentCancelled
	if p.State.Status == types.StatusRefundRequested {
		kind = types.EventPaymentRefunded
		if err := e.cancelRefundTask(op, key.ID); err != nil {
			return err
		}
	}

	if err := e.settlement.Cancel(ctx, op.journal, key, p); err != nil {
		return err
	}
	if err := e.removePayment(ctx, op, key, p); err != nil {
		return err
	}
	op.emit(types.Event{Kind: kind, Sender: key.Sender, Beneficiary: key.Beneficiary, PaymentID: key.ID})
	return nil
}

// RequestRefund asks for a created payment to be returned. Unless the
// beneficiary disputes it, the payment is cancelled automatically once
// CancelBufferBlocks have passed. It returns the block the refund executes at.
func (e *Engine) RequestRefund(ctx context.Context, sender, beneficiary types.AccountID, id types.PaymentID) (types.BlockNumber, error) {
	key := types.PaymentKey{Sender: sender, Beneficiary: beneficiary, ID: id}
	var cancelAt types.BlockNumber
	err := e.run(ctx, verification.ActionRequestRefund, func(op *operation) error {
		p, err := e.load(ctx, op, key, verification.ActionRequestRefund)
		if err != nil {
			return err
		}

		cancelAt = op.now + e.cfg.CancelBufferBlocks
		if cancelAt < op.now {
			return types.NewError(types.ErrMathError, "refund block overflows")
		}
		call := scheduler.Call{Origin: beneficiary, PaymentID: id}
		if err := e.scheduleRefundTask(op, id, cancelAt, call); err != nil {
			return err
		}

		prev := p.Clone()
		p.State, _ = verification.NextState(verification.ActionRequestRefund, cancelAt)
		if err := e.putPayment(ctx, op, key, p, prev); err != nil {
			return err
		}
		op.emit(types.Event{
			Kind:        types.EventPaymentCreatorRequestedRefund,
			Sender:      sender,
			Beneficiary: beneficiary,
			PaymentID:   id,
			Expiry:      cancelAt,
		})
		return nil
	})
	if err != nil {
		return 0, err
	}
	return cancelAt, nil
}

// DisputeRefund contests a pending refund before it executes. The refund task
// is cancelled, the beneficiary stakes its own incentive and the payment waits
// for a resolver.
func (e *Engine) DisputeRefund(ctx context.Context, beneficiary, sender types.AccountID, id types.PaymentID) error {
	key := types.PaymentKey{Sender: sender, Beneficiary: beneficiary, ID: id}
	return e.run(ctx, verification.ActionDisputeRefund, func(op *operation) error {
		p, err := e.load(ctx, op, key, verification.ActionDisputeRefund)
		if err != nil {
			return err
		}
		if err := e.cancelRefundTask(op, id); err != nil {
			return err
		}
		if err := e.settlement.HoldIncentive(ctx, op.journal, key, p); err != nil {
			return err
		}

		prev := p.Clone()
		p.State, _ = verification.NextState(verification.ActionDisputeRefund, 0)
		if err := e.putPayment(ctx, op, key, p, prev); err != nil {
			return err
		}
		op.emit(types.Event{Kind: types.EventPaymentRefundDisputed, Sender: sender, Beneficiary: beneficiary, PaymentID: id})
		return nil
	})
}

// ResolveDispute settles a payment under review according to the resolver's ruling.
func (e *Engine) ResolveDispute(
	ctx context.Context,
	origin types.Origin,
	sender, beneficiary types.AccountID,
	id types.PaymentID,
	result types.DisputeResult,
) error {
	key := types.PaymentKey{Sender: sender, Beneficiary: beneficiary, ID: id}
	return e.run(ctx, verification.ActionResolveDispute, func(op *operation) error {
		resolver, err := e.resolver.EnsureResolver(origin)
		if err != nil {
			return err
		}
		if err := verification.ValidateDisputeResult(result); err != nil {
			return err
		}
		p, err := e.load(ctx, op, key, verification.ActionResolveDispute)
		if err != nil {
			return err
		}

		ruling := &settlement.Ruling{Result: result, Resolver: resolver}
		if err := e.settlement.Settle(ctx, op.journal, key, p, ruling); err != nil {
			return err
		}
		if err := e.finish(ctx, op, key, p, verification.ActionResolveDispute); err != nil {
			return err
		}
		op.emit(types.Event{
			Kind:             types.EventPaymentResolved,
			Sender:           sender,
			Beneficiary:      beneficiary,
			PaymentID:        id,
			BeneficiaryShare: result.PercentBeneficiary,
		})
		return nil
	})
}

// RequestPayment records a request by beneficiary for sender to pay amount.
// No funds move until the sender accepts.
func (e *Engine) RequestPayment(
	ctx context.Context,
	beneficiary, sender types.AccountID,
	asset types.AssetID,
	amount types.Balance,
) (types.PaymentID, error) {
	var id types.PaymentID
	err := e.run(ctx, verification.ActionRequestPayment, func(op *operation) error {
		op.asset = asset
		if amount == 0 {
			return types.NewError(types.ErrInvalidAmount, "amount must be greater than zero")
		}
		paymentFees, err := e.applyFees(asset, sender, beneficiary, amount, "")
		if err != nil {
			return err
		}
		if id, err = e.nextID(ctx); err != nil {
			return err
		}

		key := types.PaymentKey{Sender: sender, Beneficiary: beneficiary, ID: id}
		if _, err := e.createPayment(ctx, op, key, asset, amount, paymentFees, verification.ActionRequestPayment); err != nil {
			return err
		}
		op.emit(types.Event{Kind: types.EventPaymentRequestCreated, Sender: sender, Beneficiary: beneficiary, PaymentID: id})
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// AcceptAndPay funds a payment request and releases it in one step.
func (e *Engine) AcceptAndPay(ctx context.Context, sender, beneficiary types.AccountID, id types.PaymentID) error {
	key := types.PaymentKey{Sender: sender, Beneficiary: beneficiary, ID: id}
	return e.run(ctx, verification.ActionAcceptAndPay, func(op *operation) error {
		p, err := e.load(ctx, op, key, verification.ActionAcceptAndPay)
		if err != nil {
			return err
		}
		p.State = types.Created()
		if err := e.settlement.Reserve(ctx, op.journal, key, p); err != nil {
			return err
		}
		if err := e.settlement.Settle(ctx, op.journal, key, p, nil); err != nil {
			return err
		}
		if err := e.finish(ctx, op, key, p, verification.ActionAcceptAndPay); err != nil {
			return err
		}
		op.emit(types.Event{Kind: types.EventPaymentRequestCompleted, Sender: sender, Beneficiary: beneficiary, PaymentID: id})
		return nil
	})
}

// ServiceAgenda dispatches every refund task due at the current block. Each
// task runs as its own operation and leaves the agenda only when that
// operation commits, so a failed task fires again on the next call. Failures
// are returned joined and do not stop later tasks. It returns the number of
// tasks that succeeded.
func (e *Engine) ServiceAgenda(ctx context.Context) (int, error) {
	due := e.scheduler.Due(e.clock.CurrentBlock())

	var errs []error
	done := 0
	for _, task := range due {
		fired := false
		err := e.run(ctx, "scheduled_cancel", func(op *operation) error {
			// The task may have been cancelled or rescheduled since Due.
			current, ok := e.scheduler.Lookup(task.Name)
			if !ok || current.At > op.now {
				return nil
			}
			id := current.Call.PaymentID
			parties, err := e.store.Parties(ctx, id)
			if errors.Is(err, store.ErrNotFound) {
				return types.NewError(types.ErrInvalidPayment, "no parties recorded for payment %d", id)
			}
			if err != nil {
				return types.WrapError(types.ErrStorage, err, "load parties of %d", id)
			}
			if parties.Beneficiary != current.Call.Origin {
				return types.NewError(types.ErrInvalidAction, "task origin %s is not the beneficiary", current.Call.Origin)
			}
			if err := e.cancelRefundTask(op, id); err != nil {
				return err
			}
			if err := e.cancel(ctx, op, parties.Key(id)); err != nil {
				return err
			}
			fired = true
			return nil
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("refund of payment %d: %w", task.Call.PaymentID, err))
			continue
		}
		if fired {
			done++
		}
	}
	return done, errors.Join(errs...)
}

// Payment returns the stored payment for key.
func (e *Engine) Payment(ctx context.Context, key types.PaymentKey) (*types.Payment, error) {
	p, err := e.get(ctx, key)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, types.NewError(types.ErrInvalidPayment, "payment %s does not exist", key)
	}
	return p, nil
}

// PaymentsOf lists the payments sent by sender.
func (e *Engine) PaymentsOf(ctx context.Context, sender types.AccountID) ([]store.Entry, error) {
	entries, err := e.store.ListBySender(ctx, sender)
	if err != nil {
		return nil, types.WrapError(types.ErrStorage, err, "list payments of %s", sender)
	}
	return entries, nil
}

// RefundTask returns the scheduled refund of payment id, if any.
func (e *Engine) RefundTask(id types.PaymentID) (scheduler.Task, bool) {
	return e.scheduler.Lookup(utils.TaskName(id))
}

// createPayment stores a new payment record under key, reserving its funds
// unless it is only a request.
func (e *Engine) createPayment(
	ctx context.Context,
	op *operation,
	key types.PaymentKey,
	asset types.AssetID,
	amount types.Balance,
	paymentFees types.Fees,
	action verification.Action,
) (*types.Payment, error) {
	existing, err := e.get(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := e.verifier.Verify(action, existing, op.now); err != nil {
		return nil, err
	}

	incentive, err := utils.PercentOf(amount, e.cfg.IncentivePercentage)
	if err != nil {
		return nil, err
	}
	state, _ := verification.NextState(action, 0)
	p := &types.Payment{
		Asset:           asset,
		Amount:          amount,
		IncentiveAmount: incentive,
		State:           state,
		Fees:            paymentFees,
	}

	if state.Status == types.StatusCreated {
		if err := e.settlement.Reserve(ctx, op.journal, key, p); err != nil {
			return nil, err
		}
	}
	if err := e.putPayment(ctx, op, key, p, existing); err != nil {
		return nil, err
	}
	if err := e.putParties(ctx, op, key); err != nil {
		return nil, err
	}
	return p, nil
}

// applyFees asks the fee handler for the payment's fees and checks their bounds.
func (e *Engine) applyFees(asset types.AssetID, sender, beneficiary types.AccountID, amount types.Balance, remark string) (types.Fees, error) {
	f, err := e.fees.ApplyFees(asset, sender, beneficiary, amount, remark)
	if err != nil {
		return types.Fees{}, types.WrapError(types.ErrMathError, err, "apply fees")
	}
	if len(f.SenderPays) > e.cfg.MaxFees || len(f.BeneficiaryPays) > e.cfg.MaxFees {
		return types.Fees{}, types.NewError(types.ErrMaxFeesExceeded, "fee handler returned more than %d fees per side", e.cfg.MaxFees)
	}
	if _, err := f.SenderTotal(); err != nil {
		return types.Fees{}, err
	}
	if _, err := f.BeneficiaryTotal(); err != nil {
		return types.Fees{}, err
	}
	return f, nil
}

func (e *Engine) nextID(ctx context.Context) (types.PaymentID, error) {
	id, err := e.store.NextID(ctx)
	if errors.Is(err, store.ErrIDOverflow) {
		return 0, types.WrapError(types.ErrIDOverflow, err, "payment ids exhausted")
	}
	if err != nil {
		return 0, types.WrapError(types.ErrStorage, err, "allocate payment id")
	}
	return id, nil
}

// load fetches the payment under key and verifies action against it.
func (e *Engine) load(ctx context.Context, op *operation, key types.PaymentKey, action verification.Action) (*types.Payment, error) {
	p, err := e.get(ctx, key)
	if err != nil {
		return nil, err
	}
	if p != nil {
		op.asset = p.Asset
	}
	if err := e.verifier.Verify(action, p, op.now); err != nil {
		return nil, err
	}
	return p, nil
}

func (e *Engine) get(ctx context.Context, key types.PaymentKey) (*types.Payment, error) {
	p, err := e.store.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, types.WrapError(types.ErrStorage, err, "load payment %s", key)
	}
	return p, nil
}

// finish marks p as settled by action and stores it.
func (e *Engine) finish(ctx context.Context, op *operation, key types.PaymentKey, p *types.Payment, action verification.Action) error {
	prev := p.Clone()
	p.State, _ = verification.NextState(action, 0)
	return e.putPayment(ctx, op, key, p, prev)
}
