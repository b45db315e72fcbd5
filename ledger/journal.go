package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/vitwit/payments/types"
)

// Compensation reverses one effect that was applied during an operation.
type Compensation func(ctx context.Context) error

// Journal wraps a Ledger and records the inverse of every movement it applies,
// so that a multi-step operation can be unwound when a later step fails.
// Reads pass straight through. A Journal is used by one operation and discarded.
type Journal struct {
	inner Ledger
	undo  []Compensation
}

// NewJournal starts an empty journal over l.
func NewJournal(l Ledger) *Journal {
	return &Journal{inner: l}
}

// Defer records a compensation for an effect applied outside the ledger.
func (j *Journal) Defer(c Compensation) {
	j.undo = append(j.undo, c)
}

// Len returns the number of recorded compensations.
func (j *Journal) Len() int {
	return len(j.undo)
}

// Commit forgets every recorded compensation.
func (j *Journal) Commit() {
	j.undo = nil
}

// Rollback applies the recorded compensations in reverse order. It keeps going
// after a failed compensation and returns every failure joined.
func (j *Journal) Rollback(ctx context.Context) error {
	// Compensations must run even if the caller's context is already done.
	ctx = context.WithoutCancel(ctx)

	var errs []error
	for i := len(j.undo) - 1; i >= 0; i-- {
		if err := j.undo[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	j.undo = nil
	if len(errs) > 0 {
		return fmt.Errorf("rollback: %w", errors.Join(errs...))
	}
	return nil
}

func (j *Journal) Hold(ctx context.Context, asset types.AssetID, reason Reason, who types.AccountID, amount types.Balance) error {
	if err := j.inner.Hold(ctx, asset, reason, who, amount); err != nil {
		return err
	}
	j.Defer(func(ctx context.Context) error {
		_, err := j.inner.Release(ctx, asset, reason, who, amount, Exact)
		return err
	})
	return nil
}

func (j *Journal) Release(ctx context.Context, asset types.AssetID, reason Reason, who types.AccountID, amount types.Balance, precision Precision) (types.Balance, error) {
	released, err := j.inner.Release(ctx, asset, reason, who, amount, precision)
	if err != nil {
		return 0, err
	}
	j.Defer(func(ctx context.Context) error {
		return j.inner.Hold(ctx, asset, reason, who, released)
	})
	return released, nil
}

func (j *Journal) Transfer(ctx context.Context, asset types.AssetID, from, to types.AccountID, amount types.Balance, preservation Preservation) (types.Balance, error) {
	moved, err := j.inner.Transfer(ctx, asset, from, to, amount, preservation)
	if err != nil {
		return 0, err
	}
	j.Defer(func(ctx context.Context) error {
		_, err := j.inner.Transfer(ctx, asset, to, from, moved, Expendable)
		return err
	})
	return moved, nil
}

func (j *Journal) TransferAndHold(ctx context.Context, asset types.AssetID, reason Reason, from, to types.AccountID, amount types.Balance, preservation Preservation) (types.Balance, error) {
	moved, err := j.inner.TransferAndHold(ctx, asset, reason, from, to, amount, preservation)
	if err != nil {
		return 0, err
	}
	j.Defer(func(ctx context.Context) error {
		if _, err := j.inner.Release(ctx, asset, reason, to, moved, Exact); err != nil {
			return err
		}
		_, err := j.inner.Transfer(ctx, asset, to, from, moved, Expendable)
		return err
	})
	return moved, nil
}

func (j *Journal) Balance(ctx context.Context, asset types.AssetID, who types.AccountID) (types.Balance, error) {
	return j.inner.Balance(ctx, asset, who)
}

func (j *Journal) BalanceOnHold(ctx context.Context, asset types.AssetID, reason Reason, who types.AccountID) (types.Balance, error) {
	return j.inner.BalanceOnHold(ctx, asset, reason, who)
}
