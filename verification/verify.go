// Package verification enforces the payment state machine: which actions are
// legal from which states, and what state each action leads to.
package verification

import (
	"github.com/vitwit/payments/types"
	"github.com/vitwit/payments/utils"
)

// Action is an engine operation that reads or changes a payment's state.
type Action string

const (
	ActionPay            Action = "pay"
	ActionRelease        Action = "release"
	ActionCancel         Action = "cancel"
	ActionRequestRefund  Action = "request_refund"
	ActionDisputeRefund  Action = "dispute_refund"
	ActionResolveDispute Action = "resolve_dispute"
	ActionRequestPayment Action = "request_payment"
	ActionAcceptAndPay   Action = "accept_and_pay"
)

// transitions lists the statuses each action may start from.
var transitions = map[Action][]types.Status{
	ActionRelease:        {types.StatusCreated},
	ActionCancel:         {types.StatusCreated, types.StatusRefundRequested},
	ActionRequestRefund:  {types.StatusCreated},
	ActionDisputeRefund:  {types.StatusRefundRequested},
	ActionResolveDispute: {types.StatusNeedsReview},
	ActionAcceptAndPay:   {types.StatusPaymentRequested},
}

// Verifier checks actions against the state of the payment they target.
type Verifier struct{}

// NewVerifier creates a Verifier.
func NewVerifier() *Verifier {
	return &Verifier{}
}

// Verify reports whether action may run on existing at block now. existing is
// nil when no record is stored for the key.
func (v *Verifier) Verify(action Action, existing *types.Payment, now types.BlockNumber) error {
	if action == ActionPay || action == ActionRequestPayment {
		return verifyCreate(existing)
	}

	allowed, ok := transitions[action]
	if !ok {
		return types.NewError(types.ErrInvalidAction, "unknown action %q", action)
	}
	if existing == nil {
		return types.NewError(types.ErrInvalidPayment, "payment does not exist")
	}

	status := existing.State.Status
	if status == types.StatusFinished {
		if action == ActionRelease || action == ActionCancel {
			return types.NewError(types.ErrPaymentAlreadyReleased, "payment is already %s", status)
		}
		return types.NewError(types.ErrInvalidAction, "%s not allowed on a finished payment", action)
	}
	if !contains(allowed, status) {
		return types.NewError(types.ErrInvalidAction, "%s not allowed in state %s", action, existing.State)
	}

	if action == ActionDisputeRefund && existing.State.CancelAt <= now {
		return types.NewError(types.ErrInvalidAction, "refund window closed at block %d", existing.State.CancelAt)
	}
	return nil
}

// verifyCreate allows a new record only where none exists or where a payment
// request is being fulfilled.
func verifyCreate(existing *types.Payment) error {
	if existing == nil || existing.State.Status == types.StatusPaymentRequested {
		return nil
	}
	return types.NewError(types.ErrPaymentAlreadyInProcess, "payment is already %s", existing.State)
}

// NextState returns the state a payment is left in after action. ok is false
// when the action removes the record.
func NextState(action Action, cancelAt types.BlockNumber) (state types.State, ok bool) {
	switch action {
	case ActionPay:
		return types.Created(), true
	case ActionRequestPayment:
		return types.State{Status: types.StatusPaymentRequested}, true
	case ActionRequestRefund:
		return types.RefundRequested(cancelAt), true
	case ActionDisputeRefund:
		return types.State{Status: types.StatusNeedsReview}, true
	case ActionRelease, ActionResolveDispute, ActionAcceptAndPay:
		return types.State{Status: types.StatusFinished}, true
	}
	return types.State{}, false
}

// ValidateDisputeResult checks a resolver ruling.
func ValidateDisputeResult(r types.DisputeResult) error {
	if err := utils.ValidateStruct(r); err != nil {
		return types.WrapError(types.ErrInvalidAction, err, "invalid dispute result")
	}
	return nil
}

func contains(statuses []types.Status, s types.Status) bool {
	for _, candidate := range statuses {
		if candidate == s {
			return true
		}
	}
	return false
}
