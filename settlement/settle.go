// Package settlement moves the funds of a payment on the asset ledger:
// reserving them at creation, returning them on cancel, and paying them out on
// release or dispute resolution.
package settlement

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/vitwit/payments/ledger"
	"github.com/vitwit/payments/types"
	"github.com/vitwit/payments/utils"
)

// Ruling is a dispute result along with the account collecting the forfeited incentive.
type Ruling struct {
	Result   types.DisputeResult
	Resolver types.AccountID
}

// Service applies custody movements under a single hold reason. Every method
// takes the ledger to act on so callers can pass a ledger.Journal and roll back
// the whole operation if a later step fails.
type Service struct {
	reason ledger.Reason
}

// NewSettlementService creates a settlement service holding under ledger.ReasonTransferPayment.
func NewSettlementService() *Service {
	return &Service{reason: ledger.ReasonTransferPayment}
}

// Reason returns the hold reason the service uses.
func (s *Service) Reason() ledger.Reason {
	return s.reason
}

// ExpectedHolds returns the balances that must be on hold on each party for a
// payment in its current state.
func ExpectedHolds(p *types.Payment) (sender, beneficiary types.Balance, err error) {
	switch p.State.Status {
	case types.StatusCreated, types.StatusRefundRequested:
		sender, err = senderHold(p)
		return sender, p.Amount, err
	case types.StatusNeedsReview:
		if sender, err = senderHold(p); err != nil {
			return 0, 0, err
		}
		beneficiary, err = utils.CheckedAdd(p.Amount, p.IncentiveAmount)
		return sender, beneficiary, err
	}
	return 0, 0, nil
}

// senderHold is every sender fee plus the incentive.
func senderHold(p *types.Payment) (types.Balance, error) {
	fees, err := p.Fees.SenderTotal()
	if err != nil {
		return 0, err
	}
	return utils.CheckedAdd(fees, p.IncentiveAmount)
}

// Reserve holds the sender's fees and incentive and moves the principal onto
// the beneficiary's balance on hold.
func (s *Service) Reserve(ctx context.Context, l ledger.Ledger, key types.PaymentKey, p *types.Payment) error {
	hold, err := senderHold(p)
	if err != nil {
		return err
	}
	if err := s.hold(ctx, l, p.Asset, key.Sender, hold); err != nil {
		return err
	}
	if p.Amount == 0 {
		return nil
	}
	if _, err := l.TransferAndHold(ctx, p.Asset, s.reason, key.Sender, key.Beneficiary, p.Amount, ledger.Expendable); err != nil {
		return types.WrapError(types.ErrTransferFailed, err, "move %d from %s onto hold of %s", p.Amount, key.Sender, key.Beneficiary)
	}
	return nil
}

// Cancel returns every held fund and the principal to the sender.
func (s *Service) Cancel(ctx context.Context, l ledger.Ledger, key types.PaymentKey, p *types.Payment) error {
	hold, err := senderHold(p)
	if err != nil {
		return err
	}
	if err := s.release(ctx, l, p.Asset, key.Sender, hold); err != nil {
		return err
	}
	if err := s.release(ctx, l, p.Asset, key.Beneficiary, p.Amount); err != nil {
		return err
	}
	return s.transfer(ctx, l, p.Asset, key.Beneficiary, key.Sender, p.Amount)
}

// HoldIncentive holds the beneficiary's own incentive stake when it disputes a refund.
func (s *Service) HoldIncentive(ctx context.Context, l ledger.Ledger, key types.PaymentKey, p *types.Payment) error {
	return s.hold(ctx, l, p.Asset, key.Beneficiary, p.IncentiveAmount)
}

// Settle pays out a payment. Without a ruling every fee is paid and the
// beneficiary keeps the principal. With a ruling only mandatory fees are paid,
// the principal is split by the beneficiary percentage and the losing party's
// incentive goes to the resolver.
func (s *Service) Settle(ctx context.Context, l ledger.Ledger, key types.PaymentKey, p *types.Payment, ruling *Ruling) error {
	hold, err := senderHold(p)
	if err != nil {
		return err
	}
	if err := s.release(ctx, l, p.Asset, key.Sender, hold); err != nil {
		return err
	}

	if ruling == nil {
		if err := s.release(ctx, l, p.Asset, key.Beneficiary, p.Amount); err != nil {
			return err
		}
		if err := s.payFees(ctx, l, p.Asset, key.Sender, p.Fees.SenderPays, false); err != nil {
			return err
		}
		return s.payFees(ctx, l, p.Asset, key.Beneficiary, p.Fees.BeneficiaryPays, false)
	}

	beneficiaryHold, err := utils.CheckedAdd(p.Amount, p.IncentiveAmount)
	if err != nil {
		return err
	}
	if err := s.release(ctx, l, p.Asset, key.Beneficiary, beneficiaryHold); err != nil {
		return err
	}
	if err := s.payFees(ctx, l, p.Asset, key.Sender, p.Fees.SenderPays, true); err != nil {
		return err
	}
	if err := s.payFees(ctx, l, p.Asset, key.Beneficiary, p.Fees.BeneficiaryPays, true); err != nil {
		return err
	}

	toBeneficiary, err := utils.PercentOf(p.Amount, decimal.NewFromInt(int64(ruling.Result.PercentBeneficiary)))
	if err != nil {
		return err
	}
	toSender := utils.SaturatingSub(p.Amount, toBeneficiary)
	if err := s.transfer(ctx, l, p.Asset, key.Beneficiary, key.Sender, toSender); err != nil {
		return err
	}

	loser := key.Sender
	if ruling.Result.InFavorOf == types.RoleSender {
		loser = key.Beneficiary
	}
	return s.transfer(ctx, l, p.Asset, loser, ruling.Resolver, p.IncentiveAmount)
}

func (s *Service) payFees(ctx context.Context, l ledger.Ledger, asset types.AssetID, payer types.AccountID, fees []types.Fee, mandatoryOnly bool) error {
	for _, fee := range fees {
		if mandatoryOnly && !fee.Mandatory {
			continue
		}
		if err := s.transfer(ctx, l, asset, payer, fee.Recipient, fee.Amount); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) hold(ctx context.Context, l ledger.Ledger, asset types.AssetID, who types.AccountID, amount types.Balance) error {
	if amount == 0 {
		return nil
	}
	if err := l.Hold(ctx, asset, s.reason, who, amount); err != nil {
		return types.WrapError(types.ErrHoldFailed, err, "hold %d on %s", amount, who)
	}
	return nil
}

func (s *Service) release(ctx context.Context, l ledger.Ledger, asset types.AssetID, who types.AccountID, amount types.Balance) error {
	if amount == 0 {
		return nil
	}
	if _, err := l.Release(ctx, asset, s.reason, who, amount, ledger.Exact); err != nil {
		return types.WrapError(types.ErrReleaseFailed, err, "release %d held on %s", amount, who)
	}
	return nil
}

func (s *Service) transfer(ctx context.Context, l ledger.Ledger, asset types.AssetID, from, to types.AccountID, amount types.Balance) error {
	if amount == 0 || from == to {
		return nil
	}
	if _, err := l.Transfer(ctx, asset, from, to, amount, ledger.Expendable); err != nil {
		return types.WrapError(types.ErrTransferFailed, err, "transfer %d from %s to %s", amount, from, to)
	}
	return nil
}
