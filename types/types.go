package types

import (
	"fmt"
	"math"
	"math/bits"
)

// AccountID identifies a party known to the asset ledger.
type AccountID string

// AssetID identifies an asset held by the ledger.
type AssetID string

// Balance is an amount of an asset in its smallest unit.
type Balance uint64

// BlockNumber is the height of a block.
type BlockNumber uint64

// PaymentID is allocated from a single monotonic counter.
type PaymentID uint64

// MaxPaymentID is the last id the allocator can hand out.
const MaxPaymentID = PaymentID(math.MaxUint64)

// Status represents the lifecycle stage of a payment
type Status string

const (
	StatusCreated          Status = "created"
	StatusNeedsReview      Status = "needs_review"
	StatusRefundRequested  Status = "refund_requested"
	StatusPaymentRequested Status = "payment_requested"
	StatusFinished         Status = "finished"
)

// State is the status of a payment plus the block at which a requested
// refund is executed. CancelAt is zero unless Status is StatusRefundRequested.
type State struct {
	Status   Status      `json:"status"`
	CancelAt BlockNumber `json:"cancelAt,omitempty"`
}

// Created returns the initial state of a funded payment.
func Created() State { return State{Status: StatusCreated} }

// RefundRequested returns the state of a payment awaiting an automatic refund at block.
func RefundRequested(at BlockNumber) State {
	return State{Status: StatusRefundRequested, CancelAt: at}
}

func (s State) String() string {
	if s.Status == StatusRefundRequested {
		return fmt.Sprintf("%s(%d)", s.Status, s.CancelAt)
	}
	return string(s.Status)
}

// Role names a party of a payment.
type Role string

const (
	RoleSender      Role = "sender"
	RoleBeneficiary Role = "beneficiary"
)

// Fee is a single amount owed to a recipient.
// Mandatory fees are paid even when a dispute is resolved; optional fees are waived then.
type Fee struct {
	Recipient AccountID `json:"recipient"`
	Amount    Balance   `json:"amount"`
	Mandatory bool      `json:"mandatory"`
}

// Fees are the fees charged on each side of a payment, captured at creation.
type Fees struct {
	SenderPays      []Fee `json:"senderPays,omitempty"`
	BeneficiaryPays []Fee `json:"beneficiaryPays,omitempty"`
}

// SenderTotal sums every fee paid by the sender.
func (f Fees) SenderTotal() (Balance, error) { return sumFees(f.SenderPays) }

// BeneficiaryTotal sums every fee paid by the beneficiary.
func (f Fees) BeneficiaryTotal() (Balance, error) { return sumFees(f.BeneficiaryPays) }

func sumFees(list []Fee) (Balance, error) {
	var total Balance
	for _, fee := range list {
		sum, carry := bits.Add64(uint64(total), uint64(fee.Amount), 0)
		if carry != 0 {
			return 0, &PaymentError{
				Code:    ErrBalanceOverflow,
				Message: "fee total overflows balance",
			}
		}
		total = Balance(sum)
	}
	return total, nil
}

// Payment is an escrowed transfer between a sender and a beneficiary.
type Payment struct {
	Asset           AssetID `json:"asset"`
	Amount          Balance `json:"amount"`
	IncentiveAmount Balance `json:"incentiveAmount"`
	State           State   `json:"state"`
	Fees            Fees    `json:"fees"`
}

// Clone returns a deep copy of the payment.
func (p *Payment) Clone() *Payment {
	if p == nil {
		return nil
	}
	c := *p
	c.Fees.SenderPays = append([]Fee(nil), p.Fees.SenderPays...)
	c.Fees.BeneficiaryPays = append([]Fee(nil), p.Fees.BeneficiaryPays...)
	return &c
}

// PaymentKey addresses a payment record.
type PaymentKey struct {
	Sender      AccountID `json:"sender"`
	Beneficiary AccountID `json:"beneficiary"`
	ID          PaymentID `json:"id"`
}

func (k PaymentKey) String() string {
	return fmt.Sprintf("%s->%s#%d", k.Sender, k.Beneficiary, k.ID)
}

// Parties are the two accounts behind a payment id.
type Parties struct {
	Sender      AccountID `json:"sender"`
	Beneficiary AccountID `json:"beneficiary"`
}

// Key builds the record key for id.
func (p Parties) Key(id PaymentID) PaymentKey {
	return PaymentKey{Sender: p.Sender, Beneficiary: p.Beneficiary, ID: id}
}

// DisputeResult is the resolver's ruling on a disputed payment.
// PercentBeneficiary is the beneficiary's share of the principal.
type DisputeResult struct {
	InFavorOf          Role  `json:"inFavorOf" validate:"required,oneof=sender beneficiary"`
	PercentBeneficiary uint8 `json:"percentBeneficiary" validate:"percent"`
}

// OriginKind classifies the caller of an operation.
type OriginKind string

const (
	OriginSigned   OriginKind = "signed"
	OriginResolver OriginKind = "resolver"
	OriginRoot     OriginKind = "root"
)

// Origin is the caller of a privileged operation.
type Origin struct {
	Kind OriginKind `json:"kind"`
	Who  AccountID  `json:"who,omitempty"`
}

// Signed returns the origin of a signed account.
func Signed(who AccountID) Origin { return Origin{Kind: OriginSigned, Who: who} }
