package types

// EventKind names an event emitted by the engine
type EventKind string

const (
	EventPaymentCreated                EventKind = "PaymentCreated"
	EventPaymentReleased               EventKind = "PaymentReleased"
	EventPaymentCancelled              EventKind = "PaymentCancelled"
	EventPaymentRefunded               EventKind = "PaymentRefunded"
	EventPaymentCreatorRequestedRefund EventKind = "PaymentCreatorRequestedRefund"
	EventPaymentRefundDisputed         EventKind = "PaymentRefundDisputed"
	EventPaymentResolved               EventKind = "PaymentResolved"
	EventPaymentRequestCreated         EventKind = "PaymentRequestCreated"
	EventPaymentRequestCompleted       EventKind = "PaymentRequestCompleted"
)

// Event is an entry of the engine's audit log. Every event carries the
// parties; the remaining fields are set depending on Kind.
type Event struct {
	Kind        EventKind   `json:"kind"`
	Block       BlockNumber `json:"block"`
	Sender      AccountID   `json:"sender"`
	Beneficiary AccountID   `json:"beneficiary"`
	PaymentID   PaymentID   `json:"paymentId"`

	// PaymentCreated
	Asset  AssetID `json:"asset,omitempty"`
	Amount Balance `json:"amount,omitempty"`
	Remark string  `json:"remark,omitempty"`

	// PaymentCreatorRequestedRefund
	Expiry BlockNumber `json:"expiry,omitempty"`

	// PaymentResolved
	BeneficiaryShare uint8 `json:"beneficiaryShare,omitempty"`
}
