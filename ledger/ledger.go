// Package ledger defines the asset ledger the payments engine holds funds in,
// along with an in-memory implementation and a compensating journal.
package ledger

import (
	"context"
	"errors"

	"github.com/vitwit/payments/types"
)

// Reason qualifies a hold so that unrelated subsystems holding funds on the
// same account do not interfere.
type Reason string

// ReasonTransferPayment is the only reason the payments engine holds under.
const ReasonTransferPayment Reason = "payments:transfer_payment"

// Precision controls how a release treats a shortfall.
type Precision int

const (
	// Exact fails unless the whole amount can be released.
	Exact Precision = iota
	// BestEffort releases as much as is held, up to the amount.
	BestEffort
)

// Preservation controls whether a transfer may reap the source account.
type Preservation int

const (
	// Expendable allows the source free balance to drop to zero.
	Expendable Preservation = iota
	// Preserve keeps at least the existential deposit on the source.
	Preserve
)

var (
	ErrInsufficientBalance = errors.New("insufficient free balance")
	ErrInsufficientHeld    = errors.New("insufficient balance on hold")
	ErrWouldReap           = errors.New("transfer would drop account below existential deposit")
	ErrOverflow            = errors.New("balance overflow")
	ErrUnknownAsset        = errors.New("unknown asset")
)

// Ledger is the asset ledger contract the engine depends on. Every movement is
// all-or-nothing: an error means nothing changed.
type Ledger interface {
	// Hold moves amount from who's free balance to its balance on hold under reason.
	Hold(ctx context.Context, asset types.AssetID, reason Reason, who types.AccountID, amount types.Balance) error
	// Release moves up to amount held under reason back to who's free balance.
	Release(ctx context.Context, asset types.AssetID, reason Reason, who types.AccountID, amount types.Balance, precision Precision) (types.Balance, error)
	// Transfer moves amount between free balances.
	Transfer(ctx context.Context, asset types.AssetID, from, to types.AccountID, amount types.Balance, preservation Preservation) (types.Balance, error)
	// TransferAndHold moves amount from from's free balance onto to's balance on hold under reason.
	TransferAndHold(ctx context.Context, asset types.AssetID, reason Reason, from, to types.AccountID, amount types.Balance, preservation Preservation) (types.Balance, error)
	// Balance returns the free balance of who.
	Balance(ctx context.Context, asset types.AssetID, who types.AccountID) (types.Balance, error)
	// BalanceOnHold returns the balance held on who under reason.
	BalanceOnHold(ctx context.Context, asset types.AssetID, reason Reason, who types.AccountID) (types.Balance, error)
}
