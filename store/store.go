// Package store persists payment records, the id counter and the
// id-to-parties index.
package store

import (
	"context"
	"errors"

	"github.com/vitwit/payments/types"
)

var (
	// ErrNotFound is returned when a record or index entry does not exist.
	ErrNotFound = errors.New("not found")
	// ErrIDOverflow is returned when the id counter is saturated.
	ErrIDOverflow = errors.New("payment id counter overflow")
)

// Entry is a stored payment with its key.
type Entry struct {
	Key     types.PaymentKey `json:"key"`
	Payment *types.Payment   `json:"payment"`
}

// Store is the payment storage contract. Records are keyed by the full
// (sender, beneficiary, id) triple; the id alone is unique.
type Store interface {
	// NextID advances the counter and returns the new value.
	NextID(ctx context.Context) (types.PaymentID, error)
	Get(ctx context.Context, key types.PaymentKey) (*types.Payment, error)
	Put(ctx context.Context, key types.PaymentKey, payment *types.Payment) error
	Remove(ctx context.Context, key types.PaymentKey) error

	Parties(ctx context.Context, id types.PaymentID) (types.Parties, error)
	PutParties(ctx context.Context, id types.PaymentID, parties types.Parties) error
	RemoveParties(ctx context.Context, id types.PaymentID) error

	// ListBySender returns the sender's payments ordered by id.
	ListBySender(ctx context.Context, sender types.AccountID) ([]Entry, error)
	// ListByStatus returns every payment in status, ordered by id.
	ListByStatus(ctx context.Context, status types.Status) ([]Entry, error)
}
