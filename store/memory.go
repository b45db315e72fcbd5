package store

import (
	"context"
	"sort"
	"sync"

	"github.com/vitwit/payments/types"
)

// Memory is a Store backed by maps.
type Memory struct {
	mu       sync.RWMutex
	lastID   types.PaymentID
	payments map[types.AccountID]map[types.AccountID]map[types.PaymentID]*types.Payment
	parties  map[types.PaymentID]types.Parties
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		payments: make(map[types.AccountID]map[types.AccountID]map[types.PaymentID]*types.Payment),
		parties:  make(map[types.PaymentID]types.Parties),
	}
}

// NewMemoryFrom creates an in-memory store whose counter starts at lastID.
func NewMemoryFrom(lastID types.PaymentID) *Memory {
	m := NewMemory()
	m.lastID = lastID
	return m
}

func (m *Memory) NextID(ctx context.Context) (types.PaymentID, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lastID == types.MaxPaymentID {
		return 0, ErrIDOverflow
	}
	m.lastID++
	return m.lastID, nil
}

func (m *Memory) Get(ctx context.Context, key types.PaymentKey) (*types.Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.payments[key.Sender][key.Beneficiary][key.ID]
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

func (m *Memory) Put(ctx context.Context, key types.PaymentKey, payment *types.Payment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	byBeneficiary, ok := m.payments[key.Sender]
	if !ok {
		byBeneficiary = make(map[types.AccountID]map[types.PaymentID]*types.Payment)
		m.payments[key.Sender] = byBeneficiary
	}
	byID, ok := byBeneficiary[key.Beneficiary]
	if !ok {
		byID = make(map[types.PaymentID]*types.Payment)
		byBeneficiary[key.Beneficiary] = byID
	}
	byID[key.ID] = payment.Clone()
	return nil
}

func (m *Memory) Remove(ctx context.Context, key types.PaymentKey) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	byID := m.payments[key.Sender][key.Beneficiary]
	if _, ok := byID[key.ID]; !ok {
		return ErrNotFound
	}
	delete(byID, key.ID)
	if len(byID) == 0 {
		delete(m.payments[key.Sender], key.Beneficiary)
	}
	if len(m.payments[key.Sender]) == 0 {
		delete(m.payments, key.Sender)
	}
	return nil
}

func (m *Memory) Parties(ctx context.Context, id types.PaymentID) (types.Parties, error) {
	if err := ctx.Err(); err != nil {
		return types.Parties{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.parties[id]
	if !ok {
		return types.Parties{}, ErrNotFound
	}
	return p, nil
}

func (m *Memory) PutParties(ctx context.Context, id types.PaymentID, parties types.Parties) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.parties[id] = parties
	return nil
}

func (m *Memory) RemoveParties(ctx context.Context, id types.PaymentID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.parties[id]; !ok {
		return ErrNotFound
	}
	delete(m.parties, id)
	return nil
}

func (m *Memory) ListBySender(ctx context.Context, sender types.AccountID) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Entry
	for beneficiary, byID := range m.payments[sender] {
		for id, p := range byID {
			out = append(out, Entry{
				Key:     types.PaymentKey{Sender: sender, Beneficiary: beneficiary, ID: id},
				Payment: p.Clone(),
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.ID < out[j].Key.ID })
	return out, nil
}

func (m *Memory) ListByStatus(ctx context.Context, status types.Status) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Entry
	for sender, byBeneficiary := range m.payments {
		for beneficiary, byID := range byBeneficiary {
			for id, p := range byID {
				if p.State.Status != status {
					continue
				}
				out = append(out, Entry{
					Key:     types.PaymentKey{Sender: sender, Beneficiary: beneficiary, ID: id},
					Payment: p.Clone(),
				})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.ID < out[j].Key.ID })
	return out, nil
}
