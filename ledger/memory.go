package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/vitwit/payments/types"
	"github.com/vitwit/payments/utils"
)

type account struct {
	free types.Balance
	held map[Reason]types.Balance
}

func (a *account) total() types.Balance {
	t := a.free
	for _, h := range a.held {
		t = utils.SaturatingAdd(t, h)
	}
	return t
}

// Memory is an in-memory multi-asset ledger.
type Memory struct {
	mu                 sync.RWMutex
	accounts           map[types.AssetID]map[types.AccountID]*account
	existentialDeposit types.Balance
}

// MemoryOption configures a Memory ledger.
type MemoryOption func(*Memory)

// WithExistentialDeposit sets the minimum free balance Preserve transfers keep.
func WithExistentialDeposit(ed types.Balance) MemoryOption {
	return func(m *Memory) {
		m.existentialDeposit = ed
	}
}

// NewMemory creates an empty in-memory ledger.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{accounts: make(map[types.AssetID]map[types.AccountID]*account)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) get(asset types.AssetID, who types.AccountID) *account {
	accs, ok := m.accounts[asset]
	if !ok {
		accs = make(map[types.AccountID]*account)
		m.accounts[asset] = accs
	}
	acc, ok := accs[who]
	if !ok {
		acc = &account{held: make(map[Reason]types.Balance)}
		accs[who] = acc
	}
	return acc
}

// Mint credits amount to who's free balance.
func (m *Memory) Mint(asset types.AssetID, who types.AccountID, amount types.Balance) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	acc := m.get(asset, who)
	free, err := utils.CheckedAdd(acc.free, amount)
	if err != nil {
		return fmt.Errorf("mint %d to %s: %w", amount, who, ErrOverflow)
	}
	acc.free = free
	return nil
}

func (m *Memory) Hold(ctx context.Context, asset types.AssetID, reason Reason, who types.AccountID, amount types.Balance) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	acc := m.get(asset, who)
	if acc.free < amount {
		return fmt.Errorf("hold %d on %s: free %d: %w", amount, who, acc.free, ErrInsufficientBalance)
	}
	held, err := utils.CheckedAdd(acc.held[reason], amount)
	if err != nil {
		return fmt.Errorf("hold %d on %s: %w", amount, who, ErrOverflow)
	}
	acc.free -= amount
	acc.held[reason] = held
	return nil
}

func (m *Memory) Release(ctx context.Context, asset types.AssetID, reason Reason, who types.AccountID, amount types.Balance, precision Precision) (types.Balance, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	acc := m.get(asset, who)
	held := acc.held[reason]
	if held < amount {
		if precision == Exact {
			return 0, fmt.Errorf("release %d from %s: held %d: %w", amount, who, held, ErrInsufficientHeld)
		}
		amount = held
	}
	free, err := utils.CheckedAdd(acc.free, amount)
	if err != nil {
		return 0, fmt.Errorf("release %d from %s: %w", amount, who, ErrOverflow)
	}
	acc.free = free
	if held == amount {
		delete(acc.held, reason)
	} else {
		acc.held[reason] = held - amount
	}
	return amount, nil
}

func (m *Memory) Transfer(ctx context.Context, asset types.AssetID, from, to types.AccountID, amount types.Balance, preservation Preservation) (types.Balance, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	src, dst, err := m.checkDebit(asset, from, to, amount, preservation)
	if err != nil {
		return 0, fmt.Errorf("transfer %d from %s to %s: %w", amount, from, to, err)
	}
	if from == to {
		return amount, nil
	}
	src.free -= amount
	dst.free += amount
	return amount, nil
}

func (m *Memory) TransferAndHold(ctx context.Context, asset types.AssetID, reason Reason, from, to types.AccountID, amount types.Balance, preservation Preservation) (types.Balance, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	src, dst, err := m.checkDebit(asset, from, to, amount, preservation)
	if err != nil {
		return 0, fmt.Errorf("transfer and hold %d from %s to %s: %w", amount, from, to, err)
	}
	held, err := utils.CheckedAdd(dst.held[reason], amount)
	if err != nil {
		return 0, fmt.Errorf("transfer and hold %d on %s: %w", amount, to, ErrOverflow)
	}
	src.free -= amount
	dst.held[reason] = held
	return amount, nil
}

// checkDebit validates that amount can leave from and land on to.
func (m *Memory) checkDebit(asset types.AssetID, from, to types.AccountID, amount types.Balance, preservation Preservation) (*account, *account, error) {
	src := m.get(asset, from)
	dst := m.get(asset, to)
	if src.free < amount {
		return nil, nil, fmt.Errorf("free %d: %w", src.free, ErrInsufficientBalance)
	}
	if preservation == Preserve && src.free-amount < m.existentialDeposit {
		return nil, nil, ErrWouldReap
	}
	if from != to && dst.total() > types.Balance(^uint64(0))-amount {
		return nil, nil, ErrOverflow
	}
	return src, dst, nil
}

func (m *Memory) Balance(ctx context.Context, asset types.AssetID, who types.AccountID) (types.Balance, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	acc, ok := m.accounts[asset][who]
	if !ok {
		return 0, nil
	}
	return acc.free, nil
}

func (m *Memory) BalanceOnHold(ctx context.Context, asset types.AssetID, reason Reason, who types.AccountID) (types.Balance, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	acc, ok := m.accounts[asset][who]
	if !ok {
		return 0, nil
	}
	return acc.held[reason], nil
}

// Total returns free plus every held balance of who.
func (m *Memory) Total(asset types.AssetID, who types.AccountID) types.Balance {
	m.mu.RLock()
	defer m.mu.RUnlock()

	acc, ok := m.accounts[asset][who]
	if !ok {
		return 0
	}
	return acc.total()
}

// Issuance sums the totals of every account holding asset.
func (m *Memory) Issuance(asset types.AssetID) types.Balance {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var sum types.Balance
	for _, acc := range m.accounts[asset] {
		sum = utils.SaturatingAdd(sum, acc.total())
	}
	return sum
}

// Accounts lists the accounts known for asset, sorted.
func (m *Memory) Accounts(asset types.AssetID) []types.AccountID {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.AccountID, 0, len(m.accounts[asset]))
	for who := range m.accounts[asset] {
		out = append(out, who)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
