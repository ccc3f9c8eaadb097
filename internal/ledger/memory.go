package ledger

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/spigotlabs/spigot-api/internal/helpers"
)

// Memory is an in-process ledger used for local mode and tests. The pool
// account is fixed at construction; Transfer debits it, TransferFrom moves
// between arbitrary accounts.
type Memory struct {
	mu       sync.Mutex
	pool     string
	balances map[string]*big.Int

	// TransferHook, when set, runs synchronously after a successful
	// Transfer credit, before Transfer returns, and receives the context
	// the transfer was issued with. Tests use it to model a recipient
	// whose token callback re-enters the engine.
	TransferHook func(ctx context.Context, to string, amount *big.Int)

	// FailTransfers forces every Transfer/TransferFrom to report failure
	// without moving funds.
	FailTransfers bool
}

// NewMemory creates a memory ledger whose pool account is poolAddress.
func NewMemory(poolAddress string) *Memory {
	return &Memory{
		pool:     helpers.NormalizeAddress(poolAddress),
		balances: make(map[string]*big.Int),
	}
}

// SetBalance seeds an account balance.
func (m *Memory) SetBalance(address string, amount *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[helpers.NormalizeAddress(address)] = new(big.Int).Set(amount)
}

func (m *Memory) balanceLocked(address string) *big.Int {
	if b, ok := m.balances[helpers.NormalizeAddress(address)]; ok {
		return b
	}
	zero := new(big.Int)
	m.balances[helpers.NormalizeAddress(address)] = zero
	return zero
}

// BalanceOf returns the current balance of an account.
func (m *Memory) BalanceOf(_ context.Context, address string) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return new(big.Int).Set(m.balanceLocked(address)), nil
}

// Transfer moves amount from the pool account to the recipient.
func (m *Memory) Transfer(ctx context.Context, to string, amount *big.Int) (bool, error) {
	m.mu.Lock()
	if m.FailTransfers {
		m.mu.Unlock()
		return false, nil
	}
	from := m.balanceLocked(m.pool)
	if from.Cmp(amount) < 0 {
		m.mu.Unlock()
		return false, fmt.Errorf("memory ledger: pool balance %s below transfer %s", from, amount)
	}
	from.Sub(from, amount)
	m.balanceLocked(to).Add(m.balanceLocked(to), amount)
	hook := m.TransferHook
	m.mu.Unlock()

	if hook != nil {
		hook(ctx, to, new(big.Int).Set(amount))
	}
	return true, nil
}

// TransferFrom moves amount between two accounts.
func (m *Memory) TransferFrom(_ context.Context, from, to string, amount *big.Int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailTransfers {
		return false, nil
	}
	src := m.balanceLocked(from)
	if src.Cmp(amount) < 0 {
		return false, fmt.Errorf("memory ledger: balance %s below transfer %s", src, amount)
	}
	src.Sub(src, amount)
	m.balanceLocked(to).Add(m.balanceLocked(to), amount)
	return true, nil
}
