package ledger

import (
	"fmt"
	"sync"

	"github.com/openvault/recur/internal/event"
)

// TokenLedger is the settlement-asset boundary: the ERC-20 surface the state
// machine checks and moves funds through. Allowances are granted to the
// ledger program's own address.
type TokenLedger interface {
	BalanceOf(token, owner event.Address) event.Amount
	Allowance(token, owner, spender event.Address) event.Amount

	// Transfer moves amount from from to to, consuming from's allowance
	// toward spender. The machine only calls it after checking balance and
	// allowance, so a failure here is a token-ledger fault, not a business
	// rejection.
	Transfer(token, spender, from, to event.Address, amount event.Amount) error
}

// MemTokenLedger is an in-memory TokenLedger for tests and the simulator.
type MemTokenLedger struct {
	mu         sync.Mutex
	balances   map[event.Address]map[event.Address]event.Amount // token -> owner
	allowances map[event.Address]map[[2]event.Address]event.Amount
}

// NewMemTokenLedger creates an empty token ledger.
func NewMemTokenLedger() *MemTokenLedger {
	return &MemTokenLedger{
		balances:   make(map[event.Address]map[event.Address]event.Amount),
		allowances: make(map[event.Address]map[[2]event.Address]event.Amount),
	}
}

// Mint credits owner with amount of token.
func (m *MemTokenLedger) Mint(token, owner event.Address, amount event.Amount) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[token] == nil {
		m.balances[token] = make(map[event.Address]event.Amount)
	}
	m.balances[token][owner] = m.balances[token][owner].Add(amount)
}

// Approve sets owner's allowance for spender on token. Overwrites, does not
// accumulate.
func (m *MemTokenLedger) Approve(token, owner, spender event.Address, amount event.Amount) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.allowances[token] == nil {
		m.allowances[token] = make(map[[2]event.Address]event.Amount)
	}
	m.allowances[token][[2]event.Address{owner, spender}] = amount
}

// BalanceOf returns owner's balance of token.
func (m *MemTokenLedger) BalanceOf(token, owner event.Address) event.Amount {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[token][owner]
}

// Allowance returns owner's remaining allowance for spender on token.
func (m *MemTokenLedger) Allowance(token, owner, spender event.Address) event.Amount {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.allowances[token][[2]event.Address{owner, spender}]
}

// Transfer moves amount from from to to and consumes allowance.
func (m *MemTokenLedger) Transfer(token, spender, from, to event.Address, amount event.Amount) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	bal := m.balances[token][from]
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("token transfer: balance %s below %s", bal, amount)
	}
	allowance := m.allowances[token][[2]event.Address{from, spender}]
	if allowance.Cmp(amount) < 0 {
		return fmt.Errorf("token transfer: allowance %s below %s", allowance, amount)
	}

	if m.balances[token] == nil {
		m.balances[token] = make(map[event.Address]event.Amount)
	}
	m.balances[token][from] = bal.Sub(amount)
	m.balances[token][to] = m.balances[token][to].Add(amount)
	m.allowances[token][[2]event.Address{from, spender}] = allowance.Sub(amount)
	return nil
}
