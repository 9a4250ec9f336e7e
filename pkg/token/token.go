package token

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Token is an in-memory fungible-asset ledger with ERC-20 style
// balance/allowance semantics. It backs the engine's escrow in tests and in
// single-node deployments; production assets plug in via the Ledger interface.
type Token struct {
	mu sync.RWMutex

	Address common.Address
	Name    string
	Symbol  string

	balances   map[common.Address]*big.Int
	allowances map[common.Address]map[common.Address]*big.Int
}

func NewToken(addr common.Address, name, symbol string) *Token {
	return &Token{
		Address:    addr,
		Name:       name,
		Symbol:     symbol,
		balances:   make(map[common.Address]*big.Int),
		allowances: make(map[common.Address]map[common.Address]*big.Int),
	}
}

// Mint credits freshly created units to an account.
func (t *Token) Mint(owner common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("mint amount must be positive: %v", amount)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.credit(owner, amount)
	return nil
}

// Approve lets spender pull up to amount from owner. Replaces any prior
// approval, ERC-20 style.
func (t *Token) Approve(owner, spender common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("approve amount cannot be negative: %v", amount)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	owned, ok := t.allowances[owner]
	if !ok {
		owned = make(map[common.Address]*big.Int)
		t.allowances[owner] = owned
	}
	owned[spender] = new(big.Int).Set(amount)
	return nil
}

func (t *Token) BalanceOf(owner common.Address) *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if b, ok := t.balances[owner]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

func (t *Token) Allowance(owner, spender common.Address) *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if owned, ok := t.allowances[owner]; ok {
		if a, ok := owned[spender]; ok {
			return new(big.Int).Set(a)
		}
	}
	return new(big.Int)
}

// Pull debits owner and credits spender, consuming allowance.
// Fails without side effects if balance or allowance is short.
func (t *Token) Pull(owner, spender common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("pull amount cannot be negative: %v", amount)
	}
	if amount.Sign() == 0 {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	balance, ok := t.balances[owner]
	if !ok || balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s owner %s has %v, need %v",
			ErrInsufficientFunds, t.Symbol, owner.Hex(), balance, amount)
	}

	allowance := new(big.Int)
	if owned, ok := t.allowances[owner]; ok {
		if a, ok := owned[spender]; ok {
			allowance = a
		}
	}
	if allowance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s spender %s approved %v, need %v",
			ErrInsufficientAllowance, t.Symbol, spender.Hex(), allowance, amount)
	}

	balance.Sub(balance, amount)
	allowance.Sub(allowance, amount)
	t.credit(spender, amount)
	return nil
}

// Push pays amount out of spender's holdings to recipient.
func (t *Token) Push(spender, recipient common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("push amount cannot be negative: %v", amount)
	}
	if amount.Sign() == 0 {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	balance, ok := t.balances[spender]
	if !ok || balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s escrow %s has %v, need %v",
			ErrInsufficientFunds, t.Symbol, spender.Hex(), balance, amount)
	}

	balance.Sub(balance, amount)
	t.credit(recipient, amount)
	return nil
}

// credit assumes the lock is held.
func (t *Token) credit(owner common.Address, amount *big.Int) {
	if b, ok := t.balances[owner]; ok {
		b.Add(b, amount)
		return
	}
	t.balances[owner] = new(big.Int).Set(amount)
}

var _ Ledger = (*Token)(nil)
