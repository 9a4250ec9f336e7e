package token

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrUnknownAsset          = errors.New("unknown asset")
)

// Ledger is the fungible-asset capability the engine consumes, one per asset.
// Pull debits owner and credits the spender's escrow; Push pays out of it.
type Ledger interface {
	BalanceOf(owner common.Address) *big.Int
	Allowance(owner, spender common.Address) *big.Int
	Pull(owner, spender common.Address, amount *big.Int) error
	Push(spender, recipient common.Address, amount *big.Int) error
}

// Registry resolves asset addresses to their ledgers.
type Registry struct {
	ledgers map[common.Address]Ledger
}

func NewRegistry() *Registry {
	return &Registry{ledgers: make(map[common.Address]Ledger)}
}

func (r *Registry) Register(asset common.Address, l Ledger) {
	r.ledgers[asset] = l
}

func (r *Registry) Resolve(asset common.Address) (Ledger, error) {
	l, ok := r.ledgers[asset]
	if !ok {
		return nil, ErrUnknownAsset
	}
	return l, nil
}

func (r *Registry) Assets() []common.Address {
	assets := make([]common.Address, 0, len(r.ledgers))
	for a := range r.ledgers {
		assets = append(assets, a)
	}
	return assets
}
