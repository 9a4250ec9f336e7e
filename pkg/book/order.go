package book

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Status represents the lifecycle state of an order.
// Filled and Cancelled are terminal: a terminal order never transitions again.
type Status int8

const (
	StatusOpen Status = iota
	StatusPartiallyFilled
	StatusFilled
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusPartiallyFilled:
		return "partially_filled"
	case StatusFilled:
		return "filled"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further fills or cancellations are permitted.
func (s Status) Terminal() bool {
	return s == StatusFilled || s == StatusCancelled
}

// Order is one escrow-backed exchange offer: the maker locked MakeAmount of
// MakeAsset and wants TakeAmount of TakeAsset in return for the whole of it.
// Takers fill it in portions; RemainingAmount is the still-escrowed remainder.
type Order struct {
	ID    uint64         `json:"id"`
	Maker common.Address `json:"maker"`

	MakeAsset common.Address `json:"makeAsset"`
	TakeAsset common.Address `json:"takeAsset"`

	MakeAmount      *big.Int `json:"makeAmount"`      // escrowed at open, immutable
	TakeAmount      *big.Int `json:"takeAmount"`      // asked for the full MakeAmount, immutable
	RemainingAmount *big.Int `json:"remainingAmount"` // monotonically non-increasing

	// Unix milliseconds. Fills are rejected once EndDate has passed.
	EndDate   int64 `json:"endDate"`
	CreatedAt int64 `json:"createdAt"`

	Status Status `json:"status"`
}

// Clone returns a deep copy so callers can't mutate ledger state through
// shared big.Int pointers.
func (o *Order) Clone() *Order {
	cp := *o
	cp.MakeAmount = new(big.Int).Set(o.MakeAmount)
	cp.TakeAmount = new(big.Int).Set(o.TakeAmount)
	cp.RemainingAmount = new(big.Int).Set(o.RemainingAmount)
	return &cp
}

// CounterPayment returns the take-asset payment owed for filling `fill` units
// of the make asset: floor(fill * TakeAmount / MakeAmount). Truncation toward
// zero; no fractional residue is carried anywhere.
func (o *Order) CounterPayment(fill *big.Int) *big.Int {
	payment := new(big.Int).Mul(fill, o.TakeAmount)
	return payment.Div(payment, o.MakeAmount)
}

// Validate checks the per-order invariants.
func (o *Order) Validate() error {
	if o.MakeAsset == o.TakeAsset {
		return fmt.Errorf("order %d: make and take asset are both %s", o.ID, o.MakeAsset.Hex())
	}
	if o.MakeAmount == nil || o.MakeAmount.Sign() <= 0 {
		return fmt.Errorf("order %d: non-positive make amount %v", o.ID, o.MakeAmount)
	}
	if o.RemainingAmount == nil || o.RemainingAmount.Sign() < 0 {
		return fmt.Errorf("order %d: negative remaining amount %v", o.ID, o.RemainingAmount)
	}
	if o.RemainingAmount.Cmp(o.MakeAmount) > 0 {
		return fmt.Errorf("order %d: remaining %v exceeds make amount %v", o.ID, o.RemainingAmount, o.MakeAmount)
	}
	if o.Status.Terminal() != (o.RemainingAmount.Sign() == 0) {
		return fmt.Errorf("order %d: status %s inconsistent with remaining %v", o.ID, o.Status, o.RemainingAmount)
	}
	return nil
}
