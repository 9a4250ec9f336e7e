package book

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Domain events, one per successful operation. Hooks fire after the operation
// has committed; a failed operation emits nothing.

type OrderOpened struct {
	ID         uint64         `json:"id"`
	Maker      common.Address `json:"maker"`
	MakeAsset  common.Address `json:"makeAsset"`
	TakeAsset  common.Address `json:"takeAsset"`
	MakeAmount *big.Int       `json:"makeAmount"`
	TakeAmount *big.Int       `json:"takeAmount"`
	EndDate    int64          `json:"endDate"`
}

type OrderFilled struct {
	ID           uint64         `json:"id"`
	Maker        common.Address `json:"maker"`
	Taker        common.Address `json:"taker"`
	MakeAsset    common.Address `json:"makeAsset"`
	FilledAmount *big.Int       `json:"filledAmount"`
	PaidAmount   *big.Int       `json:"paidAmount"`
}

type OrderCancelled struct {
	ID             uint64         `json:"id"`
	Maker          common.Address `json:"maker"`
	MakeAsset      common.Address `json:"makeAsset"`
	RefundedAmount *big.Int       `json:"refundedAmount"`
}
