package book

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Stored record schema versions. Later versions only append fields; every
// field a V1 reader consumes keeps its name, type, and meaning forever, so a
// V3 reader decodes any historical record without a migration pass.
const (
	schemaV1 = 1 // order fields, lookup by id only
	schemaV2 = 2 // + by-asset and by-taker index keys (separate key space)
	schemaV3 = 3 // + status field on the record

	schemaLatest = schemaV3
)

// orderRecord is the wire shape of a persisted order. Status is a pointer so
// that its absence on pre-V3 records is distinguishable from StatusOpen.
type orderRecord struct {
	Schema int `json:"schema,omitempty"`

	ID    uint64         `json:"id"`
	Maker common.Address `json:"maker"`

	MakeAsset common.Address `json:"makeAsset"`
	TakeAsset common.Address `json:"takeAsset"`

	MakeAmount      *big.Int `json:"makeAmount"`
	TakeAmount      *big.Int `json:"takeAmount"`
	RemainingAmount *big.Int `json:"remainingAmount"`

	EndDate   int64 `json:"endDate"`
	CreatedAt int64 `json:"createdAt,omitempty"`

	Status *Status `json:"status,omitempty"`
}

func encodeOrder(o *Order) ([]byte, error) {
	status := o.Status
	rec := orderRecord{
		Schema:          schemaLatest,
		ID:              o.ID,
		Maker:           o.Maker,
		MakeAsset:       o.MakeAsset,
		TakeAsset:       o.TakeAsset,
		MakeAmount:      o.MakeAmount,
		TakeAmount:      o.TakeAmount,
		RemainingAmount: o.RemainingAmount,
		EndDate:         o.EndDate,
		CreatedAt:       o.CreatedAt,
		Status:          &status,
	}
	return json.Marshal(rec)
}

func decodeOrder(data []byte) (*Order, error) {
	var rec orderRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode order record: %w", err)
	}
	if rec.MakeAmount == nil || rec.TakeAmount == nil || rec.RemainingAmount == nil {
		return nil, fmt.Errorf("decode order record %d: missing amount field", rec.ID)
	}

	o := &Order{
		ID:              rec.ID,
		Maker:           rec.Maker,
		MakeAsset:       rec.MakeAsset,
		TakeAsset:       rec.TakeAsset,
		MakeAmount:      rec.MakeAmount,
		TakeAmount:      rec.TakeAmount,
		RemainingAmount: rec.RemainingAmount,
		EndDate:         rec.EndDate,
		CreatedAt:       rec.CreatedAt,
	}

	if rec.Status != nil {
		o.Status = *rec.Status
		return o, nil
	}

	// Pre-V3 record: status is a pure function of the remaining amount. A
	// fully drawn order reads as filled; cancelled legacy orders are
	// indistinguishable from filled ones and resolve the same way.
	o.Status = inferStatus(rec.RemainingAmount, rec.MakeAmount)
	return o, nil
}

func inferStatus(remaining, makeAmount *big.Int) Status {
	switch {
	case remaining.Sign() == 0:
		return StatusFilled
	case remaining.Cmp(makeAmount) < 0:
		return StatusPartiallyFilled
	default:
		return StatusOpen
	}
}
