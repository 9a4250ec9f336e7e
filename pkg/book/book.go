package book

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"escrowbook/pkg/token"
	"escrowbook/pkg/util"
)

// Book is the order ledger and escrow engine. Every operation executes to
// completion under one mutex: either all of its state mutations and asset
// transfers happen, or none do. Orders are never deleted; closed orders stay
// queryable for history.
type Book struct {
	mu sync.RWMutex

	assets *token.Registry
	escrow common.Address // the engine's own identity on asset ledgers
	clock  util.Clock
	store  *Store // nil = in-memory only
	log    *zap.SugaredLogger

	// Arena: order id == slice index. IDs are assigned monotonically and
	// never reused, so the slice stays dense.
	orders []*Order

	// Secondary indices hold ids, never order pointers. They carry nothing
	// the arena doesn't already have and are updated in the same critical
	// section as the arena itself.
	byMakeAsset map[common.Address][]uint64            // creation order
	byTaker     map[common.Address][]uint64            // order of first fill
	takerSeen   map[common.Address]map[uint64]struct{} // dedupe repeat fills

	// Event hooks, fired after an operation commits but still inside its
	// critical section: hooks must not call back into the Book. Optional.
	OnOpen   func(OrderOpened)
	OnFill   func(OrderFilled)
	OnCancel func(OrderCancelled)
}

type Config struct {
	Assets *token.Registry
	Escrow common.Address     // address the engine holds escrow under
	Clock  util.Clock         // defaults to util.RealClock
	Store  *Store             // optional persistence
	Logger *zap.SugaredLogger // optional
}

func New(cfg Config) (*Book, error) {
	if cfg.Assets == nil {
		return nil, fmt.Errorf("book: asset registry is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = util.RealClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}

	b := &Book{
		assets:      cfg.Assets,
		escrow:      cfg.Escrow,
		clock:       cfg.Clock,
		store:       cfg.Store,
		log:         cfg.Logger,
		byMakeAsset: make(map[common.Address][]uint64),
		byTaker:     make(map[common.Address][]uint64),
		takerSeen:   make(map[common.Address]map[uint64]struct{}),
	}

	if b.store != nil {
		if err := b.load(); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// load rebuilds the arena and indices from the store. Records written under
// any earlier schema decode unchanged; index keys missing from pre-index
// databases are backfilled from the records themselves.
func (b *Book) load() error {
	orders, err := b.store.LoadOrders()
	if err != nil {
		return err
	}

	backfill := b.store.NewBatch()
	defer backfill.Close()
	dirty := false

	for i, o := range orders {
		if o.ID != uint64(i) {
			return fmt.Errorf("book: order id gap at %d (got %d)", i, o.ID)
		}
		if err := o.Validate(); err != nil {
			return fmt.Errorf("book: corrupt record: %w", err)
		}
		b.orders = append(b.orders, o)
		b.byMakeAsset[o.MakeAsset] = append(b.byMakeAsset[o.MakeAsset], o.ID)

		ok, err := b.store.HasAssetKey(o.MakeAsset, o.ID)
		if err != nil {
			return err
		}
		if !ok {
			if err := backfill.PutAssetIndex(o.MakeAsset, o.ID); err != nil {
				return err
			}
			dirty = true
		}
	}

	takers, err := b.store.LoadTakerIndex()
	if err != nil {
		return err
	}
	for addr, ids := range takers {
		b.byTaker[addr] = ids
		seen := make(map[uint64]struct{}, len(ids))
		for _, id := range ids {
			seen[id] = struct{}{}
		}
		b.takerSeen[addr] = seen
	}

	persisted, err := b.store.LoadNextID()
	if err != nil {
		return err
	}
	if persisted != uint64(len(b.orders)) {
		// Counter lags behind records only if a very old writer never stored
		// it; the record count is authoritative.
		if err := backfill.PutNextID(uint64(len(b.orders))); err != nil {
			return err
		}
		dirty = true
	}

	if dirty {
		if err := backfill.Commit(); err != nil {
			return fmt.Errorf("book: index backfill: %w", err)
		}
		b.log.Infow("index_backfill_complete", "orders", len(b.orders))
	}

	b.log.Infow("book_loaded", "orders", len(b.orders), "assets", len(b.byMakeAsset))
	return nil
}

// Open escrows makeAmount of makeAsset from the maker and records a new
// order asking takeAmount of takeAsset for the whole of it. endDate is unix
// milliseconds and must be strictly after the current time.
func (b *Book) Open(maker, makeAsset, takeAsset common.Address, makeAmount, takeAmount *big.Int, endDate int64) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if makeAsset == takeAsset {
		return 0, fmt.Errorf("%w: %s", ErrSameAsset, makeAsset.Hex())
	}
	if makeAmount == nil || makeAmount.Sign() <= 0 {
		return 0, fmt.Errorf("%w: make amount %v", ErrInvalidAmount, makeAmount)
	}
	if takeAmount == nil || takeAmount.Sign() <= 0 {
		return 0, fmt.Errorf("%w: take amount %v", ErrInvalidAmount, takeAmount)
	}
	now := b.clock.Now().UnixMilli()
	if endDate <= now {
		return 0, fmt.Errorf("%w: end date %d, now %d", ErrInvalidEndDate, endDate, now)
	}

	makeLedger, err := b.assets.Resolve(makeAsset)
	if err != nil {
		return 0, fmt.Errorf("make asset %s: %w", makeAsset.Hex(), err)
	}
	if _, err := b.assets.Resolve(takeAsset); err != nil {
		return 0, fmt.Errorf("take asset %s: %w", takeAsset.Hex(), err)
	}

	// Escrow pull is the first effect; if it fails nothing has happened.
	if err := makeLedger.Pull(maker, b.escrow, makeAmount); err != nil {
		return 0, err
	}

	o := &Order{
		ID:              uint64(len(b.orders)),
		Maker:           maker,
		MakeAsset:       makeAsset,
		TakeAsset:       takeAsset,
		MakeAmount:      new(big.Int).Set(makeAmount),
		TakeAmount:      new(big.Int).Set(takeAmount),
		RemainingAmount: new(big.Int).Set(makeAmount),
		EndDate:         endDate,
		CreatedAt:       now,
		Status:          StatusOpen,
	}

	b.orders = append(b.orders, o)
	b.byMakeAsset[makeAsset] = append(b.byMakeAsset[makeAsset], o.ID)

	if err := b.persistOpen(o); err != nil {
		return 0, err
	}

	b.log.Infow("order_opened",
		"id", o.ID,
		"maker", maker.Hex(),
		"make_asset", makeAsset.Hex(),
		"take_asset", takeAsset.Hex(),
		"make_amount", makeAmount.String(),
		"take_amount", takeAmount.String(),
		"end_date", endDate)

	if b.OnOpen != nil {
		b.OnOpen(OrderOpened{
			ID:         o.ID,
			Maker:      maker,
			MakeAsset:  makeAsset,
			TakeAsset:  takeAsset,
			MakeAmount: new(big.Int).Set(makeAmount),
			TakeAmount: new(big.Int).Set(takeAmount),
			EndDate:    endDate,
		})
	}
	return o.ID, nil
}

// Take fills up to amount units of the order's make asset. Requests beyond
// the remainder cap at the remainder rather than failing, so a taker can
// take the rest without knowing it exactly. The counter-payment is pulled
// from the taker, the filled units leave escrow to the taker, and the
// payment goes to the maker. Returns the actual fill amount.
func (b *Book) Take(id uint64, taker common.Address, amount *big.Int) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, err := b.orderLocked(id)
	if err != nil {
		return nil, err
	}
	if o.Status.Terminal() {
		return nil, fmt.Errorf("%w: order %d is %s", ErrOrderClosed, id, o.Status)
	}
	if b.clock.Now().UnixMilli() >= o.EndDate {
		return nil, fmt.Errorf("%w: order %d end date %d", ErrOrderExpired, id, o.EndDate)
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: fill amount %v", ErrInvalidAmount, amount)
	}

	fill := new(big.Int).Set(amount)
	if fill.Cmp(o.RemainingAmount) > 0 {
		fill.Set(o.RemainingAmount)
	}
	payment := o.CounterPayment(fill)

	makeLedger, err := b.assets.Resolve(o.MakeAsset)
	if err != nil {
		return nil, err
	}
	takeLedger, err := b.assets.Resolve(o.TakeAsset)
	if err != nil {
		return nil, err
	}

	// The payment pull is computed from the capped fill and is the first
	// transfer: a short balance or allowance aborts with zero side effects.
	if err := takeLedger.Pull(taker, b.escrow, payment); err != nil {
		return nil, err
	}
	if err := makeLedger.Push(b.escrow, taker, fill); err != nil {
		// Escrow always covers the remainder; reaching this means the
		// escrow account was tampered with outside the engine.
		b.log.Errorw("escrow_payout_failed", "id", id, "err", err)
		return nil, err
	}
	if err := takeLedger.Push(b.escrow, o.Maker, payment); err != nil {
		b.log.Errorw("maker_payment_failed", "id", id, "err", err)
		return nil, err
	}

	o.RemainingAmount.Sub(o.RemainingAmount, fill)
	if o.RemainingAmount.Sign() == 0 {
		o.Status = StatusFilled
	} else {
		o.Status = StatusPartiallyFilled
	}

	firstFill := b.registerTakerLocked(taker, id)

	if err := b.persistFill(o, taker, firstFill); err != nil {
		return nil, err
	}

	b.log.Infow("order_filled",
		"id", id,
		"maker", o.Maker.Hex(),
		"taker", taker.Hex(),
		"filled", fill.String(),
		"paid", payment.String(),
		"remaining", o.RemainingAmount.String(),
		"status", o.Status.String())

	if b.OnFill != nil {
		b.OnFill(OrderFilled{
			ID:           id,
			Maker:        o.Maker,
			Taker:        taker,
			MakeAsset:    o.MakeAsset,
			FilledAmount: new(big.Int).Set(fill),
			PaidAmount:   payment,
		})
	}
	return fill, nil
}

// Cancel returns the unfilled remainder to the maker and closes the order.
// Only the maker may cancel, and only while the order is not terminal.
func (b *Book) Cancel(id uint64, caller common.Address) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, err := b.orderLocked(id)
	if err != nil {
		return nil, err
	}
	if caller != o.Maker {
		return nil, fmt.Errorf("%w: %s cancelling order %d of %s",
			ErrUnauthorized, caller.Hex(), id, o.Maker.Hex())
	}
	if o.Status.Terminal() {
		return nil, fmt.Errorf("%w: order %d is %s", ErrOrderClosed, id, o.Status)
	}

	makeLedger, err := b.assets.Resolve(o.MakeAsset)
	if err != nil {
		return nil, err
	}

	refund := new(big.Int).Set(o.RemainingAmount)
	if err := makeLedger.Push(b.escrow, o.Maker, refund); err != nil {
		b.log.Errorw("escrow_refund_failed", "id", id, "err", err)
		return nil, err
	}

	o.RemainingAmount.SetInt64(0)
	o.Status = StatusCancelled

	if err := b.persistCancel(o); err != nil {
		return nil, err
	}

	b.log.Infow("order_cancelled",
		"id", id,
		"maker", o.Maker.Hex(),
		"refunded", refund.String())

	if b.OnCancel != nil {
		b.OnCancel(OrderCancelled{
			ID:             id,
			Maker:          o.Maker,
			MakeAsset:      o.MakeAsset,
			RefundedAmount: new(big.Int).Set(refund),
		})
	}
	return refund, nil
}

// registerTakerLocked records the taker against the order, once per
// (taker, order) pair. Returns true on the first fill by this taker.
func (b *Book) registerTakerLocked(taker common.Address, id uint64) bool {
	seen, ok := b.takerSeen[taker]
	if !ok {
		seen = make(map[uint64]struct{})
		b.takerSeen[taker] = seen
	}
	if _, dup := seen[id]; dup {
		return false
	}
	seen[id] = struct{}{}
	b.byTaker[taker] = append(b.byTaker[taker], id)
	return true
}

func (b *Book) orderLocked(id uint64) (*Order, error) {
	if id >= uint64(len(b.orders)) {
		return nil, fmt.Errorf("%w: id %d", ErrOrderNotFound, id)
	}
	return b.orders[id], nil
}

// ==============================
// Persistence (no-ops without a store)
// ==============================

func (b *Book) persistOpen(o *Order) error {
	if b.store == nil {
		return nil
	}
	batch := b.store.NewBatch()
	defer batch.Close()
	if err := batch.PutOrder(o); err != nil {
		return err
	}
	if err := batch.PutAssetIndex(o.MakeAsset, o.ID); err != nil {
		return err
	}
	if err := batch.PutNextID(o.ID + 1); err != nil {
		return err
	}
	return batch.Commit()
}

func (b *Book) persistFill(o *Order, taker common.Address, firstFill bool) error {
	if b.store == nil {
		return nil
	}
	batch := b.store.NewBatch()
	defer batch.Close()
	if err := batch.PutOrder(o); err != nil {
		return err
	}
	if firstFill {
		seq := len(b.byTaker[taker]) - 1
		if err := batch.PutTakerIndex(taker, seq, o.ID); err != nil {
			return err
		}
	}
	return batch.Commit()
}

func (b *Book) persistCancel(o *Order) error {
	if b.store == nil {
		return nil
	}
	batch := b.store.NewBatch()
	defer batch.Close()
	if err := batch.PutOrder(o); err != nil {
		return err
	}
	return batch.Commit()
}

// ==============================
// Reads
// ==============================

// Get returns the order with the given id.
func (b *Book) Get(id uint64) (*Order, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	o, err := b.orderLocked(id)
	if err != nil {
		return nil, err
	}
	return o.Clone(), nil
}

// GetOrders returns every order ever opened, in creation order.
func (b *Book) GetOrders() []*Order {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]*Order, len(b.orders))
	for i, o := range b.orders {
		out[i] = o.Clone()
	}
	return out
}

// GetByAsset returns all orders escrowing the given asset, any status,
// in creation order.
func (b *Book) GetByAsset(asset common.Address) []*Order {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ids := b.byMakeAsset[asset]
	out := make([]*Order, 0, len(ids))
	for _, id := range ids {
		out = append(out, b.orders[id].Clone())
	}
	return out
}

// GetTakenBy returns all orders the address has filled at least once, in
// order of first fill.
func (b *Book) GetTakenBy(taker common.Address) []*Order {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ids := b.byTaker[taker]
	out := make([]*Order, 0, len(ids))
	for _, id := range ids {
		out = append(out, b.orders[id].Clone())
	}
	return out
}

// RemainingAmount returns the still-escrowed remainder of an order.
func (b *Book) RemainingAmount(id uint64) (*big.Int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	o, err := b.orderLocked(id)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(o.RemainingAmount), nil
}

// NextID returns the next identifier to be assigned, i.e. the order count.
func (b *Book) NextID() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return uint64(len(b.orders))
}

// Escrow returns the address the engine holds escrow under.
func (b *Book) Escrow() common.Address {
	return b.escrow
}
