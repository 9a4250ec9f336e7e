package book

import (
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"
)

// Store persists orders and their secondary indices in Pebble.
// Thread-safety comes from the Book's mutex; the store itself does no locking.
type Store struct {
	db *pebble.DB
}

func NewStore(dbPath string) (*Store, error) {
	opts := &pebble.Options{
		Cache:        pebble.NewCache(64 << 20),
		MemTableSize: 32 << 20,
	}

	db, err := pebble.Open(dbPath, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %s: %w", dbPath, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// LoadOrders returns every persisted order in id order, decoding any record
// schema ever written.
func (s *Store) LoadOrders() ([]*Order, error) {
	prefix := orderPrefix()
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}
	defer iter.Close()

	var orders []*Order
	for iter.First(); iter.Valid(); iter.Next() {
		o, err := decodeOrder(iter.Value())
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}

// LoadTakerIndex rebuilds the by-taker index from persisted index keys.
// Keys sort by (address, seq), so each taker's ids come back in first-fill
// order. A database written before the index existed simply yields nothing;
// the index refills as new fills arrive.
func (s *Store) LoadTakerIndex() (map[common.Address][]uint64, error) {
	prefix := takerPrefixAll()
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate taker index: %w", err)
	}
	defer iter.Close()

	index := make(map[common.Address][]uint64)
	for iter.First(); iter.Valid(); iter.Next() {
		addr, err := takerKeyAddr(iter.Key())
		if err != nil {
			return nil, err
		}
		id, err := decodeID(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("invalid taker index value for %q: %w", iter.Key(), err)
		}
		index[addr] = append(index[addr], id)
	}
	return index, nil
}

// HasAssetKey reports whether the by-asset index entry for an order exists.
// Used to detect databases written before the index was introduced.
func (s *Store) HasAssetKey(asset common.Address, id uint64) (bool, error) {
	_, closer, err := s.db.Get(assetKey(asset, id))
	if err == pebble.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to probe asset index: %w", err)
	}
	closer.Close()
	return true, nil
}

// LoadNextID returns the persisted id counter, or 0 when none was written.
func (s *Store) LoadNextID() (uint64, error) {
	val, closer, err := s.db.Get(nextIDKey())
	if err == pebble.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get next id: %w", err)
	}
	defer closer.Close()
	return decodeID(val)
}

// Batch accumulates the writes of one engine operation and commits them
// atomically, so a crash never leaves an order without its indices.
type Batch struct {
	batch *pebble.Batch
}

func (s *Store) NewBatch() *Batch {
	return &Batch{batch: s.db.NewBatch()}
}

func (b *Batch) PutOrder(o *Order) error {
	data, err := encodeOrder(o)
	if err != nil {
		return fmt.Errorf("failed to marshal order %d: %w", o.ID, err)
	}
	return b.batch.Set(orderKey(o.ID), data, nil)
}

func (b *Batch) PutAssetIndex(asset common.Address, id uint64) error {
	return b.batch.Set(assetKey(asset, id), encodeID(id), nil)
}

func (b *Batch) PutTakerIndex(addr common.Address, seq int, id uint64) error {
	return b.batch.Set(takerKey(addr, seq), encodeID(id), nil)
}

func (b *Batch) PutNextID(id uint64) error {
	return b.batch.Set(nextIDKey(), encodeID(id), nil)
}

func (b *Batch) Commit() error {
	return b.batch.Commit(pebble.Sync)
}

func (b *Batch) Close() error {
	return b.batch.Close()
}
