package book

import (
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
)

// Pebble key schema. Zero-padded numeric components keep lexicographic order
// equal to numeric order, so prefix scans return orders in creation sequence.
//
// The schema is append-only across releases: V1 shipped only "ord:" records,
// V2 added the "asset:" and "taker:" index keys, V3 widened the record value
// with a status field. No release reinterprets or relocates earlier keys.
const (
	prefixOrder = "ord:"   // ord:{id} -> order record (JSON)
	prefixAsset = "asset:" // asset:{makeAsset}:{id} -> order id (by-asset index)
	prefixTaker = "taker:" // taker:{address}:{seq} -> order id (by-taker index)
	keyNextID   = "meta:nextid"
)

func orderKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefixOrder, id))
}

func orderPrefix() []byte { return []byte(prefixOrder) }

func assetKey(asset common.Address, id uint64) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d", prefixAsset, asset.Hex(), id))
}

func assetPrefix(asset common.Address) []byte {
	return []byte(fmt.Sprintf("%s%s:", prefixAsset, asset.Hex()))
}

func takerKey(addr common.Address, seq int) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d", prefixTaker, addr.Hex(), seq))
}

func takerPrefixAll() []byte { return []byte(prefixTaker) }

func nextIDKey() []byte { return []byte(keyNextID) }

func encodeID(id uint64) []byte {
	return []byte(strconv.FormatUint(id, 10))
}

func decodeID(val []byte) (uint64, error) {
	return strconv.ParseUint(string(val), 10, 64)
}

// takerKeyAddr extracts the address component from a "taker:" key.
func takerKeyAddr(key []byte) (common.Address, error) {
	rest := string(key[len(prefixTaker):])
	if len(rest) < 42 || !common.IsHexAddress(rest[:42]) {
		return common.Address{}, fmt.Errorf("invalid taker key: %q", key)
	}
	return common.HexToAddress(rest[:42]), nil
}

// keyUpperBound returns the exclusive upper bound for a prefix scan.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
