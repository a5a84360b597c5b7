// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bank

import (
	"github.com/ava-labs/avalanchego/ids"
)

// BlockhashCapacity is the number of recent blockhashes a transaction may
// reference. A transaction built against an older hash is rejected, which
// bounds the window in which the same signed transaction can be replayed.
const BlockhashCapacity = 150

// blockhashQueue tracks the recent-blockhash window. Each bank carries its
// own copy so that readers of a frozen bank observe the window as it was at
// that slot.
type blockhashQueue struct {
	slots map[ids.ID]uint64
	order []ids.ID
}

func newBlockhashQueue() *blockhashQueue {
	return &blockhashQueue{
		slots: make(map[ids.ID]uint64, BlockhashCapacity),
	}
}

// register adds [hash] as the most recent entry, evicting the oldest entry
// once the window is full.
func (q *blockhashQueue) register(hash ids.ID, slot uint64) {
	if _, ok := q.slots[hash]; ok {
		return
	}
	q.slots[hash] = slot
	q.order = append(q.order, hash)
	if len(q.order) > BlockhashCapacity {
		evicted := q.order[0]
		q.order = q.order[1:]
		delete(q.slots, evicted)
	}
}

func (q *blockhashQueue) contains(hash ids.ID) bool {
	_, ok := q.slots[hash]
	return ok
}

func (q *blockhashQueue) clone() *blockhashQueue {
	clone := &blockhashQueue{
		slots: make(map[ids.ID]uint64, len(q.slots)),
		order: make([]ids.ID, len(q.order)),
	}
	for hash, slot := range q.slots {
		clone.slots[hash] = slot
	}
	copy(clone.order, q.order)
	return clone
}
