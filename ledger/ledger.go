// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ledger is the append-only record of frozen banks. Entries are
// keyed by slot; slots are gapless and strictly increasing. History is never
// mutated or removed except by an explicit full reset.
package ledger

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/ava-labs/avalanchego/cache"
	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/prefixdb"
	"github.com/ava-labs/avalanchego/database/versiondb"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/wrappers"

	"github.com/jdesjarlais/solana/bank"
)

const entryCacheSize = 2048

var (
	// ErrOutOfOrderSlot indicates an append that would break the gapless,
	// strictly increasing slot sequence. It is an invariant violation, not a
	// recoverable condition: the caller must halt further ledger mutation.
	ErrOutOfOrderSlot = errors.New("ledger append out of order")

	// ErrEmpty is returned by Latest before any entry has been appended.
	ErrEmpty = errors.New("ledger is empty")

	entryPrefix = []byte("entry")
)

// Entry is the durable record of one frozen bank.
type Entry struct {
	Slot            uint64              `serialize:"true" json:"slot"`
	Blockhash       ids.ID              `serialize:"true" json:"blockhash"`
	ParentHash      ids.ID              `serialize:"true" json:"parentHash"`
	StateRoot       ids.ID              `serialize:"true" json:"stateRoot"`
	TimestampMillis int64               `serialize:"true" json:"timestampMillis"`
	Transactions    []*bank.Transaction `serialize:"true" json:"transactions"`
	Receipts        []*bank.Receipt     `serialize:"true" json:"receipts"`
}

// NewEntry snapshots a frozen bank into its ledger record.
func NewEntry(b *bank.Bank) *Entry {
	return &Entry{
		Slot:            b.Slot(),
		Blockhash:       b.Hash(),
		ParentHash:      b.ParentHash(),
		StateRoot:       b.StateRoot(),
		TimestampMillis: b.TimestampMillis(),
		Transactions:    b.Transactions(),
		Receipts:        b.Receipts(),
	}
}

// Ledger is the append-only slot-indexed entry store. Lookups are O(1) by
// slot; recently decoded entries are served from an LRU cache.
type Ledger struct {
	mu sync.RWMutex

	baseDB  *versiondb.Database
	entryDB database.Database

	// cache is keyed by slot and holds *Entry values.
	cache cache.Cacher

	hasEntries bool
	maxSlot    uint64
}

// New returns a ledger layered over [db]. If [db] already holds entries, the
// store resumes from the highest slot found.
func New(db database.Database) (*Ledger, error) {
	baseDB := versiondb.New(db)
	l := &Ledger{
		baseDB:  baseDB,
		entryDB: prefixdb.New(entryPrefix, baseDB),
		cache:   &cache.LRU{Size: entryCacheSize},
	}
	if err := l.loadMaxSlot(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Ledger) loadMaxSlot() error {
	it := l.entryDB.NewIterator()
	defer it.Release()
	for it.Next() {
		slot := binary.BigEndian.Uint64(it.Key())
		if !l.hasEntries || slot > l.maxSlot {
			l.maxSlot = slot
			l.hasEntries = true
		}
	}
	return it.Error()
}

// Append stores [entry]. The entry's slot must be exactly the current max
// slot + 1 (or 0 for the first entry).
func (l *Ledger) Append(entry *Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	expected := uint64(0)
	if l.hasEntries {
		expected = l.maxSlot + 1
	}
	if entry.Slot != expected {
		return fmt.Errorf("%w: expected slot %d, got %d", ErrOutOfOrderSlot, expected, entry.Slot)
	}

	bytes, err := Codec.Marshal(CodecVersion, entry)
	if err != nil {
		return fmt.Errorf("failed to serialize ledger entry %d: %w", entry.Slot, err)
	}
	if err := l.entryDB.Put(slotKey(entry.Slot), bytes); err != nil {
		return fmt.Errorf("failed to store ledger entry %d: %w", entry.Slot, err)
	}
	if err := l.baseDB.Commit(); err != nil {
		return fmt.Errorf("failed to commit ledger entry %d: %w", entry.Slot, err)
	}

	l.cache.Put(entry.Slot, entry)
	l.maxSlot = entry.Slot
	l.hasEntries = true
	return nil
}

// Get returns the entry at [slot]. Returns database.ErrNotFound if no entry
// has been appended for that slot.
func (l *Ledger) Get(slot uint64) (*Entry, error) {
	if entryIntf, ok := l.cache.Get(slot); ok {
		return entryIntf.(*Entry), nil
	}

	bytes, err := l.entryDB.Get(slotKey(slot))
	if err != nil {
		return nil, err
	}
	entry := &Entry{}
	if _, err := Codec.Unmarshal(bytes, entry); err != nil {
		return nil, fmt.Errorf("failed to parse ledger entry %d: %w", slot, err)
	}

	l.cache.Put(slot, entry)
	return entry, nil
}

// Latest returns the entry with the highest slot.
func (l *Ledger) Latest() (*Entry, error) {
	l.mu.RLock()
	hasEntries, maxSlot := l.hasEntries, l.maxSlot
	l.mu.RUnlock()

	if !hasEntries {
		return nil, ErrEmpty
	}
	return l.Get(maxSlot)
}

// MaxSlot returns the highest appended slot and whether any entry exists.
func (l *Ledger) MaxSlot() (uint64, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.maxSlot, l.hasEntries
}

// Reset destroys all history and returns the ledger to its empty state. This
// is a full restart, not an undo; callers must rebuild the bank chain from
// genesis afterwards.
func (l *Ledger) Reset() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	it := l.entryDB.NewIterator()
	keys := [][]byte{}
	for it.Next() {
		key := make([]byte, len(it.Key()))
		copy(key, it.Key())
		keys = append(keys, key)
	}
	if err := it.Error(); err != nil {
		it.Release()
		return err
	}
	it.Release()

	errs := wrappers.Errs{}
	for _, key := range keys {
		errs.Add(l.entryDB.Delete(key))
	}
	errs.Add(l.baseDB.Commit())
	if errs.Errored() {
		return errs.Err
	}

	l.cache.Flush()
	l.hasEntries = false
	l.maxSlot = 0
	return nil
}

func slotKey(slot uint64) []byte {
	key := make([]byte, wrappers.LongLen)
	binary.BigEndian.PutUint64(key, slot)
	return key
}
