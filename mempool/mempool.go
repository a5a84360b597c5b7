// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package mempool is the transaction intake queue. Submissions are validated
// synchronously so malformed input never occupies a production slot, then
// held in arrival order until the block production loop drains them into the
// open bank.
package mempool

import (
	"errors"
	"sync"

	"github.com/jdesjarlais/solana/bank"
)

const defaultCapacity = 16384

var (
	// ErrBusy is returned while the production loop holds the freeze window.
	// It is transient; callers should retry.
	ErrBusy = errors.New("bank is freezing, retry submission")

	// ErrClosed is returned after shutdown has begun.
	ErrClosed = errors.New("mempool is closed")

	// ErrFull is returned when the queue buffer is exhausted.
	ErrFull = errors.New("mempool is full")
)

// TxChecker validates a transaction against current chain state (e.g. the
// recent-blockhash window) before it is queued.
type TxChecker func(*bank.Transaction) error

// Mempool holds validated transactions in FIFO order. Many producers may
// Submit concurrently; only the block production loop consumes.
type Mempool struct {
	checker TxChecker
	txs     chan *bank.Transaction

	mu     sync.Mutex
	paused bool
	closed bool
}

// New returns a mempool holding up to [capacity] transactions (the default
// capacity if 0). [checker] may be nil.
func New(capacity int, checker TxChecker) *Mempool {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Mempool{
		checker: checker,
		txs:     make(chan *bank.Transaction, capacity),
	}
}

// Submit validates [tx] and queues it. Shape and signature problems are
// reported immediately with the precise rejection reason; ErrBusy signals the
// transient freeze window.
func (m *Mempool) Submit(tx *bank.Transaction) error {
	if err := tx.Verify(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.closed:
		return ErrClosed
	case m.paused:
		return ErrBusy
	}
	if m.checker != nil {
		if err := m.checker(tx); err != nil {
			return err
		}
	}

	select {
	case m.txs <- tx:
		return nil
	default:
		return ErrFull
	}
}

// Drain removes and returns up to [max] queued transactions in arrival
// order. Zero means no limit. Only the production loop may call Drain; it
// deliberately takes no lock so the loop never blocks behind submitters.
func (m *Mempool) Drain(max int) []*bank.Transaction {
	var drained []*bank.Transaction
	for max <= 0 || len(drained) < max {
		select {
		case tx := <-m.txs:
			drained = append(drained, tx)
		default:
			return drained
		}
	}
	return drained
}

// Pause rejects new submissions with ErrBusy until Resume.
func (m *Mempool) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = true
}

// Resume reopens intake after a Pause.
func (m *Mempool) Resume() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = false
}

// Close permanently stops intake. Queued transactions may still be drained.
func (m *Mempool) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

// Len returns the number of queued transactions.
func (m *Mempool) Len() int { return len(m.txs) }
