// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package validator wires genesis, bank, ledger, and mempool into a
// single-node cluster emulation: a block production loop on a controllable
// clock, a control surface for test setup, and read entry points for the
// request-serving layer.
package validator

import (
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/timer"

	"github.com/jdesjarlais/solana/bank"
	"github.com/jdesjarlais/solana/genesis"
	"github.com/jdesjarlais/solana/ledger"
	"github.com/jdesjarlais/solana/mempool"
)

const (
	// Name is the service name the RPC facade registers under.
	Name = "solana"

	// Version of the emulator.
	Version = "0.1.0"
)

var (
	// ErrHalted is returned once a ledger invariant violation has stopped
	// block production. Only Reset clears it.
	ErrHalted = errors.New("block production halted after ledger invariant violation")

	// ErrSupplyCap is returned when an airdrop would exceed the configured
	// supply cap.
	ErrSupplyCap = errors.New("airdrop would violate the supply cap")

	// ErrSlotNotReached is returned by WarpToSlot for a target at or behind
	// the current slot.
	ErrSlotNotReached = errors.New("warp target must be beyond the current slot")

	// ErrShutdown is returned by mutating operations after Shutdown.
	ErrShutdown = errors.New("validator is shut down")
)

// Config configures a validator instance.
type Config struct {
	Genesis genesis.Config

	// TickInterval is the block production cadence. Zero disables the timer:
	// slots only advance through Advance and WarpToSlot.
	TickInterval time.Duration

	// MempoolSize bounds the intake queue (0 = default).
	MempoolSize int
}

// Validator is the in-process cluster-of-one. A single mutual-exclusion
// boundary (mu) guards the open bank and the ledger tail: timer ticks,
// Advance, WarpToSlot, and the control surface all serialize on it, so ticks
// never overlap. Readers share mu and observe consistent snapshots through
// the copy-on-write bank chain.
type Validator struct {
	cfg Config

	mu     sync.RWMutex
	bank   *bank.Bank // current open bank
	halted bool
	closed bool

	ledger  *ledger.Ledger
	mempool *mempool.Mempool

	prodTimer *timer.Timer
	ticking   bool

	subMu       sync.Mutex
	subscribers []chan uint64
}

// New builds a validator from [cfg]. The genesis configuration is retained
// so Reset can rebuild an identical chain.
func New(cfg Config) (*Validator, error) {
	genesisBank, err := cfg.Genesis.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build genesis: %w", err)
	}

	led, err := ledger.New(memdb.New())
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	v := &Validator{
		cfg:    cfg,
		bank:   genesisBank,
		ledger: led,
	}
	v.mempool = mempool.New(cfg.MempoolSize, v.checkTx)
	v.prodTimer = timer.NewTimer(v.onTick)
	go v.prodTimer.Dispatch()

	log.Info("validator initialized",
		"cluster", cfg.Genesis.ClusterID,
		"genesisHash", genesisBank.LatestBlockhash(),
		"capitalization", genesisBank.Capitalization(),
		"tickInterval", cfg.TickInterval,
	)
	return v, nil
}

// checkTx is the mempool's stateful admission check: the referenced
// blockhash must be within the open bank's replay window.
func (v *Validator) checkTx(tx *bank.Transaction) error {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if !v.bank.IsRecentBlockhash(tx.Blockhash) {
		return fmt.Errorf("%w: %s", bank.ErrStaleBlockhash, tx.Blockhash)
	}
	return nil
}

// Start launches the block production timer. It is a no-op in manual mode
// (TickInterval == 0).
func (v *Validator) Start() {
	if v.cfg.TickInterval <= 0 {
		log.Info("manual slot mode, production timer disabled")
		return
	}
	v.mu.Lock()
	if v.ticking || v.closed {
		v.mu.Unlock()
		return
	}
	v.ticking = true
	v.mu.Unlock()

	v.prodTimer.SetTimeoutIn(v.cfg.TickInterval)
	log.Info("block production started", "interval", v.cfg.TickInterval)
}

func (v *Validator) onTick() {
	if _, err := v.Advance(); err != nil && !errors.Is(err, ErrShutdown) {
		log.Error("production tick failed", "err", err)
		if errors.Is(err, ErrHalted) || errors.Is(err, ledger.ErrOutOfOrderSlot) {
			return
		}
	}

	v.mu.RLock()
	rearm := v.ticking && !v.closed && !v.halted
	v.mu.RUnlock()
	if rearm {
		v.prodTimer.SetTimeoutIn(v.cfg.TickInterval)
	}
}

// Advance produces exactly one slot: drain the intake queue into the open
// bank, freeze it, append it to the ledger, and open the child bank. It
// returns the slot that was frozen. Manual Advance calls and timer ticks
// serialize on the same boundary, so they never overlap.
func (v *Validator) Advance() (uint64, error) {
	v.mempool.Pause()
	defer v.mempool.Resume()

	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.checkMutable(); err != nil {
		return 0, err
	}

	for _, tx := range v.mempool.Drain(0) {
		receipt, err := v.bank.Apply(tx)
		switch {
		case err != nil:
			log.Debug("transaction rejected", "tx", tx.ID(), "err", err)
		case !receipt.Succeeded():
			log.Debug("transaction failed", "tx", tx.ID(), "err", receipt.ExecErr)
		}
	}

	slot, err := v.produceSlot()
	if err != nil {
		return 0, err
	}
	v.notify(slot)
	return slot, nil
}

// produceSlot freezes the open bank, appends it, and opens its child. The
// caller must hold mu. A SequenceError from the ledger is an invariant
// violation: production halts rather than risking an inconsistent chain.
func (v *Validator) produceSlot() (uint64, error) {
	frozen := v.bank.Freeze()
	if err := v.ledger.Append(ledger.NewEntry(frozen)); err != nil {
		v.halted = true
		log.Crit("ledger append failed, halting block production", "slot", frozen.Slot(), "err", err)
		return 0, err
	}

	child, err := frozen.ChildAt(frozen.Slot() + 1)
	if err != nil {
		v.halted = true
		log.Crit("failed to open child bank, halting block production", "slot", frozen.Slot(), "err", err)
		return 0, err
	}
	v.bank = child
	return frozen.Slot(), nil
}

// WarpToSlot fast-forwards the chain to [target] without waiting on the
// timer, producing empty intermediate blocks (the first may carry whatever
// was already applied to the open bank). From slot s it appends exactly
// target-s ledger entries.
func (v *Validator) WarpToSlot(target uint64) error {
	v.mempool.Pause()
	defer v.mempool.Resume()

	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.checkMutable(); err != nil {
		return err
	}
	if target <= v.bank.Slot() {
		return fmt.Errorf("%w: at slot %d, requested %d", ErrSlotNotReached, v.bank.Slot(), target)
	}

	start := v.bank.Slot()
	for v.bank.Slot() < target {
		slot, err := v.produceSlot()
		if err != nil {
			return err
		}
		v.notify(slot)
	}
	log.Info("warped", "from", start, "to", target)
	return nil
}

// Airdrop credits [amount] lamports to [addr] without a signed transaction
// or fee charge. Fails if the configured supply cap would be violated.
func (v *Validator) Airdrop(addr ids.ShortID, amount uint64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.checkMutable(); err != nil {
		return err
	}
	if supplyCap := v.cfg.Genesis.SupplyCap; supplyCap != 0 {
		current := v.bank.Capitalization()
		if current+amount < current || current+amount > supplyCap {
			return fmt.Errorf("%w: capitalization %d, airdrop %d, cap %d", ErrSupplyCap, current, amount, supplyCap)
		}
	}
	if err := v.bank.Deposit(addr, amount); err != nil {
		if errors.Is(err, bank.ErrSupplyOverflow) {
			return fmt.Errorf("%w: %s", ErrSupplyCap, err)
		}
		return err
	}
	log.Info("airdrop", "address", addr, "lamports", amount)
	return nil
}

// SetAccount overwrites the account at [addr] wholesale, bypassing normal
// transaction semantics. Used to seed complex state under test.
func (v *Validator) SetAccount(addr ids.ShortID, acct *bank.Account) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.checkMutable(); err != nil {
		return err
	}
	return v.bank.SetAccount(addr, acct)
}

// RegisterProcessor installs an execution engine for [programID] on the
// bank chain.
func (v *Validator) RegisterProcessor(programID ids.ShortID, p bank.Processor) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.bank.RegisterProcessor(programID, p)
}

// Reset destroys all history and restarts the chain from the retained
// genesis configuration. Queued transactions are discarded.
func (v *Validator) Reset() error {
	v.mempool.Pause()
	defer v.mempool.Resume()

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return ErrShutdown
	}

	genesisBank, err := v.cfg.Genesis.Build()
	if err != nil {
		return fmt.Errorf("failed to rebuild genesis: %w", err)
	}
	if err := v.ledger.Reset(); err != nil {
		return fmt.Errorf("failed to reset ledger: %w", err)
	}
	v.mempool.Drain(0)
	v.bank = genesisBank
	v.halted = false
	log.Info("reset to genesis", "genesisHash", genesisBank.LatestBlockhash())
	return nil
}

// SubmitTransaction queues [tx] for inclusion in the next produced slot.
func (v *Validator) SubmitTransaction(tx *bank.Transaction) error {
	return v.mempool.Submit(tx)
}

// GetAccount returns the account at [addr] as of the current open bank.
func (v *Validator) GetAccount(addr ids.ShortID) (*bank.Account, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.bank.GetAccount(addr)
}

// Slot returns the slot of the current open bank.
func (v *Validator) Slot() uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.bank.Slot()
}

// LatestBlockhash returns the hash new transactions should reference.
func (v *Validator) LatestBlockhash() ids.ID {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.bank.LatestBlockhash()
}

// GetBlock returns the ledger entry at [slot].
func (v *Validator) GetBlock(slot uint64) (*ledger.Entry, error) {
	return v.ledger.Get(slot)
}

// Latest returns the most recently appended ledger entry.
func (v *Validator) Latest() (*ledger.Entry, error) {
	return v.ledger.Latest()
}

// SubscribeSlots returns a channel receiving the slot number of each frozen
// bank. Slow subscribers miss notifications rather than stalling production.
func (v *Validator) SubscribeSlots() <-chan uint64 {
	ch := make(chan uint64, 64)
	v.subMu.Lock()
	v.subscribers = append(v.subscribers, ch)
	v.subMu.Unlock()
	return ch
}

func (v *Validator) notify(slot uint64) {
	v.subMu.Lock()
	defer v.subMu.Unlock()
	for _, ch := range v.subscribers {
		select {
		case ch <- slot:
		default:
		}
	}
}

// Shutdown stops intake, waits for any in-flight tick to complete, and stops
// the production timer. No operation is aborted mid-mutation.
func (v *Validator) Shutdown() {
	v.mempool.Close()

	v.mu.Lock()
	alreadyClosed := v.closed
	v.closed = true
	v.ticking = false
	v.mu.Unlock()

	if !alreadyClosed {
		v.prodTimer.Stop()
		log.Info("validator shut down", "slot", v.Slot())
	}
}

func (v *Validator) checkMutable() error {
	switch {
	case v.closed:
		return ErrShutdown
	case v.halted:
		return ErrHalted
	}
	return nil
}
