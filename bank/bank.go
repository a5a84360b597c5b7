// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bank

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"
	"github.com/ava-labs/avalanchego/utils/wrappers"
)

var (
	ErrFrozen            = errors.New("bank is frozen")
	ErrNotFrozen         = errors.New("parent bank is not frozen")
	ErrNonSequentialSlot = errors.New("child slot must be parent slot + 1")
	ErrStaleBlockhash    = errors.New("blockhash not found in recent-blockhash window")
	ErrAccountInUse      = errors.New("account locked by a transaction already in this bank")
	ErrInsufficientFee   = errors.New("fee payer cannot cover the transaction fee")
	ErrSupplyOverflow    = errors.New("lamport supply overflow")
)

// Bank is a versioned snapshot of the account state at one slot. An open bank
// accepts transactions; a frozen bank is immutable and is the only kind
// eligible for ledger append. Account state is copy-on-write: a bank stores
// only the accounts written at its slot and resolves reads through its chain
// of frozen parents, so readers holding an older frozen bank keep a
// consistent view regardless of newer writes.
//
// Banks do no internal locking. Callers serialize mutations behind a single
// boundary; reads of frozen banks are always safe.
type Bank struct {
	params ChainParams

	slot            uint64
	parent          *Bank
	parentHash      ids.ID
	timestampMillis int64

	// accounts is this bank's copy-on-write delta. A nil entry is a
	// tombstone for an account drained by rent.
	accounts map[ids.ShortID]*Account

	capitalization uint64

	hashes     *blockhashQueue
	processors map[ids.ShortID]Processor

	// Accounts locked by transactions already committed in this bank.
	readLocks  map[ids.ShortID]struct{}
	writeLocks map[ids.ShortID]struct{}

	committed []*Transaction
	receipts  []*Receipt

	frozen    bool
	hash      ids.ID
	stateRoot ids.ID
}

// NewGenesis builds the open slot-0 bank. [genesisHash] seeds the
// recent-blockhash window and must be a pure function of the genesis
// configuration so repeated runs are byte-identical. [capitalization] is the
// sum of lamports in [accounts], already validated by the caller.
func NewGenesis(
	params ChainParams,
	accounts map[ids.ShortID]*Account,
	genesisHash ids.ID,
	timestampMillis int64,
	capitalization uint64,
) *Bank {
	delta := make(map[ids.ShortID]*Account, len(accounts))
	for addr, acct := range accounts {
		delta[addr] = acct.Clone()
	}
	hashes := newBlockhashQueue()
	hashes.register(genesisHash, 0)
	return &Bank{
		params:          params,
		parentHash:      genesisHash,
		timestampMillis: timestampMillis,
		accounts:        delta,
		capitalization:  capitalization,
		hashes:          hashes,
		processors: map[ids.ShortID]Processor{
			SystemProgramID: systemProgram{},
		},
		readLocks:  make(map[ids.ShortID]struct{}),
		writeLocks: make(map[ids.ShortID]struct{}),
	}
}

// Slot returns the bank's position in the chain.
func (b *Bank) Slot() uint64 { return b.slot }

// Frozen reports whether the bank has been sealed.
func (b *Bank) Frozen() bool { return b.frozen }

// Hash returns the bank's blockhash. It is only set once the bank freezes.
func (b *Bank) Hash() ids.ID { return b.hash }

// ParentHash returns the blockhash of the bank's parent (the genesis hash
// for the slot-0 bank).
func (b *Bank) ParentHash() ids.ID { return b.parentHash }

// StateRoot returns the hash of the bank's account-state delta, set at
// freeze.
func (b *Bank) StateRoot() ids.ID { return b.stateRoot }

// TimestampMillis returns the bank's deterministic timestamp, derived from
// the genesis timestamp and the slot duration rather than the wall clock.
func (b *Bank) TimestampMillis() int64 { return b.timestampMillis }

// Capitalization returns the total lamports in circulation as of this bank.
func (b *Bank) Capitalization() uint64 { return b.capitalization }

// LatestBlockhash returns the hash new transactions should reference: the
// most recent entry of the bank's recent-blockhash window.
func (b *Bank) LatestBlockhash() ids.ID { return b.parentHash }

// IsRecentBlockhash reports whether [hash] is within the replay-protection
// window of this bank.
func (b *Bank) IsRecentBlockhash(hash ids.ID) bool { return b.hashes.contains(hash) }

// Transactions returns the transactions committed in this bank, in arrival
// order.
func (b *Bank) Transactions() []*Transaction { return b.committed }

// Receipts returns the receipts of the committed transactions, in the same
// order as Transactions.
func (b *Bank) Receipts() []*Receipt { return b.receipts }

// RegisterProcessor installs [p] as the execution engine for [programID].
// The registry is shared by the whole bank chain.
func (b *Bank) RegisterProcessor(programID ids.ShortID, p Processor) {
	b.processors[programID] = p
}

// GetAccount returns a copy of the account at [addr], walking the
// copy-on-write chain from this bank back toward genesis.
func (b *Bank) GetAccount(addr ids.ShortID) (*Account, bool) {
	acct, ok := b.lookupAccount(addr)
	if !ok {
		return nil, false
	}
	return acct, true
}

func (b *Bank) lookupAccount(addr ids.ShortID) (*Account, bool) {
	for cur := b; cur != nil; cur = cur.parent {
		if acct, ok := cur.accounts[addr]; ok {
			if acct == nil {
				return nil, false
			}
			return acct.Clone(), true
		}
	}
	return nil, false
}

// Apply validates [tx] against this bank and, if valid, executes it and
// mutates the working account set. Validation failures return an error and
// leave the bank untouched. Execution failures commit the transaction with a
// failure receipt; whether the fee is still charged follows the configured
// fee schedule. Transactions are applied strictly in call order.
func (b *Bank) Apply(tx *Transaction) (*Receipt, error) {
	if b.frozen {
		return nil, ErrFrozen
	}
	if err := tx.Verify(); err != nil {
		return nil, err
	}
	if !b.hashes.contains(tx.Blockhash) {
		return nil, fmt.Errorf("%w: %s", ErrStaleBlockhash, tx.Blockhash)
	}

	reads, writes := tx.lockSets()
	if err := b.checkLocks(reads, writes); err != nil {
		return nil, err
	}

	fee := b.params.Fee.LamportsPerSignature
	payer, ok := b.lookupAccount(tx.FeePayer)
	if !ok || payer.Lamports < fee {
		return nil, fmt.Errorf("%w: fee %d", ErrInsufficientFee, fee)
	}

	receipt := &Receipt{
		TxID: tx.ID(),
		Slot: b.slot,
		Fee:  fee,
	}

	// Execute on a scratch overlay. The fee is debited inside the overlay so
	// programs observe the post-fee balance; on failure only the fee debit
	// (if configured) survives.
	ectx := newExecContext(b, tx.FeePayer)
	ectx.writable = map[ids.ShortID]struct{}{tx.FeePayer: {}}
	if err := ectx.Debit(tx.FeePayer, fee); err != nil {
		return nil, fmt.Errorf("%w: fee %d", ErrInsufficientFee, fee)
	}

	execErr := b.execute(ectx, tx)
	receipt.Logs = ectx.logs
	receipt.UnitsConsumed = ectx.units

	switch {
	case execErr == nil:
		b.storeScratch(ectx)
	case b.params.Fee.ChargeFeeOnFailure:
		receipt.ExecErr = execErr.Error()
		payer.Lamports -= fee
		b.storeAccount(tx.FeePayer, payer)
	default:
		receipt.ExecErr = execErr.Error()
		receipt.Fee = 0
	}

	if execErr == nil || b.params.Fee.ChargeFeeOnFailure {
		// Burn the fee.
		b.capitalization -= receipt.Fee
	}

	b.lock(reads, writes)
	b.committed = append(b.committed, tx)
	b.receipts = append(b.receipts, receipt)
	return receipt, nil
}

func (b *Bank) execute(ectx *ExecContext, tx *Transaction) error {
	for i := range tx.Instructions {
		in := &tx.Instructions[i]
		processor, ok := b.processors[in.ProgramID]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownProgram, in.ProgramID)
		}
		ectx.setInstruction(in)
		b.collectRent(ectx, in)
		ectx.Log("program %s invoke", in.ProgramID)
		if err := processor.Execute(ectx, in); err != nil {
			ectx.Log("program %s failed: %s", in.ProgramID, err)
			return err
		}
		ectx.Log("program %s success", in.ProgramID)
		ectx.units += computeUnitsPerInstruction
	}
	return nil
}

// collectRent assesses rent on the writable accounts an instruction is about
// to touch. Rent-exempt accounts only have their rent epoch bumped; accounts
// drained to zero are tombstoned when the scratch overlay commits.
func (b *Bank) collectRent(ectx *ExecContext, in *Instruction) {
	epoch := b.epoch()
	for _, meta := range in.Accounts {
		if !meta.Writable {
			continue
		}
		acct, ok := ectx.Account(meta.Address)
		if !ok || acct.RentEpoch >= epoch {
			continue
		}
		if acct.rentExempt(b.params.Rent) {
			acct.RentEpoch = epoch
			continue
		}
		due := b.params.Rent.rentPerEpoch(len(acct.Data)) * (epoch - acct.RentEpoch)
		if due >= acct.Lamports {
			ectx.rentBurned += acct.Lamports
			ectx.scratch[meta.Address] = nil
			ectx.deleted[meta.Address] = struct{}{}
			continue
		}
		ectx.rentBurned += due
		acct.Lamports -= due
		acct.RentEpoch = epoch
	}
}

func (b *Bank) epoch() uint64 {
	return b.slot / b.params.Rent.slotsPerEpoch()
}

func (b *Bank) checkLocks(reads, writes map[ids.ShortID]struct{}) error {
	for addr := range writes {
		if _, ok := b.writeLocks[addr]; ok {
			return fmt.Errorf("%w: %s", ErrAccountInUse, addr)
		}
		if _, ok := b.readLocks[addr]; ok {
			return fmt.Errorf("%w: %s", ErrAccountInUse, addr)
		}
	}
	for addr := range reads {
		if _, ok := b.writeLocks[addr]; ok {
			return fmt.Errorf("%w: %s", ErrAccountInUse, addr)
		}
	}
	return nil
}

func (b *Bank) lock(reads, writes map[ids.ShortID]struct{}) {
	for addr := range reads {
		b.readLocks[addr] = struct{}{}
	}
	for addr := range writes {
		b.writeLocks[addr] = struct{}{}
	}
}

func (b *Bank) storeScratch(ectx *ExecContext) {
	for addr, acct := range ectx.scratch {
		b.accounts[addr] = acct
	}
	// Rent assessed during execution only burns if the overlay commits.
	b.capitalization -= ectx.rentBurned
}

func (b *Bank) storeAccount(addr ids.ShortID, acct *Account) {
	b.accounts[addr] = acct
}

// Deposit credits [amount] lamports to [addr] outside normal transaction
// flow, minting new supply. Used by the control surface for airdrops.
func (b *Bank) Deposit(addr ids.ShortID, amount uint64) error {
	if b.frozen {
		return ErrFrozen
	}
	if b.capitalization+amount < b.capitalization {
		return ErrSupplyOverflow
	}
	acct, ok := b.lookupAccount(addr)
	if !ok {
		acct = &Account{Owner: SystemProgramID, RentEpoch: b.epoch()}
	}
	if acct.Lamports+amount < acct.Lamports {
		return ErrSupplyOverflow
	}
	acct.Lamports += amount
	b.accounts[addr] = acct
	b.capitalization += amount
	return nil
}

// SetAccount overwrites the account at [addr] wholesale, bypassing ownership
// and rent rules. Used by the control surface to seed complex state.
func (b *Bank) SetAccount(addr ids.ShortID, acct *Account) error {
	if b.frozen {
		return ErrFrozen
	}
	prev := uint64(0)
	if cur, ok := b.lookupAccount(addr); ok {
		prev = cur.Lamports
	}
	next := b.capitalization - prev
	if next+acct.Lamports < next {
		return ErrSupplyOverflow
	}
	b.capitalization = next + acct.Lamports
	b.accounts[addr] = acct.Clone()
	return nil
}

// Freeze seals the bank: it computes the state root over the account delta
// and the bank's blockhash, and disallows further Apply calls. Freeze is
// idempotent; freezing a frozen bank returns the same view.
func (b *Bank) Freeze() *Bank {
	if b.frozen {
		return b
	}
	b.stateRoot = b.computeStateRoot()
	b.hash = b.computeBlockhash()
	b.frozen = true
	log.Debug("froze bank", "slot", b.slot, "blockhash", b.hash, "txs", len(b.committed))
	return b
}

// computeStateRoot hashes the bank's account delta in address order.
// Deterministic: no map iteration order or wall clock leaks in.
func (b *Bank) computeStateRoot() ids.ID {
	addrs := make([]ids.ShortID, 0, len(b.accounts))
	for addr := range b.accounts {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool {
		return bytes.Compare(addrs[i][:], addrs[j][:]) < 0
	})

	p := wrappers.Packer{MaxSize: 1 << 24, Bytes: make([]byte, 0, 64*len(addrs)+wrappers.LongLen)}
	p.PackLong(b.slot)
	for _, addr := range addrs {
		p.PackFixedBytes(addr[:])
		acct := b.accounts[addr]
		if acct == nil {
			p.PackBool(true) // tombstone
			continue
		}
		p.PackBool(false)
		p.PackLong(acct.Lamports)
		p.PackFixedBytes(acct.Owner[:])
		p.PackBytes(acct.Data)
		p.PackBool(acct.Executable)
		p.PackLong(acct.RentEpoch)
	}
	return hashing.ComputeHash256Array(p.Bytes)
}

// computeBlockhash derives the frozen bank's hash from its parent hash, slot,
// committed transaction IDs, and state root.
func (b *Bank) computeBlockhash() ids.ID {
	p := wrappers.Packer{
		MaxSize: 1 << 24,
		Bytes:   make([]byte, 0, 2*hashing.HashLen+wrappers.LongLen+hashing.HashLen*len(b.committed)),
	}
	p.PackFixedBytes(b.parentHash[:])
	p.PackLong(b.slot)
	p.PackFixedBytes(b.stateRoot[:])
	for _, tx := range b.committed {
		txID := tx.ID()
		p.PackFixedBytes(txID[:])
	}
	return hashing.ComputeHash256Array(p.Bytes)
}

// ChildAt opens the bank for [slot] as a copy-on-write child of this bank.
// The parent must be frozen and [slot] must be exactly parent slot + 1: this
// emulation never skips slots.
func (b *Bank) ChildAt(slot uint64) (*Bank, error) {
	if !b.frozen {
		return nil, ErrNotFrozen
	}
	if slot != b.slot+1 {
		return nil, fmt.Errorf("%w: parent %d, requested %d", ErrNonSequentialSlot, b.slot, slot)
	}

	hashes := b.hashes.clone()
	hashes.register(b.hash, slot)
	return &Bank{
		params:          b.params,
		slot:            slot,
		parent:          b,
		parentHash:      b.hash,
		timestampMillis: b.timestampMillis + int64(b.params.slotMillis()),
		accounts:        make(map[ids.ShortID]*Account),
		capitalization:  b.capitalization,
		hashes:          hashes,
		processors:      b.processors,
		readLocks:       make(map[ids.ShortID]struct{}),
		writeLocks:      make(map[ids.ShortID]struct{}),
	}, nil
}
