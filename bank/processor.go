// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bank

import (
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/ids"
)

var (
	ErrUnknownProgram     = errors.New("no processor registered for program")
	ErrAccountNotWritable = errors.New("instruction account is not writable")
	ErrMissingSigner      = errors.New("instruction requires a signing account")
	ErrUnknownAccount     = errors.New("account does not exist")
	ErrBalanceOverflow    = errors.New("account balance overflow")
	ErrInsufficientFunds  = errors.New("insufficient funds")
)

// Processor executes the instructions addressed to one program ID. The
// transaction-execution VM proper is an external collaborator: the bank only
// hands instructions to whichever Processor is registered for the program and
// commits or discards the resulting account writes.
type Processor interface {
	Execute(ectx *ExecContext, in *Instruction) error
}

// ExecContext is the view a Processor executes against. All writes land in a
// scratch overlay; the bank merges the overlay only if every instruction of
// the transaction succeeds.
type ExecContext struct {
	bank   *Bank
	signer ids.ShortID

	// writable is the union of writable account metas of the instruction
	// currently executing.
	writable map[ids.ShortID]struct{}

	scratch map[ids.ShortID]*Account
	deleted map[ids.ShortID]struct{}
	logs    []string
	units   uint64

	// rentBurned is the supply destroyed by rent collection; it is applied
	// to the bank's capitalization only when the overlay commits.
	rentBurned uint64
}

func newExecContext(b *Bank, signer ids.ShortID) *ExecContext {
	return &ExecContext{
		bank:    b,
		signer:  signer,
		scratch: make(map[ids.ShortID]*Account),
		deleted: make(map[ids.ShortID]struct{}),
	}
}

// Slot returns the slot of the bank the transaction executes in.
func (e *ExecContext) Slot() uint64 { return e.bank.slot }

// IsSigner reports whether [addr] signed the transaction.
func (e *ExecContext) IsSigner(addr ids.ShortID) bool { return addr == e.signer }

// Account returns a mutable copy of the account at [addr] from the scratch
// overlay, loading it from the bank's copy-on-write chain on first access.
func (e *ExecContext) Account(addr ids.ShortID) (*Account, bool) {
	if _, ok := e.deleted[addr]; ok {
		return nil, false
	}
	if acct, ok := e.scratch[addr]; ok {
		return acct, true
	}
	acct, ok := e.bank.lookupAccount(addr)
	if !ok {
		return nil, false
	}
	e.scratch[addr] = acct
	return acct, true
}

// Credit adds [amount] lamports to the account at [addr], creating a
// system-owned account if none exists.
func (e *ExecContext) Credit(addr ids.ShortID, amount uint64) error {
	if err := e.checkWritable(addr); err != nil {
		return err
	}
	acct, ok := e.Account(addr)
	if !ok {
		acct = &Account{Owner: SystemProgramID}
		e.scratch[addr] = acct
		delete(e.deleted, addr)
	}
	if acct.Lamports+amount < acct.Lamports {
		return ErrBalanceOverflow
	}
	acct.Lamports += amount
	return nil
}

// Debit removes [amount] lamports from the account at [addr].
func (e *ExecContext) Debit(addr ids.ShortID, amount uint64) error {
	if err := e.checkWritable(addr); err != nil {
		return err
	}
	acct, ok := e.Account(addr)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAccount, addr)
	}
	if acct.Lamports < amount {
		return fmt.Errorf("%w: account %s holds %d, needs %d", ErrInsufficientFunds, addr, acct.Lamports, amount)
	}
	acct.Lamports -= amount
	return nil
}

// SetAccount replaces the account at [addr] in the scratch overlay.
func (e *ExecContext) SetAccount(addr ids.ShortID, acct *Account) error {
	if err := e.checkWritable(addr); err != nil {
		return err
	}
	e.scratch[addr] = acct
	delete(e.deleted, addr)
	return nil
}

// Log records a program log line surfaced on the transaction's receipt.
func (e *ExecContext) Log(format string, args ...interface{}) {
	e.logs = append(e.logs, fmt.Sprintf(format, args...))
}

func (e *ExecContext) checkWritable(addr ids.ShortID) error {
	if _, ok := e.writable[addr]; !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotWritable, addr)
	}
	return nil
}

// setInstruction scopes the writable set to the instruction about to run.
func (e *ExecContext) setInstruction(in *Instruction) {
	e.writable = make(map[ids.ShortID]struct{}, len(in.Accounts)+1)
	e.writable[e.signer] = struct{}{}
	for _, meta := range in.Accounts {
		if meta.Writable {
			e.writable[meta.Address] = struct{}{}
		}
	}
}
