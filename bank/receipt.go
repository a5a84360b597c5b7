// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bank

import (
	"github.com/ava-labs/avalanchego/ids"
)

// computeUnitsPerInstruction is the flat compute cost the emulator charges
// per executed instruction. Native programs don't meter real compute.
const computeUnitsPerInstruction = 150

// Receipt records the outcome of a transaction committed to a bank.
// Transactions whose instructions fail during execution are still committed
// (and may still be charged their fee); only validation failures keep a
// transaction out of the bank entirely.
type Receipt struct {
	TxID          ids.ID   `serialize:"true" json:"txID"`
	Slot          uint64   `serialize:"true" json:"slot"`
	Fee           uint64   `serialize:"true" json:"fee"`
	UnitsConsumed uint64   `serialize:"true" json:"unitsConsumed"`
	Logs          []string `serialize:"true" json:"logs"`

	// ExecErr is empty on success, otherwise the instruction failure.
	ExecErr string `serialize:"true" json:"execErr"`
}

// Succeeded reports whether every instruction of the transaction executed.
func (r *Receipt) Succeeded() bool { return r.ExecErr == "" }
