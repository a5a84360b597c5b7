// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bank

import (
	"github.com/ava-labs/avalanchego/ids"
)

// Account is the state stored at a single address. An account is owned by
// exactly one program; only the owning program may debit it or mutate its
// data. Accounts live in the copy-on-write delta of the bank that last wrote
// them, so a value read from an older bank is never mutated by a newer one.
type Account struct {
	Lamports   uint64      `serialize:"true" json:"lamports"`
	Owner      ids.ShortID `serialize:"true" json:"owner"`
	Data       []byte      `serialize:"true" json:"data"`
	Executable bool        `serialize:"true" json:"executable"`
	RentEpoch  uint64      `serialize:"true" json:"rentEpoch"`
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	clone := *a
	if a.Data != nil {
		clone.Data = make([]byte, len(a.Data))
		copy(clone.Data, a.Data)
	}
	return &clone
}

// rentExempt returns true if the account's balance meets the rent-exemption
// threshold for its data size.
func (a *Account) rentExempt(rent RentSchedule) bool {
	return a.Lamports >= rent.MinimumBalance(len(a.Data))
}
