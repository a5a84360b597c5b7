// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bank

const (
	// accountStorageOverhead is the constant number of bytes charged for an
	// account's metadata when computing rent, on top of its data payload.
	accountStorageOverhead = 128

	// defaultSlotMillis is the emulated slot duration used to derive bank
	// timestamps when the configuration doesn't override it.
	defaultSlotMillis = 400

	// defaultSlotsPerEpoch matches a two-day epoch at the default slot
	// duration.
	defaultSlotsPerEpoch = 432000
)

// FeeSchedule sets the cost of transactions and the policy applied to
// transactions that fail during execution.
type FeeSchedule struct {
	// LamportsPerSignature is charged to the fee payer per transaction
	// signature.
	LamportsPerSignature uint64 `serialize:"true" json:"lamportsPerSignature"`

	// ChargeFeeOnFailure keeps the fee debit of a transaction whose
	// instructions fail during execution. When false the fee payer is left
	// untouched by failed transactions.
	ChargeFeeOnFailure bool `serialize:"true" json:"chargeFeeOnFailure"`
}

// RentSchedule sets the storage cost of accounts.
type RentSchedule struct {
	// LamportsPerByteEpoch is the rent debited per byte of account storage
	// for each epoch the account stays below the exemption threshold.
	LamportsPerByteEpoch uint64 `serialize:"true" json:"lamportsPerByteEpoch"`

	// ExemptionThreshold is the number of epochs of rent an account must
	// hold to be rent-exempt.
	ExemptionThreshold uint64 `serialize:"true" json:"exemptionThreshold"`

	// SlotsPerEpoch sets the epoch boundary at which rent is assessed.
	SlotsPerEpoch uint64 `serialize:"true" json:"slotsPerEpoch"`
}

// MinimumBalance returns the smallest balance at which an account holding
// [dataLen] bytes is rent-exempt.
func (r RentSchedule) MinimumBalance(dataLen int) uint64 {
	return r.rentPerEpoch(dataLen) * r.ExemptionThreshold
}

func (r RentSchedule) rentPerEpoch(dataLen int) uint64 {
	return r.LamportsPerByteEpoch * (uint64(dataLen) + accountStorageOverhead)
}

func (r RentSchedule) slotsPerEpoch() uint64 {
	if r.SlotsPerEpoch == 0 {
		return defaultSlotsPerEpoch
	}
	return r.SlotsPerEpoch
}

// ChainParams are the network parameters fixed at genesis and carried by
// every bank in the chain.
type ChainParams struct {
	Fee        FeeSchedule  `serialize:"true" json:"fee"`
	Rent       RentSchedule `serialize:"true" json:"rent"`
	SlotMillis uint64       `serialize:"true" json:"slotMillis"`
}

func (p ChainParams) slotMillis() uint64 {
	if p.SlotMillis == 0 {
		return defaultSlotMillis
	}
	return p.SlotMillis
}
