// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bank

import (
	"errors"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/crypto"
	"github.com/ava-labs/avalanchego/utils/hashing"
)

var (
	ErrBadSignature   = errors.New("transaction signature does not recover to fee payer")
	ErrNoInstructions = errors.New("transaction has no instructions")
	ErrNoFeePayer     = errors.New("transaction has no fee payer")
	ErrEmptyProgramID = errors.New("instruction has empty program ID")

	secpFactory = crypto.FactorySECP256K1R{}
)

// AccountMeta names an account referenced by an instruction and whether the
// instruction may write to it.
type AccountMeta struct {
	Address  ids.ShortID `serialize:"true" json:"address"`
	Writable bool        `serialize:"true" json:"writable"`
}

// Instruction is a single call into a program, carrying the accounts the
// program may touch and an opaque data payload the program interprets.
type Instruction struct {
	ProgramID ids.ShortID   `serialize:"true" json:"programID"`
	Accounts  []AccountMeta `serialize:"true" json:"accounts"`
	Data      []byte        `serialize:"true" json:"data"`
}

// UnsignedTx is the portion of a transaction covered by the signature.
type UnsignedTx struct {
	// Blockhash must be within the recent-blockhash window of the bank the
	// transaction is applied to.
	Blockhash ids.ID `serialize:"true" json:"blockhash"`

	// FeePayer signs the transaction and is debited the fee. It is always
	// treated as a writable, signing account.
	FeePayer ids.ShortID `serialize:"true" json:"feePayer"`

	Instructions []Instruction `serialize:"true" json:"instructions"`
}

// Transaction is a signed instruction bundle.
type Transaction struct {
	UnsignedTx `serialize:"true"`
	Sig        [crypto.SECP256K1RSigLen]byte `serialize:"true" json:"signature"`

	id    ids.ID
	bytes []byte
}

// Sign signs the transaction with [key], sets the fee payer to the key's
// address, and caches the transaction's byte representation and ID.
func (tx *Transaction) Sign(key crypto.PrivateKey) error {
	tx.FeePayer = key.PublicKey().Address()
	unsignedBytes, err := Codec.Marshal(CodecVersion, &tx.UnsignedTx)
	if err != nil {
		return err
	}
	sig, err := key.Sign(unsignedBytes)
	if err != nil {
		return err
	}
	copy(tx.Sig[:], sig)
	return tx.initialize()
}

// Verify checks the transaction's shape and that its signature recovers to
// the fee payer. It is stateless; replay-window and lock checks happen when
// the transaction is applied to a bank.
func (tx *Transaction) Verify() error {
	switch {
	case tx.FeePayer == ids.ShortEmpty:
		return ErrNoFeePayer
	case len(tx.Instructions) == 0:
		return ErrNoInstructions
	}
	for _, in := range tx.Instructions {
		if in.ProgramID == ids.ShortEmpty {
			return ErrEmptyProgramID
		}
	}

	unsignedBytes, err := Codec.Marshal(CodecVersion, &tx.UnsignedTx)
	if err != nil {
		return err
	}
	pk, err := secpFactory.RecoverPublicKey(unsignedBytes, tx.Sig[:])
	if err != nil || pk.Address() != tx.FeePayer {
		return ErrBadSignature
	}
	return nil
}

// ID returns the transaction's ID, the hash of its byte representation.
func (tx *Transaction) ID() ids.ID {
	if tx.id == ids.Empty {
		_ = tx.initialize()
	}
	return tx.id
}

// Bytes returns the codec representation of the signed transaction.
func (tx *Transaction) Bytes() []byte {
	if tx.bytes == nil {
		_ = tx.initialize()
	}
	return tx.bytes
}

func (tx *Transaction) initialize() error {
	bytes, err := Codec.Marshal(CodecVersion, tx)
	if err != nil {
		return err
	}
	tx.bytes = bytes
	tx.id = hashing.ComputeHash256Array(bytes)
	return nil
}

// ParseTransaction deserializes a transaction from its codec representation.
func ParseTransaction(bytes []byte) (*Transaction, error) {
	tx := &Transaction{}
	if _, err := Codec.Unmarshal(bytes, tx); err != nil {
		return nil, err
	}
	tx.bytes = bytes
	tx.id = hashing.ComputeHash256Array(bytes)
	return tx, nil
}

// lockSets returns the set of accounts the transaction reads and the set it
// writes. The fee payer is always a write.
func (tx *Transaction) lockSets() (reads, writes map[ids.ShortID]struct{}) {
	reads = make(map[ids.ShortID]struct{})
	writes = map[ids.ShortID]struct{}{tx.FeePayer: {}}
	for _, in := range tx.Instructions {
		for _, meta := range in.Accounts {
			if meta.Writable {
				writes[meta.Address] = struct{}{}
			} else {
				reads[meta.Address] = struct{}{}
			}
		}
	}
	return reads, writes
}
