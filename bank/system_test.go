// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bank

import (
	"testing"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/stretchr/testify/require"
)

// The payload builders must emit the full encoded instruction, not an empty
// slice, or every system instruction fails decode at execution time.
func TestSystemInstructionData(t *testing.T) {
	require := require.New(t)

	owner := ids.ShortID{'o', 'w', 'n', 'e', 'r'}

	transfer := TransferData(100)
	require.Len(transfer, 9) // opcode + lamports
	require.Equal(uint8(sysTransfer), transfer[0])

	create := CreateAccountData(200, 16, owner)
	require.Len(create, 37) // opcode + lamports + space + owner
	require.Equal(uint8(sysCreateAccount), create[0])

	assign := AssignData(owner)
	require.Len(assign, 21) // opcode + owner
	require.Equal(uint8(sysAssign), assign[0])
}

func TestSystemCreateAccount(t *testing.T) {
	require := require.New(t)

	payer := newTestKey(t)
	payerAddr := payer.PublicKey().Address()
	target := newTestKey(t).PublicKey().Address()
	owner := ids.ShortID{'o', 'w', 'n', 'e', 'r'}
	b := newTestBank(t, map[ids.ShortID]uint64{payerAddr: 1000})

	tx := &Transaction{
		UnsignedTx: UnsignedTx{
			Blockhash: b.LatestBlockhash(),
			Instructions: []Instruction{{
				ProgramID: SystemProgramID,
				Accounts: []AccountMeta{
					{Address: payerAddr, Writable: true},
					{Address: target, Writable: true},
				},
				Data: CreateAccountData(200, 16, owner),
			}},
		},
	}
	require.NoError(tx.Sign(payer))

	receipt, err := b.Apply(tx)
	require.NoError(err)
	require.True(receipt.Succeeded())

	acct, ok := b.GetAccount(target)
	require.True(ok)
	require.Equal(uint64(200), acct.Lamports)
	require.Equal(owner, acct.Owner)
	require.Len(acct.Data, 16)

	payerAcct, ok := b.GetAccount(payerAddr)
	require.True(ok)
	require.Equal(uint64(1000-5-200), payerAcct.Lamports)
}

func TestSystemCreateAccountAlreadyExists(t *testing.T) {
	require := require.New(t)

	payer := newTestKey(t)
	payerAddr := payer.PublicKey().Address()
	occupied := newTestKey(t).PublicKey().Address()
	b := newTestBank(t, map[ids.ShortID]uint64{
		payerAddr: 1000,
		occupied:  1,
	})

	tx := &Transaction{
		UnsignedTx: UnsignedTx{
			Blockhash: b.LatestBlockhash(),
			Instructions: []Instruction{{
				ProgramID: SystemProgramID,
				Accounts: []AccountMeta{
					{Address: payerAddr, Writable: true},
					{Address: occupied, Writable: true},
				},
				Data: CreateAccountData(200, 16, SystemProgramID),
			}},
		},
	}
	require.NoError(tx.Sign(payer))

	receipt, err := b.Apply(tx)
	require.NoError(err)
	require.False(receipt.Succeeded())
	require.Contains(receipt.ExecErr, errAccountInUse.Error())
}

func TestSystemAssign(t *testing.T) {
	require := require.New(t)

	key := newTestKey(t)
	addr := key.PublicKey().Address()
	newOwner := ids.ShortID{'p', 'r', 'o', 'g'}
	b := newTestBank(t, map[ids.ShortID]uint64{addr: 1000})

	tx := &Transaction{
		UnsignedTx: UnsignedTx{
			Blockhash: b.LatestBlockhash(),
			Instructions: []Instruction{{
				ProgramID: SystemProgramID,
				Accounts:  []AccountMeta{{Address: addr, Writable: true}},
				Data:      AssignData(newOwner),
			}},
		},
	}
	require.NoError(tx.Sign(key))

	receipt, err := b.Apply(tx)
	require.NoError(err)
	require.True(receipt.Succeeded())

	acct, ok := b.GetAccount(addr)
	require.True(ok)
	require.Equal(newOwner, acct.Owner)
}

func TestSystemTransferRequiresSigner(t *testing.T) {
	require := require.New(t)

	payer := newTestKey(t)
	victim := newTestKey(t).PublicKey().Address()
	thief := newTestKey(t).PublicKey().Address()
	b := newTestBank(t, map[ids.ShortID]uint64{
		payer.PublicKey().Address(): 1000,
		victim:                      1000,
	})

	// The transfer source is not the transaction's signer.
	tx := &Transaction{
		UnsignedTx: UnsignedTx{
			Blockhash: b.LatestBlockhash(),
			Instructions: []Instruction{{
				ProgramID: SystemProgramID,
				Accounts: []AccountMeta{
					{Address: victim, Writable: true},
					{Address: thief, Writable: true},
				},
				Data: TransferData(500),
			}},
		},
	}
	require.NoError(tx.Sign(payer))

	receipt, err := b.Apply(tx)
	require.NoError(err)
	require.False(receipt.Succeeded())
	require.Contains(receipt.ExecErr, ErrMissingSigner.Error())

	victimAcct, ok := b.GetAccount(victim)
	require.True(ok)
	require.Equal(uint64(1000), victimAcct.Lamports)
}

func TestSystemMalformedData(t *testing.T) {
	require := require.New(t)

	key := newTestKey(t)
	to := newTestKey(t).PublicKey().Address()
	b := newTestBank(t, map[ids.ShortID]uint64{key.PublicKey().Address(): 1000})

	tx := &Transaction{
		UnsignedTx: UnsignedTx{
			Blockhash: b.LatestBlockhash(),
			Instructions: []Instruction{{
				ProgramID: SystemProgramID,
				Accounts: []AccountMeta{
					{Address: key.PublicKey().Address(), Writable: true},
					{Address: to, Writable: true},
				},
				Data: []byte{sysTransfer}, // missing amount
			}},
		},
	}
	require.NoError(tx.Sign(key))

	receipt, err := b.Apply(tx)
	require.NoError(err)
	require.False(receipt.Succeeded())
	require.Contains(receipt.ExecErr, errSystemData.Error())
}
