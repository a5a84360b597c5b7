// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bank

import (
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"
	"github.com/ava-labs/avalanchego/utils/wrappers"
)

// Well-known program IDs. The system program is the only native processor;
// the native loader owns executable program accounts loaded at genesis.
var (
	SystemProgramID = ids.ShortID{'s', 'y', 's', 't', 'e', 'm'}
	NativeLoaderID  = ids.ShortID{'n', 'a', 't', 'i', 'v', 'e', 'l', 'o', 'a', 'd', 'e', 'r'}

	errSystemAccounts = errors.New("system instruction references wrong number of accounts")
	errSystemOpcode   = errors.New("unknown system instruction")
	errSystemData     = errors.New("malformed system instruction data")
	errAccountInUse   = errors.New("create target already exists")
)

// System instruction opcodes.
const (
	sysTransfer      = 0x00
	sysCreateAccount = 0x01
	sysAssign        = 0x02
)

// maxInstructionDataSize bounds the payload builders' packers.
const maxInstructionDataSize = 64

// TransferData encodes a system transfer instruction payload.
func TransferData(lamports uint64) []byte {
	p := wrappers.Packer{MaxSize: maxInstructionDataSize}
	p.PackByte(sysTransfer)
	p.PackLong(lamports)
	return p.Bytes
}

// CreateAccountData encodes a system create-account instruction payload.
func CreateAccountData(lamports uint64, space uint64, owner ids.ShortID) []byte {
	p := wrappers.Packer{MaxSize: maxInstructionDataSize}
	p.PackByte(sysCreateAccount)
	p.PackLong(lamports)
	p.PackLong(space)
	p.PackFixedBytes(owner[:])
	return p.Bytes
}

// AssignData encodes a system assign instruction payload.
func AssignData(owner ids.ShortID) []byte {
	p := wrappers.Packer{MaxSize: maxInstructionDataSize}
	p.PackByte(sysAssign)
	p.PackFixedBytes(owner[:])
	return p.Bytes
}

// systemProgram implements the native system program: lamport transfers,
// account creation, and owner assignment.
type systemProgram struct{}

func (systemProgram) Execute(ectx *ExecContext, in *Instruction) error {
	p := wrappers.Packer{Bytes: in.Data}
	opcode := p.UnpackByte()
	if p.Errored() {
		return errSystemData
	}

	switch opcode {
	case sysTransfer:
		return systemTransfer(ectx, in, &p)
	case sysCreateAccount:
		return systemCreateAccount(ectx, in, &p)
	case sysAssign:
		return systemAssign(ectx, in, &p)
	default:
		return fmt.Errorf("%w: opcode %#x", errSystemOpcode, opcode)
	}
}

func systemTransfer(ectx *ExecContext, in *Instruction, p *wrappers.Packer) error {
	if len(in.Accounts) != 2 {
		return errSystemAccounts
	}
	lamports := p.UnpackLong()
	if p.Errored() {
		return errSystemData
	}

	from := in.Accounts[0].Address
	to := in.Accounts[1].Address
	if !ectx.IsSigner(from) {
		return fmt.Errorf("%w: %s", ErrMissingSigner, from)
	}
	if err := ectx.Debit(from, lamports); err != nil {
		return err
	}
	if err := ectx.Credit(to, lamports); err != nil {
		return err
	}
	ectx.Log("transfer %d lamports %s -> %s", lamports, from, to)
	return nil
}

func systemCreateAccount(ectx *ExecContext, in *Instruction, p *wrappers.Packer) error {
	if len(in.Accounts) != 2 {
		return errSystemAccounts
	}
	lamports := p.UnpackLong()
	space := p.UnpackLong()
	ownerBytes := p.UnpackFixedBytes(hashing.AddrLen)
	if p.Errored() {
		return errSystemData
	}
	owner, err := ids.ToShortID(ownerBytes)
	if err != nil {
		return errSystemData
	}

	funder := in.Accounts[0].Address
	target := in.Accounts[1].Address
	if !ectx.IsSigner(funder) {
		return fmt.Errorf("%w: %s", ErrMissingSigner, funder)
	}
	if _, exists := ectx.Account(target); exists {
		return fmt.Errorf("%w: %s", errAccountInUse, target)
	}
	if err := ectx.Debit(funder, lamports); err != nil {
		return err
	}
	if err := ectx.SetAccount(target, &Account{
		Lamports:  lamports,
		Owner:     owner,
		Data:      make([]byte, space),
		RentEpoch: ectx.bank.epoch(),
	}); err != nil {
		return err
	}
	ectx.Log("create account %s owner %s space %d", target, owner, space)
	return nil
}

func systemAssign(ectx *ExecContext, in *Instruction, p *wrappers.Packer) error {
	if len(in.Accounts) != 1 {
		return errSystemAccounts
	}
	ownerBytes := p.UnpackFixedBytes(hashing.AddrLen)
	if p.Errored() {
		return errSystemData
	}
	owner, err := ids.ToShortID(ownerBytes)
	if err != nil {
		return errSystemData
	}

	target := in.Accounts[0].Address
	if !ectx.IsSigner(target) {
		return fmt.Errorf("%w: %s", ErrMissingSigner, target)
	}
	acct, ok := ectx.Account(target)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAccount, target)
	}
	acct.Owner = owner
	ectx.Log("assign %s to owner %s", target, owner)
	return nil
}
