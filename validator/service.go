// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package validator

import (
	"errors"
	"net/http"

	"github.com/ava-labs/avalanchego/api"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/formatting"
	cjson "github.com/ava-labs/avalanchego/utils/json"

	"github.com/jdesjarlais/solana/bank"
	"github.com/jdesjarlais/solana/ledger"
)

var errNoSuchAccount = errors.New("no account at address")

// Service is the request-serving facade: a thin JSON-RPC layer over the
// core's entry points. Wire format is owned here; the core only deals in
// in-memory values.
type Service struct{ v *Validator }

// HealthReply reports liveness and the current slot.
type HealthReply struct {
	Healthy bool        `json:"healthy"`
	Slot    cjson.Uint64 `json:"slot"`
	Version string      `json:"version"`
}

// Health returns liveness of the validator.
func (s *Service) Health(_ *http.Request, _ *struct{}, reply *HealthReply) error {
	reply.Healthy = true
	reply.Slot = cjson.Uint64(s.v.Slot())
	reply.Version = Version
	return nil
}

// SubmitTxArgs carries a hex-encoded signed transaction.
type SubmitTxArgs struct {
	Tx string `json:"tx"`
}

// SubmitTxReply returns the ID the transaction will be tracked under.
type SubmitTxReply struct {
	TxID ids.ID `json:"txID"`
}

// SubmitTx decodes and queues a transaction for the next slot.
func (s *Service) SubmitTx(_ *http.Request, args *SubmitTxArgs, reply *SubmitTxReply) error {
	txBytes, err := formatting.Decode(formatting.Hex, args.Tx)
	if err != nil {
		return err
	}
	tx, err := bank.ParseTransaction(txBytes)
	if err != nil {
		return err
	}
	if err := s.v.SubmitTransaction(tx); err != nil {
		return err
	}
	reply.TxID = tx.ID()
	return nil
}

// GetAccountArgs names the queried address.
type GetAccountArgs struct {
	Address ids.ShortID `json:"address"`
}

// GetAccountReply is the account state at the queried address.
type GetAccountReply struct {
	Lamports   cjson.Uint64 `json:"lamports"`
	Owner      ids.ShortID  `json:"owner"`
	Data       string       `json:"data"`
	Executable bool         `json:"executable"`
	RentEpoch  cjson.Uint64 `json:"rentEpoch"`
}

// GetAccount returns the account at [args.Address] as of the open bank.
func (s *Service) GetAccount(_ *http.Request, args *GetAccountArgs, reply *GetAccountReply) error {
	acct, ok := s.v.GetAccount(args.Address)
	if !ok {
		return errNoSuchAccount
	}
	data, err := formatting.EncodeWithChecksum(formatting.Hex, acct.Data)
	if err != nil {
		return err
	}
	reply.Lamports = cjson.Uint64(acct.Lamports)
	reply.Owner = acct.Owner
	reply.Data = data
	reply.Executable = acct.Executable
	reply.RentEpoch = cjson.Uint64(acct.RentEpoch)
	return nil
}

// GetBalanceArgs names the queried address.
type GetBalanceArgs struct {
	Address ids.ShortID `json:"address"`
}

// GetBalanceReply is the lamport balance at the queried address. Missing
// accounts report zero.
type GetBalanceReply struct {
	Lamports cjson.Uint64 `json:"lamports"`
}

// GetBalance returns the balance at [args.Address].
func (s *Service) GetBalance(_ *http.Request, args *GetBalanceArgs, reply *GetBalanceReply) error {
	if acct, ok := s.v.GetAccount(args.Address); ok {
		reply.Lamports = cjson.Uint64(acct.Lamports)
	}
	return nil
}

// GetBlockArgs selects a ledger entry. If Latest, Slot is ignored.
type GetBlockArgs struct {
	Slot   cjson.Uint64 `json:"slot"`
	Latest bool         `json:"latest"`
}

// GetBlockReply is the ledger entry for one slot.
type GetBlockReply struct {
	Slot            cjson.Uint64 `json:"slot"`
	Blockhash       ids.ID       `json:"blockhash"`
	ParentHash      ids.ID       `json:"parentHash"`
	StateRoot       ids.ID       `json:"stateRoot"`
	TimestampMillis cjson.Uint64 `json:"timestampMillis"`
	TxIDs           []ids.ID     `json:"txIDs"`
}

// GetBlock returns the ledger entry at [args.Slot], or the latest entry when
// [args.Latest] is set.
func (s *Service) GetBlock(_ *http.Request, args *GetBlockArgs, reply *GetBlockReply) error {
	var (
		entry *ledger.Entry
		err   error
	)
	if args.Latest {
		entry, err = s.v.Latest()
	} else {
		entry, err = s.v.GetBlock(uint64(args.Slot))
	}
	if err != nil {
		return err
	}

	reply.Slot = cjson.Uint64(entry.Slot)
	reply.Blockhash = entry.Blockhash
	reply.ParentHash = entry.ParentHash
	reply.StateRoot = entry.StateRoot
	reply.TimestampMillis = cjson.Uint64(entry.TimestampMillis)
	reply.TxIDs = make([]ids.ID, len(entry.Transactions))
	for i, tx := range entry.Transactions {
		reply.TxIDs[i] = tx.ID()
	}
	return nil
}

// GetSlotReply is the current open slot.
type GetSlotReply struct {
	Slot cjson.Uint64 `json:"slot"`
}

// GetSlot returns the slot of the current open bank.
func (s *Service) GetSlot(_ *http.Request, _ *struct{}, reply *GetSlotReply) error {
	reply.Slot = cjson.Uint64(s.v.Slot())
	return nil
}

// GetLatestBlockhashReply is the hash new transactions should reference.
type GetLatestBlockhashReply struct {
	Blockhash ids.ID `json:"blockhash"`
}

// GetLatestBlockhash returns the most recent blockhash.
func (s *Service) GetLatestBlockhash(_ *http.Request, _ *struct{}, reply *GetLatestBlockhashReply) error {
	reply.Blockhash = s.v.LatestBlockhash()
	return nil
}

// RequestAirdropArgs names the credited address and amount.
type RequestAirdropArgs struct {
	Address  ids.ShortID  `json:"address"`
	Lamports cjson.Uint64 `json:"lamports"`
}

// RequestAirdrop credits lamports outside normal transaction flow.
func (s *Service) RequestAirdrop(_ *http.Request, args *RequestAirdropArgs, reply *api.SuccessResponse) error {
	if err := s.v.Airdrop(args.Address, uint64(args.Lamports)); err != nil {
		return err
	}
	reply.Success = true
	return nil
}

// SetAccountArgs is the wholesale account state to install.
type SetAccountArgs struct {
	Address    ids.ShortID  `json:"address"`
	Lamports   cjson.Uint64 `json:"lamports"`
	Owner      ids.ShortID  `json:"owner"`
	Data       string       `json:"data"`
	Executable bool         `json:"executable"`
}

// SetAccount overwrites an account wholesale.
func (s *Service) SetAccount(_ *http.Request, args *SetAccountArgs, reply *api.SuccessResponse) error {
	data, err := formatting.Decode(formatting.Hex, args.Data)
	if err != nil {
		return err
	}
	if err := s.v.SetAccount(args.Address, &bank.Account{
		Lamports:   uint64(args.Lamports),
		Owner:      args.Owner,
		Data:       data,
		Executable: args.Executable,
	}); err != nil {
		return err
	}
	reply.Success = true
	return nil
}

// WarpToSlotArgs is the fast-forward target.
type WarpToSlotArgs struct {
	Slot cjson.Uint64 `json:"slot"`
}

// WarpToSlot fast-forwards the chain, producing empty intermediate blocks.
func (s *Service) WarpToSlot(_ *http.Request, args *WarpToSlotArgs, reply *api.SuccessResponse) error {
	if err := s.v.WarpToSlot(uint64(args.Slot)); err != nil {
		return err
	}
	reply.Success = true
	return nil
}

// AdvanceReply is the slot that was frozen by the manual step.
type AdvanceReply struct {
	Slot cjson.Uint64 `json:"slot"`
}

// Advance produces exactly one slot (manual mode).
func (s *Service) Advance(_ *http.Request, _ *struct{}, reply *AdvanceReply) error {
	slot, err := s.v.Advance()
	if err != nil {
		return err
	}
	reply.Slot = cjson.Uint64(slot)
	return nil
}

// Reset destroys all history and restarts from genesis.
func (s *Service) Reset(_ *http.Request, _ *struct{}, reply *api.SuccessResponse) error {
	if err := s.v.Reset(); err != nil {
		return err
	}
	reply.Success = true
	return nil
}
