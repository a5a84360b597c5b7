// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package client is a JSON-RPC client for the validator's request-serving
// facade.
package client

import (
	"context"

	"github.com/ava-labs/avalanchego/api"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/formatting"
	cjson "github.com/ava-labs/avalanchego/utils/json"
	"github.com/ava-labs/avalanchego/utils/rpc"

	"github.com/jdesjarlais/solana/bank"
	"github.com/jdesjarlais/solana/validator"
)

// Client defines the operations the validator facade serves.
type Client interface {
	// Health reports liveness and the current slot.
	Health(ctx context.Context) (*validator.HealthReply, error)

	// SubmitTx queues a signed transaction and returns its ID.
	SubmitTx(ctx context.Context, tx *bank.Transaction) (ids.ID, error)

	// GetAccount fetches the account at [addr].
	GetAccount(ctx context.Context, addr ids.ShortID) (*validator.GetAccountReply, error)

	// GetBalance fetches the lamport balance at [addr] (0 if absent).
	GetBalance(ctx context.Context, addr ids.ShortID) (uint64, error)

	// GetBlock fetches the ledger entry at [slot].
	GetBlock(ctx context.Context, slot uint64) (*validator.GetBlockReply, error)

	// GetLatestBlock fetches the most recently produced ledger entry.
	GetLatestBlock(ctx context.Context) (*validator.GetBlockReply, error)

	// GetSlot fetches the slot of the current open bank.
	GetSlot(ctx context.Context) (uint64, error)

	// GetLatestBlockhash fetches the hash new transactions should reference.
	GetLatestBlockhash(ctx context.Context) (ids.ID, error)

	// RequestAirdrop credits [lamports] to [addr] outside transaction flow.
	RequestAirdrop(ctx context.Context, addr ids.ShortID, lamports uint64) error

	// WarpToSlot fast-forwards the chain to [slot].
	WarpToSlot(ctx context.Context, slot uint64) error

	// Advance produces exactly one slot and returns the frozen slot number.
	Advance(ctx context.Context) (uint64, error)

	// Reset destroys all history and restarts from genesis.
	Reset(ctx context.Context) error
}

// New creates a client for the facade mounted at [uri].
func New(uri string) Client {
	return &client{req: rpc.NewEndpointRequester(uri, "/", validator.Name)}
}

type client struct {
	req rpc.EndpointRequester
}

func (c *client) Health(ctx context.Context) (*validator.HealthReply, error) {
	reply := new(validator.HealthReply)
	return reply, c.req.SendRequest(ctx, "health", &struct{}{}, reply)
}

func (c *client) SubmitTx(ctx context.Context, tx *bank.Transaction) (ids.ID, error) {
	txHex, err := formatting.EncodeWithChecksum(formatting.Hex, tx.Bytes())
	if err != nil {
		return ids.Empty, err
	}
	reply := new(validator.SubmitTxReply)
	err = c.req.SendRequest(ctx, "submitTx", &validator.SubmitTxArgs{Tx: txHex}, reply)
	return reply.TxID, err
}

func (c *client) GetAccount(ctx context.Context, addr ids.ShortID) (*validator.GetAccountReply, error) {
	reply := new(validator.GetAccountReply)
	return reply, c.req.SendRequest(ctx,
		"getAccount",
		&validator.GetAccountArgs{Address: addr},
		reply,
	)
}

func (c *client) GetBalance(ctx context.Context, addr ids.ShortID) (uint64, error) {
	reply := new(validator.GetBalanceReply)
	err := c.req.SendRequest(ctx,
		"getBalance",
		&validator.GetBalanceArgs{Address: addr},
		reply,
	)
	return uint64(reply.Lamports), err
}

func (c *client) GetBlock(ctx context.Context, slot uint64) (*validator.GetBlockReply, error) {
	reply := new(validator.GetBlockReply)
	return reply, c.req.SendRequest(ctx,
		"getBlock",
		&validator.GetBlockArgs{Slot: cjson.Uint64(slot)},
		reply,
	)
}

func (c *client) GetLatestBlock(ctx context.Context) (*validator.GetBlockReply, error) {
	reply := new(validator.GetBlockReply)
	return reply, c.req.SendRequest(ctx,
		"getBlock",
		&validator.GetBlockArgs{Latest: true},
		reply,
	)
}

func (c *client) GetSlot(ctx context.Context) (uint64, error) {
	reply := new(validator.GetSlotReply)
	err := c.req.SendRequest(ctx, "getSlot", &struct{}{}, reply)
	return uint64(reply.Slot), err
}

func (c *client) GetLatestBlockhash(ctx context.Context) (ids.ID, error) {
	reply := new(validator.GetLatestBlockhashReply)
	err := c.req.SendRequest(ctx, "getLatestBlockhash", &struct{}{}, reply)
	return reply.Blockhash, err
}

func (c *client) RequestAirdrop(ctx context.Context, addr ids.ShortID, lamports uint64) error {
	return c.req.SendRequest(ctx,
		"requestAirdrop",
		&validator.RequestAirdropArgs{Address: addr, Lamports: cjson.Uint64(lamports)},
		&api.SuccessResponse{},
	)
}

func (c *client) WarpToSlot(ctx context.Context, slot uint64) error {
	return c.req.SendRequest(ctx,
		"warpToSlot",
		&validator.WarpToSlotArgs{Slot: cjson.Uint64(slot)},
		&api.SuccessResponse{},
	)
}

func (c *client) Advance(ctx context.Context) (uint64, error) {
	reply := new(validator.AdvanceReply)
	err := c.req.SendRequest(ctx, "advance", &struct{}{}, reply)
	return uint64(reply.Slot), err
}

func (c *client) Reset(ctx context.Context) error {
	return c.req.SendRequest(ctx, "reset", &struct{}{}, &api.SuccessResponse{})
}
