// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package validator

import (
	"testing"

	"github.com/ava-labs/avalanchego/api"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/formatting"
	cjson "github.com/ava-labs/avalanchego/utils/json"
	"github.com/stretchr/testify/require"
)

func TestServiceHealth(t *testing.T) {
	require := require.New(t)

	s := &Service{v: newTestValidator(t, newTestKey(t))}

	reply := HealthReply{}
	require.NoError(s.Health(nil, nil, &reply))
	require.True(reply.Healthy)
	require.Equal(cjson.Uint64(0), reply.Slot)
	require.Equal(Version, reply.Version)
}

// Submit a transfer over the wire format, advance a slot, and read the
// results back through the query methods.
func TestServiceSubmitTxRoundTrip(t *testing.T) {
	require := require.New(t)

	aliceKey := newTestKey(t)
	alice := aliceKey.PublicKey().Address()
	bob := ids.ShortID{'b', 'o', 'b'}
	v := newTestValidator(t, aliceKey)
	s := &Service{v: v}

	hashReply := GetLatestBlockhashReply{}
	require.NoError(s.GetLatestBlockhash(nil, nil, &hashReply))

	tx := transferTx(t, aliceKey, hashReply.Blockhash, bob, 100)
	txHex, err := formatting.EncodeWithChecksum(formatting.Hex, tx.Bytes())
	require.NoError(err)

	submitReply := SubmitTxReply{}
	require.NoError(s.SubmitTx(nil, &SubmitTxArgs{Tx: txHex}, &submitReply))
	require.Equal(tx.ID(), submitReply.TxID)

	advanceReply := AdvanceReply{}
	require.NoError(s.Advance(nil, nil, &advanceReply))
	require.Equal(cjson.Uint64(0), advanceReply.Slot)

	balanceReply := GetBalanceReply{}
	require.NoError(s.GetBalance(nil, &GetBalanceArgs{Address: bob}, &balanceReply))
	require.Equal(cjson.Uint64(100), balanceReply.Lamports)

	acctReply := GetAccountReply{}
	require.NoError(s.GetAccount(nil, &GetAccountArgs{Address: alice}, &acctReply))
	require.Equal(cjson.Uint64(1000-100-testFee), acctReply.Lamports)

	blockReply := GetBlockReply{}
	require.NoError(s.GetBlock(nil, &GetBlockArgs{Latest: true}, &blockReply))
	require.Equal(cjson.Uint64(0), blockReply.Slot)
	require.Equal([]ids.ID{tx.ID()}, blockReply.TxIDs)

	bySlot := GetBlockReply{}
	require.NoError(s.GetBlock(nil, &GetBlockArgs{Slot: 0}, &bySlot))
	require.Equal(blockReply.Blockhash, bySlot.Blockhash)

	slotReply := GetSlotReply{}
	require.NoError(s.GetSlot(nil, nil, &slotReply))
	require.Equal(cjson.Uint64(1), slotReply.Slot)
}

func TestServiceSubmitTxMalformed(t *testing.T) {
	require := require.New(t)

	s := &Service{v: newTestValidator(t, newTestKey(t))}

	reply := SubmitTxReply{}
	require.Error(s.SubmitTx(nil, &SubmitTxArgs{Tx: "not hex"}, &reply))

	garbage, err := formatting.EncodeWithChecksum(formatting.Hex, []byte{0xde, 0xad})
	require.NoError(err)
	require.Error(s.SubmitTx(nil, &SubmitTxArgs{Tx: garbage}, &reply))
}

func TestServiceGetAccountMissing(t *testing.T) {
	require := require.New(t)

	s := &Service{v: newTestValidator(t, newTestKey(t))}

	reply := GetAccountReply{}
	err := s.GetAccount(nil, &GetAccountArgs{Address: ids.ShortID{9}}, &reply)
	require.ErrorIs(err, errNoSuchAccount)

	// GetBalance reports zero instead of failing.
	balanceReply := GetBalanceReply{}
	require.NoError(s.GetBalance(nil, &GetBalanceArgs{Address: ids.ShortID{9}}, &balanceReply))
	require.Zero(balanceReply.Lamports)
}

func TestServiceAirdropAndSetAccount(t *testing.T) {
	require := require.New(t)

	s := &Service{v: newTestValidator(t, newTestKey(t))}
	addr := ids.ShortID{'a', 'd', 'd', 'r'}

	require.NoError(s.RequestAirdrop(nil, &RequestAirdropArgs{
		Address:  addr,
		Lamports: 777,
	}, &api.SuccessResponse{}))

	balanceReply := GetBalanceReply{}
	require.NoError(s.GetBalance(nil, &GetBalanceArgs{Address: addr}, &balanceReply))
	require.Equal(cjson.Uint64(777), balanceReply.Lamports)

	dataHex, err := formatting.EncodeWithChecksum(formatting.Hex, []byte{1, 2, 3})
	require.NoError(err)
	require.NoError(s.SetAccount(nil, &SetAccountArgs{
		Address:  addr,
		Lamports: 55,
		Owner:    ids.ShortID{'o'},
		Data:     dataHex,
	}, &api.SuccessResponse{}))

	acctReply := GetAccountReply{}
	require.NoError(s.GetAccount(nil, &GetAccountArgs{Address: addr}, &acctReply))
	require.Equal(cjson.Uint64(55), acctReply.Lamports)
	require.Equal(ids.ShortID{'o'}, acctReply.Owner)
	require.Equal(dataHex, acctReply.Data)
}

func TestServiceWarpAndReset(t *testing.T) {
	require := require.New(t)

	s := &Service{v: newTestValidator(t, newTestKey(t))}

	require.NoError(s.WarpToSlot(nil, &WarpToSlotArgs{Slot: 7}, &api.SuccessResponse{}))

	slotReply := GetSlotReply{}
	require.NoError(s.GetSlot(nil, nil, &slotReply))
	require.Equal(cjson.Uint64(7), slotReply.Slot)

	require.NoError(s.Reset(nil, nil, &api.SuccessResponse{}))
	require.NoError(s.GetSlot(nil, nil, &slotReply))
	require.Equal(cjson.Uint64(0), slotReply.Slot)
}
