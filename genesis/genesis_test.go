// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package genesis

import (
	"testing"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/stretchr/testify/require"

	"github.com/jdesjarlais/solana/bank"
)

var (
	addr1 = ids.ShortID{1}
	addr2 = ids.ShortID{2}
	addr3 = ids.ShortID{3}

	testProgram = []byte{0x7f, 'E', 'L', 'F', 0xde, 0xad, 0xbe, 0xef}
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.TimestampMillis = 1700000000000
	cfg.Balances = []Balance{
		{Address: addr1, Lamports: 1000},
		{Address: addr2, Lamports: 500},
	}
	return cfg
}

func TestBuildGenesisBank(t *testing.T) {
	require := require.New(t)

	cfg := testConfig()
	b, err := cfg.Build()
	require.NoError(err)

	require.Equal(uint64(0), b.Slot())
	require.False(b.Frozen())
	require.Equal(uint64(1500), b.Capitalization())

	acct, ok := b.GetAccount(addr1)
	require.True(ok)
	require.Equal(uint64(1000), acct.Lamports)
	require.Equal(bank.SystemProgramID, acct.Owner)

	_, ok = b.GetAccount(addr3)
	require.False(ok)
}

// Identical configurations produce byte-identical genesis banks, regardless
// of the order balances were declared in.
func TestBuildDeterministic(t *testing.T) {
	require := require.New(t)

	cfg := testConfig()
	reordered := testConfig()
	reordered.Balances = []Balance{
		{Address: addr2, Lamports: 500},
		{Address: addr1, Lamports: 1000},
	}

	h1, err := cfg.Hash()
	require.NoError(err)
	h2, err := reordered.Hash()
	require.NoError(err)
	require.Equal(h1, h2)

	b1, err := cfg.Build()
	require.NoError(err)
	b2, err := reordered.Build()
	require.NoError(err)
	require.Equal(b1.LatestBlockhash(), b2.LatestBlockhash())
	require.Equal(b1.Freeze().Hash(), b2.Freeze().Hash())
}

func TestBuildDifferentConfigsDiffer(t *testing.T) {
	require := require.New(t)

	cfg := testConfig()
	other := testConfig()
	other.ClusterID = "other"

	h1, err := cfg.Hash()
	require.NoError(err)
	h2, err := other.Hash()
	require.NoError(err)
	require.NotEqual(h1, h2)
}

func TestBuildSupplyOverflow(t *testing.T) {
	require := require.New(t)

	cfg := testConfig()
	cfg.Balances = []Balance{
		{Address: addr1, Lamports: ^uint64(0)},
		{Address: addr2, Lamports: 1},
	}
	_, err := cfg.Build()
	require.ErrorIs(err, ErrSupplyOverflow)
}

func TestBuildSupplyCap(t *testing.T) {
	require := require.New(t)

	cfg := testConfig()
	cfg.SupplyCap = 1499 // balances total 1500
	_, err := cfg.Build()
	require.ErrorIs(err, ErrSupplyCapExceeded)

	cfg.SupplyCap = 1500
	_, err = cfg.Build()
	require.NoError(err)
}

func TestBuildDuplicateAddress(t *testing.T) {
	require := require.New(t)

	cfg := testConfig()
	cfg.Balances = append(cfg.Balances, Balance{Address: addr1, Lamports: 1})
	_, err := cfg.Build()
	require.ErrorIs(err, ErrDuplicateAddress)
}

func TestBuildProgramAccounts(t *testing.T) {
	require := require.New(t)

	programAddr := ids.ShortID{'p', 'r', 'o', 'g'}
	cfg := testConfig()
	cfg.Programs = []ProgramAccount{{
		Address: programAddr,
		Owner:   bank.NativeLoaderID,
		Data:    testProgram,
	}}

	b, err := cfg.Build()
	require.NoError(err)

	acct, ok := b.GetAccount(programAddr)
	require.True(ok)
	require.True(acct.Executable)
	require.Equal(bank.NativeLoaderID, acct.Owner)
	require.Equal(testProgram, acct.Data)
	require.Equal(cfg.Params.Rent.MinimumBalance(len(testProgram)), acct.Lamports)
}

func TestBuildMalformedProgram(t *testing.T) {
	require := require.New(t)

	cfg := testConfig()
	cfg.Programs = []ProgramAccount{{
		Address: ids.ShortID{'p'},
		Owner:   bank.NativeLoaderID,
		Data:    []byte{0x00, 0x01}, // no executable header
	}}
	_, err := cfg.Build()
	require.ErrorIs(err, ErrMalformedProgram)
}

func TestBuildBadProgramOwner(t *testing.T) {
	require := require.New(t)

	cfg := testConfig()
	cfg.Programs = []ProgramAccount{{
		Address: ids.ShortID{'p'},
		Owner:   bank.SystemProgramID,
		Data:    testProgram,
	}}
	_, err := cfg.Build()
	require.ErrorIs(err, ErrBadProgramOwner)
}

// The input config is not mutated by Build's canonicalization.
func TestBuildLeavesConfigUntouched(t *testing.T) {
	require := require.New(t)

	cfg := testConfig()
	cfg.Balances = []Balance{
		{Address: addr2, Lamports: 500},
		{Address: addr1, Lamports: 1000},
	}
	_, err := cfg.Build()
	require.NoError(err)
	require.Equal(addr2, cfg.Balances[0].Address)
}
