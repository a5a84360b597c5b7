// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package genesis builds the slot-0 bank from which the emulated cluster
// starts. The configuration is canonicalized and hashed to derive the initial
// blockhash, so two runs with the same configuration produce byte-identical
// chains.
package genesis

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"

	"github.com/jdesjarlais/solana/bank"
)

var (
	ErrSupplyOverflow    = errors.New("genesis balances overflow the lamport supply")
	ErrSupplyCapExceeded = errors.New("genesis balances exceed the configured supply cap")
	ErrDuplicateAddress  = errors.New("duplicate address in genesis configuration")
	ErrMalformedProgram  = errors.New("malformed program account payload")
	ErrBadProgramOwner   = errors.New("program account owner must be the native loader")
)

// elfMagic is the header every program payload must carry.
var elfMagic = []byte{0x7f, 'E', 'L', 'F'}

// Balance funds one address at genesis.
type Balance struct {
	Address  ids.ShortID `serialize:"true" json:"address"`
	Lamports uint64      `serialize:"true" json:"lamports"`
}

// ProgramAccount pre-loads an executable account at genesis. The payload must
// be a well-formed executable image and the account is funded to its
// rent-exempt minimum.
type ProgramAccount struct {
	Address ids.ShortID `serialize:"true" json:"address"`
	Owner   ids.ShortID `serialize:"true" json:"owner"`
	Data    []byte      `serialize:"true" json:"data"`
}

// Config is the immutable genesis configuration. It is created once at
// startup and never mutated; Build may be invoked again (for a full reset)
// and returns an identical chain.
type Config struct {
	ClusterID string `serialize:"true" json:"clusterID"`

	// TimestampMillis anchors the deterministic slot clock.
	TimestampMillis int64 `serialize:"true" json:"timestampMillis"`

	// SupplyCap bounds total lamports in circulation, including later
	// airdrops. Zero means uncapped (up to uint64 range).
	SupplyCap uint64 `serialize:"true" json:"supplyCap"`

	Params bank.ChainParams `serialize:"true" json:"params"`

	Balances []Balance        `serialize:"true" json:"balances"`
	Programs []ProgramAccount `serialize:"true" json:"programs"`
}

// DefaultConfig returns a config suitable for a local test cluster: no
// pre-funded accounts, modest fees, rent collection enabled.
func DefaultConfig() Config {
	return Config{
		ClusterID: "local",
		Params: bank.ChainParams{
			Fee: bank.FeeSchedule{
				LamportsPerSignature: 5000,
				ChargeFeeOnFailure:   true,
			},
			Rent: bank.RentSchedule{
				LamportsPerByteEpoch: 1,
				ExemptionThreshold:   2,
				SlotsPerEpoch:        432000,
			},
			SlotMillis: 400,
		},
	}
}

// Build validates the configuration and produces the open slot-0 bank.
func (c *Config) Build() (*bank.Bank, error) {
	canonical, err := c.canonicalize()
	if err != nil {
		return nil, err
	}

	accounts := make(map[ids.ShortID]*bank.Account, len(canonical.Balances)+len(canonical.Programs))
	supply := uint64(0)
	for _, b := range canonical.Balances {
		if supply+b.Lamports < supply {
			return nil, ErrSupplyOverflow
		}
		supply += b.Lamports
		accounts[b.Address] = &bank.Account{
			Lamports: b.Lamports,
			Owner:    bank.SystemProgramID,
		}
	}

	for _, p := range canonical.Programs {
		if len(p.Data) < len(elfMagic) || !bytes.HasPrefix(p.Data, elfMagic) {
			return nil, fmt.Errorf("%w: %s", ErrMalformedProgram, p.Address)
		}
		if p.Owner != bank.NativeLoaderID {
			return nil, fmt.Errorf("%w: %s owned by %s", ErrBadProgramOwner, p.Address, p.Owner)
		}
		lamports := canonical.Params.Rent.MinimumBalance(len(p.Data))
		if supply+lamports < supply {
			return nil, ErrSupplyOverflow
		}
		supply += lamports
		accounts[p.Address] = &bank.Account{
			Lamports:   lamports,
			Owner:      p.Owner,
			Data:       p.Data,
			Executable: true,
		}
	}

	if canonical.SupplyCap != 0 && supply > canonical.SupplyCap {
		return nil, fmt.Errorf("%w: supply %d, cap %d", ErrSupplyCapExceeded, supply, canonical.SupplyCap)
	}

	hash, err := canonical.Hash()
	if err != nil {
		return nil, err
	}

	return bank.NewGenesis(
		canonical.Params,
		accounts,
		hash,
		canonical.TimestampMillis,
		supply,
	), nil
}

// Hash returns the deterministic genesis blockhash: the SHA-256 of the
// canonical codec encoding of the configuration.
func (c *Config) Hash() (ids.ID, error) {
	canonical, err := c.canonicalize()
	if err != nil {
		return ids.Empty, err
	}
	b, err := Codec.Marshal(CodecVersion, canonical)
	if err != nil {
		return ids.Empty, fmt.Errorf("failed to serialize genesis config: %w", err)
	}
	return hashing.ComputeHash256Array(b), nil
}

// canonicalize returns a copy of the config with balances and programs in
// address order, rejecting duplicate addresses. Encoding the canonical form
// makes the genesis hash independent of declaration order.
func (c *Config) canonicalize() (*Config, error) {
	out := *c

	out.Balances = make([]Balance, len(c.Balances))
	copy(out.Balances, c.Balances)
	sort.Slice(out.Balances, func(i, j int) bool {
		return bytes.Compare(out.Balances[i].Address[:], out.Balances[j].Address[:]) < 0
	})

	out.Programs = make([]ProgramAccount, len(c.Programs))
	copy(out.Programs, c.Programs)
	sort.Slice(out.Programs, func(i, j int) bool {
		return bytes.Compare(out.Programs[i].Address[:], out.Programs[j].Address[:]) < 0
	})

	seen := make(map[ids.ShortID]struct{}, len(out.Balances)+len(out.Programs))
	for _, b := range out.Balances {
		if _, ok := seen[b.Address]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateAddress, b.Address)
		}
		seen[b.Address] = struct{}{}
	}
	for _, p := range out.Programs {
		if _, ok := seen[p.Address]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateAddress, p.Address)
		}
		seen[p.Address] = struct{}{}
	}

	return &out, nil
}
