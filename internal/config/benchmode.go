package config

import (
	"fmt"
)

// BenchModeKind discriminates the benchmark mode tagged union. TOML has no
// native sum type, so the wire shape is a flat table with a "kind"
// discriminator plus whichever of the optional fields that kind uses.
type BenchModeKind string

const (
	ModeSimpleByteSet BenchModeKind = "simple-byte-set"
	ModeHighCuCost     BenchModeKind = "high-cu-cost"
	ModeReadWrite      BenchModeKind = "read-write"
	ModeReadOnly       BenchModeKind = "read-only"
	ModeCommit         BenchModeKind = "commit"

	ModeGetAccountInfo        BenchModeKind = "get-account-info"
	ModeGetMultipleAccounts   BenchModeKind = "get-multiple-accounts"
	ModeGetBalance            BenchModeKind = "get-balance"
	ModeGetTokenAccountBalance BenchModeKind = "get-token-account-balance"

	ModeMixed BenchModeKind = "mixed"
)

// BenchMode is the decoded form of benchmark.mode. Only the fields relevant
// to Kind are populated; others are left zero.
type BenchMode struct {
	Kind BenchModeKind `mapstructure:"kind"`

	// Iters is HighCuCost's CU-burn loop count.
	Iters uint32 `mapstructure:"iters"`
	// K is the account-count parameter for ReadOnly/Commit.
	K uint8 `mapstructure:"k"`

	// Children is populated when Kind == ModeMixed.
	Children []WeightedMode `mapstructure:"children"`
}

// WeightedMode pairs a child BenchMode with its sampling weight.
type WeightedMode struct {
	Mode   BenchMode `mapstructure:"mode"`
	Weight uint16    `mapstructure:"weight"`
}

// TransactionProducing reports whether this mode drives TransactionBuilder
// (vs. an RPC-only read builder).
func (m BenchMode) TransactionProducing() bool {
	switch m.Kind {
	case ModeSimpleByteSet, ModeHighCuCost, ModeReadWrite, ModeReadOnly, ModeCommit:
		return true
	default:
		return false
	}
}

// Validate enforces invariant: no Mixed contains an
// empty child list, and every weight is > 0.
func (m BenchMode) Validate() error {
	switch m.Kind {
	case ModeMixed:
		if len(m.Children) == 0 {
			return fmt.Errorf("mixed mode must list at least one child")
		}
		for i, child := range m.Children {
			if child.Weight == 0 {
				return fmt.Errorf("mixed child %d: weight must be > 0", i)
			}
			if err := child.Mode.Validate(); err != nil {
				return fmt.Errorf("mixed child %d: %w", i, err)
			}
		}
		return nil
	case ModeSimpleByteSet, ModeHighCuCost, ModeReadWrite, ModeReadOnly, ModeCommit,
		ModeGetAccountInfo, ModeGetMultipleAccounts, ModeGetBalance, ModeGetTokenAccountBalance:
		return nil
	default:
		return fmt.Errorf("unknown benchmark mode kind %q", m.Kind)
	}
}
