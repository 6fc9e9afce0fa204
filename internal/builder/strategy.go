package builder

import (
	"math/rand"

	"github.com/magicblock-labs/redline/internal/config"
	"github.com/magicblock-labs/redline/internal/rpctypes"
)

// newStrategy dispatches a config.BenchMode's transaction-producing variant
// to its instructionStrategy, mirroring make_provider in
// original_source/bencher/src/transaction.rs.
func newStrategy(mode config.BenchMode, accounts []rpctypes.Address, payer rpctypes.Address) instructionStrategy {
	switch mode.Kind {
	case config.ModeSimpleByteSet:
		return &simpleByteSet{pda: accounts[0]}
	case config.ModeHighCuCost:
		return &highCuCost{pda: accounts[0], iters: mode.Iters}
	case config.ModeReadWrite:
		return &readWrite{accounts: accounts}
	case config.ModeReadOnly:
		return &readOnly{accounts: accounts, k: int(mode.K)}
	case config.ModeCommit:
		return &commit{accounts: accounts, k: int(mode.K), payer: payer}
	default:
		return &simpleByteSet{pda: accounts[0]}
	}
}

// simpleByteSet: one writable PDA, all-writable.
type simpleByteSet struct{ pda rpctypes.Address }

func (s *simpleByteSet) next(id rpctypes.RequestID, _ *rand.Rand) (rpctypes.Instruction, []rpctypes.Address) {
	return rpctypes.Instruction{Kind: rpctypes.InstrSimpleByteSet, ID: id}, []rpctypes.Address{s.pda}
}
func (s *simpleByteSet) touchedAccounts() []rpctypes.Address { return []rpctypes.Address{s.pda} }

// highCuCost: one writable PDA also used as the CU-burn seed, plus an
// iteration count embedded in the instruction.
type highCuCost struct {
	pda   rpctypes.Address
	iters uint32
}

func (h *highCuCost) next(id rpctypes.RequestID, _ *rand.Rand) (rpctypes.Instruction, []rpctypes.Address) {
	return rpctypes.Instruction{Kind: rpctypes.InstrExpensiveHashCompute, ID: id, Iters: h.iters}, []rpctypes.Address{h.pda}
}
func (h *highCuCost) touchedAccounts() []rpctypes.Address { return []rpctypes.Address{h.pda} }

// readWrite: two addresses picked without replacement each call. The
// transaction carries no per-account writable/read-only marking, so no
// read-only/writable split is encoded.
type readWrite struct {
	accounts []rpctypes.Address
}

func (r *readWrite) next(id rpctypes.RequestID, rng *rand.Rand) (rpctypes.Instruction, []rpctypes.Address) {
	picked := samplePermute(r.accounts, 2, rng)
	return rpctypes.Instruction{Kind: rpctypes.InstrAccountDataCopy, ID: id}, picked
}
func (r *readWrite) touchedAccounts() []rpctypes.Address { return r.accounts }

// readOnly: k addresses, all read-only.
type readOnly struct {
	accounts []rpctypes.Address
	k        int
}

func (r *readOnly) next(id rpctypes.RequestID, rng *rand.Rand) (rpctypes.Instruction, []rpctypes.Address) {
	picked := samplePermute(r.accounts, r.k, rng)
	return rpctypes.Instruction{Kind: rpctypes.InstrReadAccountsData, ID: id}, picked
}
func (r *readOnly) touchedAccounts() []rpctypes.Address { return r.accounts }

// commit: the payer followed by k addresses picked without replacement.
// No context or program addresses are added, and the transaction carries
// no per-account writable/read-only marking.
type commit struct {
	accounts []rpctypes.Address
	k        int
	payer    rpctypes.Address
}

func (c *commit) next(id rpctypes.RequestID, rng *rand.Rand) (rpctypes.Instruction, []rpctypes.Address) {
	picked := samplePermute(c.accounts, c.k, rng)
	touched := append([]rpctypes.Address{c.payer}, picked...)
	return rpctypes.Instruction{Kind: rpctypes.InstrCommitAccounts, ID: id}, touched
}
func (c *commit) touchedAccounts() []rpctypes.Address { return c.accounts }

func samplePermute(accounts []rpctypes.Address, k int, rng *rand.Rand) []rpctypes.Address {
	if k > len(accounts) {
		k = len(accounts)
	}
	perm := rng.Perm(len(accounts))
	out := make([]rpctypes.Address, k)
	for i := 0; i < k; i++ {
		out[i] = accounts[perm[i]]
	}
	return out
}
