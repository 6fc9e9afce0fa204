// Package builder implements the Request Builder Tree: a RequestBuilder interface with a TransactionBuilder (wrapping
// per-mode instruction strategies) and RPC-only read builders, unified
// under a MixedBuilder for weighted workloads. Grounded on
// original_source/bencher/src/{requests,transaction}.rs.
package builder

import (
	"encoding/json"
	"math/rand"

	"github.com/magicblock-labs/redline/internal/config"
	"github.com/magicblock-labs/redline/internal/rpctypes"
)

// RequestBuilder is the abstract builder contract every mode implements.
type RequestBuilder interface {
	Name() string
	Build(id rpctypes.RequestID) string
	Signature() (rpctypes.Signature, bool)
	Accounts() []rpctypes.Address
	Extractor() func(result json.RawMessage) (bool, bool)
}

// instructionStrategy produces the Instruction and the accounts a
// TransactionBuilder should touch for one call to build(id). Strategies are
// keyed 1:1 with the BenchMode transaction-producing variants.
type instructionStrategy interface {
	next(id rpctypes.RequestID, rng *rand.Rand) (rpctypes.Instruction, []rpctypes.Address)
}

// TransactionBuilder wraps an instruction strategy, a signer pool and the
// blockhash provider.
type TransactionBuilder struct {
	name       string
	strategy   instructionStrategy
	signers    []rpctypes.Signer
	blockhash  func() rpctypes.Blockhash
	preflight  bool
	rng        *rand.Rand
	lastSig    rpctypes.Signature
	haveLastSig bool
}

func (b *TransactionBuilder) Name() string { return b.name }

func (b *TransactionBuilder) Build(id rpctypes.RequestID) string {
	hash := b.blockhash()
	signer := b.signers[b.rng.Intn(len(b.signers))]
	ix, accounts := b.strategy.next(id, b.rng)
	tx := rpctypes.NewTransaction(ix, accounts, hash, signer)
	b.lastSig = tx.Signatures[0]
	b.haveLastSig = true
	return rpctypes.SendTransaction(tx, !b.preflight)
}

func (b *TransactionBuilder) Signature() (rpctypes.Signature, bool) {
	return b.lastSig, b.haveLastSig
}

func (b *TransactionBuilder) Accounts() []rpctypes.Address {
	return b.strategy.(interface{ touchedAccounts() []rpctypes.Address }).touchedAccounts()
}

func (b *TransactionBuilder) Extractor() func(result json.RawMessage) (bool, bool) {
	return signatureExtractor
}

func signatureExtractor(result json.RawMessage) (bool, bool) {
	ok, present := rpctypes.SignatureResponseExtractor(result)
	return ok, present
}

// New constructs the appropriate concrete RequestBuilder for mode, deriving
// the engine's per-seed PDA set from base (the engine's first signer) the
// way make_builder in original_source/bencher/src/requests.rs does.
func New(mode config.BenchMode, signers []rpctypes.Signer, authority rpctypes.Address, accountsCount uint8, accountSize uint32, encoding rpctypes.AccountEncoding, blockhash func() rpctypes.Blockhash, preflight bool) RequestBuilder {
	base := signers[0].Pubkey()
	accounts := derivePDAs(base, accountSize, accountsCount, authority)
	rng := rand.New(rand.NewSource(rand.Int63()))

	switch mode.Kind {
	case config.ModeGetAccountInfo:
		return newRPCBuilder("GetAccountInfo", accounts, func(pk rpctypes.Address, id rpctypes.RequestID) string {
			return rpctypes.GetAccountInfo(pk, encoding, id)
		})
	case config.ModeGetBalance:
		return newRPCBuilder("GetBalance", accounts, func(pk rpctypes.Address, id rpctypes.RequestID) string {
			return rpctypes.GetBalance(pk, id)
		})
	case config.ModeGetTokenAccountBalance:
		return newRPCBuilder("GetTokenAccountBalance", accounts, func(pk rpctypes.Address, id rpctypes.RequestID) string {
			return rpctypes.GetTokenAccountBalance(pk, id)
		})
	case config.ModeGetMultipleAccounts:
		return &multiAccountsBuilder{accounts: accounts, encoding: encoding}
	case config.ModeMixed:
		children := make([]RequestBuilder, len(mode.Children))
		weights := make([]int, len(mode.Children))
		for i, child := range mode.Children {
			children[i] = New(child.Mode, signers, authority, accountsCount, accountSize, encoding, blockhash, preflight)
			weights[i] = int(child.Weight)
		}
		return &MixedBuilder{children: children, weights: weights, rng: rng}
	default:
		strategy := newStrategy(mode, accounts, base)
		return &TransactionBuilder{
			name:      transactionModeName(mode.Kind),
			strategy:  strategy,
			signers:   signers,
			blockhash: blockhash,
			preflight: preflight,
			rng:       rng,
		}
	}
}

// transactionModeName maps a transaction-producing BenchModeKind (TOML's
// kebab-case discriminator) to the PascalCase name
// requires as the request_stats key, matching the original's
// bencher/src/requests.rs builders (which return "GetBalance" etc. for the
// RPC-only variants; transaction variants get the same treatment here).
func transactionModeName(kind config.BenchModeKind) string {
	switch kind {
	case config.ModeSimpleByteSet:
		return "SimpleByteSet"
	case config.ModeHighCuCost:
		return "HighCuCost"
	case config.ModeReadWrite:
		return "ReadWrite"
	case config.ModeReadOnly:
		return "ReadOnly"
	case config.ModeCommit:
		return "Commit"
	default:
		return string(kind)
	}
}

func derivePDAs(base rpctypes.Address, space uint32, count uint8, authority rpctypes.Address) []rpctypes.Address {
	out := make([]rpctypes.Address, count)
	for i := uint8(1); i <= count; i++ {
		out[i-1] = rpctypes.DerivePDA(base, space, i, authority)
	}
	return out
}

type rpcBuilder struct {
	name     string
	accounts []rpctypes.Address
	payload  func(rpctypes.Address, rpctypes.RequestID) string
}

func newRPCBuilder(name string, accounts []rpctypes.Address, payload func(rpctypes.Address, rpctypes.RequestID) string) *rpcBuilder {
	return &rpcBuilder{name: name, accounts: accounts, payload: payload}
}

func (b *rpcBuilder) Name() string { return b.name }
func (b *rpcBuilder) Build(id rpctypes.RequestID) string {
	pk := b.accounts[uint64(id)%uint64(len(b.accounts))]
	return b.payload(pk, id)
}
func (b *rpcBuilder) Signature() (rpctypes.Signature, bool) { return rpctypes.Signature{}, false }
func (b *rpcBuilder) Accounts() []rpctypes.Address          { return b.accounts }
func (b *rpcBuilder) Extractor() func(result json.RawMessage) (bool, bool) {
	return func(result json.RawMessage) (bool, bool) { return rpctypes.ValueExtractor(result) }
}

type multiAccountsBuilder struct {
	accounts []rpctypes.Address
	encoding rpctypes.AccountEncoding
}

func (b *multiAccountsBuilder) Name() string { return "GetMultipleAccounts" }
func (b *multiAccountsBuilder) Build(id rpctypes.RequestID) string {
	return rpctypes.GetMultipleAccounts(b.accounts, b.encoding, id)
}
func (b *multiAccountsBuilder) Signature() (rpctypes.Signature, bool) { return rpctypes.Signature{}, false }
func (b *multiAccountsBuilder) Accounts() []rpctypes.Address          { return b.accounts }
func (b *multiAccountsBuilder) Extractor() func(result json.RawMessage) (bool, bool) {
	return func(result json.RawMessage) (bool, bool) { return rpctypes.ValueExtractor(result) }
}

// MixedBuilder samples a childweighted
// distribution and delegates, remembering the last child for
// Signature()/Extractor()/Name().
type MixedBuilder struct {
	children []RequestBuilder
	weights  []int
	rng      *rand.Rand
	lastIdx  int
}

func (m *MixedBuilder) Build(id rpctypes.RequestID) string {
	m.lastIdx = weightedSample(m.weights, m.rng)
	return m.children[m.lastIdx].Build(id)
}
func (m *MixedBuilder) Name() string                                  { return m.children[m.lastIdx].Name() }
func (m *MixedBuilder) Signature() (rpctypes.Signature, bool)         { return m.children[m.lastIdx].Signature() }
func (m *MixedBuilder) Extractor() func(result json.RawMessage) (bool, bool)   { return m.children[m.lastIdx].Extractor() }
func (m *MixedBuilder) Accounts() []rpctypes.Address {
	seen := make(map[rpctypes.Address]struct{})
	var out []rpctypes.Address
	for _, c := range m.children {
		for _, a := range c.Accounts() {
			if _, ok := seen[a]; !ok {
				seen[a] = struct{}{}
				out = append(out, a)
			}
		}
	}
	return out
}

func weightedSample(weights []int, rng *rand.Rand) int {
	total := 0
	for _, w := range weights {
		total += w
	}
	pick := rng.Intn(total)
	for i, w := range weights {
		if pick < w {
			return i
		}
		pick -= w
	}
	return len(weights) - 1
}
