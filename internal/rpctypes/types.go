// Package rpctypes defines the wire-level identifiers, instruction variants
// and JSON-RPC payload/extractor pairs shared by every core component. It
// corresponds to the opaque Transaction/Instruction/Blockhash/Address types
// grounded on original_source/bencher/src/{payload,extractor}.rs.
package rpctypes

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/magicblock-labs/redline/internal/base58"
)

// RequestID is the monotonically increasing correlation key used to match
// an outbound request to its eventual confirmation. It is never reused
// within a run.
type RequestID uint64

// Address is an opaque 32-byte account identifier.
type Address [32]byte

func (a Address) String() string { return base58.Encode(a[:]) }

// ParseAddress decodes a base58-encoded 32-byte address, the wire form used
// by config.Authority and every account string in JSON-RPC payloads.
func ParseAddress(s string) (Address, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return Address{}, fmt.Errorf("rpctypes: parse address %q: %w", s, err)
	}
	if len(raw) != 32 {
		return Address{}, fmt.Errorf("rpctypes: address %q decodes to %d bytes, want 32", s, len(raw))
	}
	var a Address
	copy(a[:], raw)
	return a, nil
}

// Signature is an opaque 64-byte transaction signature.
type Signature [64]byte

func (s Signature) String() string { return base58.Encode(s[:]) }

// Blockhash is a 32-byte opaque token with a chain-imposed validity window.
type Blockhash [32]byte

func (h Blockhash) String() string { return base58.Encode(h[:]) }

// Signer stands in for the target ecosystem's keypair: a fee payer capable
// of producing a Signature for a Transaction. Real signature verification is
// explicitly out of scope, only structural realism (opaque bytes, one
// signature per transaction, a stable pubkey) matters here.
type Signer struct {
	pubkey Address
	seed   [32]byte
}

// NewSigner derives a deterministic signer from an index so that a run's
// payer set is reproducible across process restarts with the same
// parallelism/payers configuration.
func NewSigner(index uint32) Signer {
	var seed [32]byte
	binary.LittleEndian.PutUint32(seed[:4], index)
	pk := sha256.Sum256(append([]byte("redline-signer"), seed[:]...))
	return Signer{pubkey: Address(pk), seed: seed}
}

func (s Signer) Pubkey() Address { return s.pubkey }

// Sign produces a structurally valid but non-cryptographic signature. Every
// call yields a fresh signature, matching one-signature-per-sendTransaction.
func (s Signer) Sign(message []byte) Signature {
	var sig Signature
	_, _ = rand.Read(sig[:32])
	h := sha256.Sum256(append(append([]byte{}, s.seed[:]...), message...))
	copy(sig[32:], h[:])
	return sig
}

// DerivePDA deterministically derives a program-derived address from a base
// payer key, an account "space" (size class), a seed index and an authority,
// mirroring program/utils::derive_pda in original_source/program.
func DerivePDA(base Address, space uint32, seed uint8, authority Address) Address {
	h := sha256.New()
	h.Write(base[:])
	h.Write([]byte{byte(space), byte(space >> 8), byte(space >> 16), byte(space >> 24)})
	h.Write([]byte{seed})
	h.Write(authority[:])
	var out Address
	copy(out[:], h.Sum(nil))
	return out
}

// Instruction is the tagged on-chain program call embedded in every
// transaction-producing BenchMode.
type Instruction struct {
	Kind InstructionKind
	ID   RequestID
	// Iters is used by ExpensiveHashCompute.
	Iters uint32
}

type InstructionKind uint8

const (
	InstrInitAccount InstructionKind = iota
	InstrDelegate
	InstrCloseAccount
	InstrCommitAccounts
	InstrSimpleByteSet
	InstrExpensiveHashCompute
	InstrAccountDataCopy
	InstrReadAccountsData
	InstrMultiAccountRead
	// InstrSystemTransfer is not one of the bencher program's per-iteration
	// instructions (it carries no embedded RequestID and is never
	// account-correlated); it is the 1-lamport system transfer the
	// Transfer Pulser uses to touch a base-chain account.
	InstrSystemTransfer
)

// Transaction is the core's opaque view of a signed message: bytes,
// signature and the accounts it touches.
type Transaction struct {
	Bytes      []byte
	Signatures [1]Signature
	Accounts   []Address
}

// NewSystemTransfer assembles a 1-lamport system-program transfer from
// signer to dest, matching original_source/bencher/src/transfer.rs's
// TransferManager::transfer. Unlike NewTransaction's bencher-program
// instructions, this carries no embedded RequestID: the Transfer Pulser's
// transfers are never account-correlated, only used to force the
// ephemeral system to observe an upstream account change.
func NewSystemTransfer(dest Address, blockhash Blockhash, signer Signer) Transaction {
	const lamports = 1
	msg := make([]byte, 0, 1+32+32+8)
	msg = append(msg, byte(InstrSystemTransfer))
	msg = append(msg, dest[:]...)
	msg = append(msg, blockhash[:]...)
	var amountBuf [8]byte
	binary.LittleEndian.PutUint64(amountBuf[:], uint64(lamports))
	msg = append(msg, amountBuf[:]...)

	tx := Transaction{
		Bytes:    msg,
		Accounts: []Address{dest},
	}
	tx.Signatures[0] = signer.Sign(msg)
	return tx
}

// NewTransaction assembles and "signs" a transaction carrying ix, derived
// from the instruction payload, matching TransactionProvider::generate in
// original_source/bencher/src/transaction.rs.
func NewTransaction(ix Instruction, accounts []Address, blockhash Blockhash, signer Signer) Transaction {
	msg := make([]byte, 0, 8+1+len(accounts)*32+32)
	var idBuf [8]byte
	binary.LittleEndian.PutUint64(idBuf[:], uint64(ix.ID))
	msg = append(msg, idBuf[:]...)
	msg = append(msg, byte(ix.Kind))
	for _, a := range accounts {
		msg = append(msg, a[:]...)
	}
	msg = append(msg, blockhash[:]...)

	tx := Transaction{
		Bytes:    msg,
		Accounts: accounts,
	}
	tx.Signatures[0] = signer.Sign(msg)
	return tx
}
