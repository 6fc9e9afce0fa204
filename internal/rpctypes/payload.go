package rpctypes

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Payload builders mirror original_source/bencher/src/payload.rs one for
// one: each returns a hand-formatted JSON-RPC 2.0 string rather than paying
// for a struct marshal, since the shape is fixed and these run on the hot
// path of every iteration.

// BlockhashRequest returns the getLatestBlockhash request body.
func BlockhashRequest() string {
	return `{"jsonrpc":"2.0","id":1,"method":"getLatestBlockhash","params":[{"commitment":"processed"}]}`
}

// SendTransaction returns the sendTransaction request body for tx.
func SendTransaction(tx Transaction, skipPreflight bool) string {
	encoded := base64.StdEncoding.EncodeToString(tx.Bytes)
	return fmt.Sprintf(
		`{"jsonrpc":"2.0","id":1,"method":"sendTransaction","params":["%s",{"skipPreflight":%t,"encoding":"base64","preflightCommitment":"processed"}]}`,
		encoded, skipPreflight,
	)
}

// AccountSubscribe returns the accountSubscribe request body keyed by the
// caller-chosen local id.
func AccountSubscribe(pubkey Address, encoding AccountEncoding, id RequestID) string {
	return fmt.Sprintf(
		`{"jsonrpc":"2.0","id":%d,"method":"accountSubscribe","params":["%s",{"encoding":"%s","commitment":"processed"}]}`,
		id, pubkey, encoding,
	)
}

// SignatureSubscribe returns the signatureSubscribe request body for the
// transaction's first signature.
func SignatureSubscribe(tx Transaction, id RequestID) string {
	return fmt.Sprintf(
		`{"jsonrpc":"2.0","id":%d,"method":"signatureSubscribe","params":["%s",{"commitment":"processed"}]}`,
		id, tx.Signatures[0],
	)
}

// GetSignatureStatuses is the HTTP fallback for signature confirmation when
// WS subscription is disabled.
func GetSignatureStatuses(tx Transaction) string {
	return fmt.Sprintf(
		`{"jsonrpc":"2.0","id":1,"method":"getSignatureStatuses","params":[["%s"]]}`,
		tx.Signatures[0],
	)
}

// GetAccountInfo returns the getAccountInfo request body.
func GetAccountInfo(pubkey Address, encoding AccountEncoding, id RequestID) string {
	return fmt.Sprintf(
		`{"jsonrpc":"2.0","id":%d,"method":"getAccountInfo","params":["%s",{"encoding":"%s"}]}`,
		id, pubkey, encoding,
	)
}

// GetMultipleAccounts returns the getMultipleAccounts request body covering
// every address in pubkeys in one call.
func GetMultipleAccounts(pubkeys []Address, encoding AccountEncoding, id RequestID) string {
	quoted := make([]string, len(pubkeys))
	for i, pk := range pubkeys {
		quoted[i] = fmt.Sprintf("%q", pk.String())
	}
	return fmt.Sprintf(
		`{"jsonrpc":"2.0","id":%d,"method":"getMultipleAccounts","params":[[%s],{"encoding":"%s"}]}`,
		id, strings.Join(quoted, ","), encoding,
	)
}

// GetBalance returns the getBalance request body.
func GetBalance(pubkey Address, id RequestID) string {
	return fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"method":"getBalance","params":["%s"]}`, id, pubkey)
}

// GetTokenAccountBalance returns the getTokenAccountBalance request body.
func GetTokenAccountBalance(pubkey Address, id RequestID) string {
	return fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"method":"getTokenAccountBalance","params":["%s"]}`, id, pubkey)
}

// Transfer returns a one-lamport system-transfer sendTransaction body, used
// by the Transfer Pulser (C8) to touch base-chain accounts.
func Transfer(tx Transaction) string {
	return SendTransaction(tx, true)
}
