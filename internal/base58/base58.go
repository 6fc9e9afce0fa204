// Package base58 implements the Bitcoin-alphabet base58 codec used to render
// opaque 32/64-byte chain identifiers as human-readable strings in JSON-RPC
// payloads. No third-party base58 implementation turned up anywhere in the
// retrieved Go corpus (the closest analogues all sit behind full chain SDKs
// we otherwise avoid pulling in), so this stays on the standard library:
// the alphabet and big-int division are both small enough that reaching for
// an unseen dependency isn't warranted.
package base58

import (
	"fmt"
	"math/big"
)

const alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

var (
	bigRadix = big.NewInt(58)
	bigZero  = big.NewInt(0)
)

// Encode returns the base58 representation of b, preserving leading zero
// bytes as leading '1' characters the way the reference Bitcoin encoding does.
func Encode(b []byte) string {
	x := new(big.Int).SetBytes(b)
	mod := new(big.Int)
	var out []byte
	for x.Cmp(bigZero) > 0 {
		x.DivMod(x, bigRadix, mod)
		out = append(out, alphabet[mod.Int64()])
	}
	for _, c := range b {
		if c != 0 {
			break
		}
		out = append(out, alphabet[0])
	}
	reverse(out)
	return string(out)
}

// Decode parses a base58 string back into its raw bytes.
func Decode(s string) ([]byte, error) {
	x := big.NewInt(0)
	for i := 0; i < len(s); i++ {
		idx := indexOf(s[i])
		if idx < 0 {
			return nil, &InvalidCharError{Char: s[i], Pos: i}
		}
		x.Mul(x, bigRadix)
		x.Add(x, big.NewInt(int64(idx)))
	}
	decoded := x.Bytes()
	leadingZeros := 0
	for i := 0; i < len(s) && s[i] == alphabet[0]; i++ {
		leadingZeros++
	}
	out := make([]byte, leadingZeros+len(decoded))
	copy(out[leadingZeros:], decoded)
	return out, nil
}

// InvalidCharError reports a byte outside the base58 alphabet.
type InvalidCharError struct {
	Char byte
	Pos  int
}

func (e *InvalidCharError) Error() string {
	return fmt.Sprintf("base58: invalid character %q at position %d", e.Char, e.Pos)
}

func indexOf(c byte) int {
	for i := 0; i < len(alphabet); i++ {
		if alphabet[i] == c {
			return i
		}
	}
	return -1
}

func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}
