package base58

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := [][]byte{
		{},
		{0},
		{0, 0, 0},
		{1, 2, 3, 4, 5},
		bytes.Repeat([]byte{0xFF}, 32),
		append([]byte{0, 0}, bytes.Repeat([]byte{0xAB}, 30)...),
	}
	for _, raw := range cases {
		encoded := Encode(raw)
		decoded, err := Decode(encoded)
		if err != nil {
			t.Fatalf("Decode(%q): %v", encoded, err)
		}
		if !bytes.Equal(decoded, raw) && !(len(raw) == 0 && len(decoded) == 0) {
			t.Fatalf("round trip mismatch: raw=%x encoded=%q decoded=%x", raw, encoded, decoded)
		}
	}
}

func TestEncodePreservesLeadingZeros(t *testing.T) {
	raw := []byte{0, 0, 1}
	encoded := Encode(raw)
	if len(encoded) < 2 || encoded[0] != '1' || encoded[1] != '1' {
		t.Fatalf("Encode(%x) = %q, want two leading '1' characters", raw, encoded)
	}
}

func TestDecodeRejectsInvalidCharacter(t *testing.T) {
	_, err := Decode("0OIl")
	if err == nil {
		t.Fatal("Decode of alphabet-excluded characters should fail")
	}
	var invalid *InvalidCharError
	if !isInvalidCharError(err, &invalid) {
		t.Fatalf("expected *InvalidCharError, got %T", err)
	}
}

func isInvalidCharError(err error, target **InvalidCharError) bool {
	e, ok := err.(*InvalidCharError)
	if ok {
		*target = e
	}
	return ok
}
