package rpctypes

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"

	"github.com/klauspost/compress/zstd"
	"github.com/magicblock-labs/redline/internal/base58"
)

// Extractor parses the "result" field of a JSON-RPC response (HTTP) or the
// "params.result" field of a subscription notification (WS) into a typed
// value. Every builder in internal/builder pairs a payload with exactly one
// of these, mirroring original_source/bencher/src/extractor.rs.
type Extractor[V any] func(result json.RawMessage) (V, bool)

// BlockhashExtractor parses getLatestBlockhash's {"value":{"blockhash":...}}.
func BlockhashExtractor(result json.RawMessage) (Blockhash, bool) {
	var envelope struct {
		Value struct {
			Blockhash string `json:"blockhash"`
		} `json:"value"`
	}
	if json.Unmarshal(result, &envelope) != nil || envelope.Value.Blockhash == "" {
		return Blockhash{}, false
	}
	raw, err := base58.Decode(envelope.Value.Blockhash)
	if err != nil || len(raw) != 32 {
		return Blockhash{}, false
	}
	var h Blockhash
	copy(h[:], raw)
	return h, true
}

// SignatureResponseExtractor reports whether sendTransaction's result is a
// signature string at all (delivery success, not execution success).
func SignatureResponseExtractor(result json.RawMessage) (bool, bool) {
	var sig string
	if json.Unmarshal(result, &sig) != nil {
		return false, false
	}
	return sig != "", true
}

// ValueExtractor reports whether result.value is present and object-shaped,
// used by every single-account RPC read (getAccountInfo, getBalance,
// getTokenAccountBalance).
func ValueExtractor(result json.RawMessage) (bool, bool) {
	var envelope struct {
		Value json.RawMessage `json:"value"`
	}
	if json.Unmarshal(result, &envelope) != nil || len(envelope.Value) == 0 {
		return false, false
	}
	trimmed := bytes.TrimSpace(envelope.Value)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false, true
	}
	return true, true
}

// AccountUpdateExtractor decodes an accountSubscribe notification's data
// field (a [data, encoding] pair), skips the 32-byte owner prefix the
// on-chain program writes ahead of its payload, and reads the next 8 bytes
// as a little-endian RequestID, letting a notification self-correlate to
// the request that triggered it without a server-assigned id.
func AccountUpdateExtractor(result json.RawMessage) (RequestID, bool) {
	var envelope struct {
		Value struct {
			Data [2]string `json:"data"`
		} `json:"value"`
	}
	if json.Unmarshal(result, &envelope) != nil {
		return 0, false
	}
	data, encoded := envelope.Value.Data[0], envelope.Value.Data[1]
	raw, err := decodeAccountData(data, AccountEncoding(encoded))
	if err != nil || len(raw) < 40 {
		return 0, false
	}
	return RequestID(binary.LittleEndian.Uint64(raw[32:40])), true
}

func decodeAccountData(data string, encoding AccountEncoding) ([]byte, error) {
	switch encoding {
	case EncodingBase58:
		return base58.Decode(data)
	case EncodingBase64:
		return base64.StdEncoding.DecodeString(data)
	case EncodingBase64Zstd:
		raw, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return nil, err
		}
		decoder, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer decoder.Close()
		return decoder.DecodeAll(raw, nil)
	default:
		return nil, &UnknownEncodingError{Encoding: string(encoding)}
	}
}

// UnknownEncodingError reports an account-data encoding tag this build
// doesn't recognize.
type UnknownEncodingError struct{ Encoding string }

func (e *UnknownEncodingError) Error() string {
	return "rpctypes: unknown account encoding " + e.Encoding
}

// SignatureStatusExtractorWS parses a signatureSubscribe notification's
// {"value":{"err":null}} shape: success iff err is JSON null.
func SignatureStatusExtractorWS(result json.RawMessage) (bool, bool) {
	var envelope struct {
		Value struct {
			Err json.RawMessage `json:"err"`
		} `json:"value"`
	}
	if json.Unmarshal(result, &envelope) != nil {
		return false, false
	}
	return bytes.Equal(bytes.TrimSpace(envelope.Value.Err), []byte("null")), true
}

// SignatureStatusExtractorHTTP parses getSignatureStatuses' result array,
// reporting success iff the first (only requested) entry is non-null. This
// is the HTTP polling fallback used when confirmations.get-signature-status
// is enabled in place of a WS signature subscription.
func SignatureStatusExtractorHTTP(result json.RawMessage) (bool, bool) {
	var envelope struct {
		Value []json.RawMessage `json:"value"`
	}
	if json.Unmarshal(result, &envelope) != nil || len(envelope.Value) == 0 {
		return false, false
	}
	first := bytes.TrimSpace(envelope.Value[0])
	return len(first) > 0 && !bytes.Equal(first, []byte("null")), true
}
