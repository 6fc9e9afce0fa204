package rpctypes

// AccountEncoding selects the wire encoding requested for account data in
// getAccountInfo/accountSubscribe payloads.
type AccountEncoding string

const (
	EncodingBase58     AccountEncoding = "base58"
	EncodingBase64     AccountEncoding = "base64"
	EncodingBase64Zstd AccountEncoding = "base64+zstd"
)

func (e AccountEncoding) Valid() bool {
	switch e {
	case EncodingBase58, EncodingBase64, EncodingBase64Zstd:
		return true
	default:
		return false
	}
}

// AccountSize is the fixed set of supported account size classes.
type AccountSize uint32

const (
	AccountSize128  AccountSize = 128
	AccountSize512  AccountSize = 512
	AccountSize2048 AccountSize = 2048
	AccountSize8192 AccountSize = 8192
)
