package consensus

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// HashValue is a 32-byte value compared big-endian, so proof-of-work
// comparisons treat it as a 256-bit unsigned integer.
type HashValue [32]byte

var zeroHash HashValue

func Sha256(b []byte) HashValue {
	return sha256.Sum256(b)
}

// DoubleSha256 computes SHA256(SHA256(b)).
func DoubleSha256(b []byte) HashValue {
	first := sha256.Sum256(b)
	return sha256.Sum256(first[:])
}

func (h HashValue) IsZero() bool {
	return h == zeroHash
}

// Cmp returns -1, 0 or 1 comparing h and other as big-endian integers.
func (h HashValue) Cmp(other HashValue) int {
	return bytes.Compare(h[:], other[:])
}

func (h HashValue) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

// ParseHashValue decodes 64 hex digits, with or without a 0x prefix.
func ParseHashValue(s string) (HashValue, error) {
	var h HashValue
	s = strings.TrimPrefix(s, "0x")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return h, coinerr(ERR_PARSE, fmt.Sprintf("hash value: %v", err))
	}
	if len(raw) != 32 {
		return h, coinerr(ERR_PARSE, fmt.Sprintf("hash value: got %d bytes, want 32", len(raw)))
	}
	copy(h[:], raw)
	return h, nil
}

func (h HashValue) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *HashValue) UnmarshalText(text []byte) error {
	parsed, err := ParseHashValue(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
