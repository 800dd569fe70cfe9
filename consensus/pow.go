package consensus

import "encoding/binary"

// TargetThreshold expands a compact 32-bit difficulty into the 256-bit
// target it encodes. With big-endian nBits bytes [b0 b1 b2 b3]:
//
//	target = (b1·2^16 + b2·2^8 + b3) · 2^(8·(b0−3))
//
// Mantissa bytes whose position falls outside the 32-byte result are
// clipped to zero rather than wrapped.
func TargetThreshold(difficulty uint32) HashValue {
	var nbits [4]byte
	binary.BigEndian.PutUint32(nbits[:], difficulty)
	exp := int(nbits[0]) - 3

	var target HashValue
	for k := 0; k < 3; k++ {
		pos := 32 - exp - (3 - k)
		if pos >= 0 && pos < 32 {
			target[pos] = nbits[k+1]
		}
	}
	return target
}

// PowCheck reports whether hash, read as a big-endian 256-bit integer,
// meets the target encoded by difficulty.
func PowCheck(hash HashValue, difficulty uint32) bool {
	target := TargetThreshold(difficulty)
	return hash.Cmp(target) <= 0
}
