package consensus

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Monetary amounts are fixed-point decimals throughout. The canonical
// byte form is a 17-byte structure: a 16-byte big-endian
// two's-complement 128-bit mantissa followed by a single scale byte,
// where value = mantissa / 10^scale. Binary floats never touch money.

const amountEncodedLen = 16 + 1

var (
	maxMantissa = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	minMantissa = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
	twoPow128   = new(big.Int).Lsh(big.NewInt(1), 128)
)

// feeInflation is the 3% mark-up applied to aggregated fees when
// computing the coinbase allowance. Exactly 1.03, never a float.
var feeInflation = decimal.New(103, -2)

// appendAmount appends the canonical encoding of d to dst.
func appendAmount(dst []byte, d decimal.Decimal) ([]byte, error) {
	mantissa := d.Coefficient()
	scale := int64(0)
	if exp := int64(d.Exponent()); exp > 0 {
		// Positive exponents fold into the mantissa so the scale is
		// always non-negative.
		mantissa.Mul(mantissa, new(big.Int).Exp(big.NewInt(10), big.NewInt(exp), nil))
	} else {
		scale = -exp
	}
	if scale > 255 {
		return nil, coinerr(ERR_ENCODE, fmt.Sprintf("amount scale %d exceeds 255", scale))
	}
	if mantissa.Cmp(maxMantissa) > 0 || mantissa.Cmp(minMantissa) < 0 {
		return nil, coinerr(ERR_ENCODE, "amount mantissa exceeds 128 bits")
	}
	twos := mantissa
	if mantissa.Sign() < 0 {
		twos = new(big.Int).Add(twoPow128, mantissa)
	}
	var buf [amountEncodedLen]byte
	twos.FillBytes(buf[:16])
	buf[16] = byte(scale)
	return append(dst, buf[:]...), nil
}

// readAmount decodes the canonical 17-byte form written by appendAmount.
func readAmount(b []byte, off *int) (decimal.Decimal, error) {
	if *off+amountEncodedLen > len(b) {
		return decimal.Decimal{}, coinerr(ERR_PARSE, "unexpected EOF (amount)")
	}
	mantissa := new(big.Int).SetBytes(b[*off : *off+16])
	if mantissa.Bit(127) == 1 {
		mantissa.Sub(mantissa, twoPow128)
	}
	scale := b[*off+16]
	*off += amountEncodedLen
	return decimal.NewFromBigInt(mantissa, -int32(scale)), nil
}
