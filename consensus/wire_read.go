package consensus

import "encoding/binary"

// Decode limits. Wire input is untrusted; counts and lengths are capped
// before any allocation sized from them.
const (
	maxWireElements  = 1 << 20
	maxWireBlobBytes = 1 << 26
)

func readU32be(b []byte, off *int) (uint32, error) {
	if *off+4 > len(b) {
		return 0, coinerr(ERR_PARSE, "unexpected EOF (u32be)")
	}
	v := binary.BigEndian.Uint32(b[*off : *off+4])
	*off += 4
	return v, nil
}

func readU64be(b []byte, off *int) (uint64, error) {
	if *off+8 > len(b) {
		return 0, coinerr(ERR_PARSE, "unexpected EOF (u64be)")
	}
	v := binary.BigEndian.Uint64(b[*off : *off+8])
	*off += 8
	return v, nil
}

func readI64be(b []byte, off *int) (int64, error) {
	v, err := readU64be(b, off)
	return int64(v), err
}

func readBytes(b []byte, off *int, n uint64) ([]byte, error) {
	if n > maxWireBlobBytes {
		return nil, coinerr(ERR_PARSE, "blob length exceeds cap")
	}
	if *off+int(n) > len(b) {
		return nil, coinerr(ERR_PARSE, "unexpected EOF (bytes)")
	}
	v := append([]byte(nil), b[*off:*off+int(n)]...)
	*off += int(n)
	return v, nil
}

func readHash(b []byte, off *int) (HashValue, error) {
	var h HashValue
	if *off+32 > len(b) {
		return h, coinerr(ERR_PARSE, "unexpected EOF (hash)")
	}
	copy(h[:], b[*off:*off+32])
	*off += 32
	return h, nil
}

func readCount(b []byte, off *int) (uint64, error) {
	n, err := readU64be(b, off)
	if err != nil {
		return 0, err
	}
	if n > maxWireElements {
		return 0, coinerr(ERR_PARSE, "element count exceeds cap")
	}
	return n, nil
}

// DecodeTx parses one wire-form transaction starting at *off.
func DecodeTx(b []byte, off *int) (Transaction, error) {
	var tx Transaction

	inputCount, err := readCount(b, off)
	if err != nil {
		return tx, err
	}
	for i := uint64(0); i < inputCount; i++ {
		var in Input
		if in.PrevTxHash, err = readHash(b, off); err != nil {
			return tx, err
		}
		if in.PrevBlockIndex, err = readU64be(b, off); err != nil {
			return tx, err
		}
		if in.PrevOutputIndex, err = readU64be(b, off); err != nil {
			return tx, err
		}
		scriptLen, err := readU64be(b, off)
		if err != nil {
			return tx, err
		}
		if in.UnlockScript, err = readBytes(b, off, scriptLen); err != nil {
			return tx, err
		}
		tx.Inputs = append(tx.Inputs, in)
	}

	outputCount, err := readCount(b, off)
	if err != nil {
		return tx, err
	}
	for i := uint64(0); i < outputCount; i++ {
		var out Output
		if out.Amount, err = readAmount(b, off); err != nil {
			return tx, err
		}
		scriptLen, err := readU64be(b, off)
		if err != nil {
			return tx, err
		}
		if out.LockingScript, err = readBytes(b, off, scriptLen); err != nil {
			return tx, err
		}
		tx.Outputs = append(tx.Outputs, out)
	}

	if tx.ID, err = readHash(b, off); err != nil {
		return tx, err
	}
	if tx.Fee, err = readAmount(b, off); err != nil {
		return tx, err
	}

	if *off+1 > len(b) {
		return tx, coinerr(ERR_PARSE, "unexpected EOF (presence flag)")
	}
	flag := b[*off]
	*off++
	switch flag {
	case 0x00:
		tx.AdditionalData = nil
	case 0x01:
		dataLen, err := readU64be(b, off)
		if err != nil {
			return tx, err
		}
		if tx.AdditionalData, err = readBytes(b, off, dataLen); err != nil {
			return tx, err
		}
		if tx.AdditionalData == nil {
			// Present-but-empty must stay distinct from absent.
			tx.AdditionalData = []byte{}
		}
	default:
		return tx, coinerr(ERR_PARSE, "invalid additional_data presence flag")
	}

	return tx, nil
}

// DecodeBlock parses a wire-form block and requires the input to be
// fully consumed.
func DecodeBlock(b []byte) (Block, error) {
	var blk Block
	off := 0

	versionLen, err := readU64be(b, &off)
	if err != nil {
		return blk, err
	}
	versionBytes, err := readBytes(b, &off, versionLen)
	if err != nil {
		return blk, err
	}
	blk.Version = string(versionBytes)

	if blk.Index, err = readU64be(b, &off); err != nil {
		return blk, err
	}
	if blk.Timestamp, err = readU64be(b, &off); err != nil {
		return blk, err
	}
	if blk.PrevHash, err = readHash(b, &off); err != nil {
		return blk, err
	}
	if blk.Hash, err = readHash(b, &off); err != nil {
		return blk, err
	}
	if blk.MerkleRoot, err = readHash(b, &off); err != nil {
		return blk, err
	}
	if blk.Difficulty, err = readU32be(b, &off); err != nil {
		return blk, err
	}
	if blk.Nonce, err = readI64be(b, &off); err != nil {
		return blk, err
	}

	txCount, err := readCount(b, &off)
	if err != nil {
		return blk, err
	}
	for i := uint64(0); i < txCount; i++ {
		tx, err := DecodeTx(b, &off)
		if err != nil {
			return blk, err
		}
		blk.Transactions = append(blk.Transactions, tx)
	}

	if off != len(b) {
		return blk, coinerr(ERR_PARSE, "trailing bytes after block")
	}
	return blk, nil
}
