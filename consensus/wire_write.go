package consensus

import "encoding/binary"

// AppendU32be appends v as a 4-byte big-endian value to dst.
func AppendU32be(dst []byte, v uint32) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	return append(dst, buf[:]...)
}

// AppendU64be appends v as an 8-byte big-endian value to dst.
func AppendU64be(dst []byte, v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return append(dst, buf[:]...)
}

// AppendI64be appends v as an 8-byte big-endian two's-complement value
// to dst.
func AppendI64be(dst []byte, v int64) []byte {
	return AppendU64be(dst, uint64(v))
}

// EncodeTx appends the wire form of a transaction: the canonical field
// layout prefixed with explicit element counts, the stored id, the fee,
// and a presence flag byte for additional_data so that absent and
// present-but-empty stay distinct.
func EncodeTx(dst []byte, tx *Transaction) ([]byte, error) {
	var err error
	dst = AppendU64be(dst, uint64(len(tx.Inputs)))
	for i := range tx.Inputs {
		in := &tx.Inputs[i]
		dst = append(dst, in.PrevTxHash[:]...)
		dst = AppendU64be(dst, in.PrevBlockIndex)
		dst = AppendU64be(dst, in.PrevOutputIndex)
		dst = AppendU64be(dst, uint64(len(in.UnlockScript)))
		dst = append(dst, in.UnlockScript...)
	}
	dst = AppendU64be(dst, uint64(len(tx.Outputs)))
	for i := range tx.Outputs {
		out := &tx.Outputs[i]
		dst, err = appendAmount(dst, out.Amount)
		if err != nil {
			return nil, err
		}
		dst = AppendU64be(dst, uint64(len(out.LockingScript)))
		dst = append(dst, out.LockingScript...)
	}
	dst = append(dst, tx.ID[:]...)
	dst, err = appendAmount(dst, tx.Fee)
	if err != nil {
		return nil, err
	}
	if tx.AdditionalData == nil {
		dst = append(dst, 0x00)
	} else {
		dst = append(dst, 0x01)
		dst = AppendU64be(dst, uint64(len(tx.AdditionalData)))
		dst = append(dst, tx.AdditionalData...)
	}
	return dst, nil
}

// EncodeBlock appends the wire form of a block: the length-prefixed
// version string, the header integers big-endian, all three hashes, and
// the transaction list.
func EncodeBlock(dst []byte, b *Block) ([]byte, error) {
	dst = AppendU64be(dst, uint64(len(b.Version)))
	dst = append(dst, b.Version...)
	dst = AppendU64be(dst, b.Index)
	dst = AppendU64be(dst, b.Timestamp)
	dst = append(dst, b.PrevHash[:]...)
	dst = append(dst, b.Hash[:]...)
	dst = append(dst, b.MerkleRoot[:]...)
	dst = AppendU32be(dst, b.Difficulty)
	dst = AppendI64be(dst, b.Nonce)
	dst = AppendU64be(dst, uint64(len(b.Transactions)))
	var err error
	for i := range b.Transactions {
		dst, err = EncodeTx(dst, &b.Transactions[i])
		if err != nil {
			return nil, err
		}
	}
	return dst, nil
}
