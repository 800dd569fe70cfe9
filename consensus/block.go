package consensus

import (
	"context"
	"fmt"
	"math"
	"strings"
)

// Block is one entry of the chain. Transactions[0] must be the
// coinbase once the block is assembled. Hash commits the proof of work
// over the header; the transaction list is committed via MerkleRoot.
type Block struct {
	Version      string
	Index        uint64
	Timestamp    uint64
	PrevHash     HashValue
	Hash         HashValue
	MerkleRoot   HashValue
	Difficulty   uint32
	Nonce        int64
	Transactions []Transaction
}

// HeaderBytes is the byte stream the block hash commits to. Integers
// are big-endian; the hash field itself and the transaction list are
// excluded (transactions are committed via the merkle root).
func (b *Block) HeaderBytes() []byte {
	return AppendI64be(b.headerPrefix(), b.Nonce)
}

// headerPrefix is HeaderBytes without the trailing nonce, so the mining
// loop only re-encodes the part that changes.
func (b *Block) headerPrefix() []byte {
	dst := make([]byte, 0, len(b.Version)+8+8+32+32+4+8)
	dst = append(dst, b.Version...)
	dst = AppendU64be(dst, b.Index)
	dst = AppendU64be(dst, b.Timestamp)
	dst = append(dst, b.PrevHash[:]...)
	dst = append(dst, b.MerkleRoot[:]...)
	dst = AppendU32be(dst, b.Difficulty)
	return dst
}

// HeaderHash is the committed proof-of-work digest:
// SHA256(SHA256(header)).
func (b *Block) HeaderHash() HashValue {
	return DoubleSha256(b.HeaderBytes())
}

// GenesisHash is the single-round header digest used only by the
// genesis block.
func (b *Block) GenesisHash() HashValue {
	return Sha256(b.HeaderBytes())
}

// UpdateMerkleRoot recomputes the merkle root from the current
// transaction list.
func (b *Block) UpdateMerkleRoot() error {
	root, err := ComputeMerkleRoot(b.Transactions)
	if err != nil {
		return err
	}
	b.MerkleRoot = root
	return nil
}

// Mine searches for a nonce whose doubled-SHA256 header digest meets
// the difficulty target. The search starts from the current nonce and
// increments by one per attempt. Cancellation is honored at every
// iteration and leaves the block unchanged; a search that reaches the
// end of the nonce space reports ERR_NONCE_EXHAUSTED instead of
// wrapping silently.
func (b *Block) Mine(ctx context.Context) error {
	target := TargetThreshold(b.Difficulty)
	prefix := b.headerPrefix()
	nonce := b.Nonce
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		header := AppendI64be(prefix[:len(prefix):len(prefix)], nonce)
		hash := DoubleSha256(header)
		if hash.Cmp(target) <= 0 {
			b.Nonce = nonce
			b.Hash = hash
			return nil
		}
		if nonce == math.MaxInt64 {
			return coinerr(ERR_NONCE_EXHAUSTED, "no solution within nonce space")
		}
		nonce++
	}
}

// TxByID returns the transaction with the given id, or nil.
func (b *Block) TxByID(txID HashValue) *Transaction {
	for i := range b.Transactions {
		if b.Transactions[i].ID == txID {
			return &b.Transactions[i]
		}
	}
	return nil
}

func (b *Block) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Block[%d]:\n", b.Index)
	fmt.Fprintf(&sb, "\tversion: %s\n", b.Version)
	fmt.Fprintf(&sb, "\ttimestamp: %d\n", b.Timestamp)
	fmt.Fprintf(&sb, "\tprev_hash: %s\n", b.PrevHash)
	fmt.Fprintf(&sb, "\thash: %s\n", b.Hash)
	fmt.Fprintf(&sb, "\tmerkle_root: %s\n", b.MerkleRoot)
	fmt.Fprintf(&sb, "\tdifficulty: %d\n", b.Difficulty)
	fmt.Fprintf(&sb, "\tnonce: %d\n", b.Nonce)
	for i := range b.Transactions {
		for _, line := range strings.Split(strings.TrimRight(b.Transactions[i].String(), "\n"), "\n") {
			fmt.Fprintf(&sb, "\t%s\n", line)
		}
	}
	return sb.String()
}
