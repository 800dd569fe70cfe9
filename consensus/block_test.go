package consensus

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
)

func testHeaderBlock() Block {
	return Block{
		Version:    "0.1v test",
		Index:      0,
		Timestamp:  0,
		Difficulty: 0x04123456,
		Nonce:      143,
	}
}

func TestHeaderHashVector(t *testing.T) {
	block := testHeaderBlock()
	// SHA256(SHA256(version ‖ index ‖ timestamp ‖ prev ‖ merkle ‖
	// difficulty ‖ nonce)) for the fixed header above, computed with an
	// independent implementation.
	want := "0xf4f8824d4a70647399ee1c50f4dafbd1c69ed52452ad59244a7ea06ea382de93"
	if got := block.HeaderHash(); got.String() != want {
		t.Fatalf("header hash: got %s, want %s", got, want)
	}
}

func TestHeaderHashCoversFields(t *testing.T) {
	refBlock := testHeaderBlock()
	ref := refBlock.HeaderHash()

	mutations := map[string]func(*Block){
		"version":    func(b *Block) { b.Version = "0.2v test" },
		"index":      func(b *Block) { b.Index = 1 },
		"timestamp":  func(b *Block) { b.Timestamp = 1 },
		"prev hash":  func(b *Block) { b.PrevHash[0] = 1 },
		"merkle":     func(b *Block) { b.MerkleRoot[0] = 1 },
		"difficulty": func(b *Block) { b.Difficulty++ },
		"nonce":      func(b *Block) { b.Nonce++ },
	}
	for name, mutate := range mutations {
		block := testHeaderBlock()
		mutate(&block)
		if block.HeaderHash() == ref {
			t.Fatalf("%s: mutation did not change the header hash", name)
		}
	}

	// The committed hash itself is not part of the header.
	block := testHeaderBlock()
	block.Hash[0] = 1
	if block.HeaderHash() != ref {
		t.Fatalf("hash field must not feed the header hash")
	}
}

func TestGenesisHashIsSingleRound(t *testing.T) {
	block := testHeaderBlock()
	if block.GenesisHash() != Sha256(block.HeaderBytes()) {
		t.Fatalf("genesis hash must be a single SHA-256 round")
	}
	if block.GenesisHash() == block.HeaderHash() {
		t.Fatalf("single and double rounds must differ")
	}
}

func TestMineMeetsTarget(t *testing.T) {
	block := Block{
		Version:    "0.1v test",
		Index:      1,
		Timestamp:  0,
		Difficulty: 0x1E123456,
		Nonce:      0,
	}
	if err := block.Mine(context.Background()); err != nil {
		t.Fatalf("mine: %v", err)
	}

	target := TargetThreshold(block.Difficulty)
	if block.Hash.Cmp(target) > 0 {
		t.Fatalf("mined hash %s above target %s", block.Hash, target)
	}
	if block.Hash != block.HeaderHash() {
		t.Fatalf("committed hash does not match the mined header")
	}

}

func TestMineReproducible(t *testing.T) {
	mine := func() Block {
		block := Block{
			Version:    "0.1v test",
			Index:      1,
			Timestamp:  0,
			Difficulty: 0x1F123456,
			Nonce:      0,
		}
		if err := block.Mine(context.Background()); err != nil {
			t.Fatalf("mine: %v", err)
		}
		return block
	}

	first, second := mine(), mine()
	if first.Nonce != second.Nonce || first.Hash != second.Hash {
		t.Fatalf("mining is not reproducible for fixed inputs")
	}
}

func TestMineCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	block := Block{
		Version:    "0.1v test",
		Difficulty: 0x03000000, // zero mantissa, zero target: unreachable
		Nonce:      5,
	}
	err := block.Mine(ctx)
	if err == nil {
		t.Fatalf("cancelled mining returned success")
	}
	if block.Nonce != 5 || !block.Hash.IsZero() {
		t.Fatalf("cancelled mining corrupted the block")
	}
}

func TestUpdateMerkleRootCommitsTransactions(t *testing.T) {
	tx := NewTransaction(nil, []Output{
		NewOutput(decimal.NewFromInt(3), make([]byte, LockingScriptLen)),
	}, decimal.Zero, nil)
	if err := tx.Finalize(); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	block := Block{Version: "0.1", Transactions: []Transaction{tx}}
	if err := block.UpdateMerkleRoot(); err != nil {
		t.Fatalf("merkle: %v", err)
	}
	leaf, _ := tx.LeafHash()
	if block.MerkleRoot != leaf {
		t.Fatalf("merkle root not derived from the transaction list")
	}
}

func TestTxByID(t *testing.T) {
	tx := NewTransaction(nil, nil, decimal.Zero, []byte("find me"))
	if err := tx.Finalize(); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	block := Block{Transactions: []Transaction{tx}}

	if got := block.TxByID(tx.ID); got == nil || got.ID != tx.ID {
		t.Fatalf("stored transaction not found")
	}
	if block.TxByID(Sha256([]byte("other"))) != nil {
		t.Fatalf("missing transaction reported as found")
	}
}
