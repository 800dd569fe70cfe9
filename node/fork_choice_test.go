package node

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/Nie-Tianyi/rusty-coin/consensus"
)

// forkTx builds a finalized regular-shaped transaction distinguishable
// by seed.
func forkTx(t *testing.T, seed byte) consensus.Transaction {
	t.Helper()
	tx := consensus.NewTransaction(
		[]consensus.Input{consensus.NewInput(consensus.Sha256([]byte{seed}), 0, 0, nil)},
		nil,
		decimal.Zero,
		nil,
	)
	if err := tx.Finalize(); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	return tx
}

// forkCoinbase builds a finalized coinbase distinguishable by seed.
func forkCoinbase(t *testing.T, seed byte) consensus.Transaction {
	t.Helper()
	tx := consensus.NewTransaction(nil, nil, decimal.Zero, []byte{seed})
	if err := tx.Finalize(); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	return tx
}

// forkBlocks fabricates a pre-verified sequence: fork choice trusts the
// caller's verification, so only hashes, difficulties and transaction
// lists matter here.
func forkBlocks(t *testing.T, tag string, difficulties []uint32, txSeeds [][]byte) []consensus.Block {
	t.Helper()
	blocks := make([]consensus.Block, len(difficulties))
	var prev consensus.HashValue
	for i := range blocks {
		txs := []consensus.Transaction{forkCoinbase(t, byte(i))}
		if i < len(txSeeds) {
			for _, seed := range txSeeds[i] {
				txs = append(txs, forkTx(t, seed))
			}
		}
		blocks[i] = consensus.Block{
			Index:        uint64(i),
			PrevHash:     prev,
			Difficulty:   difficulties[i],
			Transactions: txs,
		}
		label := []byte(tag)
		if i > 0 {
			// Shared genesis across forks; suffixes diverge per tag.
			label = append(label, byte(i))
		} else {
			label = []byte("shared genesis")
		}
		blocks[i].Hash = consensus.Sha256(label)
		prev = blocks[i].Hash
	}
	return blocks
}

func TestResolveConflictsLongerWins(t *testing.T) {
	incumbent := forkBlocks(t, "a", []uint32{0, 1, 1}, [][]byte{nil, {10}, {11}})
	candidate := forkBlocks(t, "b", []uint32{0, 1, 1, 1}, nil)
	candidate[1] = incumbent[1] // shared prefix up to height 1

	chain := FromBlocks(incumbent)
	if !chain.ResolveConflicts(candidate) {
		t.Fatalf("longer candidate rejected")
	}
	if chain.Len() != 4 {
		t.Fatalf("chain length %d, want 4", chain.Len())
	}

	// The abandoned suffix's regular transaction returns to the pool.
	if !chain.Mempool().Contains(incumbent[2].Transactions[1].ID) {
		t.Fatalf("abandoned transaction not replayed into the mempool")
	}
	// The shared prefix is not replayed, and coinbases never are.
	if chain.Mempool().Contains(incumbent[1].Transactions[1].ID) {
		t.Fatalf("shared-prefix transaction replayed")
	}
	if chain.Mempool().Contains(incumbent[2].Transactions[0].ID) {
		t.Fatalf("coinbase replayed into the mempool")
	}
}

func TestResolveConflictsAggregateDifficultyBreaksTies(t *testing.T) {
	incumbent := forkBlocks(t, "a", []uint32{0, 1, 1}, nil)
	heavier := forkBlocks(t, "b", []uint32{0, 1, 2}, nil)

	chain := FromBlocks(incumbent)
	if !chain.ResolveConflicts(heavier) {
		t.Fatalf("heavier equal-length candidate rejected")
	}
	if chain.LastBlock().Hash != heavier[2].Hash {
		t.Fatalf("chain did not adopt the heavier fork")
	}
}

func TestResolveConflictsIncumbentWinsTies(t *testing.T) {
	incumbent := forkBlocks(t, "a", []uint32{0, 1, 1}, nil)
	candidate := forkBlocks(t, "b", []uint32{0, 1, 1}, [][]byte{nil, {20}, {21}})

	chain := FromBlocks(incumbent)
	if chain.ResolveConflicts(candidate) {
		t.Fatalf("tied candidate replaced the incumbent")
	}
	if chain.LastBlock().Hash != incumbent[2].Hash {
		t.Fatalf("incumbent tip changed")
	}

	// The rejected suffix's regular transactions land in our pool.
	if !chain.Mempool().Contains(candidate[1].Transactions[1].ID) {
		t.Fatalf("rejected fork transaction not replayed")
	}
	if !chain.Mempool().Contains(candidate[2].Transactions[1].ID) {
		t.Fatalf("rejected fork transaction not replayed")
	}
}

func TestResolveConflictsShorterCandidateRejected(t *testing.T) {
	incumbent := forkBlocks(t, "a", []uint32{0, 1, 1}, nil)
	candidate := forkBlocks(t, "b", []uint32{0, 7}, nil)

	chain := FromBlocks(incumbent)
	if chain.ResolveConflicts(candidate) {
		t.Fatalf("shorter candidate replaced the incumbent")
	}
}

func TestResolveConflictsDifferentGenesis(t *testing.T) {
	incumbent := forkBlocks(t, "a", []uint32{0, 1}, nil)
	foreign := forkBlocks(t, "b", []uint32{0, 1, 1}, nil)
	foreign[0].Hash = consensus.Sha256([]byte("foreign genesis"))

	chain := FromBlocks(incumbent)
	if chain.ResolveConflicts(foreign) {
		t.Fatalf("foreign-genesis candidate adopted")
	}
	if chain.Mempool().Size() != 0 {
		t.Fatalf("foreign candidate leaked into the mempool")
	}
	if chain.ResolveConflicts(nil) {
		t.Fatalf("empty candidate adopted")
	}
}

func TestAggregateDifficulty(t *testing.T) {
	blocks := forkBlocks(t, "a", []uint32{0, 3, 4}, nil)
	if got := AggregateDifficulty(blocks); got != 7 {
		t.Fatalf("aggregate difficulty %d, want 7", got)
	}
	if AggregateDifficulty(nil) != 0 {
		t.Fatalf("empty aggregate must be zero")
	}
}
