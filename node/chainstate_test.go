package node

import (
	"bytes"
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/Nie-Tianyi/rusty-coin/consensus"
	"github.com/Nie-Tianyi/rusty-coin/wallet"
)

const (
	testTime       = uint64(1_700_000_000)
	easyDifficulty = uint32(0x20ffffff)
)

func fixedClock() uint64 { return testTime }

func newTestChain(t *testing.T) *Chain {
	t.Helper()
	chain, err := New([]byte("rusty coin test genesis"), WithClock(fixedClock))
	if err != nil {
		t.Fatalf("new chain: %v", err)
	}
	return chain
}

// mineTo assembles and appends one block paying the full base reward to
// the wallet.
func mineTo(t *testing.T, chain *Chain, w *wallet.Wallet, txs []consensus.Transaction) *consensus.Block {
	t.Helper()
	height := chain.LastBlock().Index + 1
	block, err := chain.AssembleBlock(
		context.Background(),
		[]consensus.Receiver{{Amount: consensus.BlockReward(height), Address: w.Address()}},
		DefaultVersion,
		testTime,
		easyDifficulty,
		txs,
	)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if !chain.VerifyBlock(block, easyDifficulty) {
		t.Fatalf("assembled block does not verify")
	}
	chain.Append(*block)
	return block
}

func TestNewGenesis(t *testing.T) {
	msg := []byte("hello rusty coin")
	chain, err := New(msg, WithClock(fixedClock))
	if err != nil {
		t.Fatalf("new chain: %v", err)
	}
	if chain.Len() != 1 {
		t.Fatalf("chain length %d, want 1", chain.Len())
	}

	genesis := chain.LastBlock()
	if genesis.Index != 0 || genesis.Difficulty != 0 || genesis.Nonce != 0 {
		t.Fatalf("genesis header fields wrong: %+v", genesis)
	}
	if !genesis.PrevHash.IsZero() {
		t.Fatalf("genesis prev hash must be zero")
	}
	if genesis.Timestamp != testTime {
		t.Fatalf("genesis timestamp %d, want %d", genesis.Timestamp, testTime)
	}
	if genesis.Hash != genesis.GenesisHash() {
		t.Fatalf("genesis hash must be the single-round header digest")
	}

	if len(genesis.Transactions) != 1 {
		t.Fatalf("genesis must hold exactly one transaction")
	}
	coinbase := genesis.Transactions[0]
	if !coinbase.IsCoinbase() || len(coinbase.Outputs) != 0 {
		t.Fatalf("genesis transaction must be an outputless coinbase")
	}
	if !bytes.Equal(coinbase.AdditionalData, msg) {
		t.Fatalf("genesis message not carried in additional data")
	}
	if !coinbase.CheckDigest() {
		t.Fatalf("genesis transaction not finalized")
	}
}

func TestBlockAtBounds(t *testing.T) {
	chain := newTestChain(t)
	if _, ok := chain.BlockAt(0); !ok {
		t.Fatalf("genesis lookup failed")
	}
	if _, ok := chain.BlockAt(1); ok {
		t.Fatalf("out-of-range lookup succeeded")
	}
}

func TestFromBlocksAdoptsWithoutValidation(t *testing.T) {
	chain := newTestChain(t)
	adopted := FromBlocks(chain.Blocks(), WithClock(fixedClock))
	if adopted.Len() != chain.Len() {
		t.Fatalf("adopted length %d, want %d", adopted.Len(), chain.Len())
	}
	if adopted.LastBlock().Hash != chain.LastBlock().Hash {
		t.Fatalf("adopted tip differs")
	}
}

func TestLatestReward(t *testing.T) {
	chain := newTestChain(t)

	pending := []consensus.Transaction{
		{Fee: decimal.NewFromInt(100)},
	}
	// reward(1) + 1.03 * 100
	want := consensus.BlockReward(1).Add(decimal.NewFromInt(103))
	if got := chain.LatestReward(pending); !got.Equal(want) {
		t.Fatalf("latest reward: got %s, want %s", got, want)
	}

	if got := chain.LatestReward(nil); !got.Equal(consensus.BlockReward(1)) {
		t.Fatalf("latest reward without fees: got %s", got)
	}
}

func TestAssembleBlockRejectsBadReceivers(t *testing.T) {
	chain := newTestChain(t)
	ctx := context.Background()
	addr := consensus.Sha256([]byte("receiver"))

	_, err := chain.AssembleBlock(ctx, []consensus.Receiver{
		{Amount: decimal.NewFromInt(-1), Address: addr},
	}, DefaultVersion, testTime, easyDifficulty, nil)
	if !consensus.IsCode(err, consensus.ERR_INVALID_OUTPUT_AMOUNT) {
		t.Fatalf("negative receiver: got %v", err)
	}

	over := consensus.BlockReward(1).Add(decimal.NewFromInt(1))
	_, err = chain.AssembleBlock(ctx, []consensus.Receiver{
		{Amount: over, Address: addr},
	}, DefaultVersion, testTime, easyDifficulty, nil)
	if !consensus.IsCode(err, consensus.ERR_REWARD_EXCEEDED) {
		t.Fatalf("over-reward receiver: got %v", err)
	}
}

func TestAssembleBlockProofOfWork(t *testing.T) {
	chain := newTestChain(t)
	w, err := wallet.New()
	if err != nil {
		t.Fatalf("wallet: %v", err)
	}

	block := mineTo(t, chain, w, nil)
	target := consensus.TargetThreshold(block.Difficulty)
	if block.Hash.Cmp(target) > 0 {
		t.Fatalf("assembled block hash above target")
	}
	if !block.Transactions[0].IsCoinbase() {
		t.Fatalf("assembled block must lead with the coinbase")
	}
	if block.PrevHash != chain.Blocks()[0].Hash {
		t.Fatalf("assembled block not linked to the tip")
	}
}

// spendScenario mines a reward to w1 and returns a finalized transfer
// of part of it to w2.
func spendScenario(t *testing.T, chain *Chain) (tx consensus.Transaction, w1, w2 *wallet.Wallet) {
	t.Helper()
	w1, err := wallet.New()
	if err != nil {
		t.Fatalf("wallet: %v", err)
	}
	w2, err = wallet.New()
	if err != nil {
		t.Fatalf("wallet: %v", err)
	}

	block := mineTo(t, chain, w1, nil)
	coinbase := block.Transactions[0]

	utxo := wallet.NewUTXO(coinbase, block.Index, 0)
	reward := coinbase.Outputs[0].Amount
	tx, err = w1.TransferCredits(
		[]wallet.UTXO{utxo},
		[]consensus.Receiver{{Amount: reward.Sub(decimal.NewFromInt(9)), Address: w2.Address()}},
		nil,
	)
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	return tx, w1, w2
}

func TestVerifyTransaction(t *testing.T) {
	chain := newTestChain(t)
	tx, _, _ := spendScenario(t, chain)

	if !chain.VerifyTransaction(&tx) {
		t.Fatalf("valid spend rejected")
	}
	if !tx.Fee.Equal(decimal.NewFromInt(9)) {
		t.Fatalf("fee %s, want 9", tx.Fee)
	}

	// Dangling block reference.
	bad := tx
	bad.Inputs = append([]consensus.Input(nil), tx.Inputs...)
	bad.Inputs[0].PrevBlockIndex = 99
	if chain.VerifyTransaction(&bad) {
		t.Fatalf("dangling block reference accepted")
	}

	// Tampered unlock script.
	bad = tx
	bad.Inputs = append([]consensus.Input(nil), tx.Inputs...)
	bad.Inputs[0].UnlockScript = append([]byte(nil), tx.Inputs[0].UnlockScript...)
	bad.Inputs[0].UnlockScript[3] ^= 0x01
	if chain.VerifyTransaction(&bad) {
		t.Fatalf("tampered unlock script accepted")
	}

	// Wrong declared fee.
	bad = tx
	bad.Fee = decimal.NewFromInt(10)
	if chain.VerifyTransaction(&bad) {
		t.Fatalf("wrong declared fee accepted")
	}

	// Coinbases never validate as regular transactions.
	coinbase := consensus.NewTransaction(nil, nil, decimal.Zero, nil)
	if err := coinbase.Finalize(); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if chain.VerifyTransaction(&coinbase) {
		t.Fatalf("coinbase accepted as regular transaction")
	}
}

func TestVerifyBlockEndToEnd(t *testing.T) {
	chain := newTestChain(t)
	tx, w1, _ := spendScenario(t, chain)

	block := mineTo(t, chain, w1, []consensus.Transaction{tx})
	if len(block.Transactions) != 2 {
		t.Fatalf("block tx count %d, want 2", len(block.Transactions))
	}
	if chain.Len() != 3 {
		t.Fatalf("chain length %d, want 3", chain.Len())
	}
}

func TestVerifyBlockRejections(t *testing.T) {
	chain := newTestChain(t)
	w, err := wallet.New()
	if err != nil {
		t.Fatalf("wallet: %v", err)
	}
	block, err := chain.AssembleBlock(
		context.Background(),
		[]consensus.Receiver{{Amount: consensus.BlockReward(1), Address: w.Address()}},
		DefaultVersion,
		testTime,
		easyDifficulty,
		nil,
	)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if !chain.VerifyBlock(block, easyDifficulty) {
		t.Fatalf("baseline block does not verify")
	}

	if chain.VerifyBlock(block, 0x1E123456) {
		t.Fatalf("difficulty mismatch accepted")
	}

	tampered := *block
	tampered.MerkleRoot[0] ^= 0x01
	if chain.VerifyBlock(&tampered, easyDifficulty) {
		t.Fatalf("merkle tampering accepted")
	}

	tampered = *block
	tampered.PrevHash[0] ^= 0x01
	if chain.VerifyBlock(&tampered, easyDifficulty) {
		t.Fatalf("linkage tampering accepted")
	}

	tampered = *block
	tampered.Hash[31] ^= 0x01
	if chain.VerifyBlock(&tampered, easyDifficulty) {
		t.Fatalf("hash tampering accepted")
	}

	// Timestamp violations are re-mined so only the window rule trips.
	future, err := chain.AssembleBlock(
		context.Background(), nil, DefaultVersion, testTime+1, easyDifficulty, nil)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if chain.VerifyBlock(future, easyDifficulty) {
		t.Fatalf("timestamp ahead of the clock accepted")
	}

	stale, err := chain.AssembleBlock(
		context.Background(), nil, DefaultVersion, testTime-1, easyDifficulty, nil)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if chain.VerifyBlock(stale, easyDifficulty) {
		t.Fatalf("timestamp below the trailing average accepted")
	}
}

func TestVerifyChain(t *testing.T) {
	chain := newTestChain(t)
	w, err := wallet.New()
	if err != nil {
		t.Fatalf("wallet: %v", err)
	}
	mineTo(t, chain, w, nil)
	mineTo(t, chain, w, nil)

	seq := chain.Blocks()
	if !chain.VerifyChain(seq) {
		t.Fatalf("honest chain rejected")
	}

	seq[1].Hash[0] ^= 0x01
	if chain.VerifyChain(seq) {
		t.Fatalf("corrupted chain accepted")
	}

	if chain.VerifyChain(nil) {
		t.Fatalf("empty sequence accepted")
	}
}

func TestSubmitTransaction(t *testing.T) {
	chain := newTestChain(t)
	tx, _, _ := spendScenario(t, chain)

	if !chain.SubmitTransaction(tx) {
		t.Fatalf("valid transaction rejected by mempool")
	}
	if chain.Mempool().Size() != 1 {
		t.Fatalf("mempool size %d, want 1", chain.Mempool().Size())
	}
	if chain.SubmitTransaction(tx) {
		t.Fatalf("duplicate transaction accepted")
	}

	bad := tx
	bad.Fee = decimal.NewFromInt(1000)
	if chain.SubmitTransaction(bad) {
		t.Fatalf("invalid transaction accepted")
	}
}
