package node

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Nie-Tianyi/rusty-coin/consensus"
	"github.com/Nie-Tianyi/rusty-coin/internal/metrics"
)

// DefaultVersion is stamped into blocks assembled by chains that were
// not given an explicit version.
const DefaultVersion = "0.1"

// timestampWindow is how many preceding blocks feed the lower-bound
// timestamp average.
const timestampWindow = 10

// Chain owns the append-only block sequence and the mempool. A chain is
// owned by exactly one caller at a time; it spawns no goroutines and
// does no I/O.
type Chain struct {
	blocks  []consensus.Block
	mempool *Mempool
	clock   Clock
	version string
	log     *zap.Logger
}

type Option func(*Chain)

// WithClock injects the time source used for genesis, assembly and
// timestamp validation.
func WithClock(clock Clock) Option {
	return func(c *Chain) { c.clock = clock }
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Chain) { c.log = log }
}

// WithVersion sets the version string stamped into assembled blocks.
func WithVersion(version string) Option {
	return func(c *Chain) { c.version = version }
}

func newChain(opts ...Option) *Chain {
	c := &Chain{
		mempool: NewMempool(),
		clock:   SystemClock,
		version: DefaultVersion,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// New builds a chain holding only the genesis block: height 0, zero
// difficulty, zero prev-hash, zero nonce, a single coinbase-shaped
// transaction carrying genesisMsg, and a single-round header hash.
func New(genesisMsg []byte, opts ...Option) (*Chain, error) {
	c := newChain(opts...)

	coinbase := consensus.NewTransaction(nil, nil, decimal.Zero, genesisMsg)
	if err := coinbase.Finalize(); err != nil {
		return nil, err
	}

	genesis := consensus.Block{
		Version:      c.version,
		Index:        0,
		Timestamp:    c.clock(),
		Difficulty:   0,
		Nonce:        0,
		Transactions: []consensus.Transaction{coinbase},
	}
	if err := genesis.UpdateMerkleRoot(); err != nil {
		return nil, err
	}
	genesis.Hash = genesis.GenesisHash()

	c.blocks = []consensus.Block{genesis}
	metrics.ChainHeight.Set(0)
	c.log.Info("genesis created", zap.String("hash", genesis.Hash.String()))
	return c, nil
}

// FromBlocks adopts an existing block sequence without validation. The
// caller is responsible for having verified it.
func FromBlocks(blocks []consensus.Block, opts ...Option) *Chain {
	c := newChain(opts...)
	c.blocks = append([]consensus.Block(nil), blocks...)
	if len(c.blocks) > 0 {
		metrics.ChainHeight.Set(float64(c.blocks[len(c.blocks)-1].Index))
	}
	return c
}

// Len returns the number of blocks including genesis.
func (c *Chain) Len() int {
	return len(c.blocks)
}

// LastBlock returns a view of the tip. Callers must not modify it.
func (c *Chain) LastBlock() consensus.Block {
	return c.blocks[len(c.blocks)-1]
}

// BlockAt returns the block at height i, if it exists.
func (c *Chain) BlockAt(i uint64) (consensus.Block, bool) {
	if i >= uint64(len(c.blocks)) {
		return consensus.Block{}, false
	}
	return c.blocks[i], true
}

// Blocks returns a copy of the whole sequence, genesis first.
func (c *Chain) Blocks() []consensus.Block {
	return append([]consensus.Block(nil), c.blocks...)
}

// Mempool exposes the chain-owned pool of unconfirmed transactions.
func (c *Chain) Mempool() *Mempool {
	return c.mempool
}

// LatestReward is the full amount claimable by the next block's
// coinbase: base reward at tip+1 plus the inflated fees of the pending
// transactions.
func (c *Chain) LatestReward(pending []consensus.Transaction) decimal.Decimal {
	fees := decimal.Zero
	for i := range pending {
		fees = fees.Add(pending[i].Fee)
	}
	return consensus.CoinbaseAllowance(c.LastBlock().Index+1, fees)
}

// AssembleBlock builds the next block: a freshly finalized coinbase
// paying the receivers at position 0, the given transactions after it,
// a recomputed merkle root, then the proof-of-work search. Receiver
// amounts must be non-negative and must not exceed the base reward for
// the new height. The result is not appended.
func (c *Chain) AssembleBlock(
	ctx context.Context,
	receivers []consensus.Receiver,
	version string,
	timestamp uint64,
	difficulty uint32,
	txs []consensus.Transaction,
) (*consensus.Block, error) {
	tip := c.LastBlock()
	height := tip.Index + 1

	total := decimal.Zero
	outputs := make([]consensus.Output, 0, len(receivers))
	for _, r := range receivers {
		if r.Amount.IsNegative() {
			return nil, &consensus.CoinError{
				Code: consensus.ERR_INVALID_OUTPUT_AMOUNT,
				Msg:  fmt.Sprintf("receiver amount %s is negative", r.Amount),
			}
		}
		total = total.Add(r.Amount)
		outputs = append(outputs, consensus.NewOutput(r.Amount, r.Address[:]))
	}
	if reward := consensus.BlockReward(height); total.Cmp(reward) > 0 {
		return nil, &consensus.CoinError{
			Code: consensus.ERR_REWARD_EXCEEDED,
			Msg:  fmt.Sprintf("receivers claim %s, reward is %s", total, reward),
		}
	}

	coinbase := consensus.NewTransaction(nil, outputs, decimal.Zero, nil)
	if err := coinbase.Finalize(); err != nil {
		return nil, err
	}

	block := consensus.Block{
		Version:      version,
		Index:        height,
		Timestamp:    timestamp,
		PrevHash:     tip.Hash,
		Difficulty:   difficulty,
		Nonce:        0,
		Transactions: append([]consensus.Transaction{coinbase}, txs...),
	}
	if err := block.UpdateMerkleRoot(); err != nil {
		return nil, err
	}
	if err := block.Mine(ctx); err != nil {
		return nil, err
	}
	return &block, nil
}

// Append pushes a block without validation. The caller must have run
// VerifyBlock first.
func (c *Chain) Append(block consensus.Block) {
	c.blocks = append(c.blocks, block)
	metrics.ChainHeight.Set(float64(block.Index))
	metrics.BlocksAppended.Inc()
	c.log.Debug("block appended",
		zap.Uint64("index", block.Index),
		zap.String("hash", block.Hash.String()))
}

// SubmitTransaction validates a regular transaction against the current
// chain and pools it.
func (c *Chain) SubmitTransaction(tx consensus.Transaction) bool {
	if !c.VerifyTransaction(&tx) {
		return false
	}
	return c.mempool.Add(tx)
}

// outputAt resolves an input reference against the chain, returning the
// producing transaction and the referenced output.
func (c *Chain) outputAt(blockIndex uint64, txID consensus.HashValue, outputIndex uint64) (*consensus.Transaction, *consensus.Output, error) {
	if blockIndex >= uint64(len(c.blocks)) {
		return nil, nil, &consensus.CoinError{Code: consensus.ERR_INVALID_BLOCK_INDEX}
	}
	tx := c.blocks[blockIndex].TxByID(txID)
	if tx == nil {
		return nil, nil, &consensus.CoinError{Code: consensus.ERR_INVALID_TRANSACTION_INDEX}
	}
	if outputIndex >= uint64(len(tx.Outputs)) {
		return nil, nil, &consensus.CoinError{Code: consensus.ERR_INVALID_OUTPUT_INDEX}
	}
	return tx, &tx.Outputs[outputIndex], nil
}

// VerifyTransaction checks a regular transaction: every input resolves,
// the id matches the canonical digest, outputs are non-negative, the
// fee equals inputs minus outputs and is non-negative, and every unlock
// script verifies against the referenced locking script.
func (c *Chain) VerifyTransaction(tx *consensus.Transaction) bool {
	if tx.IsCoinbase() {
		return false
	}
	if !tx.CheckDigest() {
		c.log.Debug("tx digest mismatch", zap.String("id", tx.ID.String()))
		return false
	}
	for i := range tx.Outputs {
		if tx.Outputs[i].Amount.IsNegative() {
			return false
		}
	}

	inputSum := decimal.Zero
	for i := range tx.Inputs {
		in := &tx.Inputs[i]
		prevTx, prevOut, err := c.outputAt(in.PrevBlockIndex, in.PrevTxHash, in.PrevOutputIndex)
		if err != nil {
			c.log.Debug("tx input unresolved",
				zap.String("id", tx.ID.String()),
				zap.Error(err))
			return false
		}
		if !consensus.VerifyScripts(prevTx.ID, in.UnlockScript, prevOut.LockingScript) {
			c.log.Debug("tx script rejected", zap.String("id", tx.ID.String()))
			return false
		}
		inputSum = inputSum.Add(prevOut.Amount)
	}

	fee := inputSum.Sub(tx.SumOutputs())
	if !fee.Equal(tx.Fee) || fee.IsNegative() {
		c.log.Debug("tx fee mismatch",
			zap.String("id", tx.ID.String()),
			zap.String("declared", tx.Fee.String()),
			zap.String("derived", fee.String()))
		return false
	}
	return true
}

// verifyCoinbase checks the block's first transaction: no inputs, a
// matching digest, non-negative outputs, and a total payout within the
// reward-plus-inflated-fees allowance.
func (c *Chain) verifyCoinbase(block *consensus.Block) bool {
	coinbase := &block.Transactions[0]
	if !coinbase.IsCoinbase() || !coinbase.CheckDigest() {
		return false
	}
	for i := range coinbase.Outputs {
		if coinbase.Outputs[i].Amount.IsNegative() {
			return false
		}
	}
	fees := decimal.Zero
	for i := 1; i < len(block.Transactions); i++ {
		fees = fees.Add(block.Transactions[i].Fee)
	}
	allowance := consensus.CoinbaseAllowance(block.Index, fees)
	return coinbase.SumOutputs().Cmp(allowance) <= 0
}

// verifyTimestamp enforces the block timestamp window: at least the
// average of up to the last ten preceding blocks, at most the current
// clock reading. Genesis is exempt from the lower bound.
func (c *Chain) verifyTimestamp(block *consensus.Block) bool {
	if block.Timestamp > c.clock() {
		return false
	}
	if block.Index == 0 {
		return true
	}

	start := 0
	if block.Index > timestampWindow {
		start = int(block.Index) - timestampWindow
	}
	end := int(block.Index)
	if end > len(c.blocks) {
		end = len(c.blocks)
	}
	if end <= start {
		return true
	}
	var sum uint64
	for _, b := range c.blocks[start:end] {
		sum += b.Timestamp
	}
	avg := sum / uint64(end-start)
	return avg <= block.Timestamp
}

// VerifyBlock runs the full conjunction over a candidate for height
// block.Index: transaction validity, merkle root, expected difficulty,
// header hash and proof of work, previous-hash linkage, and the
// timestamp window.
func (c *Chain) VerifyBlock(block *consensus.Block, expectedDifficulty uint32) bool {
	ok := c.verifyBlockInner(block, expectedDifficulty)
	if !ok {
		metrics.BlocksRejected.Inc()
	}
	return ok
}

func (c *Chain) verifyBlockInner(block *consensus.Block, expectedDifficulty uint32) bool {
	if len(block.Transactions) == 0 {
		return false
	}
	if !c.verifyCoinbase(block) {
		c.log.Debug("block coinbase rejected", zap.Uint64("index", block.Index))
		return false
	}
	for i := 1; i < len(block.Transactions); i++ {
		if !c.VerifyTransaction(&block.Transactions[i]) {
			return false
		}
	}

	root, err := consensus.ComputeMerkleRoot(block.Transactions)
	if err != nil || root != block.MerkleRoot {
		c.log.Debug("block merkle mismatch", zap.Uint64("index", block.Index))
		return false
	}

	if block.Difficulty != expectedDifficulty {
		return false
	}
	if block.Hash != block.HeaderHash() || !consensus.PowCheck(block.Hash, block.Difficulty) {
		c.log.Debug("block pow rejected", zap.Uint64("index", block.Index))
		return false
	}

	if block.Index == 0 || block.Index-1 >= uint64(len(c.blocks)) {
		return false
	}
	if block.PrevHash != c.blocks[block.Index-1].Hash {
		c.log.Debug("block linkage rejected", zap.Uint64("index", block.Index))
		return false
	}

	return c.verifyTimestamp(block)
}

// VerifyChain validates a standalone sequence in order, using each
// block's own difficulty as the expected value. The genesis entry is
// checked structurally: height 0 and a matching single-round hash.
func (c *Chain) VerifyChain(seq []consensus.Block) bool {
	if len(seq) == 0 {
		return false
	}
	genesis := &seq[0]
	if genesis.Index != 0 || genesis.Hash != genesis.GenesisHash() {
		return false
	}
	root, err := consensus.ComputeMerkleRoot(genesis.Transactions)
	if err != nil || root != genesis.MerkleRoot {
		return false
	}

	scratch := newChain(WithClock(c.clock), WithLogger(c.log))
	scratch.blocks = seq[:1]
	for i := 1; i < len(seq); i++ {
		if !scratch.verifyBlockInner(&seq[i], seq[i].Difficulty) {
			return false
		}
		scratch.blocks = seq[:i+1]
	}
	return true
}
