package node

import (
	"go.uber.org/zap"

	"github.com/Nie-Tianyi/rusty-coin/consensus"
	"github.com/Nie-Tianyi/rusty-coin/internal/metrics"
)

// AggregateDifficulty sums the raw compact-encoded difficulty fields of
// a block sequence. A proxy for work, not a true work sum; ties on
// length fall back to it.
func AggregateDifficulty(blocks []consensus.Block) uint64 {
	var total uint64
	for i := range blocks {
		total += uint64(blocks[i].Difficulty)
	}
	return total
}

// forkPoint is the length of the prefix on which the two chains agree
// hash-for-hash.
func forkPoint(a, b []consensus.Block) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i].Hash != b[i].Hash {
			return i
		}
	}
	return n
}

// ResolveConflicts applies fork choice between the current chain and an
// independently verified candidate. Longer chains win; equal lengths
// fall back to aggregate difficulty; the incumbent wins ties. The
// non-coinbase transactions of whichever suffix loses are replayed into
// the mempool, where the next verification pass re-judges them against
// the surviving tip. Returns true iff the chain was replaced.
func (c *Chain) ResolveConflicts(candidate []consensus.Block) bool {
	if len(candidate) == 0 {
		return false
	}
	if c.blocks[0].Hash != candidate[0].Hash {
		c.log.Info("candidate rejected: different genesis")
		return false
	}

	f := forkPoint(c.blocks, candidate)

	adopt := false
	switch {
	case len(candidate) > len(c.blocks):
		adopt = true
	case len(candidate) == len(c.blocks):
		adopt = AggregateDifficulty(candidate) > AggregateDifficulty(c.blocks)
	}

	if adopt {
		abandoned := c.blocks[f:]
		c.replayIntoMempool(abandoned)
		c.blocks = append([]consensus.Block(nil), candidate...)
		metrics.ChainHeight.Set(float64(c.blocks[len(c.blocks)-1].Index))
		metrics.ForkSwitches.Inc()
		c.log.Info("chain replaced",
			zap.Int("fork_point", f),
			zap.Int("new_length", len(c.blocks)),
			zap.Int("replayed_blocks", len(abandoned)))
		return true
	}

	c.replayIntoMempool(candidate[f:])
	c.log.Info("candidate rejected",
		zap.Int("fork_point", f),
		zap.Int("candidate_length", len(candidate)))
	return false
}

// replayIntoMempool pushes every non-coinbase transaction of the given
// blocks back into the pool, preserving block and intra-block order.
func (c *Chain) replayIntoMempool(blocks []consensus.Block) {
	for i := range blocks {
		txs := blocks[i].Transactions
		for j := range txs {
			if txs[j].IsCoinbase() {
				continue
			}
			c.mempool.Add(txs[j])
		}
	}
}
