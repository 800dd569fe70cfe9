package node

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/Nie-Tianyi/rusty-coin/consensus"
	"github.com/Nie-Tianyi/rusty-coin/internal/metrics"
)

// MinerConfig fixes what a local miner stamps into the blocks it
// assembles. Hosts that parallelize mining shard the nonce space
// themselves; one Miner drives one sequential search.
type MinerConfig struct {
	Version    string
	Difficulty uint32
	Rewards    []consensus.Receiver
	Clock      Clock
	MaxTxPer   int
}

func DefaultMinerConfig() MinerConfig {
	return MinerConfig{
		Version:  DefaultVersion,
		Clock:    SystemClock,
		MaxTxPer: 1024,
	}
}

type Miner struct {
	chain *Chain
	cfg   MinerConfig
	log   *zap.Logger
}

func NewMiner(chain *Chain, cfg MinerConfig, log *zap.Logger) (*Miner, error) {
	if chain == nil {
		return nil, errors.New("nil chain")
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock
	}
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}
	if cfg.MaxTxPer <= 0 {
		cfg.MaxTxPer = 1024
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Miner{chain: chain, cfg: cfg, log: log}, nil
}

// MineOne drains up to MaxTxPer pending transactions, assembles and
// mines the next block, appends it, and removes the included
// transactions from the pool. Cancelling ctx aborts the nonce search
// and leaves the chain untouched.
func (m *Miner) MineOne(ctx context.Context) (*consensus.Block, error) {
	pending := m.chain.Mempool().Pending()
	if len(pending) > m.cfg.MaxTxPer {
		pending = pending[:m.cfg.MaxTxPer]
	}

	block, err := m.chain.AssembleBlock(
		ctx,
		m.cfg.Rewards,
		m.cfg.Version,
		m.cfg.Clock(),
		m.cfg.Difficulty,
		pending,
	)
	if err != nil {
		return nil, err
	}

	m.chain.Append(*block)
	ids := make([]consensus.HashValue, 0, len(pending))
	for i := range pending {
		ids = append(ids, pending[i].ID)
	}
	m.chain.Mempool().Remove(ids...)

	metrics.BlocksMined.Inc()
	m.log.Info("block mined",
		zap.Uint64("index", block.Index),
		zap.Int64("nonce", block.Nonce),
		zap.String("hash", block.Hash.String()),
		zap.Int("tx_count", len(block.Transactions)))
	return block, nil
}

// MineN mines count blocks back to back, stopping at the first error.
func (m *Miner) MineN(ctx context.Context, count int) ([]*consensus.Block, error) {
	out := make([]*consensus.Block, 0, count)
	for i := 0; i < count; i++ {
		block, err := m.MineOne(ctx)
		if err != nil {
			return out, err
		}
		out = append(out, block)
	}
	return out, nil
}
