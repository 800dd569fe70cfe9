// rustycoind is a single-process dev node: it brings up a chain from a
// genesis message (or a stored one), mines locally into a wallet, and
// persists blocks as it goes. Networking and RPC live in the host
// layers, not here.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/Nie-Tianyi/rusty-coin/consensus"
	"github.com/Nie-Tianyi/rusty-coin/internal/metrics"
	"github.com/Nie-Tianyi/rusty-coin/node"
	"github.com/Nie-Tianyi/rusty-coin/node/store"
	"github.com/Nie-Tianyi/rusty-coin/wallet"
)

var rootCmd = &cobra.Command{
	Use:   "rustycoind",
	Short: "rustycoind runs a local rusty-coin dev node",
	Long:  "rustycoind brings up a chain, mines blocks into a local wallet, and persists them to a block store.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

func init() {
	rootCmd.Flags().String("data-dir", ".rustycoin", "directory for the block store and wallet key")
	rootCmd.Flags().String("genesis-msg", "rusty coin genesis", "message embedded in a fresh genesis block")
	rootCmd.Flags().Uint32("difficulty", 0x20ffffff, "compact difficulty for mined blocks")
	rootCmd.Flags().Int("blocks", 0, "stop after mining this many blocks (0 = run until interrupted)")
	rootCmd.Flags().String("metrics-bind-addr", "", "serve prometheus metrics on this address (empty = off)")
	rootCmd.Flags().String("log-level", "info", "zap log level (debug, info, warn, error)")
	_ = viper.BindPFlags(rootCmd.Flags())
	viper.SetEnvPrefix("RUSTYCOIN")
	viper.AutomaticEnv()
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log-level: %w", err)
	}
	cfg.Level = lvl
	return cfg.Build()
}

func run() error {
	log, err := newLogger(viper.GetString("log-level"))
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	dataDir := viper.GetString("data-dir")
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return err
	}

	metrics.Register(nil)
	if addr := viper.GetString("metrics-bind-addr"); addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			if err := http.ListenAndServe(addr, mux); err != nil {
				log.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	w, err := loadOrCreateWallet(dataDir, log)
	if err != nil {
		return err
	}

	db, err := store.Open(dataDir + "/blocks.db")
	if err != nil {
		return err
	}
	defer db.Close()

	chain, err := loadOrCreateChain(db, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	limit := viper.GetInt("blocks")
	for mined := 0; limit == 0 || mined < limit; mined++ {
		// The reward steps down as the chain grows; re-aim each block.
		miner, err := node.NewMiner(chain, node.MinerConfig{
			Version:    node.DefaultVersion,
			Difficulty: viper.GetUint32("difficulty"),
			Rewards: []consensus.Receiver{
				{Amount: consensus.BlockReward(chain.LastBlock().Index + 1), Address: w.Address()},
			},
		}, log)
		if err != nil {
			return err
		}
		block, err := miner.MineOne(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("shutting down")
				return nil
			}
			return err
		}
		if err := db.PutBlock(block); err != nil {
			return err
		}
	}
	return nil
}

func loadOrCreateWallet(dataDir string, log *zap.Logger) (*wallet.Wallet, error) {
	keyPath := dataDir + "/miner.key"
	if _, err := os.Stat(keyPath); err == nil {
		w, err := wallet.LoadFromPrivateKeyFile(keyPath)
		if err != nil {
			return nil, err
		}
		log.Info("wallet loaded", zap.String("address", w.Address().String()))
		return w, nil
	}
	w, err := wallet.New()
	if err != nil {
		return nil, err
	}
	if err := w.SavePrivateKey(keyPath); err != nil {
		return nil, err
	}
	log.Info("wallet created", zap.String("address", w.Address().String()))
	return w, nil
}

func loadOrCreateChain(db *store.DB, log *zap.Logger) (*node.Chain, error) {
	blocks, err := db.LoadChain()
	if err != nil {
		return nil, err
	}
	if len(blocks) > 0 {
		log.Info("chain loaded", zap.Uint64("tip", blocks[len(blocks)-1].Index))
		return node.FromBlocks(blocks, node.WithLogger(log)), nil
	}
	chain, err := node.New([]byte(viper.GetString("genesis-msg")), node.WithLogger(log))
	if err != nil {
		return nil, err
	}
	if err := db.SaveChain(chain.Blocks()); err != nil {
		return nil, err
	}
	return chain, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
