// Command padlockd runs a chain-state node: opening its store, serving
// the node/wallet HTTP front end, and exposing a handful of chain
// inspection and maintenance subcommands.
package main

import (
	"encoding/hex"
	"fmt"
	"net/http"
	"os"

	"github.com/ardanlabs/conf/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/padlocklabs/padlockd/app/services/node/metrics"
	"github.com/padlocklabs/padlockd/app/services/node/network"
	"github.com/padlocklabs/padlockd/foundation/blockchain/state"
)

// config is the node's environment/flag configuration, parsed with the
// PADLOCKD namespace prefix.
type config struct {
	conf.Version

	Chain struct {
		DBPath string `conf:"default:padlockd.db"`
	}
	HTTP struct {
		Address              string `conf:"default:0.0.0.0:9080"`
		MaxNodeConnections   int64  `conf:"default:64"`
		MaxWalletConnections int64  `conf:"default:256"`
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	root := &cobra.Command{
		Use:   "padlockd",
		Short: "padlockd runs and inspects a chain-state node",
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newChainCmd())

	return root.Execute()
}

func loadConfig() (config, error) {
	var cfg config
	cfg.Version = conf.Version{Build: "develop", Desc: "padlockd chain-state node"}

	_, err := conf.Parse("PADLOCKD", &cfg)
	return cfg, err
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "start the node's HTTP front end",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			log, err := zap.NewProduction()
			if err != nil {
				return err
			}
			defer log.Sync()
			sugar := log.Sugar()

			eng, err := state.New(state.Config{
				DBPath: cfg.Chain.DBPath,
				EvHandler: func(v string, args ...any) {
					sugar.Infof(v, args...)
				},
			})
			if err != nil {
				return err
			}
			defer eng.Close()

			reg := prometheus.NewRegistry()
			m := metrics.New(reg)
			if info, err := eng.ChainInfo(); err == nil {
				m.Observe(info)
			}

			srv := network.New(eng, sugar, network.Configuration{
				MaxNodeConnections:   cfg.HTTP.MaxNodeConnections,
				MaxWalletConnections: cfg.HTTP.MaxWalletConnections,
			}, m)

			mux := http.NewServeMux()
			mux.Handle("/v1/", srv)
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

			sugar.Infow("starting server", "address", cfg.HTTP.Address)
			return http.ListenAndServe(cfg.HTTP.Address, mux)
		},
	}
}

func newChainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chain",
		Short: "inspect or maintain the local chain store",
	}

	cmd.AddCommand(newChainInfoCmd())
	cmd.AddCommand(newChainVerifyCmd())
	cmd.AddCommand(newChainRollbackCmd())
	return cmd
}

func newChainInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "print the current chain-info record",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			eng, err := state.New(state.Config{DBPath: cfg.Chain.DBPath})
			if err != nil {
				return err
			}
			defer eng.Close()

			info, err := eng.ChainInfo()
			if err != nil {
				return err
			}

			fmt.Printf("height:                        %d\n", info.Height)
			fmt.Printf("top_block_hash:                %s\n", hex.EncodeToString(info.TopBlockHash[:]))
			fmt.Printf("difficulty:                    %v\n", info.Difficulty)
			fmt.Printf("entry_difficulty_multiplier:   %v\n", info.EntryDifficultyMultiplier)
			fmt.Printf("max_allowed_entry_difficulty:  %v\n", info.MaxAllowedEntryDifficulty)
			return nil
		},
	}
}

func newChainVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify [hash]",
		Short: "recheck a stored block's merkle root and PoW hash in isolation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			eng, err := state.New(state.Config{DBPath: cfg.Chain.DBPath})
			if err != nil {
				return err
			}
			defer eng.Close()

			raw, err := hex.DecodeString(args[0])
			if err != nil || len(raw) != 32 {
				return fmt.Errorf("hash must be 32 hex-encoded bytes")
			}
			var hash [32]byte
			copy(hash[:], raw)

			blk, found, err := eng.GetBlock(hash)
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("block %s not found", args[0])
			}

			validRoot, err := blk.IsMerkleRootValid()
			if err != nil {
				return err
			}
			recomputed := eng.PoWHash(blk.Header, blk.Header.Nonce)
			fmt.Printf("merkle root valid: %v\n", validRoot)
			fmt.Printf("pow hash valid:    %v\n", recomputed == blk.Hash)
			fmt.Printf("miner difficulty:  %v\n", blk.MinerDifficulty())
			return nil
		},
	}
}

func newChainRollbackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rollback",
		Short: "remove the current top block",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			eng, err := state.New(state.Config{DBPath: cfg.Chain.DBPath})
			if err != nil {
				return err
			}
			defer eng.Close()

			return eng.DelTopBlock()
		},
	}
}
