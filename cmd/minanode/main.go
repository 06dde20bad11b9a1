// Command minanode runs a succinct Mina-style full node: a ledger database,
// an optional PostgreSQL snapshot store and a p2p node whose gossiped
// blocks are passed to a p2p.SyncManager (no block hash is marked known to
// it, and no transaction is applied to the ledger), behind a cobra CLI in
// place of the teacher's flag-based entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/minagoat/ccore/internal/config"
	"github.com/minagoat/ccore/internal/constants"
	"github.com/minagoat/ccore/internal/ledger"
	"github.com/minagoat/ccore/internal/logging"
	"github.com/minagoat/ccore/internal/p2p"
	"github.com/minagoat/ccore/internal/storage"
	"github.com/minagoat/ccore/internal/txn"
)

const banner = `
  __  __ _             _   _           _
 |  \/  (_)           | | | |         | |
 | \  / |_ _ __   __ _| |_| | ___   __| | ___
 | |\/| | | '_ \ / _` + "`" + ` | __| |/ _ \ / _` + "`" + ` |/ _ \
 | |  | | | | | | (_| | |_| | (_) | (_| |  __/
 |_|  |_|_|_| |_|\__,_|\__|_|\___/ \__,_|\___|

  minanode %s
`

const version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:     "minanode",
		Short:   "Succinct blockchain full node",
		Version: version,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")

	root.AddCommand(newStartCmd(&configPath))
	return root
}

func newStartCmd(configPath *string) *cobra.Command {
	var (
		listenAddr        string
		rpcAddr           string
		logLevel          string
		logFile           string
		dataDir           string
		enablePersistence bool
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the node",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			overrideIfSet(cmd, "listen", &cfg.ListenAddr, listenAddr)
			overrideIfSet(cmd, "rpc", &cfg.RPCAddr, rpcAddr)
			overrideIfSet(cmd, "log-level", &cfg.LogLevel, logLevel)
			overrideIfSet(cmd, "log-file", &cfg.LogFile, logFile)
			overrideIfSet(cmd, "data-dir", &cfg.DataDir, dataDir)
			if cmd.Flags().Changed("enable-persistence") {
				cfg.EnablePersistence = enablePersistence
			}
			return run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&listenAddr, "listen", "", "p2p listen address")
	cmd.Flags().StringVar(&rpcAddr, "rpc", "", "RPC server address")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&logFile, "log-file", "", "log file path (empty for stdout)")
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "data directory")
	cmd.Flags().BoolVar(&enablePersistence, "enable-persistence", false, "persist ledger snapshots to PostgreSQL")

	return cmd
}

func overrideIfSet(cmd *cobra.Command, flagName string, dst *string, value string) {
	if cmd.Flags().Changed(flagName) {
		*dst = value
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logger, closer, err := logging.New(logging.Config{Level: cfg.LogLevel, File: cfg.LogFile, Pretty: cfg.LogFile == ""})
	if err != nil {
		return fmt.Errorf("configuring logger: %w", err)
	}
	if closer != nil {
		defer closer.Close()
	}

	fmt.Printf(banner, version)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info().Msg("shutdown signal received")
		cancel()
	}()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	constraints := constants.Default()
	if cfg.ConstantsFile != "" {
		if constraints, err = constants.Load(cfg.ConstantsFile); err != nil {
			return fmt.Errorf("loading constraint constants: %w", err)
		}
	}
	depth := constraints.LedgerDepth
	if cfg.LedgerDepth > 0 {
		depth = cfg.LedgerDepth
	}
	db := ledger.NewDatabase(depth)
	logger.Info().
		Int("ledger_depth", db.Depth()).
		Str("listen", cfg.ListenAddr).
		Str("rpc", cfg.RPCAddr).
		Msg("node initialized")

	var store *storage.PostgresStore
	if cfg.EnablePersistence {
		dbCfg := &storage.Config{
			Host: cfg.DBHost, Port: cfg.DBPort,
			User: cfg.DBUser, Password: cfg.DBPassword, Database: cfg.DBName,
			SSLMode: "disable", MaxConns: 20,
		}
		store, err = storage.NewPostgresStore(ctx, dbCfg)
		if err != nil {
			return fmt.Errorf("connecting to snapshot store: %w", err)
		}
		defer store.Close()
		if root, err := store.LatestSnapshotRoot(ctx); err == nil {
			restored, err := store.LoadSnapshot(ctx, root)
			if err != nil {
				return fmt.Errorf("restoring ledger snapshot: %w", err)
			}
			db = restored
			logger.Info().Str("root_hash", fmt.Sprintf("%x", root)).Msg("restored ledger snapshot")
		}
	}

	p2pCfg := p2p.DefaultConfig()
	p2pCfg.ListenAddrs = []string{cfg.ListenAddr}
	node, err := p2p.NewNode(ctx, p2pCfg)
	if err != nil {
		return fmt.Errorf("starting p2p node: %w", err)
	}
	defer node.Close()

	var chainHeight uint64
	sync := p2p.NewSyncManager(node, func() uint64 { return chainHeight }, blockLogger(logger, &chainHeight), nil)
	node.SetBlockHandler(func(ctx context.Context, msg *pubsub.Message) error {
		block, err := p2p.DecodeBlock(msg.Data)
		if err != nil {
			return err
		}
		return sync.HandleBlock(ctx, block)
	})

	logger.Info().Str("peer_id", node.ID().String()).Msg("p2p node started")
	node.Start()

	logger.Info().Msg("node started, waiting for shutdown")
	<-ctx.Done()

	if store != nil {
		if err := store.SaveSnapshot(context.Background(), db); err != nil {
			logger.Error().Err(err).Msg("saving ledger snapshot on shutdown")
		} else {
			logger.Info().Str("root_hash", fmt.Sprintf("%x", db.RootHash())).Msg("saved ledger snapshot")
		}
	}
	logger.Info().Msg("node stopped")
	return nil
}

// blockLogger builds a p2p.BlockHandler that advances the node's tracked
// chain height and logs delivery order. Applying a gossiped block's
// transactions to the ledger via internal/applier is the caller's next
// step once block production/consensus (out of scope per spec.md §1)
// has somewhere to source blocks from.
func blockLogger(logger zerolog.Logger, height *uint64) p2p.BlockHandler {
	return func(_ context.Context, b *txn.Block) error {
		logger.Info().
			Uint64("height", b.Header.Height).
			Int("transactions", len(b.Transactions)).
			Msg("received block")
		*height = b.Header.Height
		return nil
	}
}
