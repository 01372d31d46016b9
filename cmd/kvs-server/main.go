// Command kvs-server runs the TCP key/value service of §4.5/§6. Grounded
// on original_source/project-3/src/bin/kvs-server.rs (engine selection,
// marker check, server.run), translated from clap to cobra.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/loxp/kvs/internal/config"
	"github.com/loxp/kvs/internal/engine"
	"github.com/loxp/kvs/internal/protocol"
	"github.com/loxp/kvs/internal/sled"
)

func main() {
	v := viper.New()
	root := &cobra.Command{
		Use:          "kvs-server",
		Short:        "key/value store server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, v)
		},
	}
	config.BindServerFlags(root, v)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, v *viper.Viper) error {
	cfg, err := config.LoadServerConfig(v)
	if err != nil {
		return err
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()
	log := logger.Sugar()

	var (
		store engine.Store
		stats protocol.StatsProvider
	)
	switch cfg.Engine {
	case "kvs":
		e, err := engine.Open(cfg.DataDir,
			engine.WithLogger(log),
			engine.WithSegmentThreshold(cfg.SegmentThreshold),
			engine.WithCompactThreshold(cfg.CompactThreshold),
		)
		if err != nil {
			return fmt.Errorf("open kvs engine: %w", err)
		}
		store, stats = e, e
	case "sled":
		e, err := sled.Open(cfg.DataDir, log)
		if err != nil {
			return fmt.Errorf("open sled engine: %w", err)
		}
		store = e
	default:
		return fmt.Errorf("unknown engine %q", cfg.Engine)
	}
	defer store.Close()

	var admin *protocol.Admin
	if cfg.AdminAddr != "" {
		admin = protocol.NewAdmin(cfg.AdminAddr, stats, log)
	}

	srv := protocol.NewServer(cfg.Addr, store, log, admin)

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return srv.Run(ctx)
}
