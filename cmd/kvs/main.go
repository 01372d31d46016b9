// Command kvs is the client CLI of §6: set/get/rm against a running
// kvs-server. Grounded on
// original_source/project-3/src/bin/kvs-client.rs, translated from clap
// subcommands to cobra.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/loxp/kvs/internal/config"
	"github.com/loxp/kvs/internal/protocol"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Sugar()

	v := viper.New()
	root := &cobra.Command{
		Use:          "kvs",
		Short:        "key/value store client",
		SilenceUsage: true,
	}
	config.BindClientFlags(root, v)

	root.AddCommand(setCmd(v, log), getCmd(v, log), rmCmd(v, log))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func client(v *viper.Viper, log *zap.SugaredLogger) *protocol.Client {
	cfg := config.LoadClientConfig(v)
	return protocol.NewClient(cfg.Addr, log)
}

func setCmd(v *viper.Viper, log *zap.SugaredLogger) *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "set a key to a value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return client(v, log).Set(args[0], args[1])
		},
	}
}

func getCmd(v *viper.Viper, log *zap.SugaredLogger) *cobra.Command {
	return &cobra.Command{
		Use:   "get KEY",
		Short: "get the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, ok, err := client(v, log).Get(args[0])
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println(protocol.RespKeyNotFound)
				return nil
			}
			fmt.Println(value)
			return nil
		},
	}
}

func rmCmd(v *viper.Viper, log *zap.SugaredLogger) *cobra.Command {
	return &cobra.Command{
		Use:   "rm KEY",
		Short: "remove a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return client(v, log).Remove(args[0])
		},
	}
}
