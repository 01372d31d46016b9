// Package config binds the CLI flags of §6 to a viper-backed
// configuration, the cobra+viper pairing the proglog lineage's go.mod
// (ac0mz/proglog, yurakawa/proglog) carries for this kind of service.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// ServerConfig holds everything kvs-server needs to boot (§6).
type ServerConfig struct {
	Addr             string
	AdminAddr        string
	Engine           string
	DataDir          string
	SegmentThreshold int64
	CompactThreshold uint64
}

// ClientConfig holds everything the kvs CLI needs to reach a server (§6).
type ClientConfig struct {
	Addr string
}

// BindServerFlags registers --addr, --engine, --admin-addr, --dir,
// --segment-threshold, --compact-threshold on cmd and binds each to a
// viper key so KVS_* environment variables and a kvs.yaml config file can
// override the defaults.
func BindServerFlags(cmd *cobra.Command, v *viper.Viper) {
	cmd.Flags().String("addr", "127.0.0.1:4000", "address to listen on")
	cmd.Flags().String("admin-addr", "", "address for the admin HTTP surface (empty disables it)")
	cmd.Flags().String("engine", "kvs", "storage engine, kvs or sled")
	cmd.Flags().String("dir", ".", "data directory")
	cmd.Flags().Int64("segment-threshold", 0, "segment rollover threshold in bytes (0 = engine default)")
	cmd.Flags().Uint64("compact-threshold", 0, "mutations between compaction passes (0 = engine default)")

	v.SetEnvPrefix("kvs")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	for _, name := range []string{"addr", "admin-addr", "engine", "dir", "segment-threshold", "compact-threshold"} {
		_ = v.BindPFlag(name, cmd.Flags().Lookup(name))
	}
}

// LoadServerConfig reads bound flags/env/config-file values into a
// ServerConfig. A kvs.yaml file inside the data directory, if present, fills
// in anything not set by a flag or KVS_* environment variable.
func LoadServerConfig(v *viper.Viper) (ServerConfig, error) {
	v.SetConfigName("kvs")
	v.AddConfigPath(v.GetString("dir"))
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return ServerConfig{}, fmt.Errorf("read kvs.yaml: %w", err)
		}
	}

	engine := v.GetString("engine")
	if engine != "kvs" && engine != "sled" {
		return ServerConfig{}, fmt.Errorf("invalid --engine %q: must be kvs or sled", engine)
	}
	return ServerConfig{
		Addr:             v.GetString("addr"),
		AdminAddr:        v.GetString("admin-addr"),
		Engine:           engine,
		DataDir:          v.GetString("dir"),
		SegmentThreshold: v.GetInt64("segment-threshold"),
		CompactThreshold: v.GetUint64("compact-threshold"),
	}, nil
}

// BindClientFlags registers --addr on cmd for the kvs client binary.
func BindClientFlags(cmd *cobra.Command, v *viper.Viper) {
	cmd.PersistentFlags().String("addr", "127.0.0.1:4000", "server address")
	v.SetEnvPrefix("kvs")
	v.AutomaticEnv()
	_ = v.BindPFlag("addr", cmd.PersistentFlags().Lookup("addr"))
}

func LoadClientConfig(v *viper.Viper) ClientConfig {
	return ClientConfig{Addr: v.GetString("addr")}
}
