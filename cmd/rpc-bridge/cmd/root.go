// Package cmd provides the CLI commands for rpc-bridge.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rpcbridge/rpcbridge/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "rpc-bridge",
	Short: "rpc-bridge - stateless JSON-RPC 2.0 to HTTP bridge",
	Long: `rpc-bridge exposes a JSON-RPC 2.0 server over plain HTTP POST.

Each POST carries a single JSON-RPC message or a batch. Notifications are
acknowledged immediately; requests are forwarded to the upstream server and
the matching responses are aggregated into the HTTP reply. The bridge keeps
no state between calls: every POST is a self-contained exchange.

Quick start:
  1. Create a config file: rpc-bridge.yaml
  2. Run: rpc-bridge serve

Configuration:
  Config is loaded from rpc-bridge.yaml in the current directory,
  $HOME/.rpc-bridge/, or /etc/rpc-bridge/.

  Environment variables can override config values with the RPC_BRIDGE_ prefix.
  Example: RPC_BRIDGE_SERVER_HTTP_ADDR=:9090

Commands:
  serve       Start the bridge server
  version     Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./rpc-bridge.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
