// Package cli implements the tokenvaultd command line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configFile string
	standalone bool
	quiet      bool
)

var rootCmd = &cobra.Command{
	Use:   "tokenvaultd",
	Short: "tokenvaultd - token custody and swap ledger daemon",
	Long: `tokenvaultd is a ledger daemon for single-supply token custody and
atomic swaps. It tracks token issuance, vault lock state, and swap
listings in a hash-chained ledger, and serves queries over JSON-RPC,
WebSocket, and gRPC.`,
	Version: "0.1.0-dev",
}

// Execute runs the root command. Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "conf", "", "configuration file path")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress output to console after startup")
	rootCmd.PersistentFlags().BoolVar(&standalone, "standalone", false, "run without consensus; close ledgers via ledger_accept")
}
