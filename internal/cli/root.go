package cli

import (
	"github.com/spf13/cobra"

	"github.com/wemix/blockwait/internal/config"
)

// NewRootCommand creates the root command for blockwait
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blockwait",
		Short: "Block height wait tool for WBFT and Ethereum RPC nodes",
		Long: `Blockwait blocks until a blockchain node's chain height has advanced
a requested number of blocks past the height observed at startup.
It can also track height continuously and serve it over HTTP for
dashboards and automation.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Add global flags
	cmd.PersistentFlags().String("config", "", "Path to a TOML, YAML or JSON config file")
	cmd.PersistentFlags().StringSlice("rpc-addr", []string{config.DefaultRPCAddress}, "RPC address of a node (repeatable for multiple nodes)")
	cmd.PersistentFlags().String("source", config.DefaultSource, "Height source kind (wbft or eth)")
	cmd.PersistentFlags().Bool("debug", false, "Enable debug mode")
	cmd.PersistentFlags().Bool("quiet", false, "Suppress progress logging")
	cmd.PersistentFlags().Bool("json", false, "Render results as JSON")

	// Add subcommands
	cmd.AddCommand(NewWaitCommand())
	cmd.AddCommand(NewWatchCommand())
	cmd.AddCommand(NewStatusCommand())
	cmd.AddCommand(NewVersionCommand())

	return cmd
}
