package cli

import (
	"github.com/spf13/cobra"

	"github.com/wemix/blockwait/internal/version"
)

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display the version information for blockwait.`,
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("blockwait version: %s\n", version.Version)
			cmd.Printf("git commit: %s\n", version.GitCommit)
			if version.BuildTime != "" {
				cmd.Printf("built at: %s\n", version.BuildTime)
			}
		},
	}
}
