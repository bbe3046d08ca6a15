package commands

import (
	"github.com/spf13/cobra"
)

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "p2pchat",
		Short:         "End-to-end encrypted peer-to-peer chat node",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(runCmd(), keygenCmd(), versionCmd())
	return root
}
