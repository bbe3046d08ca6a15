package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Alfaashh/P2PChat"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the wire protocol version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "p2pchat protocol %s\n", p2pchat.CurrentVersion())
			return err
		},
	}
}
