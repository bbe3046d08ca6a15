package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func keygenCmd() *cobra.Command {
	var (
		out   string
		force bool
	)
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a persistent node identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				return fmt.Errorf("--out is required")
			}
			priv, err := writeIdentity(out, force)
			if err != nil {
				return err
			}
			pub, err := publicKeyFor(priv)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Identity written to %s\nPublic key: %s\n", out, pub)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "file to write the identity seed to")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}
