package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Revoke Pro for every record whose expiry has passed",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openService(false)
			if err != nil {
				return err
			}
			revoked, err := svc.SweepExpired(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "revoked %d expired entitlement(s)\n", revoked)
			return nil
		},
	}
}
