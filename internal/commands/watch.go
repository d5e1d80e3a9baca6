package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ManuelReschke/FoxPass/internal/pkg/poller"
)

func newWatchCmd() *cobra.Command {
	var (
		server  serverOptions
		wait    time.Duration
		changes int
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print entitlement changes as they happen",
		Long:  `Long-polls the entitlement endpoint and prints one line per new version.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := server.validate(); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			source := poller.NewHTTPSource(server.url, server.token)
			ctx := cmd.Context()

			snap, err := source.Fetch(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "version %d: active=%t plan=%s points=%d\n", snap.Version, snap.Active, snap.Plan, snap.Points)

			seen := 0
			for changes <= 0 || seen < changes {
				next, err := source.WaitForChange(ctx, snap.Version, wait)
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					if errors.Is(err, poller.ErrUnauthorized) {
						return err
					}
					fmt.Fprintf(cmd.ErrOrStderr(), "watch: %v, retrying\n", err)
					select {
					case <-ctx.Done():
						return nil
					case <-time.After(poller.DefaultInterval):
					}
					continue
				}
				if next.Version == snap.Version {
					continue
				}
				snap = next
				seen++
				fmt.Fprintf(out, "version %d: active=%t plan=%s points=%d\n", snap.Version, snap.Active, snap.Plan, snap.Points)
			}
			return nil
		},
	}
	server.register(cmd)
	cmd.Flags().DurationVar(&wait, "wait", 25*time.Second, "long-poll wait per request (max 30s)")
	cmd.Flags().IntVar(&changes, "changes", 0, "exit after this many changes (0 runs until interrupted)")
	return cmd
}
