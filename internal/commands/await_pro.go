package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ManuelReschke/FoxPass/internal/pkg/entitlements"
	"github.com/ManuelReschke/FoxPass/internal/pkg/poller"
)

func newAwaitProCmd() *cobra.Command {
	var (
		server    serverOptions
		sessionID string
		interval  time.Duration
		attempts  int
	)
	cmd := &cobra.Command{
		Use:   "await-pro",
		Short: "Wait for Pro to become active after a checkout",
		Long: `Asks the server to verify the checkout once, then re-reads the entitlement
until Pro is active or the attempts are used up. Exits non-zero when Pro did
not activate in time.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := server.validate(); err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			p := poller.New(poller.NewHTTPSource(server.url, server.token), sessionID)
			p.Interval = interval
			p.MaxAttempts = attempts
			p.OnRefresh = func(attempt int, snap *entitlements.Snapshot) {
				fmt.Fprintf(out, "attempt %d/%d: active=%t version=%d\n", attempt, attempts, snap.Active, snap.Version)
			}

			res, err := p.Run(cmd.Context())
			if err != nil {
				return err
			}
			if res.Status != poller.StatusActive {
				fmt.Fprintln(out, res.Message)
				return fmt.Errorf("pro not active after %d attempts", res.Attempts)
			}
			fmt.Fprintf(out, "Pro is active")
			if res.Snapshot != nil && res.Snapshot.SubscriptionExpiresAt != nil {
				fmt.Fprintf(out, " until %s", res.Snapshot.SubscriptionExpiresAt.UTC().Format(time.RFC3339))
			}
			fmt.Fprintln(out)
			return nil
		},
	}
	server.register(cmd)
	cmd.Flags().StringVar(&sessionID, "session-id", "", "checkout session id from the success redirect")
	cmd.Flags().DurationVar(&interval, "interval", poller.DefaultInterval, "delay between entitlement reads")
	cmd.Flags().IntVar(&attempts, "attempts", poller.DefaultMaxAttempts, "maximum number of entitlement reads")
	return cmd
}
