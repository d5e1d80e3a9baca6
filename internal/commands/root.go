package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ManuelReschke/FoxPass/internal/pkg/billing"
	"github.com/ManuelReschke/FoxPass/internal/pkg/cache"
	"github.com/ManuelReschke/FoxPass/internal/pkg/database"
	"github.com/ManuelReschke/FoxPass/internal/pkg/env"
)

// serverOptions are shared by the commands that talk to a running FoxPass API.
type serverOptions struct {
	url   string
	token string
}

func (o *serverOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.url, "url", os.Getenv("FOXPASS_URL"), "FoxPass base URL (env FOXPASS_URL)")
	cmd.Flags().StringVar(&o.token, "token", os.Getenv("FOXPASS_TOKEN"), "bearer token (env FOXPASS_TOKEN)")
}

func (o *serverOptions) validate() error {
	if o.url == "" {
		return errors.New("--url is required")
	}
	if o.token == "" {
		return errors.New("--token is required")
	}
	return nil
}

// NewRootCmd builds the foxpassctl command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "foxpassctl",
		Short: "FoxPass operator tool",
		Long: `foxpassctl talks to a FoxPass deployment. await-pro and watch use the HTTP API,
sweep, promo-sync and token work against the database configured in .env.`,
		Version:       "1.0.0",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newAwaitProCmd(),
		newWatchCmd(),
		newSweepCmd(),
		newPromoSyncCmd(),
		newTokenCmd(),
	)
	return root
}

// Execute runs foxpassctl until it finishes or the process is interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

// openService connects to the database and cache the way the server does.
// withGateway additionally requires a Stripe key.
func openService(withGateway bool) (*billing.Service, error) {
	env.SetupEnvFile()
	database.SetupDatabase()
	db := database.GetDB()
	if db == nil {
		return nil, errors.New("database is not available")
	}

	cfg := billing.ConfigFromEnv()
	var gateway billing.Gateway
	if withGateway {
		gw, err := billing.NewStripeGateway(cfg.SecretKey)
		if err != nil {
			return nil, fmt.Errorf("stripe: %w", err)
		}
		gateway = gw
	}
	snapshots := cache.NewEntitlementCache(cache.GetClient())
	return billing.NewServiceFromDB(db, gateway, cfg, billing.WithNotifier(snapshots)), nil
}
