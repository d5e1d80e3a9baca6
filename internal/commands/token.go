package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ManuelReschke/FoxPass/app/models"
	"github.com/ManuelReschke/FoxPass/app/repository"
	"github.com/ManuelReschke/FoxPass/internal/pkg/database"
	"github.com/ManuelReschke/FoxPass/internal/pkg/env"
	"github.com/ManuelReschke/FoxPass/internal/pkg/session"
)

func newTokenCmd() *cobra.Command {
	var (
		username string
		userID   uint
		ttl      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (username == "") == (userID == 0) {
				return errors.New("exactly one of --username or --user-id is required")
			}
			env.SetupEnvFile()
			tokens, err := session.NewManager(env.GetEnv("SESSION_JWT_SECRET", ""), env.GetEnv("SESSION_JWT_ISSUER", ""), ttl)
			if err != nil {
				return err
			}
			database.SetupDatabase()
			if database.GetDB() == nil {
				return errors.New("database is not available")
			}
			profiles := repository.NewFactory(database.GetDB()).GetProfileRepository()

			var profile *models.Profile
			if username != "" {
				profile, err = profiles.GetByUsername(username)
			} else {
				profile, err = profiles.GetByID(userID)
			}
			if err != nil {
				return fmt.Errorf("load user: %w", err)
			}
			if !profile.IsActive() {
				return fmt.Errorf("user %s is %s", profile.Username, profile.Status)
			}

			token, err := tokens.Issue(profile.ID, profile.Role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "username to issue the token for")
	cmd.Flags().UintVar(&userID, "user-id", 0, "user id to issue the token for")
	cmd.Flags().DurationVar(&ttl, "ttl", session.DefaultTokenTTL, "token lifetime")
	return cmd
}
