package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ManuelReschke/FoxPass/internal/pkg/billing"
)

func newPromoSyncCmd() *cobra.Command {
	var adminID uint
	cmd := &cobra.Command{
		Use:   "promo-sync",
		Short: "Create Stripe coupons and promotion codes for all active promo codes",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openService(true)
			if err != nil {
				return err
			}
			results, err := svc.SyncPromoCodes(cmd.Context(), adminID)
			if err != nil {
				return err
			}
			return printPromoSyncResults(cmd, results)
		},
	}
	cmd.Flags().UintVar(&adminID, "admin-id", 0, "admin user id recorded in the audit log")
	return cmd
}

func printPromoSyncResults(cmd *cobra.Command, results []billing.PromoSyncResult) error {
	if len(results) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no active promo codes")
		return nil
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CODE\tSTATUS\tCOUPON\tPROMOTION CODE\tERROR")
	failed := 0
	for _, r := range results {
		if r.Status == billing.PromoSyncFailed {
			failed++
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.Code, r.Status, r.CouponID, r.PromotionCodeID, r.Error)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d promo code(s) failed to sync", failed)
	}
	return nil
}
