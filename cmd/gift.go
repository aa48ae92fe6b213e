package cmd

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"transbooks/internal/models"
)

var giftDetails string

// giftCmd credits stars to a user without a purchase. Admin-only surface.
var giftCmd = &cobra.Command{
	Use:   "gift <requester-id> <amount>",
	Short: "Credit stars to a user's balance",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}

		requesterID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("requester-id must be an integer: %w", err)
		}
		amount, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("amount must be an integer: %w", err)
		}

		if _, err := appInstance.Ledger.GetOrCreate(cmd.Context(), requesterID, ""); err != nil {
			return fmt.Errorf("error loading user %d: %w", requesterID, err)
		}
		balance, err := appInstance.Ledger.Credit(cmd.Context(), requesterID, amount, models.TxTypeGift, giftDetails)
		if err != nil {
			return fmt.Errorf("error crediting user %d: %w", requesterID, err)
		}

		fmt.Printf("%s gifted %d stars to user %d (balance: %d)\n",
			color.GreenString("OK"), amount, requesterID, balance)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(giftCmd)

	giftCmd.Flags().StringVar(&giftDetails, "details", "admin gift", "Note recorded on the ledger transaction")
}
