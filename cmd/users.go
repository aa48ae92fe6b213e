package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// usersCmd lists ledger accounts.
var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List ledger accounts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}

		users, err := appInstance.Ledger.Users(cmd.Context())
		if err != nil {
			return fmt.Errorf("error listing users: %w", err)
		}

		if len(users) == 0 {
			fmt.Println("No users found.")
			return nil
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Requester ID", "Username", "Balance", "Format"})
		table.SetBorder(false)
		table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
		table.SetAlignment(tablewriter.ALIGN_LEFT)

		for _, u := range users {
			table.Append([]string{
				strconv.FormatInt(u.RequesterID, 10),
				u.Username,
				strconv.FormatInt(u.Balance, 10),
				u.Format,
			})
		}
		table.Render()
		return nil
	},
}

// statsCmd prints aggregate ledger activity.
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate ledger activity",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}

		st, err := appInstance.Ledger.Stats(cmd.Context())
		if err != nil {
			return fmt.Errorf("error loading ledger stats: %w", err)
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Metric", "Value"})
		table.SetBorder(false)
		table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
		table.SetAlignment(tablewriter.ALIGN_LEFT)

		rows := [][]string{
			{"Users", strconv.FormatInt(st.Users, 10)},
			{"Translations", strconv.FormatInt(st.Translations, 10)},
			{"Stars bought", strconv.FormatInt(st.StarsBought, 10)},
			{"Stars spent", strconv.FormatInt(st.StarsSpent, 10)},
			{"Stars gifted", strconv.FormatInt(st.StarsGifted, 10)},
		}
		for _, r := range rows {
			table.Append(r)
		}
		table.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(statsCmd)
}
