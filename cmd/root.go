package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"transbooks/internal/app"
	"transbooks/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "transbooks",
	Short: "Translate books EN->RU",
	Long: `Transbooks translates long documents from English to Russian by splitting
them into chunks, translating the chunks in parallel against OpenAI and
reassembling the result. Jobs are billed in stars, commit-on-success.`,
	Run: func(cmd *cobra.Command, args []string) {
		// If no subcommand is given, print help.
		cmd.Help()
	},
	// PersistentPreRunE runs before any subcommand's RunE
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "version" {
			return nil
		}

		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		appInstance, err := app.NewApp(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize app: %w", err)
		}

		// Store the app instance in the command's context
		ctx := context.WithValue(cmd.Context(), appKey, appInstance)
		cmd.SetContext(ctx)
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Define a custom type for the context key to avoid collisions.
type contextKey string

const appKey contextKey = "app"

// GetAppFromContext retrieves the app instance placed by PersistentPreRunE.
func GetAppFromContext(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, fmt.Errorf("application instance not found in context")
	}
	return appInstance, nil
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check ledger database connectivity",
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Println("Checking ledger database connectivity...")
		if err := appInstance.Ledger.Ping(cmd.Context()); err != nil {
			return fmt.Errorf("ledger ping failed: %w", err)
		}
		fmt.Println("Ledger database connection successful.")
		return nil
	},
}
