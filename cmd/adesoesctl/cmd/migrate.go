package cmd

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/guaruja-saneamento/adesoes/internal/core"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the service tables if they do not exist",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := core.Migrate(ctx, a.Pool); err != nil {
			return err
		}
		color.New(color.FgGreen).Fprintln(cmd.OutOrStdout(), "Schema up to date.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
