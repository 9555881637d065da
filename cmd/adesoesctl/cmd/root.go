// Package cmd implements the adesoesctl commands.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/guaruja-saneamento/adesoes/internal/app"
	"github.com/guaruja-saneamento/adesoes/internal/config"
	"github.com/guaruja-saneamento/adesoes/internal/logging"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "adesoesctl",
	Short: "Administration tool for the adhesion service",
	Long: `adesoesctl runs imports, creates users and inspects the configuration
of the adhesion service against the database named by DATABASE_URL.

Examples:
  adesoesctl migrate
  adesoesctl import --type adesoes planilha.csv
  adesoesctl import --type legacy --preview novas_ligacoes.csv
  adesoesctl user create --login ana --name "Ana Souza" --role backoffice --password ...
  adesoesctl prefixes`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
		level := "warn"
		if verbose {
			level = "debug"
		}
		logging.SetupWriter(os.Stderr, level, "text")
	},
}

// Execute runs the root command until it finishes or the process is
// interrupted. Errors are printed in red.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, "Error:", err)
	}
	return err
}

func init() {
	rootCmd.SilenceErrors = true
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output to stderr")
}

// openApp loads the configuration and connects to the database.
func openApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return app.Open(ctx, cfg)
}
