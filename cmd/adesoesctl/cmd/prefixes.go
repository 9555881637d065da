package cmd

import (
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/guaruja-saneamento/adesoes/internal/app"
	"github.com/guaruja-saneamento/adesoes/internal/config"
	"github.com/guaruja-saneamento/adesoes/internal/core"
)

var prefixFile string

var prefixesCmd = &cobra.Command{
	Use:   "prefixes",
	Short: "Print the effective community to matrícula prefix table",
	Long: `Prints the table used to generate matrículas for the legacy new-connection
import. The table comes from --file, then COMMUNITY_PREFIX_FILE, then the
built-in defaults. No database connection is needed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pc := config.PrefixConfig{File: prefixFile}
		if pc.File == "" {
			pc.File = envOr("COMMUNITY_PREFIX_FILE", "")
		}
		table, err := app.Prefixes(pc)
		if err != nil {
			return err
		}
		renderPrefixes(cmd.OutOrStdout(), table.Entries())
		return nil
	},
}

func init() {
	prefixesCmd.Flags().StringVar(&prefixFile, "file", "", "YAML prefix file")
	rootCmd.AddCommand(prefixesCmd)
}

func renderPrefixes(w io.Writer, entries []core.PrefixEntry) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Comunidade", "Prefixo"})
	for _, e := range entries {
		table.Append([]string{e.Community, e.Prefix})
	}
	table.Render()
}
