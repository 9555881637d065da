package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/guaruja-saneamento/adesoes/internal/core"
)

var (
	importType    string
	importPreview bool
)

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import a CSV file into adesoes or nova_ligacao",
	Long: `Imports FILE with the same rules as the upload endpoint.

Types:
  adesoes              upsert into adesoes by matrícula
  nova_ligacao         upsert into nova_ligacao by matrícula
  nova_ligacao_legacy  insert new connections, generating matrículas
  (or legacy)          from the COMUNIDADE column

With --preview the file is parsed and checked but nothing is written.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVarP(&importType, "type", "t", string(core.ImportAdesoes), "import type")
	importCmd.Flags().BoolVar(&importPreview, "preview", false, "check the file without writing")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	typ := core.ImportType(importType)
	if importType == "legacy" {
		typ = core.ImportLegacy
	}
	req := core.ImportRequest{
		Type:     typ,
		FileName: filepath.Base(args[0]),
		Data:     data,
	}
	out := cmd.OutOrStdout()

	if importPreview {
		p, err := a.Service.PreviewImport(ctx, req)
		if err != nil {
			return err
		}
		renderPreview(out, p)
		return nil
	}

	rep, err := a.Service.Import(ctx, req)
	var impErr *core.ImportError
	if errors.As(err, &impErr) {
		renderReport(out, impErr.Report)
		return fmt.Errorf("import rolled back: %s", impErr.Reason())
	}
	if err != nil {
		return err
	}
	renderReport(out, rep)
	return nil
}

// renderReport prints the counters of rep and its row errors.
func renderReport(w io.Writer, rep *core.ImportReport) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Import", "Tipo", "Política", "Resultado", "Linhas", "Processadas", "Ignoradas", "Erros"})
	table.Append([]string{
		rep.ID,
		string(rep.Type),
		string(rep.Policy),
		string(rep.Outcome),
		strconv.Itoa(rep.TotalRows),
		strconv.Itoa(rep.Processed),
		strconv.Itoa(rep.Skipped),
		strconv.Itoa(len(rep.Errors)),
	})
	table.Render()

	switch {
	case !rep.Committed():
		color.New(color.FgRed).Fprintln(w, "Nenhum registro foi gravado.")
	case rep.Partial():
		color.New(color.FgYellow).Fprintf(w, "%d registros gravados com %d erros:\n", rep.Processed, len(rep.Errors))
	default:
		color.New(color.FgGreen).Fprintf(w, "%d registros gravados em %s.\n", rep.Processed, rep.Duration.Round(time.Millisecond))
	}
	for _, e := range rep.Errors {
		fmt.Fprintln(w, "  -", e)
	}
}

// renderPreview prints the summary of p and a sample of its problems.
func renderPreview(w io.Writer, p *core.ImportPreview) {
	s := p.Summary
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Linhas", "Novas", "Atualizações", "Ignoradas", "Erros", "Duplicadas"})
	table.Append([]string{
		strconv.Itoa(s.TotalRows),
		strconv.Itoa(s.NewRows),
		strconv.Itoa(s.UpdateRows),
		strconv.Itoa(s.SkippedRows),
		strconv.Itoa(s.ErrorRows),
		strconv.Itoa(s.DuplicateInFile),
	})
	table.Render()

	if len(p.IgnoredHeaders) > 0 {
		color.New(color.FgYellow).Fprintf(w, "Colunas ignoradas: %v\n", p.IgnoredHeaders)
	}

	if len(p.Allocations) > 0 {
		prefixes := make([]string, 0, len(p.Allocations))
		for k := range p.Allocations {
			prefixes = append(prefixes, k)
		}
		sort.Strings(prefixes)

		alloc := tablewriter.NewWriter(w)
		alloc.SetHeader([]string{"Prefixo", "Novas matrículas"})
		for _, k := range prefixes {
			alloc.Append([]string{k, strconv.Itoa(p.Allocations[k])})
		}
		alloc.Render()
	}

	for _, e := range p.ErrorSamples {
		color.New(color.FgRed).Fprintf(w, "linha %d: %s\n", e.LineNumber, e.Error)
	}
	for _, c := range p.CellWarnings {
		color.New(color.FgYellow).Fprintf(w, "linha %d: valor %q inválido em %s\n", c.LineNumber, c.Value, c.Column)
	}
	for _, d := range p.DuplicateSamples {
		fmt.Fprintf(w, "matrícula %s repetida nas linhas %v\n", d.Matricula, d.LineNumbers)
	}
}
