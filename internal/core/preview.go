package core

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
)

// PreviewSummary contains the summary counts for an import preview.
type PreviewSummary struct {
	TotalRows       int `json:"totalRows"`
	NewRows         int `json:"newRows"`
	UpdateRows      int `json:"updateRows"`
	SkippedRows     int `json:"skippedRows"`
	ErrorRows       int `json:"errorRows"`
	DuplicateInFile int `json:"duplicateInFile"`
}

// CellWarning is a non-empty cell that the column's normalizer could not
// read. The import stores it as NULL.
type CellWarning struct {
	LineNumber int    `json:"lineNumber"`
	Matricula  string `json:"matricula"`
	Column     string `json:"column"`
	Value      string `json:"value"`
}

// ErrorPreview is a row the import is expected to reject.
type ErrorPreview struct {
	LineNumber int    `json:"lineNumber"`
	Comunidade string `json:"comunidade,omitempty"`
	Error      string `json:"error"`
}

// DuplicatePreview is a matrícula that appears on several lines. The last
// occurrence wins.
type DuplicatePreview struct {
	Matricula   string `json:"matricula"`
	LineNumbers []int  `json:"lineNumbers"`
}

// ImportPreview describes what Import would do with a file without
// writing anything.
type ImportPreview struct {
	Type             ImportType         `json:"importType"`
	Policy           TxPolicy           `json:"policy"`
	MappedColumns    []string           `json:"mappedColumns"`
	IgnoredHeaders   []string           `json:"ignoredHeaders"`
	Summary          PreviewSummary     `json:"summary"`
	Allocations      map[string]int     `json:"allocations,omitempty"`
	CellWarnings     []CellWarning      `json:"cellWarnings"`
	ErrorSamples     []ErrorPreview     `json:"errorSamples"`
	DuplicateSamples []DuplicatePreview `json:"duplicateSamples"`
	ProcessingTimeMs int64              `json:"processingTimeMs"`
}

// Sample limits
const (
	maxCellWarnings     = 20
	maxErrorSamples     = 20
	maxDuplicateSamples = 10
	keyBatchSize        = 1000
)

// PreviewImport runs the parse and validation phases of Import and
// reports the outcome without opening a transaction. It rejects files with
// the same errors Import would.
//
// Generic imports are classified as new or update by looking the keys up
// in the destination table. Legacy imports report how many matrículas each
// prefix would receive and which rows name an unknown community.
func (s *Service) PreviewImport(ctx context.Context, req ImportRequest) (*ImportPreview, error) {
	start := time.Now()

	schema, err := s.registry.ForImport(req.Type)
	if err != nil {
		return nil, err
	}
	if len(req.Data) == 0 {
		return nil, ErrNoFile
	}

	parsed, err := parseCSV(req.Data)
	if err != nil {
		return nil, err
	}
	if len(parsed.Rows) == 0 {
		return nil, ErrEmptyFile
	}

	p := &ImportPreview{
		Type:             req.Type,
		Policy:           s.Policy(req.Type),
		MappedColumns:    []string{},
		IgnoredHeaders:   []string{},
		CellWarnings:     []CellWarning{},
		ErrorSamples:     []ErrorPreview{},
		DuplicateSamples: []DuplicatePreview{},
		Summary:          PreviewSummary{TotalRows: len(parsed.Rows)},
	}

	if req.Type == ImportLegacy {
		err = s.previewLegacy(p, parsed)
	} else {
		err = s.previewGeneric(ctx, p, schema, parsed)
	}
	if err != nil {
		return nil, err
	}

	p.ProcessingTimeMs = time.Since(start).Milliseconds()
	return p, nil
}

func (s *Service) previewGeneric(ctx context.Context, p *ImportPreview, schema *TableSchema, parsed *parsedCSV) error {
	idx := MapHeaders(parsed.Headers, schema)
	if err := ValidateHeaders(idx, schema); err != nil {
		return err
	}

	for _, f := range schema.ImportFields() {
		if _, ok := idx[f.Name]; ok {
			p.MappedColumns = append(p.MappedColumns, f.Name)
		}
	}
	for _, h := range parsed.Headers {
		if _, ok := schema.Field(NormalizeHeader(h)); !ok && h != "" {
			p.IgnoredHeaders = append(p.IgnoredHeaders, h)
		}
	}

	fields := schema.ImportFields()
	seen := make(map[string][]int)
	var keys []string

	for i, row := range parsed.Rows {
		rec, err := BuildRecord(schema, idx, row, parsed.Lines[i])
		if IsMissingKey(err) {
			p.Summary.SkippedRows++
			continue
		}
		if _, dup := seen[rec.Matricula]; !dup {
			keys = append(keys, rec.Matricula)
		}
		seen[rec.Matricula] = append(seen[rec.Matricula], rec.Line)

		for j, f := range fields {
			if f.Type == FieldText || readable(f.Type, rec.Values[j]) || len(p.CellWarnings) >= maxCellWarnings {
				continue
			}
			pos, ok := idx[f.Name]
			if !ok || pos >= len(row) {
				continue
			}
			if raw := CleanCell(row[pos]); raw != "" {
				p.CellWarnings = append(p.CellWarnings, CellWarning{
					LineNumber: rec.Line,
					Matricula:  rec.Matricula,
					Column:     f.Name,
					Value:      raw,
				})
			}
		}
	}

	for _, k := range keys {
		if lines := seen[k]; len(lines) > 1 {
			p.Summary.DuplicateInFile += len(lines) - 1
			if len(p.DuplicateSamples) < maxDuplicateSamples {
				p.DuplicateSamples = append(p.DuplicateSamples, DuplicatePreview{Matricula: k, LineNumbers: lines})
			}
		}
	}

	existing, err := s.existingKeys(ctx, schema, keys)
	if err != nil {
		return fmt.Errorf("preview lookup: %w", err)
	}
	for _, k := range keys {
		if existing[k] {
			p.Summary.UpdateRows++
		} else {
			p.Summary.NewRows++
		}
	}
	return nil
}

func (s *Service) previewLegacy(p *ImportPreview, parsed *parsedCSV) error {
	rows, err := decodeLegacyRows(parsed)
	if err != nil {
		return err
	}

	known := make(map[string]bool)
	for _, h := range legacyHeaders() {
		known[h] = true
	}
	for _, h := range parsed.Headers {
		if known[h] {
			p.MappedColumns = append(p.MappedColumns, h)
		} else if h != "" {
			p.IgnoredHeaders = append(p.IgnoredHeaders, h)
		}
	}

	p.Allocations = make(map[string]int)
	for i, row := range rows {
		var rowErr error
		prefix, ok := s.prefixes.Lookup(row.Comunidade)
		switch {
		case row.Comunidade == "":
			rowErr = ErrMissingCommunity
		case !ok:
			rowErr = &UnknownCommunityError{Community: row.Comunidade}
		}
		if rowErr == nil {
			p.Allocations[prefix]++
			p.Summary.NewRows++
			continue
		}

		p.Summary.ErrorRows++
		if len(p.ErrorSamples) < maxErrorSamples {
			p.ErrorSamples = append(p.ErrorSamples, ErrorPreview{
				LineNumber: parsed.Lines[i],
				Comunidade: row.Comunidade,
				Error:      rowReason(rowErr),
			})
		}
	}
	return nil
}

// readable reports whether an imported value will be accepted by its
// column. Integer cells are still text at this point.
func readable(ft FieldType, v any) bool {
	if s, ok := v.(string); ok && ft == FieldInteger {
		_, err := strconv.ParseInt(s, 10, 64)
		return err == nil
	}
	return isValid(v)
}

// existingKeys reports which of keys are already present in the schema's
// table, querying in batches.
func (s *Service) existingKeys(ctx context.Context, schema *TableSchema, keys []string) (map[string]bool, error) {
	found := make(map[string]bool)
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ANY($1)",
		quoteIdentifier(schema.Key), quoteIdentifier(schema.Table), quoteIdentifier(schema.Key))

	for start := 0; start < len(keys); start += keyBatchSize {
		end := min(start+keyBatchSize, len(keys))
		rows, err := s.db.Query(ctx, sql, keys[start:end])
		if err != nil {
			return nil, err
		}
		batch, err := pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return nil, err
		}
		for _, k := range batch {
			found[k] = true
		}
	}
	return found, nil
}

// legacyHeaders lists the CSV headers LegacyRow reads, sorted.
func legacyHeaders() []string {
	h := []string{
		"COMUNIDADE", "DIGITO", "COD_ANTIGO", "RUA", "NUMERO",
		"COMPLEMENTO", "NUMERO_COMPLEMENTO", "ENDEREÇO COMPLETO", "FOTOS",
	}
	sort.Strings(h)
	return h
}
