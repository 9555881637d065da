package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/gocarina/gocsv"
)

// LegacyRow is one row of the new-connection spreadsheet, whose matrícula
// is generated from COMUNIDADE. Headers match exactly.
type LegacyRow struct {
	Comunidade        string `csv:"COMUNIDADE" json:"COMUNIDADE"`
	Digito            string `csv:"DIGITO" json:"DIGITO"`
	CodAntigo         string `csv:"COD_ANTIGO" json:"COD_ANTIGO"`
	Rua               string `csv:"RUA" json:"RUA"`
	Numero            string `csv:"NUMERO" json:"NUMERO"`
	Complemento       string `csv:"COMPLEMENTO" json:"COMPLEMENTO"`
	NumeroComplemento string `csv:"NUMERO_COMPLEMENTO" json:"NUMERO_COMPLEMENTO"`
	EnderecoCompleto  string `csv:"ENDEREÇO COMPLETO" json:"ENDEREÇO COMPLETO"`
	Fotos             string `csv:"FOTOS" json:"FOTOS"`
}

// recordsReader replays already split CSV records to gocsv, so the legacy
// path shares separator detection and decoding with the generic path.
type recordsReader struct {
	records [][]string
	pos     int
}

func (r *recordsReader) Read() ([]string, error) {
	if r.pos >= len(r.records) {
		return nil, io.EOF
	}
	rec := r.records[r.pos]
	r.pos++
	return rec, nil
}

func (r *recordsReader) ReadAll() ([][]string, error) {
	rest := r.records[r.pos:]
	r.pos = len(r.records)
	return rest, nil
}

// decodeLegacyRows maps parsed records onto LegacyRow values. Unknown
// headers are ignored and missing ones leave the field empty.
func decodeLegacyRows(p *parsedCSV) ([]LegacyRow, error) {
	records := make([][]string, 0, len(p.Rows)+1)
	records = append(records, p.Headers)
	width := len(p.Headers)
	for _, row := range p.Rows {
		// gocsv indexes by header position, so ragged rows are padded
		if len(row) < width {
			padded := make([]string, width)
			copy(padded, row)
			row = padded
		}
		records = append(records, row)
	}

	var rows []LegacyRow
	if err := gocsv.UnmarshalCSV(&recordsReader{records: records}, &rows); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	for i := range rows {
		rows[i].clean()
	}
	return rows, nil
}

func (r *LegacyRow) clean() {
	for _, f := range []*string{
		&r.Comunidade, &r.Digito, &r.CodAntigo, &r.Rua, &r.Numero,
		&r.Complemento, &r.NumeroComplemento, &r.EnderecoCompleto, &r.Fotos,
	} {
		*f = CleanCell(*f)
	}
}

const legacyInsert = `INSERT INTO nova_ligacao (
	digito, matricula, cod_antigo, comunidade, rua, numero,
	complemento, numero_complemento, endereco_completo, fotos
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

// insertLegacyRow generates the row's matrícula and inserts it. DIGITO is
// stored as written and plays no part in the generated value.
func insertLegacyRow(ctx context.Context, q DBTX, gen *MatriculaGenerator, row LegacyRow) (string, error) {
	if row.Comunidade == "" {
		return "", ErrMissingCommunity
	}
	matricula, err := gen.Next(ctx, q, row.Comunidade)
	if err != nil {
		return "", err
	}

	_, err = q.Exec(ctx, legacyInsert,
		ToPgText(row.Digito), matricula, ToPgText(row.CodAntigo), ToPgText(row.Comunidade),
		ToPgText(row.Rua), ToPgText(row.Numero), ToPgText(row.Complemento),
		ToPgText(row.NumeroComplemento), ToPgText(row.EnderecoCompleto), ToPgText(row.Fotos),
	)
	if err != nil {
		return "", err
	}
	return matricula, nil
}

// ingestLegacyRows inserts rows under policy. Row failures are reported as
// "Linha com erro: <row as JSON> - <reason>".
func ingestLegacyRows(ctx context.Context, q DBTX, gen *MatriculaGenerator, rows []LegacyRow, lines []int, policy TxPolicy) (*ingestResult, error) {
	res := &ingestResult{}

	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		var matricula string
		err := execRow(ctx, q, policy, func() error {
			var err error
			matricula, err = insertLegacyRow(ctx, q, gen, row)
			return err
		})
		if err == nil {
			res.Processed++
			continue
		}
		if isSavepointError(err) {
			return res, err
		}

		line := 0
		if i < len(lines) {
			line = lines[i]
		}
		raw, _ := json.Marshal(row)
		rowErr := &RowError{
			Line:      line,
			Matricula: matricula,
			Message:   fmt.Sprintf("Linha com erro: %s - %s", raw, rowReason(err)),
			Err:       err,
		}
		if policy != BestEffort {
			return res, rowErr
		}
		res.Errors = append(res.Errors, rowErr)
	}
	return res, nil
}
