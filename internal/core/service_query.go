package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Page size bounds of SearchAdhesions.
const (
	DefaultPageSize = 30
	MaxPageSize     = 500
)

// Row is one table row keyed by column name, as returned to API clients.
type Row map[string]any

// AdhesionFilter selects adhesions. Every non-empty text field is a
// case-insensitive substring match; they combine with AND.
type AdhesionFilter struct {
	NomeCliente  string
	Matricula    string
	Comunidade   string
	Endereco     string
	StatusAdesao string
	Limit        int
	Offset       int
}

// AdhesionPage is one page of SearchAdhesions.
type AdhesionPage struct {
	Rows       []Row `json:"rows"`
	HasMore    bool  `json:"hasMore"`
	TotalCount int64 `json:"totalCount"`
}

func (f *AdhesionFilter) normalize() {
	if f.Limit <= 0 {
		f.Limit = DefaultPageSize
	}
	if f.Limit > MaxPageSize {
		f.Limit = MaxPageSize
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

// adhesionSearchSQL builds the page and count queries of f. The count
// query takes the filter arguments only; the page query appends limit
// and offset.
func adhesionSearchSQL(f AdhesionFilter) (pageSQL, countSQL string, args []any) {
	wb := NewWhereBuilder()
	wb.AddContains("nome_cliente", f.NomeCliente)
	wb.AddContains("matricula", f.Matricula)
	wb.AddContains("comunidade", f.Comunidade)
	wb.AddContains("endereco", f.Endereco)
	wb.AddContains("status_adesao", f.StatusAdesao)
	where, args := wb.Build()

	n := wb.NextArgIndex()
	countSQL = "SELECT COUNT(*) FROM adesoes" + where
	pageSQL = fmt.Sprintf("SELECT * FROM adesoes%s ORDER BY matricula DESC LIMIT $%d OFFSET $%d", where, n, n+1)
	return pageSQL, countSQL, args
}

// SearchAdhesions returns one page of adhesions ordered by matrícula,
// newest first.
func (s *Service) SearchAdhesions(ctx context.Context, f AdhesionFilter) (*AdhesionPage, error) {
	f.normalize()
	pageSQL, countSQL, args := adhesionSearchSQL(f)

	var total int64
	if err := s.db.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count adhesions: %w", err)
	}

	pageArgs := append(append([]any{}, args...), f.Limit, f.Offset)
	rows, err := s.queryRows(ctx, pageSQL, pageArgs...)
	if err != nil {
		return nil, fmt.Errorf("search adhesions: %w", err)
	}

	return &AdhesionPage{
		Rows:       rows,
		HasMore:    int64(f.Offset+len(rows)) < total,
		TotalCount: total,
	}, nil
}

// GetPhotos returns the fotos column of a new connection. A row with no
// photos yields nil; a missing row yields ErrNotFound.
func (s *Service) GetPhotos(ctx context.Context, matricula string) (*string, error) {
	var fotos pgtype.Text
	err := s.db.QueryRow(ctx, "SELECT fotos FROM nova_ligacao WHERE matricula = $1", matricula).Scan(&fotos)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get photos %s: %w", matricula, err)
	}
	if !fotos.Valid {
		return nil, nil
	}
	return &fotos.String, nil
}

// queryRows runs sql and collects every row as a Row. The result is never
// nil so it encodes as an empty JSON array.
func (s *Service) queryRows(ctx context.Context, sql string, args ...any) ([]Row, error) {
	return collectRows(ctx, s.db, sql, args...)
}

func collectRows(ctx context.Context, q DBTX, sql string, args ...any) ([]Row, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, err
	}
	out := make([]Row, len(maps))
	for i, m := range maps {
		out[i] = Row(m)
	}
	return out, nil
}
