// Package core provides the business logic of the adhesion service: CSV
// import into adesoes and nova_ligacao, matrícula generation, adhesion and
// conferência queries, and user storage. It has no HTTP dependencies.
package core

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the interface for database operations.
// Satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// Transactor runs fn inside a single database transaction. The transaction
// commits when fn returns nil and rolls back otherwise.
type Transactor interface {
	InTx(ctx context.Context, fn func(q DBTX) error) error
}

// FieldType is the semantic type of a destination column. It selects the
// normalizer applied to raw CSV text.
type FieldType int

const (
	FieldText FieldType = iota
	FieldDate
	FieldInteger
	FieldFloat
	FieldBool
)

// FieldSpec describes one column of a destination table.
type FieldSpec struct {
	Name   string    // Column identifier, snake_case, as produced by NormalizeHeader
	Type   FieldType // Normalizer selector
	Import bool      // Accepted from the generic CSV import
}

// TableSchema describes a destination table: its natural key and columns.
type TableSchema struct {
	Table  string
	Key    string
	Fields []FieldSpec
}

// ImportType selects the destination and pipeline of an upload.
type ImportType string

const (
	ImportAdesoes     ImportType = "adesoes"
	ImportNovaLigacao ImportType = "nova_ligacao"
	// ImportLegacy is the new-connection file whose matrículas are generated
	// from the COMUNIDADE column.
	ImportLegacy ImportType = "nova_ligacao_legacy"
)

// TxPolicy is the transaction granularity used for an import.
type TxPolicy string

const (
	// AllOrNothing rolls back the whole file on the first failing row.
	AllOrNothing TxPolicy = "all_or_nothing"
	// BestEffort isolates each row in a savepoint, records its failure and
	// commits every row that succeeded.
	BestEffort TxPolicy = "best_effort"
)

// ImportPhase is a state of the per-upload import state machine.
type ImportPhase string

const (
	PhaseReceived   ImportPhase = "received"
	PhaseParsed     ImportPhase = "parsed"
	PhaseValidated  ImportPhase = "validated"
	PhaseIngesting  ImportPhase = "ingesting"
	PhaseCommitted  ImportPhase = "committed"
	PhaseRolledBack ImportPhase = "rolled_back"
	PhaseReported   ImportPhase = "reported"
)

// RowError is a failure attributed to a single CSV row.
type RowError struct {
	Line      int    // 1-based file line, header is line 1
	Matricula string // Natural key of the row, may be empty for legacy rows
	Message   string // Caller-facing message, already formatted
	Err       error
}

func (e *RowError) Error() string { return e.Message }

func (e *RowError) Unwrap() error { return e.Err }

// ImportReport is the outcome of one upload. It is never persisted.
type ImportReport struct {
	ID        string        `json:"id"`
	Type      ImportType    `json:"importType"`
	Policy    TxPolicy      `json:"policy"`
	Phase     ImportPhase   `json:"phase"`
	Outcome   ImportPhase   `json:"outcome"` // PhaseCommitted or PhaseRolledBack
	FileName  string        `json:"fileName,omitempty"`
	TotalRows int           `json:"totalRows"`
	Processed int           `json:"processed"`
	Skipped   int           `json:"skipped"`
	Errors    []string      `json:"errors"`
	Duration  time.Duration `json:"duration"`
}

// Committed reports whether the import's transaction was committed.
func (r *ImportReport) Committed() bool {
	return r.Outcome == PhaseCommitted
}

// Partial reports a committed import that still has row errors.
func (r *ImportReport) Partial() bool {
	return r.Committed() && len(r.Errors) > 0
}
