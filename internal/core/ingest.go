package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// rowSavepoint isolates one row under the BestEffort policy.
const rowSavepoint = "import_row"

// BuildUpsert returns the idempotent insert for schema's importable
// columns: a conflict on the key overwrites every other imported column
// with the incoming value, NULL included.
func BuildUpsert(schema *TableSchema) string {
	cols := schema.ImportColumnNames()
	quoted := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	var updates []string

	for i, c := range cols {
		q := pgx.Identifier{c}.Sanitize()
		quoted[i] = q
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		if c != schema.Key {
			updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", q, q))
		}
	}

	table := pgx.Identifier{schema.Table}.Sanitize()
	key := pgx.Identifier{schema.Key}.Sanitize()
	if len(updates) == 0 {
		return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO NOTHING",
			table, strings.Join(quoted, ", "), strings.Join(placeholders, ", "), key)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		table, strings.Join(quoted, ", "), strings.Join(placeholders, ", "), key, strings.Join(updates, ", "))
}

// ingestResult counts what ingestRows did inside the transaction.
type ingestResult struct {
	Processed int
	Errors    []*RowError
}

// ingestRows upserts records through q, which must be a transaction.
//
// Under AllOrNothing the first failing row is returned as a *RowError and
// the caller rolls back. Under BestEffort each row runs inside a savepoint;
// a failing row is rolled back to it and recorded, and the loop continues.
func ingestRows(ctx context.Context, q DBTX, schema *TableSchema, records []Record, policy TxPolicy) (*ingestResult, error) {
	stmt := BuildUpsert(schema)
	res := &ingestResult{}

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		err := execRow(ctx, q, policy, func() error {
			_, err := q.Exec(ctx, stmt, rec.Values...)
			return err
		})
		if err == nil {
			res.Processed++
			continue
		}
		if isSavepointError(err) {
			return res, err
		}

		rowErr := &RowError{
			Line:      rec.Line,
			Matricula: rec.Matricula,
			Message:   fmt.Sprintf("Erro na linha com matrícula %s: %s", rec.Matricula, rowReason(err)),
			Err:       err,
		}
		if policy != BestEffort {
			return res, rowErr
		}
		res.Errors = append(res.Errors, rowErr)
	}
	return res, nil
}

// savepointError is a failure of the savepoint bookkeeping itself. The
// transaction can no longer be trusted, so the import is aborted instead
// of recording a row error.
type savepointError struct {
	op  string
	err error
}

func (e *savepointError) Error() string { return e.op + ": " + e.err.Error() }

func (e *savepointError) Unwrap() error { return e.err }

func isSavepointError(err error) bool {
	var sp *savepointError
	return errors.As(err, &sp)
}

// execRow runs fn, wrapped in a savepoint when policy is BestEffort. The
// error of fn is returned after the savepoint has been rolled back.
func execRow(ctx context.Context, q DBTX, policy TxPolicy, fn func() error) error {
	if policy != BestEffort {
		return fn()
	}

	if _, err := q.Exec(ctx, "SAVEPOINT "+rowSavepoint); err != nil {
		return &savepointError{op: "savepoint", err: err}
	}
	if err := fn(); err != nil {
		if _, rbErr := q.Exec(ctx, "ROLLBACK TO SAVEPOINT "+rowSavepoint); rbErr != nil {
			return &savepointError{op: "rollback to savepoint", err: rbErr}
		}
		return err
	}
	if _, err := q.Exec(ctx, "RELEASE SAVEPOINT "+rowSavepoint); err != nil {
		return &savepointError{op: "release savepoint", err: err}
	}
	return nil
}
