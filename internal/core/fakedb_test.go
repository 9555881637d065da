package core

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// fakeDB is an in-memory stand-in for the handful of statements the import
// pipeline issues: upserts and plain inserts keyed by matricula, savepoints,
// advisory locks and the last-matrícula lookup. Transactions snapshot the
// tables and restore them on rollback.
type fakeDB struct {
	mu     sync.Mutex
	tables map[string]map[string]map[string]any

	// failOn, when set, is consulted before every INSERT. A non-nil
	// result fails the statement.
	failOn func(table string, row map[string]any) error

	statements []string
	locks      []string
	commits    int
	rollbacks  int
}

func newFakeDB() *fakeDB {
	return &fakeDB{tables: map[string]map[string]map[string]any{
		"adesoes":      {},
		"nova_ligacao": {},
	}}
}

func (db *fakeDB) snapshot() map[string]map[string]map[string]any {
	out := make(map[string]map[string]map[string]any, len(db.tables))
	for t, rows := range db.tables {
		cp := make(map[string]map[string]any, len(rows))
		for k, row := range rows {
			r := make(map[string]any, len(row))
			for c, v := range row {
				r[c] = v
			}
			cp[k] = r
		}
		out[t] = cp
	}
	return out
}

// seed inserts a row outside any transaction.
func (db *fakeDB) seed(table string, row map[string]any) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.tables[table][textOf(row["matricula"])] = row
}

func (db *fakeDB) rows(table string) map[string]map[string]any {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.tables[table]
}

func (db *fakeDB) keys(table string) []string {
	rows := db.rows(table)
	out := make([]string, 0, len(rows))
	for k := range rows {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// InTx implements Transactor. Transactions are serialized.
func (db *fakeDB) InTx(ctx context.Context, fn func(q DBTX) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	before := db.snapshot()
	tx := &fakeTx{db: db}
	if err := fn(tx); err != nil {
		db.tables = before
		db.rollbacks++
		return err
	}
	db.commits++
	return nil
}

// fakeTx is the DBTX handed to transaction bodies. The owning fakeDB's
// mutex is held for its lifetime.
type fakeTx struct {
	db         *fakeDB
	savepoints []map[string]map[string]map[string]any
}

var (
	insertCols = regexp.MustCompile(`(?s)INSERT INTO\s+"?(\w+)"?\s*\((.*?)\)\s*VALUES`)
	likePrefix = regexp.MustCompile(`^SELECT matricula FROM nova_ligacao WHERE matricula LIKE`)
)

func (tx *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	db := tx.db
	db.statements = append(db.statements, sql)

	switch {
	case strings.HasPrefix(sql, "SAVEPOINT"):
		tx.savepoints = append(tx.savepoints, db.snapshot())
		return pgconn.NewCommandTag("SAVEPOINT"), nil
	case strings.HasPrefix(sql, "ROLLBACK TO SAVEPOINT"):
		n := len(tx.savepoints)
		if n == 0 {
			return pgconn.CommandTag{}, errors.New("no savepoint")
		}
		db.tables = tx.savepoints[n-1]
		tx.savepoints = tx.savepoints[:n-1]
		return pgconn.NewCommandTag("ROLLBACK"), nil
	case strings.HasPrefix(sql, "RELEASE SAVEPOINT"):
		if n := len(tx.savepoints); n > 0 {
			tx.savepoints = tx.savepoints[:n-1]
		}
		return pgconn.NewCommandTag("RELEASE"), nil
	case strings.Contains(sql, "pg_advisory_xact_lock"):
		db.locks = append(db.locks, textOf(args[0]))
		return pgconn.NewCommandTag("SELECT 1"), nil
	case strings.HasPrefix(sql, "INSERT INTO"):
		return tx.insert(sql, args)
	}
	return pgconn.CommandTag{}, fmt.Errorf("fakeTx: unsupported statement %q", sql)
}

func (tx *fakeTx) insert(sql string, args []any) (pgconn.CommandTag, error) {
	m := insertCols.FindStringSubmatch(sql)
	if m == nil {
		return pgconn.CommandTag{}, fmt.Errorf("fakeTx: cannot parse %q", sql)
	}
	table := m[1]
	var cols []string
	for _, c := range strings.Split(m[2], ",") {
		cols = append(cols, strings.Trim(strings.TrimSpace(c), `"`))
	}
	if len(cols) != len(args) {
		return pgconn.CommandTag{}, fmt.Errorf("fakeTx: %d columns, %d args", len(cols), len(args))
	}

	row := make(map[string]any, len(cols))
	for i, c := range cols {
		row[c] = args[i]
	}
	if tx.db.failOn != nil {
		if err := tx.db.failOn(table, row); err != nil {
			return pgconn.CommandTag{}, err
		}
	}

	key := textOf(row["matricula"])
	rows := tx.db.tables[table]
	if _, exists := rows[key]; exists && !strings.Contains(sql, "ON CONFLICT") {
		return pgconn.CommandTag{}, &pgconn.PgError{
			Code:    "23505",
			Message: fmt.Sprintf(`duplicate key value violates unique constraint "%s_pkey"`, table),
		}
	}
	rows[key] = row
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (tx *fakeTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, fmt.Errorf("fakeTx: Query not supported: %q", sql)
}

func (tx *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	tx.db.statements = append(tx.db.statements, sql)
	if !likePrefix.MatchString(sql) {
		return fakeRow{err: fmt.Errorf("fakeTx: unsupported query %q", sql)}
	}

	prefix := textOf(args[0])
	var best string
	for k := range tx.db.tables["nova_ligacao"] {
		if strings.HasPrefix(k, prefix) && (len(k) > len(best) || len(k) == len(best) && k > best) {
			best = k
		}
	}
	if best == "" {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{vals: []any{best}}
}

type fakeRow struct {
	vals []any
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.vals) {
		return fmt.Errorf("fakeRow: %d dest for %d values", len(dest), len(r.vals))
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = textOf(r.vals[i])
		case *pgtype.Text:
			if r.vals[i] == nil {
				*p = pgtype.Text{}
			} else {
				*p = pgtype.Text{String: textOf(r.vals[i]), Valid: true}
			}
		case *int64:
			*p = r.vals[i].(int64)
		case *int32:
			*p = r.vals[i].(int32)
		case *[]byte:
			if r.vals[i] != nil {
				*p = r.vals[i].([]byte)
			}
		case *time.Time:
			*p = r.vals[i].(time.Time)
		case *AuditAction:
			*p = AuditAction(textOf(r.vals[i]))
		case *AuditSeverity:
			*p = AuditSeverity(textOf(r.vals[i]))
		default:
			return fmt.Errorf("fakeRow: unsupported dest %T", d)
		}
	}
	return nil
}

// fakeReader serves single-row lookups outside a transaction.
type fakeReader struct {
	rows map[string]fakeRow
	err  error
}

func (f *fakeReader) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, f.err
}

func (f *fakeReader) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("fakeReader: Query not supported")
}

func (f *fakeReader) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if f.err != nil {
		return fakeRow{err: f.err}
	}
	if r, ok := f.rows[textOf(args[0])]; ok {
		return r
	}
	return fakeRow{err: pgx.ErrNoRows}
}

// textOf renders a stored value the way tests compare it.
func textOf(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case pgtype.Text:
		return t.String
	case pgtype.Date:
		if !t.Valid {
			return ""
		}
		return t.Time.Format("2006-01-02")
	case pgtype.Int8:
		if !t.Valid {
			return ""
		}
		return fmt.Sprint(t.Int64)
	case pgtype.Float8:
		if !t.Valid {
			return ""
		}
		return fmt.Sprint(t.Float64)
	case pgtype.Bool:
		if !t.Valid {
			return ""
		}
		return fmt.Sprint(t.Bool)
	default:
		return fmt.Sprint(t)
	}
}

// scriptDB records statements and answers queries from a script. It
// serves the read and audit paths, which run outside transactions.
type scriptDB struct {
	execs   []execCall
	execErr error
	tag     string

	// query returns the column names and rows of a Query call.
	query func(sql string, args []any) ([]string, [][]any, error)
}

type execCall struct {
	sql  string
	args []any
}

func (d *scriptDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	d.execs = append(d.execs, execCall{sql: sql, args: args})
	if d.execErr != nil {
		return pgconn.CommandTag{}, d.execErr
	}
	return pgconn.NewCommandTag(d.tag), nil
}

func (d *scriptDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if d.query == nil {
		return nil, fmt.Errorf("scriptDB: unexpected query %q", sql)
	}
	cols, vals, err := d.query(sql, args)
	if err != nil {
		return nil, err
	}
	return &fakeRows{cols: cols, vals: vals}, nil
}

func (d *scriptDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return fakeRow{err: fmt.Errorf("scriptDB: unexpected query row %q", sql)}
}

// fakeRows implements pgx.Rows over literal values.
type fakeRows struct {
	cols []string
	vals [][]any
	i    int
}

func (r *fakeRows) Close()                        {}
func (r *fakeRows) Err() error                    { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag { return pgconn.NewCommandTag("SELECT") }
func (r *fakeRows) RawValues() [][]byte           { return nil }
func (r *fakeRows) Conn() *pgx.Conn               { return nil }

func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription {
	fds := make([]pgconn.FieldDescription, len(r.cols))
	for i, c := range r.cols {
		fds[i] = pgconn.FieldDescription{Name: c}
	}
	return fds
}

func (r *fakeRows) Next() bool {
	if r.i >= len(r.vals) {
		return false
	}
	r.i++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	if len(dest) == 1 {
		if rs, ok := dest[0].(pgx.RowScanner); ok {
			return rs.ScanRow(r)
		}
	}
	return fakeRow{vals: r.vals[r.i-1]}.Scan(dest...)
}

func (r *fakeRows) Values() ([]any, error) {
	return r.vals[r.i-1], nil
}
