package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// AuditAction represents the type of action being audited.
type AuditAction string

const (
	ActionImport         AuditAction = "import"
	ActionImportRollback AuditAction = "import_rollback"
	ActionAdhesionUpdate AuditAction = "adhesion_update"
	ActionAdhesionDelete AuditAction = "adhesion_delete"
	ActionConferenceSave AuditAction = "conference_save"
	ActionUserCreate     AuditAction = "user_create"
	ActionUserUpdate     AuditAction = "user_update"
	ActionUserDelete     AuditAction = "user_delete"
)

// AuditSeverity represents the severity level of an audit entry.
type AuditSeverity string

const (
	SeverityLow    AuditSeverity = "low"
	SeverityMedium AuditSeverity = "medium"
	SeverityHigh   AuditSeverity = "high"
)

// DefaultAuditLimit is the page size of audit queries.
const DefaultAuditLimit = 100

func auditSeverity(action AuditAction) AuditSeverity {
	switch action {
	case ActionImport, ActionImportRollback, ActionAdhesionDelete, ActionUserDelete:
		return SeverityHigh
	case ActionConferenceSave:
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// AuditEntry represents a single audit log entry.
type AuditEntry struct {
	ID           int64          `json:"id"`
	Action       AuditAction    `json:"action"`
	Severity     AuditSeverity  `json:"severity"`
	TableKey     string         `json:"tableKey"`
	UserID       int64          `json:"userId,omitempty"`
	UserLogin    string         `json:"userLogin,omitempty"`
	RowKey       string         `json:"rowKey,omitempty"`
	Changes      map[string]any `json:"changes,omitempty"`
	RowsAffected int            `json:"rowsAffected,omitempty"`
	ImportID     string         `json:"importId,omitempty"`
	Reason       string         `json:"reason,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// AuditLogParams contains parameters for creating an audit log entry. The
// acting user is taken from the context's Caller.
type AuditLogParams struct {
	Action       AuditAction
	TableKey     string
	RowKey       string
	Changes      map[string]any
	RowsAffected int
	ImportID     string
	Reason       string
}

// AuditLog stores and queries the audit_log table.
type AuditLog struct {
	db DBTX
}

// NewAuditLog returns an audit log writing through db.
func NewAuditLog(db DBTX) *AuditLog {
	return &AuditLog{db: db}
}

const auditInsert = `INSERT INTO audit_log (
	action, severity, table_key, user_id, user_login, row_key,
	changes, rows_affected, import_id, reason
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

// Log writes one entry.
func (a *AuditLog) Log(ctx context.Context, p AuditLogParams) error {
	var changes []byte
	if p.Changes != nil {
		var err error
		if changes, err = json.Marshal(p.Changes); err != nil {
			return fmt.Errorf("encode audit changes: %w", err)
		}
	}

	var userID pgtype.Int8
	var userLogin pgtype.Text
	if c, ok := CallerFromContext(ctx); ok {
		userID = pgtype.Int8{Int64: c.ID, Valid: true}
		userLogin = ToPgText(c.Login)
	}

	_, err := a.db.Exec(ctx, auditInsert,
		string(p.Action), string(auditSeverity(p.Action)), p.TableKey,
		userID, userLogin, ToPgText(p.RowKey), changes,
		pgtype.Int4{Int32: int32(p.RowsAffected), Valid: p.RowsAffected > 0},
		ToPgText(p.ImportID), ToPgText(p.Reason),
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// AuditLogOptions contains options for querying audit logs.
type AuditLogOptions struct {
	Action   AuditAction
	TableKey string
	RowKey   string
	Since    time.Time
	Until    time.Time
	Limit    int
	Offset   int
}

const auditColumns = `id, action, severity, table_key, COALESCE(user_id, 0), COALESCE(user_login, ''),
	COALESCE(row_key, ''), changes, COALESCE(rows_affected, 0), COALESCE(import_id, ''),
	COALESCE(reason, ''), created_at`

func auditQuerySQL(opts AuditLogOptions) (string, []any) {
	if opts.Limit <= 0 {
		opts.Limit = DefaultAuditLimit
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	wb := NewWhereBuilder()
	wb.Add("action", string(opts.Action))
	wb.Add("table_key", opts.TableKey)
	wb.Add("row_key", opts.RowKey)
	if !opts.Since.IsZero() {
		wb.add(fmt.Sprintf("created_at >= $%d", wb.NextArgIndex()), opts.Since)
	}
	if !opts.Until.IsZero() {
		wb.add(fmt.Sprintf("created_at < $%d", wb.NextArgIndex()), opts.Until)
	}
	where, args := wb.Build()

	n := wb.NextArgIndex()
	sql := fmt.Sprintf("SELECT %s FROM audit_log%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d",
		auditColumns, where, n, n+1)
	return sql, append(args, opts.Limit, opts.Offset)
}

// List returns entries matching opts, newest first.
func (a *AuditLog) List(ctx context.Context, opts AuditLogOptions) ([]AuditEntry, error) {
	sql, args := auditQuerySQL(opts)
	rows, err := a.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	entries, err := pgx.CollectRows(rows, scanAuditEntry)
	if err != nil {
		return nil, fmt.Errorf("scan audit log: %w", err)
	}
	return entries, nil
}

func scanAuditEntry(row pgx.CollectableRow) (AuditEntry, error) {
	var (
		e       AuditEntry
		changes []byte
		rows    int32
	)
	err := row.Scan(&e.ID, &e.Action, &e.Severity, &e.TableKey, &e.UserID, &e.UserLogin,
		&e.RowKey, &changes, &rows, &e.ImportID, &e.Reason, &e.CreatedAt)
	if err != nil {
		return e, err
	}
	e.RowsAffected = int(rows)
	if len(changes) > 0 {
		if err := json.Unmarshal(changes, &e.Changes); err != nil {
			return e, fmt.Errorf("decode audit changes %d: %w", e.ID, err)
		}
	}
	return e, nil
}

// Purge deletes entries older than the given number of days and returns
// how many were removed.
func (a *AuditLog) Purge(ctx context.Context, olderThanDays int) (int64, error) {
	tag, err := a.db.Exec(ctx,
		"DELETE FROM audit_log WHERE created_at < now() - make_interval(days => $1)", olderThanDays)
	if err != nil {
		return 0, fmt.Errorf("purge audit log: %w", err)
	}
	return tag.RowsAffected(), nil
}
