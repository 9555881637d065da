package core

import (
	"context"

	"github.com/guaruja-saneamento/adesoes/internal/logging"
)

// AuditEntries queries the audit log. With no audit log configured it
// returns an empty list.
func (s *Service) AuditEntries(ctx context.Context, opts AuditLogOptions) ([]AuditEntry, error) {
	if s.audit == nil {
		return []AuditEntry{}, nil
	}
	return s.audit.List(ctx, opts)
}

// recordAudit writes an audit entry after the audited change has been
// committed. A failed write is logged and does not fail the change.
func (s *Service) recordAudit(ctx context.Context, p AuditLogParams) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(ctx, p); err != nil {
		logging.FromContext(ctx).Warn("audit write failed",
			"action", p.Action, "table", p.TableKey, "row", p.RowKey, "error", err)
	}
}

func (s *Service) recordImport(ctx context.Context, rep *ImportReport, cause error) {
	p := AuditLogParams{
		Action:       ActionImport,
		TableKey:     string(rep.Type),
		RowsAffected: rep.Processed,
		ImportID:     rep.ID,
		Changes: map[string]any{
			"fileName":  rep.FileName,
			"policy":    rep.Policy,
			"totalRows": rep.TotalRows,
			"skipped":   rep.Skipped,
			"errors":    len(rep.Errors),
		},
	}
	if cause != nil {
		p.Action = ActionImportRollback
		p.RowsAffected = 0
		p.Reason = cause.Error()
	}
	s.recordAudit(ctx, p)
}

func (s *Service) recordRowChange(ctx context.Context, action AuditAction, table, key string, changes map[string]any) {
	s.recordAudit(ctx, AuditLogParams{
		Action:       action,
		TableKey:     table,
		RowKey:       key,
		Changes:      changes,
		RowsAffected: 1,
	})
}
