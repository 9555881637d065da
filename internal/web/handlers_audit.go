package web

import (
	"net/http"

	"github.com/guaruja-saneamento/adesoes/internal/core"
)

// handleAuditLog lists audit entries, newest first. Filters: action,
// table, row, since, until, limit, offset.
func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	since, err := parseTimeParam(r, "since")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	until, err := parseTimeParam(r, "until")
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	entries, err := s.service.AuditEntries(r.Context(), core.AuditLogOptions{
		Action:   core.AuditAction(q.Get("action")),
		TableKey: q.Get("table"),
		RowKey:   q.Get("row"),
		Since:    since,
		Until:    until,
		Limit:    parseIntParam(r, "limit", core.DefaultAuditLimit),
		Offset:   parseIntParam(r, "offset", 0),
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
