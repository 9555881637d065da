package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/guaruja-saneamento/adesoes/internal/logging"
)

// ImportRequest is one uploaded file.
type ImportRequest struct {
	Type     ImportType
	FileName string
	Data     []byte
}

// ImportError reports an import whose transaction was rolled back. Report
// holds the state reached and the error that caused the rollback.
type ImportError struct {
	Report *ImportReport
	Err    error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("import %s rolled back: %v", e.Report.ID, e.Err)
}

func (e *ImportError) Unwrap() error { return e.Err }

// Reason is the caller-facing cause of the rollback.
func (e *ImportError) Reason() string {
	var rowErr *RowError
	if errors.As(e.Err, &rowErr) {
		return rowReason(rowErr.Err)
	}
	return rowReason(e.Err)
}

// Import runs one upload through the import pipeline:
//
//	received -> parsed -> validated -> ingesting -> committed | rolled_back -> reported
//
// Files that fail before ingesting (unknown type, empty upload, unreadable
// CSV, no key column) are rejected with a sentinel error and no report.
// A rolled back import returns its report inside an *ImportError. A
// committed import returns its report, whose Errors list the rows that
// the BestEffort policy skipped.
func (s *Service) Import(ctx context.Context, req ImportRequest) (*ImportReport, error) {
	start := time.Now()

	schema, err := s.registry.ForImport(req.Type)
	if err != nil {
		return nil, err
	}
	if len(req.Data) == 0 {
		return nil, ErrNoFile
	}

	rep := &ImportReport{
		ID:       uuid.NewString(),
		Type:     req.Type,
		Policy:   s.Policy(req.Type),
		FileName: req.FileName,
		Errors:   []string{},
	}
	log := logging.WithFields(ctx, "import_id", rep.ID, "import_type", string(req.Type), "policy", string(rep.Policy))
	advance(log, rep, PhaseReceived, "file", req.FileName, "bytes", len(req.Data))

	if err := s.limiter.Acquire(ctx); err != nil {
		log.Warn("import slot unavailable", "error", err)
		return nil, err
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(ctx, s.importTimeout)
	defer cancel()

	parsed, err := parseCSV(req.Data)
	if err != nil {
		log.Warn("import rejected", "phase", PhaseParsed, "error", err)
		return nil, err
	}
	if len(parsed.Rows) == 0 {
		return nil, ErrEmptyFile
	}
	advance(log, rep, PhaseParsed, "rows", len(parsed.Rows))
	rep.TotalRows = len(parsed.Rows)

	var ingest func(q DBTX) (*ingestResult, error)
	if req.Type == ImportLegacy {
		rows, err := decodeLegacyRows(parsed)
		if err != nil {
			log.Warn("import rejected", "phase", PhaseValidated, "error", err)
			return nil, err
		}
		ingest = func(q DBTX) (*ingestResult, error) {
			return ingestLegacyRows(ctx, q, s.matriculas, rows, parsed.Lines, rep.Policy)
		}
	} else {
		idx := MapHeaders(parsed.Headers, schema)
		if err := ValidateHeaders(idx, schema); err != nil {
			log.Warn("import rejected", "phase", PhaseValidated, "error", err, "headers", parsed.Headers)
			return nil, err
		}
		records := buildRecords(schema, idx, parsed, rep)
		ingest = func(q DBTX) (*ingestResult, error) {
			return ingestRows(ctx, q, schema, records, rep.Policy)
		}
	}
	advance(log, rep, PhaseValidated, "skipped", rep.Skipped)

	advance(log, rep, PhaseIngesting)
	var res *ingestResult
	txErr := s.tx.InTx(ctx, func(q DBTX) error {
		var err error
		res, err = ingest(q)
		return err
	})

	if txErr != nil {
		rep.Outcome = PhaseRolledBack
		var rowErr *RowError
		if errors.As(txErr, &rowErr) {
			rep.Errors = append(rep.Errors, rowErr.Message)
		}
		advance(log, rep, PhaseRolledBack, "error", txErr)
		rep.Duration = time.Since(start)
		advance(log, rep, PhaseReported, "duration", rep.Duration)
		s.recordImport(ctx, rep, txErr)
		return rep, &ImportError{Report: rep, Err: txErr}
	}

	rep.Outcome = PhaseCommitted
	rep.Processed = res.Processed
	for _, e := range res.Errors {
		rep.Errors = append(rep.Errors, e.Message)
		log.Debug("row skipped", "line", e.Line, "matricula", e.Matricula, "error", e.Err)
	}
	advance(log, rep, PhaseCommitted, "processed", rep.Processed, "row_errors", len(rep.Errors))
	rep.Duration = time.Since(start)
	advance(log, rep, PhaseReported, "duration", rep.Duration)
	s.recordImport(ctx, rep, nil)
	return rep, nil
}

// buildRecords validates every parsed row. Rows without a key are counted
// in rep.Skipped and left out.
func buildRecords(schema *TableSchema, idx HeaderIndex, parsed *parsedCSV, rep *ImportReport) []Record {
	records := make([]Record, 0, len(parsed.Rows))
	for i, row := range parsed.Rows {
		rec, err := BuildRecord(schema, idx, row, parsed.Lines[i])
		if IsMissingKey(err) {
			rep.Skipped++
			continue
		}
		records = append(records, rec)
	}
	return records
}

func advance(log *slog.Logger, rep *ImportReport, phase ImportPhase, args ...any) {
	rep.Phase = phase
	log.Info("import "+string(phase), args...)
}
