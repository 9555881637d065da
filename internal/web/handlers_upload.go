package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/guaruja-saneamento/adesoes/internal/core"
	"github.com/guaruja-saneamento/adesoes/internal/logging"
)

// multipartMemory is how much of a multipart form is kept in memory; the
// rest spills to temporary files.
const multipartMemory = 8 << 20

// importResponse is the body of a committed import. Status 207 marks a
// commit that skipped rows.
type importResponse struct {
	Message   string   `json:"message"`
	Processed int      `json:"processed"`
	Errors    []string `json:"errors"`
	ImportID  string   `json:"importId"`
}

// importFailure is the body of a rolled back import.
type importFailure struct {
	Message string             `json:"message"`
	Error   string             `json:"error"`
	Report  *core.ImportReport `json:"report,omitempty"`
}

// handleUpload imports a csvFile into the table named by importType.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	name, data, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	typ, err := genericImportType(r.FormValue("importType"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.runImport(w, r, core.ImportRequest{
		Type:     typ,
		FileName: name,
		Data:     data,
	})
}

// genericImportType accepts only the types the generic upload routes may
// run. The legacy import has its own role-gated route.
func genericImportType(v string) (core.ImportType, error) {
	switch typ := core.ImportType(v); typ {
	case core.ImportAdesoes, core.ImportNovaLigacao:
		return typ, nil
	default:
		return "", fmt.Errorf("%w: %q", core.ErrInvalidImportType, v)
	}
}

// handleLegacyUpload imports a new-connection file whose matrículas are
// generated from COMUNIDADE.
func (s *Server) handleLegacyUpload(w http.ResponseWriter, r *http.Request) {
	name, data, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.runImport(w, r, core.ImportRequest{
		Type:     core.ImportLegacy,
		FileName: name,
		Data:     data,
	})
}

// handlePreview reports what an upload would do without writing it.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	name, data, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	v := r.FormValue("importType")
	if v == "" {
		v = r.URL.Query().Get("importType")
	}
	typ, err := genericImportType(v)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.runPreview(w, r, core.ImportRequest{Type: typ, FileName: name, Data: data})
}

// handleLegacyPreview previews a new-connection file for the legacy import.
func (s *Server) handleLegacyPreview(w http.ResponseWriter, r *http.Request) {
	name, data, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.runPreview(w, r, core.ImportRequest{Type: core.ImportLegacy, FileName: name, Data: data})
}

func (s *Server) runPreview(w http.ResponseWriter, r *http.Request, req core.ImportRequest) {
	preview, err := s.service.PreviewImport(r.Context(), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

// readUpload reads the csvFile part of a multipart upload, bounded by the
// configured maximum file size.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Import.MaxFileSize)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", nil, core.ErrFileTooLarge
		}
		return "", nil, fmt.Errorf("%w: %v", core.ErrNoFile, err)
	}

	file, header, err := r.FormFile("csvFile")
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil, core.ErrNoFile
	}
	if err != nil {
		return "", nil, fmt.Errorf("read upload: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return "", nil, fmt.Errorf("read upload: %w", err)
	}
	return header.Filename, data, nil
}

func (s *Server) runImport(w http.ResponseWriter, r *http.Request, req core.ImportRequest) {
	log := logging.WithFields(r.Context(), "type", req.Type, "file", req.FileName)

	rep, err := s.service.Import(r.Context(), req)

	var impErr *core.ImportError
	if errors.As(err, &impErr) {
		log.Error("import rolled back", "import_id", impErr.Report.ID, "error", impErr.Err)
		writeJSON(w, http.StatusInternalServerError, importFailure{
			Message: "Erro interno do servidor durante a importação.",
			Error:   impErr.Reason(),
			Report:  impErr.Report,
		})
		return
	}
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	errs := rep.Errors
	if errs == nil {
		errs = []string{}
	}
	resp := importResponse{
		Message:   successMessage(rep),
		Processed: rep.Processed,
		Errors:    errs,
		ImportID:  rep.ID,
	}

	status := http.StatusOK
	if rep.Partial() {
		status = http.StatusMultiStatus
		resp.Message = fmt.Sprintf("Processamento concluído com %d registros inseridos e %d erros.",
			rep.Processed, len(rep.Errors))
	}
	log.Info("import responded", "import_id", rep.ID, "status", status, "processed", rep.Processed)
	writeJSON(w, status, resp)
}

func successMessage(rep *core.ImportReport) string {
	if rep.Type == core.ImportLegacy {
		return fmt.Sprintf("Arquivo CSV de Nova Ligação processado com sucesso! %d registros inseridos.", rep.Processed)
	}
	return fmt.Sprintf("Importação concluída! %d registos processados.", rep.Processed)
}
