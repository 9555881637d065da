package web

import (
	"errors"
	"net/http"

	"github.com/guaruja-saneamento/adesoes/internal/core"
)

func (s *Server) handleSearchAdhesions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := s.service.SearchAdhesions(r.Context(), core.AdhesionFilter{
		NomeCliente:  q.Get("nome_cliente"),
		Matricula:    q.Get("matricula"),
		Comunidade:   q.Get("comunidade"),
		Endereco:     q.Get("endereco"),
		StatusAdesao: q.Get("status_adesao"),
		Limit:        parseIntParam(r, "limit", core.DefaultPageSize),
		Offset:       parseIntParam(r, "offset", 0),
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleUpdateAdhesion(w http.ResponseWriter, r *http.Request) {
	matricula, err := matriculaParam(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var fields map[string]any
	if err := decodeJSON(w, r, &fields); err != nil {
		s.respondError(w, r, err)
		return
	}

	row, err := s.service.UpdateAdhesion(r.Context(), matricula, fields)
	if errors.Is(err, core.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, message{"Adesão não encontrada."})
		return
	}
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "Adesão atualizada com sucesso!",
		"adhesion": row,
	})
}

func (s *Server) handleDeleteAdhesion(w http.ResponseWriter, r *http.Request) {
	matricula, err := matriculaParam(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	err = s.service.DeleteAdhesion(r.Context(), matricula)
	if errors.Is(err, core.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, message{"Adesão não encontrada."})
		return
	}
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, message{"Adesão deletada com sucesso!"})
}

func (s *Server) handleSearchConferences(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rows, err := s.service.SearchConferences(r.Context(), core.ConferenceFilter{
		Matricula:   q.Get("matricula"),
		Endereco:    q.Get("endereco"),
		Comunidade:  q.Get("comunidade"),
		NomeCliente: q.Get("nome_cliente"),
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleSaveConference(w http.ResponseWriter, r *http.Request) {
	matricula, err := matriculaParam(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var in core.ConferenceInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.respondError(w, r, err)
		return
	}

	row, err := s.service.UpsertConference(r.Context(), matricula, in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Dados de conferência salvos com sucesso!",
		"data":    row,
	})
}

type photosResponse struct {
	Fotos *string `json:"fotos"`
}

// handlePhotos answers {fotos: null} for an unknown matrícula.
func (s *Server) handlePhotos(w http.ResponseWriter, r *http.Request) {
	fotos, err := s.photosOf(r)
	if errors.Is(err, core.ErrNotFound) {
		writeJSON(w, http.StatusOK, photosResponse{})
		return
	}
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, photosResponse{fotos})
}

// handleNewConnection answers 404 for an unknown matrícula.
func (s *Server) handleNewConnection(w http.ResponseWriter, r *http.Request) {
	fotos, err := s.photosOf(r)
	if errors.Is(err, core.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, message{"Nenhuma ligação encontrada para esta matrícula."})
		return
	}
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, photosResponse{fotos})
}

func (s *Server) photosOf(r *http.Request) (*string, error) {
	matricula, err := matriculaParam(r)
	if err != nil {
		return nil, err
	}
	fotos, err := s.service.GetPhotos(r.Context(), matricula)
	if err != nil {
		return nil, err
	}
	return s.photos.Resolve(r.Context(), fotos)
}
