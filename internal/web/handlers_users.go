package web

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/guaruja-saneamento/adesoes/internal/core"
)

type createUserRequest struct {
	Login       string                `json:"login_usuario" validate:"required,max=100"`
	Password    string                `json:"password" validate:"required"`
	Nome        string                `json:"nome" validate:"required,max=200"`
	NivelAcesso string                `json:"nivel_acesso" validate:"required,max=50"`
	Permissions core.FieldPermissions `json:"adhesion_field_permissions"`
}

// updateUserRequest is a partial edit; absent fields stay unchanged and
// an empty password is ignored.
type updateUserRequest struct {
	Nome        *string                `json:"nome" validate:"omitempty,min=1,max=200"`
	NivelAcesso *string                `json:"nivel_acesso" validate:"omitempty,min=1,max=50"`
	Password    *string                `json:"password"`
	Permissions *core.FieldPermissions `json:"adhesion_field_permissions"`
}

type userResponse struct {
	Message string     `json:"message"`
	User    *core.User `json:"user"`
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.service.ListUsers(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	hash, err := s.auth.HashPassword(req.Password)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	u, err := s.service.CreateUser(r.Context(), core.NewUser{
		Login:        req.Login,
		Nome:         req.Nome,
		NivelAcesso:  req.NivelAcesso,
		PasswordHash: hash,
		Permissions:  req.Permissions,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, userResponse{"Usuário criado com sucesso!", u})
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var req updateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	up := core.UserUpdate{Nome: req.Nome, NivelAcesso: req.NivelAcesso}
	if req.Permissions != nil {
		up.Permissions = *req.Permissions
		if up.Permissions == nil {
			up.Permissions = core.FieldPermissions{}
		}
	}
	if req.Password != nil && *req.Password != "" {
		hash, err := s.auth.HashPassword(*req.Password)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		up.PasswordHash = &hash
	}

	u, err := s.service.UpdateUser(r.Context(), id, up)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{"Usuário atualizado com sucesso!", u})
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.service.DeleteUser(r.Context(), id); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, message{"Usuário deletado com sucesso!"})
}

func userID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("ID de usuário inválido.", err)
	}
	return id, nil
}
