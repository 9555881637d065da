package web

import (
	"net/http"

	"github.com/guaruja-saneamento/adesoes/internal/core"
	"github.com/guaruja-saneamento/adesoes/internal/logging"
)

type loginRequest struct {
	Login    string `json:"login_usuario" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Message string     `json:"message"`
	Token   string     `json:"token"`
	User    *core.User `json:"user"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, badRequest("Login de usuário e senha são obrigatórios.", err))
		return
	}

	token, user, err := s.auth.Login(r.Context(), req.Login, req.Password)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("user logged in", "user_id", user.ID, "user", user.Login)
	writeJSON(w, http.StatusOK, loginResponse{
		Message: "Login bem-sucedido!",
		Token:   token,
		User:    user,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.Logout(r.Context(), callerOf(r)); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, message{"Logout bem-sucedido."})
}
