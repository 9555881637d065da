package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/guaruja-saneamento/adesoes/internal/auth"
	"github.com/guaruja-saneamento/adesoes/internal/core"
	"github.com/guaruja-saneamento/adesoes/internal/logging"
)

// Verifier checks a session token and returns its user.
type Verifier interface {
	Verify(ctx context.Context, token string) (core.Caller, error)
}

// Authenticate returns middleware that requires a bearer token. A missing
// token is answered with 401; an invalid, expired or revoked one with 403.
// The verified caller is attached to the request context.
func Authenticate(v Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				slog.Warn("auth: missing token",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
				)
				writeMessage(w, http.StatusUnauthorized, "Token de autenticação ausente.")
				return
			}

			caller, err := v.Verify(r.Context(), token)
			if err != nil {
				status, msg := rejection(err)
				slog.Warn("auth: token rejected",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
					"error", err,
				)
				writeMessage(w, status, msg)
				return
			}

			ctx := core.ContextWithCaller(r.Context(), caller)
			ctx = logging.ContextWithUser(ctx, caller.ID, caller.Login)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func rejection(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrMissingToken):
		return http.StatusForbidden, "Token inválido ou expirado."
	case errors.Is(err, auth.ErrSessionRevoked):
		return http.StatusForbidden, "Usuário não encontrado ou sessão inválida."
	default:
		return http.StatusInternalServerError, "Erro interno do servidor ao verificar sessão."
	}
}

// RequireRole returns middleware that admits only callers with one of
// roles. It must run after Authenticate.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, _ := core.CallerFromContext(r.Context())
			if err := auth.RequireRole(c, roles...); err != nil {
				logging.FromContext(r.Context()).Warn("auth: role denied",
					"path", r.URL.Path,
					"role", c.Role,
				)
				writeMessage(w, http.StatusForbidden, "Acesso negado. Você não tem as permissões necessárias.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// BearerToken returns the token of an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": msg})
}
