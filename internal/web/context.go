package web

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/guaruja-saneamento/adesoes/internal/core"
)

// callerOf returns the authenticated user of r. Routes behind
// middleware.Authenticate always carry one.
func callerOf(r *http.Request) core.Caller {
	c, _ := core.CallerFromContext(r.Context())
	return c
}

// matriculaParam returns the {matricula} path parameter, trimmed.
func matriculaParam(r *http.Request) (string, error) {
	m := strings.TrimSpace(chi.URLParam(r, "matricula"))
	if m == "" {
		return "", badRequest("Matrícula é obrigatória.", nil)
	}
	return m, nil
}
