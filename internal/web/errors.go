package web

// errors.go turns handler errors into JSON responses.
//
// Every error is logged server-side with the request id and answered with
// the Portuguese message from core.MapError. The status code comes from
// statusFor, which knows the sentinel errors of core and auth.

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/guaruja-saneamento/adesoes/internal/auth"
	"github.com/guaruja-saneamento/adesoes/internal/core"
	"github.com/guaruja-saneamento/adesoes/internal/logging"
)

// ErrorResponse is the JSON body of an error. Clients read Message.
type ErrorResponse struct {
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code,omitempty"`
}

// requestError is a malformed request. Its message is sent verbatim.
type requestError struct {
	status  int
	message string
	err     error
}

func (e *requestError) Error() string {
	if e.err != nil {
		return e.message + ": " + e.err.Error()
	}
	return e.message
}

func (e *requestError) Unwrap() error { return e.err }

func badRequest(msg string, err error) error {
	return &requestError{status: http.StatusBadRequest, message: msg, err: err}
}

// respondError logs err and writes its JSON response.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)

	var body ErrorResponse
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		body.Message = reqErr.message
	} else {
		msg := core.MapError(err)
		body = ErrorResponse{Message: msg.Message, Action: msg.Action, Code: msg.Code}
	}

	log := logging.FromContext(r.Context()).With(
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", body.Code,
		"request_id", middleware.GetReqID(r.Context()),
	)
	if status >= http.StatusInternalServerError {
		log.Error("request error")
	} else {
		log.Warn("request rejected")
	}

	writeJSON(w, status, body)
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	var reqErr *requestError
	var valErr core.ValidationError
	switch {
	case errors.As(err, &reqErr):
		return reqErr.status
	case errors.As(err, &valErr),
		errors.Is(err, core.ErrInvalidImportType),
		errors.Is(err, core.ErrNoFile),
		errors.Is(err, core.ErrParse),
		errors.Is(err, core.ErrEmptyFile),
		errors.Is(err, core.ErrMissingKeyColumn),
		errors.Is(err, core.ErrNoFields),
		errors.Is(err, core.ErrUnknownField),
		errors.Is(err, core.ErrPasswordTooShort):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrTooManyImports):
		return http.StatusTooManyRequests
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrDuplicateLogin), core.IsUniqueViolation(err):
		return http.StatusConflict
	case errors.Is(err, core.ErrInvalidCredentials), errors.Is(err, auth.ErrMissingToken):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrFieldNotPermitted),
		errors.Is(err, auth.ErrForbidden),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrSessionRevoked):
		return http.StatusForbidden
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
