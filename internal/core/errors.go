package core

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Input rejection: the upload is refused before any row is processed.
var (
	ErrInvalidImportType = errors.New("invalid import type")
	ErrNoFile            = errors.New("no file provided")
	ErrFileTooLarge      = errors.New("file too large")
	ErrParse             = errors.New("invalid csv")
	ErrEmptyFile         = errors.New("empty file")
	ErrMissingKeyColumn  = errors.New("missing required column")
	ErrTooManyImports    = errors.New("too many imports in progress")
)

// Row level.
var (
	ErrMissingKey       = errors.New("row has no matricula")
	ErrMissingCommunity = errors.New("row has no comunidade")
	ErrUnknownCommunity = errors.New("unknown community")
)

// Record and user operations.
var (
	ErrNotFound           = errors.New("not found")
	ErrNoFields           = errors.New("no fields to update")
	ErrUnknownField       = errors.New("unknown field")
	ErrFieldNotPermitted  = errors.New("field not permitted")
	ErrDuplicateLogin     = errors.New("login already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPasswordTooShort   = errors.New("password too short")
)

// UnknownCommunityError is returned by the matrícula generator for a
// community with no prefix. It matches ErrUnknownCommunity.
type UnknownCommunityError struct {
	Community string
}

func (e *UnknownCommunityError) Error() string {
	return fmt.Sprintf("unknown community %q", e.Community)
}

func (e *UnknownCommunityError) Is(target error) bool {
	return target == ErrUnknownCommunity
}

// pgUniqueViolation is the SQLSTATE of a unique constraint failure.
const pgUniqueViolation = "23505"

// IsUniqueViolation reports whether err is a PostgreSQL unique violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// rowReason is the caller-facing description of a row failure: Portuguese
// text for domain errors, the driver's message for database errors.
func rowReason(err error) string {
	var uc *UnknownCommunityError
	var pgErr *pgconn.PgError
	switch {
	case errors.As(err, &uc):
		return "Prefixo não definido para a comunidade: " + uc.Community
	case errors.Is(err, ErrMissingCommunity):
		return "Campo COMUNIDADE ausente na linha."
	case errors.As(err, &pgErr):
		return pgErr.Message
	default:
		return err.Error()
	}
}
