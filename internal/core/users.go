package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
)

// FieldPermissions lists the adesoes columns a user may edit. An empty map
// places no restriction.
type FieldPermissions map[string]bool

func (p FieldPermissions) check(c Caller, fields []string) error {
	if c.IsAdmin() || len(p) == 0 {
		return nil
	}
	for _, f := range fields {
		if !p[f] {
			return fmt.Errorf("%w: %s", ErrFieldNotPermitted, f)
		}
	}
	return nil
}

// User is a row of usuarios. The password hash and session token never
// leave the server.
type User struct {
	ID           int64            `json:"id"`
	Login        string           `json:"login_usuario"`
	Nome         string           `json:"nome"`
	NivelAcesso  string           `json:"nivel_acesso"`
	Permissions  FieldPermissions `json:"adhesion_field_permissions"`
	PasswordHash string           `json:"-"`
	SessionToken string           `json:"-"`
}

// NewUser is the input of CreateUser.
type NewUser struct {
	Login        string
	Nome         string
	NivelAcesso  string
	PasswordHash string
	Permissions  FieldPermissions
}

// UserUpdate is a partial edit; nil fields are left unchanged.
type UserUpdate struct {
	Nome         *string
	NivelAcesso  *string
	PasswordHash *string
	Permissions  FieldPermissions // nil leaves the column unchanged
}

const userColumns = `id, login_usuario, nome, nivel_acesso, COALESCE(adhesion_field_permissions, '{}'::jsonb), COALESCE(password_hash, ''), COALESCE(current_session_token, '')`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Login, &u.Nome, &u.NivelAcesso, &u.Permissions, &u.PasswordHash, &u.SessionToken)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if u.Permissions == nil {
		u.Permissions = FieldPermissions{}
	}
	return &u, nil
}

// UserByLogin looks a user up by login name.
func (s *Service) UserByLogin(ctx context.Context, login string) (*User, error) {
	return scanUser(s.db.QueryRow(ctx, "SELECT "+userColumns+" FROM usuarios WHERE login_usuario = $1", login))
}

// UserByID looks a user up by id.
func (s *Service) UserByID(ctx context.Context, id int64) (*User, error) {
	return scanUser(s.db.QueryRow(ctx, "SELECT "+userColumns+" FROM usuarios WHERE id = $1", id))
}

// ListUsers returns every user ordered by login.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.Query(ctx, "SELECT "+userColumns+" FROM usuarios ORDER BY login_usuario ASC")
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// CreateUser inserts a user. A taken login returns ErrDuplicateLogin.
func (s *Service) CreateUser(ctx context.Context, in NewUser) (*User, error) {
	if in.Permissions == nil {
		in.Permissions = FieldPermissions{}
	}
	u, err := scanUser(s.db.QueryRow(ctx,
		`INSERT INTO usuarios (login_usuario, password_hash, nome, nivel_acesso, adhesion_field_permissions)
		VALUES ($1, $2, $3, $4, $5) RETURNING `+userColumns,
		in.Login, in.PasswordHash, in.Nome, in.NivelAcesso, in.Permissions,
	))
	if IsUniqueViolation(err) {
		return nil, ErrDuplicateLogin
	}
	if err != nil {
		return nil, fmt.Errorf("create user %s: %w", in.Login, err)
	}
	s.recordRowChange(ctx, ActionUserCreate, "usuarios", strconv.FormatInt(u.ID, 10), map[string]any{
		"login_usuario": u.Login,
		"nivel_acesso":  u.NivelAcesso,
	})
	return u, nil
}

// UpdateUser applies a partial edit. An empty update returns ErrNoFields
// and an unknown id ErrNotFound.
func (s *Service) UpdateUser(ctx context.Context, id int64, up UserUpdate) (*User, error) {
	var sets []string
	var args []any
	changes := map[string]any{}
	add := func(col string, v, logged any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
		changes[col] = logged
	}

	if up.Nome != nil {
		add("nome", *up.Nome, *up.Nome)
	}
	if up.NivelAcesso != nil {
		add("nivel_acesso", *up.NivelAcesso, *up.NivelAcesso)
	}
	if up.PasswordHash != nil {
		add("password_hash", *up.PasswordHash, "changed")
	}
	if up.Permissions != nil {
		add("adhesion_field_permissions", up.Permissions, up.Permissions)
	}
	if len(sets) == 0 {
		return nil, ErrNoFields
	}
	args = append(args, id)

	sql := fmt.Sprintf("UPDATE usuarios SET %s WHERE id = $%d RETURNING %s", strings.Join(sets, ", "), len(args), userColumns)
	u, err := scanUser(s.db.QueryRow(ctx, sql, args...))
	if errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("update user %d: %w", id, err)
	}
	s.recordRowChange(ctx, ActionUserUpdate, "usuarios", strconv.FormatInt(id, 10), changes)
	return u, nil
}

// DeleteUser removes a user.
func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, "DELETE FROM usuarios WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete user %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	s.recordRowChange(ctx, ActionUserDelete, "usuarios", strconv.FormatInt(id, 10), nil)
	return nil
}

// SetSessionToken records the user's current token; an empty token ends
// the session.
func (s *Service) SetSessionToken(ctx context.Context, id int64, token string) error {
	var v any
	if token != "" {
		v = token
	}
	_, err := s.db.Exec(ctx, "UPDATE usuarios SET current_session_token = $1 WHERE id = $2", v, id)
	if err != nil {
		return fmt.Errorf("set session for user %d: %w", id, err)
	}
	return nil
}
