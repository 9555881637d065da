package core

import "context"

type contextKey string

const ctxKeyCaller contextKey = "caller"

// Role values stored in usuarios.nivel_acesso.
const (
	RoleAdmin      = "admin"
	RoleBackoffice = "backoffice"
)

// Caller is the authenticated user on whose behalf an operation runs.
type Caller struct {
	ID          int64
	Login       string
	Role        string
	Permissions FieldPermissions
}

// IsAdmin reports whether the caller has the admin role.
func (c Caller) IsAdmin() bool { return c.Role == RoleAdmin }

// ContextWithCaller attaches the authenticated caller to ctx.
func ContextWithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, ctxKeyCaller, c)
}

// CallerFromContext returns the caller set by ContextWithCaller.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(ctxKeyCaller).(Caller)
	return c, ok
}
