package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// UpdateAdhesion applies a partial edit to the adhesion with the given
// matrícula and returns the updated row. The id and matricula keys are
// ignored. Values are coerced to the column types; a column that does not
// exist in adesoes returns ErrUnknownField.
//
// A non-admin caller whose permission map is not empty may only change
// the columns marked true in it.
func (s *Service) UpdateAdhesion(ctx context.Context, matricula string, fields map[string]any) (Row, error) {
	schema, ok := s.registry.Get("adesoes")
	if !ok {
		return nil, fmt.Errorf("adesoes schema not registered")
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		if name == "id" || name == schema.Key {
			continue
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return nil, ErrNoFields
	}
	sort.Strings(names)

	if caller, ok := CallerFromContext(ctx); ok {
		if err := caller.Permissions.check(caller, names); err != nil {
			return nil, err
		}
	}

	sets := make([]string, len(names))
	args := make([]any, 0, len(names)+1)
	for i, name := range names {
		spec, ok := schema.Field(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownField, name)
		}
		v, err := CoerceValue(spec, fields[name])
		if err != nil {
			return nil, err
		}
		sets[i] = fmt.Sprintf("%s = $%d", quoteIdentifier(name), i+1)
		args = append(args, v)
	}
	args = append(args, matricula)

	sql := fmt.Sprintf("UPDATE adesoes SET %s WHERE matricula = $%d RETURNING *", strings.Join(sets, ", "), len(args))
	rows, err := collectRows(ctx, s.db, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("update adhesion %s: %w", matricula, err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}

	changes := make(map[string]any, len(names))
	for _, name := range names {
		changes[name] = fields[name]
	}
	s.recordRowChange(ctx, ActionAdhesionUpdate, schema.Table, matricula, changes)
	return rows[0], nil
}

// DeleteAdhesion removes an adhesion. Only admins may call it; the web
// layer enforces the role. The deleted row is kept in the audit log.
func (s *Service) DeleteAdhesion(ctx context.Context, matricula string) error {
	rows, err := collectRows(ctx, s.db, "DELETE FROM adesoes WHERE matricula = $1 RETURNING *", matricula)
	if err != nil {
		return fmt.Errorf("delete adhesion %s: %w", matricula, err)
	}
	if len(rows) == 0 {
		return ErrNotFound
	}
	s.recordRowChange(ctx, ActionAdhesionDelete, "adesoes", matricula, rows[0])
	return nil
}
