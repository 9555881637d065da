package core

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// WhereBuilder accumulates AND-ed conditions with numbered placeholders.
// Conditions with an empty value are skipped, so optional filters can be
// added unconditionally.
type WhereBuilder struct {
	conditions []string
	args       []any
	argIndex   int
}

// NewWhereBuilder returns an empty builder whose first placeholder is $1.
func NewWhereBuilder() *WhereBuilder {
	return &WhereBuilder{argIndex: 1}
}

// Add appends "column = $n".
func (wb *WhereBuilder) Add(column, value string) {
	if value == "" {
		return
	}
	wb.add(fmt.Sprintf("%s = $%d", quoteIdentifier(column), wb.argIndex), value)
}

// AddContains appends a case-insensitive substring match on column.
func (wb *WhereBuilder) AddContains(column, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	wb.add(fmt.Sprintf("%s ILIKE $%d", quoteIdentifier(column), wb.argIndex), "%"+value+"%")
}

func (wb *WhereBuilder) add(cond string, arg any) {
	wb.conditions = append(wb.conditions, cond)
	wb.args = append(wb.args, arg)
	wb.argIndex++
}

// Build returns " WHERE a AND b" and its arguments, or "" and nil.
func (wb *WhereBuilder) Build() (string, []any) {
	if len(wb.conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(wb.conditions, " AND "), wb.args
}

// NextArgIndex returns the number of the next free placeholder.
func (wb *WhereBuilder) NextArgIndex() int {
	return wb.argIndex
}

// quoteIdentifier quotes a column name. A qualified name such as a.matricula
// is quoted part by part.
func quoteIdentifier(name string) string {
	return pgx.Identifier(strings.Split(name, ".")).Sanitize()
}
