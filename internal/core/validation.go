package core

// validation.go is the single boundary where raw CSV cells and JSON edit
// payloads become typed column values. Everything downstream works on
// Record values and never looks at raw strings again.

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
)

// ValidationError represents a single validation error for a field.
type ValidationError struct {
	Field   string // Column name
	Value   string // The offending value
	Message string // Human-readable error message
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// Record is one validated import row. Values are aligned with the
// schema's ImportFields and hold pgtype values, invalid meaning NULL.
type Record struct {
	Line      int
	Matricula string
	Values    []any
}

// ValidateHeaders checks that the key column survived header mapping.
func ValidateHeaders(idx HeaderIndex, schema *TableSchema) error {
	if _, ok := idx[schema.Key]; !ok {
		return fmt.Errorf("%w: %s", ErrMissingKeyColumn, schema.Key)
	}
	return nil
}

// BuildRecord converts one CSV row into a Record. Columns absent from the
// file and short rows become NULL, as do date, number and boolean cells the
// normalizers cannot read. Integer cells are sent as text, so a bad value
// fails the row in the store. A row without a key value returns
// ErrMissingKey and is skipped by the ingestor.
func BuildRecord(schema *TableSchema, idx HeaderIndex, row []string, line int) (Record, error) {
	fields := schema.ImportFields()
	rec := Record{Line: line, Values: make([]any, len(fields))}

	for i, f := range fields {
		raw := ""
		if pos, ok := idx[f.Name]; ok && pos < len(row) {
			raw = CleanCell(row[pos])
		}
		if f.Name == schema.Key {
			rec.Matricula = raw
		}
		rec.Values[i] = importCell(f.Type, raw)
	}

	if rec.Matricula == "" {
		return rec, ErrMissingKey
	}
	return rec, nil
}

// importCell is ConvertCell for CSV imports. Integer columns keep the raw
// text and leave the check to the column type.
func importCell(ft FieldType, raw string) any {
	if ft != FieldInteger {
		return ConvertCell(ft, raw)
	}
	if raw == "" {
		return nil
	}
	return raw
}

// CoerceValue converts a decoded JSON value for a manual edit. Strings go
// through the same normalizers as CSV cells; JSON numbers and booleans are
// accepted directly for matching column types. nil clears the column.
func CoerceValue(f FieldSpec, v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	switch val := v.(type) {
	case string:
		if strings.TrimSpace(val) == "" {
			return nil, nil
		}
		converted := ConvertCell(f.Type, val)
		if f.Type != FieldText && !isValid(converted) {
			return nil, ValidationError{Field: f.Name, Value: val, Message: "invalid " + fieldTypeName(f.Type)}
		}
		return converted, nil
	case float64:
		switch f.Type {
		case FieldFloat:
			return val, nil
		case FieldInteger:
			if val != float64(int64(val)) {
				return nil, ValidationError{Field: f.Name, Value: strconv.FormatFloat(val, 'f', -1, 64), Message: "invalid integer"}
			}
			return int64(val), nil
		case FieldText:
			return strconv.FormatFloat(val, 'f', -1, 64), nil
		}
	case bool:
		switch f.Type {
		case FieldBool:
			return val, nil
		case FieldText:
			return strconv.FormatBool(val), nil
		}
	}
	return nil, ValidationError{Field: f.Name, Value: fmt.Sprint(v), Message: "invalid " + fieldTypeName(f.Type)}
}

// isValid reports whether a pgtype value produced by ConvertCell is non-NULL.
func isValid(v any) bool {
	switch t := v.(type) {
	case pgtype.Text:
		return t.Valid
	case pgtype.Date:
		return t.Valid
	case pgtype.Int8:
		return t.Valid
	case pgtype.Float8:
		return t.Valid
	case pgtype.Bool:
		return t.Valid
	}
	return v != nil
}

// IsMissingKey reports whether err marks a row that has no key value.
func IsMissingKey(err error) bool {
	return errors.Is(err, ErrMissingKey)
}
