package core

// convert.go holds the field normalizers. Each one is total: unrecognized
// input yields nil (SQL NULL) and never an error, so a bad cell nulls the
// field instead of failing the row.

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// dayFirstDate matches D/M/YYYY with '/', '-' or '.' separators.
var dayFirstDate = regexp.MustCompile(`^(\d{1,2})[./-](\d{1,2})[./-](\d{4})$`)

// leadingInt matches the integer prefix accepted by ParseInt.
var leadingInt = regexp.MustCompile(`^[+-]?\d+`)

// fallbackDateLayouts are tried when the day-first form does not match.
var fallbackDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
}

var (
	affirmative = map[string]bool{"true": true, "1": true, "sim": true, "s": true, "verdadeiro": true}
	negative    = map[string]bool{"false": true, "0": true, "nao": true, "não": true, "n": true, "falso": true}
)

// ParseDate parses a day-first date (31/12/2024, 1-2-2024, 5.6.2024) or one
// of the ISO-like fallback layouts. Impossible dates such as 31/02/2024
// return nil.
func ParseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	if m := dayFirstDate.FindStringSubmatch(s); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		// time.Date normalizes overflow, so 31/02 would silently become 02/03
		if t.Day() != day || int(t.Month()) != month {
			return nil
		}
		return &t
	}

	for _, layout := range fallbackDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &d
		}
	}
	return nil
}

// FormatDate renders a parsed date as YYYY-MM-DD, or "" for nil.
func FormatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

// ParseInt parses the leading base-10 integer of s ("12", "-3", "2 adultos").
func ParseInt(s string) *int64 {
	m := leadingInt.FindString(strings.TrimSpace(s))
	if m == "" {
		return nil
	}
	n, err := strconv.ParseInt(m, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

// ParseFloat parses a decimal that may use a comma as decimal separator.
// Parsing goes through shopspring/decimal, which rejects NaN, Inf and hex
// forms that strconv.ParseFloat would accept.
func ParseFloat(s string) *float64 {
	s = strings.TrimSpace(strings.Replace(s, ",", ".", 1))
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	f, _ := d.Float64()
	return &f
}

// ParseBool recognizes Portuguese and English yes/no words. Anything
// outside both sets, including "", is nil rather than false.
func ParseBool(s string) *bool {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case affirmative[s]:
		v := true
		return &v
	case negative[s]:
		v := false
		return &v
	}
	return nil
}

// CleanCell strips one pair of surrounding double quotes and whitespace.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, `"`)
	s = strings.TrimSuffix(s, `"`)
	return strings.TrimSpace(s)
}

// ToPgText converts a string to pgtype.Text, invalid when blank.
func ToPgText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

// ToPgDate converts a string to pgtype.Date via ParseDate.
func ToPgDate(s string) pgtype.Date {
	t := ParseDate(s)
	if t == nil {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: *t, Valid: true}
}

// ToPgInt8 converts a string to pgtype.Int8 via ParseInt.
func ToPgInt8(s string) pgtype.Int8 {
	n := ParseInt(s)
	if n == nil {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: *n, Valid: true}
}

// ToPgFloat8 converts a string to pgtype.Float8 via ParseFloat.
func ToPgFloat8(s string) pgtype.Float8 {
	f := ParseFloat(s)
	if f == nil {
		return pgtype.Float8{}
	}
	return pgtype.Float8{Float64: *f, Valid: true}
}

// ToPgBool converts a string to pgtype.Bool via ParseBool.
func ToPgBool(s string) pgtype.Bool {
	b := ParseBool(s)
	if b == nil {
		return pgtype.Bool{}
	}
	return pgtype.Bool{Bool: *b, Valid: true}
}

// ConvertCell applies the normalizer selected by ft to a raw cell.
func ConvertCell(ft FieldType, raw string) any {
	switch ft {
	case FieldDate:
		return ToPgDate(raw)
	case FieldInteger:
		return ToPgInt8(raw)
	case FieldFloat:
		return ToPgFloat8(raw)
	case FieldBool:
		return ToPgBool(raw)
	default:
		return ToPgText(raw)
	}
}

// fieldTypeName returns a human-readable name for a field type.
func fieldTypeName(ft FieldType) string {
	switch ft {
	case FieldText:
		return "text"
	case FieldDate:
		return "date"
	case FieldInteger:
		return "integer"
	case FieldFloat:
		return "number"
	case FieldBool:
		return "boolean"
	default:
		return "value"
	}
}
