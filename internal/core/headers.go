package core

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	withToken      = regexp.MustCompile(`\s*c/\s*`)
	spaceOrDotRun  = regexp.MustCompile(`[\s.]+`)
	doubleUnder    = regexp.MustCompile(`__`)
	leadingNoUnder = regexp.MustCompile(`^no_`)
)

// HeaderIndex maps a destination column to its position in the CSV row.
type HeaderIndex map[string]int

// foldAccents decomposes s (NFKD, so "º" becomes "o") and drops the
// combining marks. A new transformer is built per call since
// transform.Chain is not safe for concurrent use.
func foldAccents(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// NormalizeHeader turns a spreadsheet header into a snake_case column
// identifier: "Nº C/ Água" becomes "n_agua", "Data  Nasc." becomes
// "data_nasc".
func NormalizeHeader(raw string) string {
	h := strings.ToLower(strings.TrimSpace(raw))
	h = foldAccents(h)
	h = withToken.ReplaceAllString(h, " ")
	h = spaceOrDotRun.ReplaceAllString(h, "_")
	h = doubleUnder.ReplaceAllString(h, "_")
	h = leadingNoUnder.ReplaceAllString(h, "n_")
	return strings.Trim(h, "_")
}

// MapHeaders resolves CSV headers against the importable columns of schema.
// Headers that normalize to no known column are dropped; when two headers
// normalize to the same column the first one wins.
func MapHeaders(headers []string, schema *TableSchema) HeaderIndex {
	known := make(map[string]bool)
	for _, f := range schema.ImportFields() {
		known[f.Name] = true
	}

	idx := make(HeaderIndex, len(headers))
	for i, h := range headers {
		col := NormalizeHeader(h)
		if !known[col] {
			continue
		}
		if _, dup := idx[col]; dup {
			continue
		}
		idx[col] = i
	}
	return idx
}
