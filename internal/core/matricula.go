package core

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
)

// matriculaDigits is the zero-padded width of the sequence part.
const matriculaDigits = 4

var trailingDigits = regexp.MustCompile(`(\d+)$`)

// DefaultPrefixes is the built-in community to prefix table. Morrinhos III
// and IV share MT and therefore one sequence.
func DefaultPrefixes() map[string]string {
	return map[string]string{
		"jardim cachoeira":  "JC",
		"jardim primavera":  "JP",
		"pereque":           "PQ",
		"morrinhos iii":     "MT",
		"morrinhos iv":      "MT",
		"mar e ceu":         "MC",
		"areiao":            "AR",
		"barreira":          "BA",
		"cantagalo":         "CG",
		"pedreira matarazo": "PM",
	}
}

// PrefixTable resolves community names to matrícula prefixes. Lookups
// ignore case, surrounding space and accents, so "Perequê" and "PEREQUE"
// resolve alike.
type PrefixTable struct {
	byKey map[string]string
}

// NewPrefixTable builds a table from community to prefix pairs.
func NewPrefixTable(prefixes map[string]string) *PrefixTable {
	t := &PrefixTable{byKey: make(map[string]string, len(prefixes))}
	for community, prefix := range prefixes {
		t.byKey[communityKey(community)] = strings.ToUpper(strings.TrimSpace(prefix))
	}
	return t
}

func communityKey(s string) string {
	return foldAccents(strings.ToLower(strings.TrimSpace(s)))
}

// Lookup returns the prefix of community.
func (t *PrefixTable) Lookup(community string) (string, bool) {
	p, ok := t.byKey[communityKey(community)]
	return p, ok
}

// PrefixEntry is one row of the effective prefix table.
type PrefixEntry struct {
	Community string
	Prefix    string
}

// Entries lists the table sorted by community.
func (t *PrefixTable) Entries() []PrefixEntry {
	out := make([]PrefixEntry, 0, len(t.byKey))
	for c, p := range t.byKey {
		out = append(out, PrefixEntry{Community: c, Prefix: p})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Community < out[j].Community })
	return out
}

// MatriculaGenerator allocates the next matrícula of a community.
type MatriculaGenerator struct {
	prefixes *PrefixTable
}

// NewMatriculaGenerator returns a generator over prefixes.
func NewMatriculaGenerator(prefixes *PrefixTable) *MatriculaGenerator {
	return &MatriculaGenerator{prefixes: prefixes}
}

// Next returns the matrícula following the highest existing one with the
// community's prefix, e.g. JC0007 becomes JC0008 and an unused prefix
// starts at JC0001.
//
// The last code is the longest one, then the greatest, so JC10000 follows
// JC9999 even though it sorts before it as a string.
//
// q must be the transaction that inserts the returned value. Next takes a
// transaction-scoped advisory lock on the prefix, so a concurrent import
// for the same prefix waits until this transaction commits or rolls back
// and then sees the inserted row.
func (g *MatriculaGenerator) Next(ctx context.Context, q DBTX, community string) (string, error) {
	if strings.TrimSpace(community) == "" {
		return "", ErrMissingCommunity
	}
	prefix, ok := g.prefixes.Lookup(community)
	if !ok {
		return "", &UnknownCommunityError{Community: community}
	}

	if _, err := q.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext('matricula:' || $1))", prefix); err != nil {
		return "", fmt.Errorf("lock prefix %s: %w", prefix, err)
	}

	var last string
	err := q.QueryRow(ctx,
		`SELECT matricula FROM nova_ligacao WHERE matricula LIKE $1 || '%' ORDER BY length(matricula) DESC, matricula DESC LIMIT 1`,
		prefix,
	).Scan(&last)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("last matricula for %s: %w", prefix, err)
	}

	return nextMatricula(prefix, last), nil
}

// nextMatricula increments the trailing number of last. A last value with
// no trailing digits, or none at all, restarts the sequence at 1.
func nextMatricula(prefix, last string) string {
	var n int64
	if m := trailingDigits.FindString(last); m != "" {
		n, _ = strconv.ParseInt(m, 10, 64)
	}
	return fmt.Sprintf("%s%0*d", prefix, matriculaDigits, n+1)
}
