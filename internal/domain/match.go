package domain

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultNameAliases maps Kawabou names to curated names where the two differ.
var DefaultNameAliases = map[string]string{
	"新桂沢ダム":     "桂沢ダム", // Hokkaido: rebuilt dam keeps its curated name
	"栗駒ダム（利水）": "栗駒ダム",
}

// DefaultQualifiers are parenthesized suffixes Kawabou appends to names to
// mark the operator or the usage right.
var DefaultQualifiers = []string{"機構", "利水"}

// NormalizeName removes every whitespace rune, including the ideographic
// space U+3000. It is idempotent.
func NormalizeName(name string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, name)
}

// MatchKind records which rule of the matcher produced a match.
type MatchKind int

const (
	MatchNone MatchKind = iota
	MatchExact
	MatchSuffix
	MatchAlias
	MatchPrefix
)

func (k MatchKind) String() string {
	switch k {
	case MatchExact:
		return "exact"
	case MatchSuffix:
		return "suffix"
	case MatchAlias:
		return "alias"
	case MatchPrefix:
		return "prefix"
	default:
		return "none"
	}
}

// NameLookup maps normalized curated names to dam IDs.
type NameLookup struct {
	ids map[string]string
	// names holds every key, longest first, for prefix matching.
	names []string
}

// NewNameLookup indexes dams by normalized name. When two dams normalize to
// the same name the later one wins. Dams with an empty name are skipped since
// an empty name would be a prefix of every candidate.
func NewNameLookup(dams []Dam) *NameLookup {
	l := &NameLookup{ids: make(map[string]string, len(dams))}
	for _, d := range dams {
		n := NormalizeName(d.Name)
		if n == "" || d.ID == "" {
			continue
		}
		l.ids[n] = d.ID
	}

	l.names = make([]string, 0, len(l.ids))
	for n := range l.ids {
		l.names = append(l.names, n)
	}
	sort.Slice(l.names, func(i, j int) bool {
		li, lj := utf8.RuneCountInString(l.names[i]), utf8.RuneCountInString(l.names[j])
		if li != lj {
			return li > lj
		}
		return l.names[i] < l.names[j]
	})
	return l
}

// Get returns the dam ID registered under an already normalized name.
func (l *NameLookup) Get(name string) (string, bool) {
	id, ok := l.ids[name]
	return id, ok
}

// Len returns the number of distinct names.
func (l *NameLookup) Len() int { return len(l.ids) }

// Matcher resolves upstream station names to curated dam IDs.
type Matcher struct {
	lookup   *NameLookup
	aliases  map[string]string
	stripper *strings.Replacer
}

// NewMatcher builds a matcher. Alias keys and targets are normalized; each
// qualifier is stripped in both its ASCII "(x)" and full-width "（x）" form.
func NewMatcher(lookup *NameLookup, aliases map[string]string, qualifiers []string) *Matcher {
	normalized := make(map[string]string, len(aliases))
	for from, to := range aliases {
		normalized[NormalizeName(from)] = NormalizeName(to)
	}

	pairs := make([]string, 0, len(qualifiers)*4)
	for _, q := range qualifiers {
		q = NormalizeName(q)
		if q == "" {
			continue
		}
		pairs = append(pairs, "("+q+")", "", "（"+q+"）", "")
	}

	return &Matcher{
		lookup:   lookup,
		aliases:  normalized,
		stripper: strings.NewReplacer(pairs...),
	}
}

// Match returns the curated dam ID for an upstream station name. The rules are
// tried in order: exact name, name without qualifiers, alias, and finally the
// longest curated name that is a strict prefix of the candidate.
func (m *Matcher) Match(name string) (string, MatchKind, bool) {
	n := NormalizeName(name)
	if n == "" {
		return "", MatchNone, false
	}

	if id, ok := m.lookup.Get(n); ok {
		return id, MatchExact, true
	}

	stripped := m.strip(n)
	if stripped != n {
		if id, ok := m.lookup.Get(stripped); ok {
			return id, MatchSuffix, true
		}
	}

	candidate := n
	for _, key := range []string{n, stripped} {
		target, ok := m.aliases[key]
		if !ok {
			continue
		}
		candidate = target
		if id, ok := m.lookup.Get(target); ok {
			return id, MatchAlias, true
		}
		if id, ok := m.lookup.Get(m.strip(target)); ok {
			return id, MatchAlias, true
		}
		break
	}

	for _, known := range m.lookup.names {
		if len(candidate) > len(known) && strings.HasPrefix(candidate, known) {
			return m.lookup.ids[known], MatchPrefix, true
		}
	}

	return "", MatchNone, false
}

func (m *Matcher) strip(name string) string {
	return m.stripper.Replace(name)
}
