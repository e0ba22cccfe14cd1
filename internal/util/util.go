// Package util provides small string helpers shared by search and views.
package util

import (
	"strings"
	"unicode"
)

// EscapeQuotes doubles embedded double quotes for use inside an FTS5 string.
func EscapeQuotes(s string) string {
	return strings.ReplaceAll(s, `"`, `""`)
}

// SearchTerms splits a user query into lowercase terms. Punctuation at the
// edges of a term is dropped; empty terms are skipped.
func SearchTerms(q string) []string {
	fields := strings.FieldsFunc(strings.ToLower(q), unicode.IsSpace)
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if f != "" {
			terms = append(terms, f)
		}
	}
	return terms
}

// FTSQuery builds an FTS5 MATCH expression where every term must match as a
// prefix. It returns "" when the query has no terms.
//
//	FTSQuery(`burn "man`) == `"burn"* "man"*`
func FTSQuery(q string) string {
	terms := SearchTerms(q)
	if len(terms) == 0 {
		return ""
	}
	var b strings.Builder
	for i, t := range terms {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteByte('"')
		b.WriteString(EscapeQuotes(t))
		b.WriteString(`"*`)
	}
	return b.String()
}

// MatchesAll reports whether every term occurs in one of the fields,
// case-insensitively.
func MatchesAll(terms []string, fields ...string) bool {
	lowered := make([]string, len(fields))
	for i, f := range fields {
		lowered[i] = strings.ToLower(f)
	}
	for _, t := range terms {
		found := false
		for _, f := range lowered {
			if strings.Contains(f, t) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// SectionLetter returns the uppercase first letter of a title, or "#" when
// the title does not start with a letter. Leading "The " is ignored.
func SectionLetter(title string) string {
	t := strings.TrimSpace(title)
	if len(t) > 4 && strings.EqualFold(t[:4], "the ") {
		t = strings.TrimSpace(t[4:])
	}
	for _, r := range t {
		if unicode.IsLetter(r) {
			return string(unicode.ToUpper(r))
		}
		return "#"
	}
	return "#"
}

// SortKey is the case-folded title used for alphabetical ordering.
func SortKey(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}
