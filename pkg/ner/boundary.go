package ner

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// RE2's \b, \s and \d are ASCII only. Prescriptions come out of OCR with
// NBSPs, non-Latin digits and accented letters, so the patterns below use
// these Unicode classes instead.
const (
	wordClass  = `\p{L}\p{N}_`
	spaceClass = `[\s\v\x{1c}-\x{1f}\x{85}\p{Z}]`
	digitClass = `\p{Nd}`

	// wordEnd closes a pattern whose last rune is a word rune.
	wordEnd = `(?:$|[^` + wordClass + `])`
	// nonWordEnd closes a pattern whose last rune is not a word rune.
	nonWordEnd = `[` + wordClass + `]`
)

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

func isSpace(r rune) bool {
	return unicode.IsSpace(r) || (r >= 0x1c && r <= 0x1f)
}

func trimSpace(s string) string {
	return strings.TrimFunc(s, isSpace)
}

func isLineBreak(r rune) bool {
	switch r {
	case '\n', '\r', '\v', '\f', 0x1c, 0x1d, 0x1e, 0x85, 0x2028, 0x2029:
		return true
	}
	return false
}

// boundedRe matches a pattern that starts on a word boundary. The leading
// boundary is checked here; the pattern spells out its trailing boundary,
// which may consume one rune past the match proper. The match proper is the
// first capture group that took part in the match.
type boundedRe struct {
	re *regexp.Regexp
}

func mustBounded(pattern string) boundedRe {
	return boundedRe{re: regexp.MustCompile(`^(?:` + pattern + `)`)}
}

// find returns submatch indexes into s for the first match at or after from.
func (b boundedRe) find(s string, from int) []int {
	for i := from; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if atBoundary(s, i, r) {
			if m := b.re.FindStringSubmatchIndex(s[i:]); m != nil {
				for j := range m {
					if m[j] >= 0 {
						m[j] += i
					}
				}
				return m
			}
		}
		i += size
	}
	return nil
}

func atBoundary(s string, i int, next rune) bool {
	prev := false
	if i > 0 {
		r, _ := utf8.DecodeLastRuneInString(s[:i])
		prev = isWordRune(r)
	}
	return prev != isWordRune(next)
}

func (b boundedRe) match(s string) bool {
	return b.find(s, 0) != nil
}

// submatch returns the capture groups of the first match, "" for groups that
// did not take part, or nil when nothing matches.
func (b boundedRe) submatch(s string) []string {
	m := b.find(s, 0)
	if m == nil {
		return nil
	}
	groups := make([]string, len(m)/2)
	for g := range groups {
		if m[2*g] >= 0 {
			groups[g] = s[m[2*g]:m[2*g+1]]
		}
	}
	return groups
}

// span returns the bounds of the match proper.
func span(m []int) (int, int) {
	for g := 1; 2*g < len(m); g++ {
		if m[2*g] >= 0 {
			return m[2*g], m[2*g+1]
		}
	}
	return m[0], m[1]
}

// replaceAll substitutes repl for every match proper, scanning left to right.
func (b boundedRe) replaceAll(s, repl string) string {
	var out strings.Builder
	last := 0
	for m := b.find(s, 0); m != nil; {
		start, end := span(m)
		out.WriteString(s[last:start])
		out.WriteString(repl)
		last = end
		m = b.find(s, end)
	}
	out.WriteString(s[last:])
	return out.String()
}
