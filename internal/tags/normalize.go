// Package tags normalizes free-form tag names and attaches them to events.
package tags

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultAmpReplacement is substituted for a literal "&amp;" in tag names.
const DefaultAmpReplacement = "and"

// Normalizer maps raw tag text to its canonical name.
type Normalizer struct {
	AmpReplacement string
}

// NewNormalizer returns a Normalizer using repl for "&amp;", or the
// default when repl is empty.
func NewNormalizer(repl string) Normalizer {
	if repl == "" {
		repl = DefaultAmpReplacement
	}
	return Normalizer{AmpReplacement: repl}
}

// Normalize collapses anything mentioning "sport" to "Sports", replaces the
// escaped ampersand and title-cases each whitespace-separated word.
// Normalize(Normalize(x)) == Normalize(x).
func (n Normalizer) Normalize(raw string) string {
	if strings.Contains(strings.ToLower(raw), "sport") {
		return "Sports"
	}
	return titleWords(n.replaceAmp(raw))
}

var escapedAmp = regexp.MustCompile(`(?i)&amp;`)

// replaceAmp replaces the escaped ampersand in any letter case until none
// is left, so double-escaped input ("&amp;amp;") also settles. Title-casing
// lower-cases "&AMP;" into "&amp;", hence the case-insensitive match.
func (n Normalizer) replaceAmp(s string) string {
	for i := 0; i <= len(s) && escapedAmp.MatchString(s); i++ {
		s = escapedAmp.ReplaceAllLiteralString(s, n.AmpReplacement)
	}
	return s
}

// titleWords upper-cases the first rune of every word and lower-cases the
// rest. Unlike golang.org/x/text/cases it does not treat punctuation as a
// word boundary, so "rock'n'roll" becomes "Rock'n'roll".
func titleWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + strings.ToLower(w[size:])
	}
	return strings.Join(words, " ")
}
