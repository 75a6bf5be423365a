// Package slug turns book titles into stable identifiers used as file stems.
package slug

import (
	"strings"
	"unicode"
)

// MaxLength is the maximum number of runes in a slug.
const MaxLength = 100

// Make lowercases title, replaces every rune that is neither a letter, a digit
// nor whitespace with a hyphen, joins whitespace runs with single hyphens,
// collapses repeated hyphens and truncates to MaxLength runes.
// Leading and trailing hyphens are dropped so "Atomic Habits!" and
// "atomic   habits" share a slug.
func Make(title string) string {
	var b strings.Builder
	b.Grow(len(title))

	pendingHyphen := false
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
		default:
			// whitespace and punctuation both become a separator
			pendingHyphen = true
		}
	}

	out := []rune(b.String())
	if len(out) > MaxLength {
		out = out[:MaxLength]
	}
	return strings.Trim(string(out), "-")
}
