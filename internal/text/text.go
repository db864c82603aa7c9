package text

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// invisible runes that PDF producers leave inside words
var invisible = map[rune]bool{
	'\u00ad': true, '\u200b': true, '\u200c': true, '\u200d': true, '\u2060': true, '\ufeff': true,
}

func HasVisibleContent(text string) bool {
	for _, r := range text {
		if !unicode.IsSpace(r) && unicode.IsGraphic(r) && !invisible[r] {
			return true
		}
	}
	return false
}

func NormalizeText(input string) string {
	if input == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(input))
	lastSpace, lastWasNewline := true, false
	for _, c := range input {
		if c == '\r' || invisible[c] {
			continue
		}
		if c == '\n' {
			if b.Len() > 0 {
				if s := b.String(); s[len(s)-1] == ' ' {
					b.Reset()
					b.WriteString(s[:len(s)-1])
				}
			}
			if !lastWasNewline {
				b.WriteByte('\n')
			}
			lastSpace, lastWasNewline = true, true
			continue
		}
		lastWasNewline = false
		if unicode.IsSpace(c) {
			if !lastSpace && b.Len() > 0 {
				b.WriteByte(' ')
				lastSpace = true
			}
			continue
		}
		b.WriteRune(c)
		lastSpace = false
	}
	return strings.TrimRight(b.String(), " \n")
}

// NormalizeCell folds compatibility forms (ligatures, full-width digits,
// non-breaking spaces) with NFKC and collapses whitespace to single spaces on
// one line.
func NormalizeCell(s string) string {
	if s == "" {
		return ""
	}
	s = norm.NFKC.String(s)
	s = strings.ReplaceAll(NormalizeText(s), "\n", " ")
	return strings.TrimSpace(s)
}

// JoinWords joins word texts with single spaces, skipping blank ones.
func JoinWords(words []string) string {
	parts := make([]string, 0, len(words))
	for _, w := range words {
		if HasVisibleContent(w) {
			parts = append(parts, w)
		}
	}
	return NormalizeCell(strings.Join(parts, " "))
}
