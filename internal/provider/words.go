package provider

import (
	"slices"
	"unicode"
	"unicode/utf8"
)

// languages is a set of language tags. An empty set matches every language.
type languages []string

func (l languages) Supports(language string) bool {
	return len(l) == 0 || slices.Contains(l, language)
}

func isWordRune(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// wordBounds returns the identifier around offset as a byte range. The
// offset may sit just past the last character.
func wordBounds(text string, offset int) (int, int) {
	if offset < 0 || offset > len(text) {
		return offset, offset
	}

	start := offset
	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(text[:start])
		if !isWordRune(r) {
			break
		}
		start -= size
	}

	end := offset
	for end < len(text) {
		r, size := utf8.DecodeRuneInString(text[end:])
		if !isWordRune(r) {
			break
		}
		end += size
	}
	return start, end
}

// wordAt returns the identifier around offset without a PHP variable sigil
func wordAt(text string, offset int) string {
	start, end := wordBounds(text, offset)
	word := text[start:end]
	if len(word) > 1 && word[0] == '$' {
		word = word[1:]
	}
	return word
}
