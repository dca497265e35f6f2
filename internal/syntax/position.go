package syntax

import (
	"unicode/utf16"
	"unicode/utf8"

	"go.lsp.dev/protocol"
)

// OffsetAt converts a protocol position (0-based line, UTF-16 code units)
// to a byte offset in text. Positions past the end of a line clamp to the
// line end and positions past the last line clamp to len(text).
func OffsetAt(text string, pos protocol.Position) int {
	offset := 0
	for line := uint32(0); line < pos.Line; line++ {
		next := indexByteFrom(text, '\n', offset)
		if next < 0 {
			return len(text)
		}
		offset = next + 1
	}

	units := uint32(0)
	for offset < len(text) && units < pos.Character {
		r, size := utf8.DecodeRuneInString(text[offset:])
		if r == '\n' {
			break
		}
		if r == '\r' && offset+1 < len(text) && text[offset+1] == '\n' {
			break
		}
		n := utf16.RuneLen(r)
		if n < 0 {
			n = 1
		}
		units += uint32(n)
		offset += size
	}
	return offset
}

// PositionAt is the inverse of OffsetAt
func PositionAt(text string, offset int) protocol.Position {
	if offset > len(text) {
		offset = len(text)
	}
	if offset < 0 {
		offset = 0
	}

	var line, lineStart int
	for i := 0; i < offset; i++ {
		if text[i] == '\n' {
			line++
			lineStart = i + 1
		}
	}

	units := 0
	for i := lineStart; i < offset; {
		r, size := utf8.DecodeRuneInString(text[i:])
		n := utf16.RuneLen(r)
		if n < 0 {
			n = 1
		}
		units += n
		i += size
	}
	return protocol.Position{Line: uint32(line), Character: uint32(units)}
}

// RangeOf converts a byte range to a protocol range
func RangeOf(text string, start, end int) protocol.Range {
	return protocol.Range{Start: PositionAt(text, start), End: PositionAt(text, end)}
}

func indexByteFrom(s string, c byte, from int) int {
	for i := from; i < len(s); i++ {
		if s[i] == c {
			return i
		}
	}
	return -1
}
