package syntax

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.lsp.dev/protocol"
)

func TestOffsetAt(t *testing.T) {
	// line 1: é is 2 bytes/1 unit, € is 3 bytes/1 unit, 😀 is 4 bytes/2 units
	text := "ab\né€😀b\nlast"

	tests := []struct {
		name string
		pos  protocol.Position
		want int
	}{
		{"origin", protocol.Position{Line: 0, Character: 0}, 0},
		{"first line", protocol.Position{Line: 0, Character: 1}, 1},
		{"line start", protocol.Position{Line: 1, Character: 0}, 3},
		{"after two-byte rune", protocol.Position{Line: 1, Character: 1}, 5},
		{"after surrogate pair", protocol.Position{Line: 1, Character: 4}, 12},
		{"clamped to line end", protocol.Position{Line: 1, Character: 99}, 13},
		{"last line", protocol.Position{Line: 2, Character: 2}, 16},
		{"past last line", protocol.Position{Line: 9, Character: 0}, len(text)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OffsetAt(text, tt.pos))
		})
	}
}

func TestOffsetAt_CRLF(t *testing.T) {
	text := "ab\r\ncd"
	assert.Equal(t, 2, OffsetAt(text, protocol.Position{Line: 0, Character: 5}))
	assert.Equal(t, 5, OffsetAt(text, protocol.Position{Line: 1, Character: 1}))
}

func TestPositionAt_RoundTrip(t *testing.T) {
	text := "ab\né€😀b\nlast"
	for _, pos := range []protocol.Position{
		{Line: 0, Character: 2},
		{Line: 1, Character: 2},
		{Line: 1, Character: 4},
		{Line: 2, Character: 4},
	} {
		assert.Equal(t, pos, PositionAt(text, OffsetAt(text, pos)))
	}

	assert.Equal(t, protocol.Position{Line: 2, Character: 4}, PositionAt(text, 1000))
}

func TestRangeOf(t *testing.T) {
	r := RangeOf("func main() {}\n", 5, 9)
	assert.Equal(t, protocol.Range{
		Start: protocol.Position{Line: 0, Character: 5},
		End:   protocol.Position{Line: 0, Character: 9},
	}, r)
}
