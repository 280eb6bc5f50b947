package lsp

import (
	"unicode/utf8"

	"fortio.org/safecast"
)

const maxInt32 = int(^uint32(0) >> 1)

// clampCharacter keeps UTF-16 columns inside the uinteger range clients accept.
func clampCharacter(n int) int {
	if n < 0 {
		return 0
	}
	v, err := safecast.Conv[int32](n)
	if err != nil {
		return maxInt32
	}
	return int(v)
}

// utf16Column converts a byte offset within line to a UTF-16 column.
func utf16Column(line string, byteCol int) int {
	if byteCol <= 0 {
		return 0
	}
	if byteCol > len(line) {
		byteCol = len(line)
	}
	units := 0
	for off := 0; off < byteCol; {
		r, size := utf8.DecodeRuneInString(line[off:byteCol])
		if r > 0xFFFF {
			units += 2
		} else {
			units++
		}
		off += size
	}
	return clampCharacter(units)
}

// lineRange spans line from byte column start to end; end 0 means the end of
// the line.
func lineRange(lineNo int, text string, start, end int) lspRange {
	if end <= 0 || end > len(text) {
		end = len(text)
	}
	if start > end {
		start = end
	}
	return lspRange{
		Start: position{Line: lineNo, Character: utf16Column(text, start)},
		End:   position{Line: lineNo, Character: utf16Column(text, end)},
	}
}
