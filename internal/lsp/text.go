package lsp

import (
	"strings"
	"unicode/utf8"
)

func applyChanges(text string, changes []textDocumentContentChangeEvent) string {
	if len(changes) == 0 {
		return text
	}
	for _, change := range changes {
		if change.Range == nil {
			text = change.Text
			continue
		}
		start := offsetForPosition(text, change.Range.Start)
		end := offsetForPosition(text, change.Range.End)
		if start < 0 {
			start = 0
		}
		if end < start {
			end = start
		}
		if start > len(text) {
			start = len(text)
		}
		if end > len(text) {
			end = len(text)
		}
		text = text[:start] + change.Text + text[end:]
	}
	return text
}

// changedLines returns the half-open line range that must be re-read after
// changes are applied to a document of oldCount lines. When the line count
// moves, every line after the first edit is included, since records are
// keyed by line index and the shifted lines must be resolved again.
func changedLines(changes []textDocumentContentChangeEvent, oldCount, newCount int) (int, int) {
	if len(changes) == 0 {
		return 0, 0
	}
	tail := max(oldCount, newCount)
	from, to := -1, 0
	for _, change := range changes {
		if change.Range == nil {
			return 0, tail
		}
		start := change.Range.Start.Line
		removed := change.Range.End.Line - start
		added := strings.Count(change.Text, "\n")
		end := start + added + 1
		if removed != added {
			end = tail
		}
		if from < 0 || start < from {
			from = start
		}
		if end > to {
			to = end
		}
	}
	if from < 0 {
		from = 0
	}
	if to > tail {
		to = tail
	}
	return from, to
}

func offsetForPosition(text string, pos position) int {
	if pos.Line < 0 || pos.Character < 0 {
		return 0
	}
	line := 0
	i := 0
	for i < len(text) && line < pos.Line {
		if text[i] == '\n' {
			line++
		}
		i++
	}
	if line < pos.Line {
		return len(text)
	}
	utf16Units := 0
	for i < len(text) {
		if text[i] == '\n' {
			break
		}
		r, size := utf8.DecodeRuneInString(text[i:])
		if r == utf8.RuneError && size == 1 {
			size = 1
		}
		need := 1
		if r > 0xFFFF {
			need = 2
		}
		if utf16Units+need > pos.Character {
			break
		}
		utf16Units += need
		i += size
		if utf16Units == pos.Character {
			break
		}
	}
	return i
}

// splitLines splits text on \n, dropping a trailing \r from each line.
func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}
