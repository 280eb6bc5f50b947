package ui

import (
	"strings"
	"testing"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"short.go", 20, "short.go"},
		{"a/very/long/path/to/file.go", 10, "a/very/..."},
		{"abcdef", 2, "ab"},
		{"日本語のファイル.md", 8, "日本..."},
		{"anything", 0, "anything"},
	}
	for _, tc := range tests {
		if got := Truncate(tc.in, tc.width); got != tc.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tc.in, tc.width, got, tc.want)
		}
	}
}

func TestProgressModelAppliesEvents(t *testing.T) {
	events := make(chan Event)
	m := NewProgressModel("check", []string{"a.go", "b.py"}, events).(*progressModel)

	m.applyEvent(Event{File: "a.go", Status: StatusResolving, Directives: 4, Settled: 2})
	if p := m.percent(); p <= 0 || p >= 0.5 {
		t.Fatalf("unexpected percent %v", p)
	}
	m.applyEvent(Event{File: "a.go", Status: StatusDone, Directives: 4, Settled: 4})
	m.applyEvent(Event{File: "b.py", Status: StatusError, Directives: 1, Settled: 1, Failed: 1})
	m.applyEvent(Event{File: "unknown.go", Status: StatusDone})
	if p := m.percent(); p != 1 {
		t.Fatalf("expected complete, got %v", p)
	}

	view := m.View()
	if !strings.Contains(view, "1 failed") || !strings.Contains(view, "4/4") {
		t.Fatalf("unexpected view:\n%s", view)
	}
}
