package version

import (
	"testing"

	"github.com/fatih/color"
)

func TestColoredPlain(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = prev }()

	orig := Version
	defer func() { Version = orig }()

	tests := []struct {
		version string
		want    string
	}{
		{"0.1.0-dev", "0.1.0-dev"},
		{"1.2.3", "1.2.3"},
		{"1.0.0-rc.1+build.7", "1.0.0-rc.1+build.7"},
		{"nightly", "nightly"},
	}
	for _, tc := range tests {
		Version = tc.version
		if got := Colored(); got != tc.want {
			t.Errorf("Colored() for %q = %q, want %q", tc.version, got, tc.want)
		}
	}
}

func TestUserAgent(t *testing.T) {
	orig := Version
	defer func() { Version = orig }()

	Version = "1.2.3"
	if got := UserAgent(); got != "memeful/1.2.3" {
		t.Fatalf("UserAgent() = %q", got)
	}
}
