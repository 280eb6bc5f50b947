package main

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"

	"memeful/internal/version"
)

const versionTagline = "a picture is worth a thousand comments"

// buildFacts is what `memeful version` can report. Values stamped with
// -ldflags win; otherwise the VCS settings the Go toolchain embeds are used.
type buildFacts struct {
	Tool       string `json:"tool"`
	Version    string `json:"version"`
	Tagline    string `json:"tagline"`
	UserAgent  string `json:"user_agent"`
	GoVersion  string `json:"go_version"`
	GitCommit  string `json:"git_commit,omitempty"`
	GitMessage string `json:"git_message,omitempty"`
	BuildDate  string `json:"build_date,omitempty"`
	Modified   bool   `json:"modified,omitempty"`
}

type versionFlags struct {
	format  string
	hash    bool
	message bool
	date    bool
	full    bool
}

var versionOpts versionFlags

func init() {
	f := versionCmd.Flags()
	f.BoolVar(&versionOpts.hash, "hash", false, "include git commit hash")
	f.BoolVar(&versionOpts.message, "message", false, "include git commit message")
	f.BoolVar(&versionOpts.date, "date", false, "include build timestamp")
	f.BoolVar(&versionOpts.full, "full", false, "show every recorded bit of build metadata")
	f.StringVar(&versionOpts.format, "format", "pretty", "output format (pretty|json)")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show memeful build fingerprints",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		opts := versionOpts
		if opts.full {
			opts.hash, opts.message, opts.date = true, true, true
		}
		facts := selectFacts(collectBuildFacts(), opts)
		switch strings.ToLower(opts.format) {
		case "json":
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(facts)
		case "pretty":
			renderVersionPretty(cmd.OutOrStdout(), facts, opts)
			return nil
		default:
			return fmt.Errorf("unsupported format %q (must be pretty or json)", opts.format)
		}
	},
}

func collectBuildFacts() buildFacts {
	facts := buildFacts{
		Tool:       "memeful",
		Version:    strings.TrimSpace(version.Version),
		Tagline:    versionTagline,
		UserAgent:  version.UserAgent(),
		GoVersion:  runtime.Version(),
		GitCommit:  strings.TrimSpace(version.GitCommit),
		GitMessage: strings.TrimSpace(version.GitMessage),
		BuildDate:  strings.TrimSpace(version.BuildDate),
	}
	if facts.Version == "" {
		facts.Version = "dev"
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		applyVCSSettings(&facts, info.Settings)
	}
	return facts
}

func applyVCSSettings(facts *buildFacts, settings []debug.BuildSetting) {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if facts.GitCommit == "" {
				facts.GitCommit = s.Value
			}
		case "vcs.time":
			if facts.BuildDate == "" {
				facts.BuildDate = s.Value
			}
		case "vcs.modified":
			facts.Modified = s.Value == "true"
		}
	}
}

// selectFacts blanks what was not asked for and marks missing requested
// values as unknown.
func selectFacts(facts buildFacts, opts versionFlags) buildFacts {
	pick := func(want bool, v string) string {
		if !want {
			return ""
		}
		if v == "" {
			return "unknown"
		}
		return v
	}
	facts.GitCommit = pick(opts.hash, facts.GitCommit)
	facts.GitMessage = pick(opts.message, facts.GitMessage)
	facts.BuildDate = pick(opts.date, facts.BuildDate)
	if !opts.hash {
		facts.Modified = false
	}
	return facts
}

func renderVersionPretty(out io.Writer, facts buildFacts, opts versionFlags) {
	fmt.Fprintf(out, "memeful %s: %s\n", version.Colored(), facts.Tagline)
	if opts.hash {
		commit := facts.GitCommit
		if facts.Modified {
			commit += " (modified)"
		}
		fmt.Fprintf(out, "commit:  %s\n", commit)
	}
	if opts.message {
		fmt.Fprintf(out, "message: %s\n", facts.GitMessage)
	}
	if opts.date {
		fmt.Fprintf(out, "built:   %s\n", facts.BuildDate)
	}
	if opts.full {
		fmt.Fprintf(out, "go:      %s\n", facts.GoVersion)
	}
	if !opts.hash && !opts.message && !opts.date {
		fmt.Fprintln(out, "set --hash, --message, --date, or --full for more build trivia")
	}
}
