package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"memeful/internal/check"
	"memeful/internal/dialect"
	"memeful/internal/observ"
)

var checkCmd = &cobra.Command{
	Use:   "check <file>...",
	Short: "Resolve every image directive in the given files",
	Long: `Resolve every image directive in the given files the way the editor would:
remote images are downloaded into the cache, local paths are probed relative to
each file. Exits with status 1 when any directive ends in an error.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().String("format", "pretty", "output format (pretty|json)")
	checkCmd.Flags().String("dialect", "", "force a comment dialect (c|basic|fsharp|hash|markup)")
	checkCmd.Flags().String("ui", "auto", "live progress view (auto|on|off)")
	checkCmd.Flags().Bool("timings", false, "print per-file timings to stderr")
	checkCmd.Flags().Int("jobs", 0, "files resolved in parallel (0 = GOMAXPROCS)")
}

func runCheck(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	format = strings.ToLower(strings.TrimSpace(format))
	if format != "pretty" && format != "json" {
		return fmt.Errorf("unsupported format %q (must be pretty or json)", format)
	}
	dialectName, err := cmd.Flags().GetString("dialect")
	if err != nil {
		return fmt.Errorf("failed to get dialect flag: %w", err)
	}
	uiValue, err := cmd.Flags().GetString("ui")
	if err != nil {
		return fmt.Errorf("failed to get ui flag: %w", err)
	}
	mode, err := readUIMode(uiValue)
	if err != nil {
		return err
	}
	showTimings, err := cmd.Flags().GetBool("timings")
	if err != nil {
		return fmt.Errorf("failed to get timings flag: %w", err)
	}
	jobs, err := cmd.Flags().GetInt("jobs")
	if err != nil {
		return fmt.Errorf("failed to get jobs flag: %w", err)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cleanup, err := setupTracing(cmd, cfg)
	if err != nil {
		return err
	}
	defer cleanup()
	stopProfiling, err := setupProfiling(cmd)
	if err != nil {
		return err
	}
	defer stopProfiling()

	coord, err := newCoordinator(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	opts := check.Options{
		Files:     args,
		Languages: cfg.Languages,
		Fetcher:   coord,
		Jobs:      jobs,
	}
	if dialectName != "" {
		k, err := dialect.Parse(dialectName)
		if err != nil {
			return err
		}
		opts.Dialect = &k
	}
	var timer *observ.Timer
	if showTimings {
		timer = observ.NewTimer()
		opts.Timer = timer
	}

	var reports []check.FileReport
	if format == "pretty" && !quiet(cmd) && shouldUseTUI(mode) {
		reports, err = runCheckWithUI(cmd.Context(), "memeful check", opts)
	} else {
		reports, err = check.Run(cmd.Context(), opts)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(reports); err != nil {
			return err
		}
	} else {
		printReports(out, reports, quiet(cmd))
	}
	if timer != nil {
		fmt.Fprint(cmd.ErrOrStderr(), timer.Summary())
	}
	if check.HasErrors(reports) {
		return exitError{code: 1}
	}
	return nil
}
