package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"memeful/internal/imgcache"
	"memeful/internal/ui"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or remove downloaded images",
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached downloads",
	Args:  cobra.NoArgs,
	RunE:  runCacheList,
}

var cacheCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove the image cache directory",
	Args:  cobra.NoArgs,
	RunE:  runCacheClean,
}

var cacheListFormat string

func init() {
	cacheListCmd.Flags().StringVar(&cacheListFormat, "format", "pretty", "output format (pretty|json)")
	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheCleanCmd)
}

type cacheEntryPayload struct {
	URL       string    `json:"url"`
	File      string    `json:"file"`
	Size      int64     `json:"size"`
	Format    string    `json:"format"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	FetchedAt time.Time `json:"fetched_at"`
}

func runCacheList(cmd *cobra.Command, _ []string) error {
	format := strings.ToLower(cacheListFormat)
	if format != "pretty" && format != "json" {
		return fmt.Errorf("unsupported format %q (must be pretty or json)", cacheListFormat)
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	entries, err := store.List()
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", store.Dir(), err)
	}
	if format == "json" {
		payload := make([]cacheEntryPayload, 0, len(entries))
		for _, m := range entries {
			payload = append(payload, cacheEntryPayload{
				URL:       m.URL,
				File:      m.File,
				Size:      m.Size,
				Format:    m.Format,
				Width:     m.Width,
				Height:    m.Height,
				FetchedAt: m.FetchedAt,
			})
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	}
	renderCacheList(cmd.OutOrStdout(), store.Dir(), entries, quiet(cmd))
	return nil
}

func renderCacheList(out io.Writer, dir string, entries []imgcache.Meta, quiet bool) {
	if !quiet {
		fmt.Fprintf(out, "%s %s\n", fileColor.Sprint(dir), dimColor.Sprintf("(%d images)", len(entries)))
	}
	for _, m := range entries {
		url := runewidth.FillRight(ui.Truncate(m.URL, 60), 60)
		fmt.Fprintf(out, "%s  %-5s %5dx%-5d %8s  %s\n", url, m.Format, m.Width, m.Height, humanSize(m.Size), dimColor.Sprint(m.File))
	}
}

func runCacheClean(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	if err := store.Clean(); err != nil {
		return err
	}
	if !quiet(cmd) {
		fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", store.Dir())
	}
	return nil
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
