package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"memeful/internal/config"
	"memeful/internal/fetch"
	"memeful/internal/imgcache"
	"memeful/internal/version"
)

func applyColorMode(cmd *cobra.Command) error {
	mode, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return fmt.Errorf("failed to get color flag: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	case "", "auto":
		color.NoColor = !isTerminal(os.Stdout) || os.Getenv("NO_COLOR") != ""
	default:
		return fmt.Errorf("invalid --color value %q (expected auto|on|off)", mode)
	}
	return nil
}

func quiet(cmd *cobra.Command) bool {
	q, err := cmd.Root().PersistentFlags().GetBool("quiet")
	return err == nil && q
}

// loadConfig honors --config, otherwise discovers memeful.toml from the
// working directory.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to get config flag: %w", err)
	}
	if path != "" {
		return config.Load(path)
	}
	return config.Discover(".")
}

func openStore(cfg config.Config) (*imgcache.Store, error) {
	dir := cfg.CacheDir
	if dir == "" {
		dir = imgcache.DefaultDir()
	}
	return imgcache.OpenStore(dir)
}

func newCoordinator(ctx context.Context, cfg config.Config) (*fetch.Coordinator, error) {
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	ua := cfg.Fetch.UserAgent
	if ua == fetch.DefaultUserAgent {
		ua = version.UserAgent()
	}
	transport := fetch.NewHTTPTransport(cfg.Fetch.Timeout, cfg.Fetch.MaxBytes, ua)
	return fetch.NewCoordinator(ctx, transport, store, imgcache.NewCache()), nil
}
