package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"memeful/internal/lsp"
	"memeful/internal/overlay"
	"memeful/internal/version"
)

var lspCmd = &cobra.Command{
	Use:          "lsp",
	Short:        "Run the memeful language server over stdio",
	SilenceUsage: true,
	RunE:         runLSP,
}

func runLSP(cmd *cobra.Command, _ []string) error {
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
	server := lsp.NewServer(os.Stdin, os.Stdout, lsp.ServerOptions{
		Debounce:  cfg.Debounce,
		Fetcher:   coord,
		Switch:    overlay.NewSwitch(cfg.Enabled),
		Languages: cfg.Languages,
		Version:   version.Version,
	})
	if err := server.Run(cmd.Context()); err != nil {
		if errors.Is(err, lsp.ErrExit) {
			return nil
		}
		if errors.Is(err, lsp.ErrExitWithoutShutdown) {
			return fmt.Errorf("lsp exit without shutdown")
		}
		return err
	}
	return nil
}
