package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"memeful/internal/check"
	"memeful/internal/ui"
)

type checkOutcome struct {
	reports []check.FileReport
	err     error
}

func runCheckWithUI(ctx context.Context, title string, opts check.Options) ([]check.FileReport, error) {
	events := make(chan ui.Event, 256)
	outcomeCh := make(chan checkOutcome, 1)

	go func() {
		opts.Progress = events
		reports, err := check.Run(ctx, opts)
		outcomeCh <- checkOutcome{reports: reports, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, opts.Files, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	// keep the run unblocked if the view quit early
	go func() {
		for range events {
		}
	}()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.reports, uiErr
	}
	return outcome.reports, outcome.err
}
