package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"memeful/internal/check"
	"memeful/internal/directive"
	"memeful/internal/linestate"
	"memeful/internal/ui"
)

const maxSourceWidth = 48

var (
	fileColor  = color.New(color.Bold)
	readyColor = color.New(color.FgGreen)
	errorColor = color.New(color.FgRed, color.Bold)
	dimColor   = color.New(color.Faint)
)

// printReports renders one block per file. Quiet mode keeps only errors.
func printReports(out io.Writer, reports []check.FileReport, quiet bool) {
	var directives, failed, broken int
	for _, r := range reports {
		directives += len(r.Lines)
		failed += r.Failed()
		if r.Err != "" {
			broken++
			fmt.Fprintf(out, "%s: %s\n", fileColor.Sprint(r.Path), errorColor.Sprint(r.Err))
			continue
		}
		if quiet && r.Failed() == 0 {
			continue
		}
		if len(r.Lines) == 0 {
			continue
		}
		fmt.Fprintf(out, "%s %s\n", fileColor.Sprint(r.Path), dimColor.Sprintf("(%s)", r.Dialect))
		width := sourceWidth(r.Lines)
		for _, l := range r.Lines {
			if quiet && l.Kind != linestate.Failed.String() {
				continue
			}
			fmt.Fprintln(out, formatLine(l, width))
		}
	}
	if quiet {
		return
	}
	summary := fmt.Sprintf("%d directives in %d files, %d errors", directives, len(reports), failed)
	if broken > 0 {
		summary += fmt.Sprintf(", %d unreadable files", broken)
	}
	if failed > 0 || broken > 0 {
		fmt.Fprintln(out, errorColor.Sprint(summary))
		return
	}
	fmt.Fprintln(out, readyColor.Sprint(summary))
}

func sourceWidth(lines []check.LineReport) int {
	width := 0
	for _, l := range lines {
		width = max(width, runewidth.StringWidth(l.Source))
	}
	return min(width, maxSourceWidth)
}

func formatLine(l check.LineReport, width int) string {
	lineNo := runewidth.FillLeft(strconv.Itoa(l.Line+1), 5)
	if l.Kind == linestate.Failed.String() {
		return fmt.Sprintf("%s  %s %s", lineNo, errorColor.Sprint(l.Code), l.Message)
	}
	source := runewidth.FillRight(ui.Truncate(l.Source, width), width)
	detail := fmt.Sprintf("%dx%d", l.Width, l.Height)
	if l.Scale != 0 && l.Scale != directive.DefaultScale {
		detail += " scale " + strconv.FormatFloat(l.Scale, 'g', -1, 64)
	}
	return fmt.Sprintf("%s  %s %s  %s", lineNo, readyColor.Sprint("ok"), source, dimColor.Sprint(detail))
}
