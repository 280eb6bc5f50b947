// Package check resolves every image directive in a set of files without an
// editor attached.
package check

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"memeful/internal/dialect"
	"memeful/internal/linestate"
	"memeful/internal/observ"
	"memeful/internal/overlay"
	"memeful/internal/trace"
	"memeful/internal/ui"
)

// Options configures a run.
type Options struct {
	Files []string
	// Dialect forces one comment syntax for every file when set.
	Dialect   *dialect.Kind
	Languages map[string]dialect.Kind
	Fetcher   linestate.Fetcher
	Jobs      int
	// Progress, when non-nil, receives per-file events. It is not closed.
	Progress chan<- ui.Event
	Timer    *observ.Timer
}

// LineReport is the final outcome of one directive line.
type LineReport struct {
	Line    int     `json:"line"`
	Kind    string  `json:"kind"`
	Source  string  `json:"source,omitempty"`
	Path    string  `json:"path,omitempty"`
	Scale   float64 `json:"scale,omitempty"`
	Width   int     `json:"width,omitempty"`
	Height  int     `json:"height,omitempty"`
	Code    string  `json:"code,omitempty"`
	Message string  `json:"message,omitempty"`
}

// FileReport collects the directive lines of one file.
type FileReport struct {
	Path    string       `json:"path"`
	Dialect string       `json:"dialect"`
	Lines   []LineReport `json:"lines"`
	Err     string       `json:"error,omitempty"`
}

// Failed counts lines that ended in error.
func (r FileReport) Failed() int {
	n := 0
	for _, l := range r.Lines {
		if l.Kind == linestate.Failed.String() {
			n++
		}
	}
	return n
}

// HasErrors reports whether any file failed to load or has an error line.
func HasErrors(reports []FileReport) bool {
	for _, r := range reports {
		if r.Err != "" || r.Failed() > 0 {
			return true
		}
	}
	return false
}

// Run checks every file. Reports keep the order of opts.Files. Per-file
// problems land in the report; the error is only for cancellation.
func Run(ctx context.Context, opts Options) ([]FileReport, error) {
	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	reports := make([]FileReport, len(opts.Files))
	dispatcher := overlay.NewDispatcher()
	defer dispatcher.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, min(jobs, len(opts.Files))))
	for i, path := range opts.Files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			report, err := checkFile(gctx, path, opts, dispatcher)
			if err != nil {
				return err
			}
			reports[i] = report
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return reports, err
	}
	return reports, nil
}

type fileText []string

func (f fileText) LineText(line int) (string, bool) {
	if line < 0 || line >= len(f) {
		return "", false
	}
	return f[line], true
}

func checkFile(ctx context.Context, path string, opts Options, dispatcher *overlay.Dispatcher) (FileReport, error) {
	report := FileReport{Path: path}
	if opts.Timer != nil {
		idx := opts.Timer.Begin("resolve " + filepath.Base(path))
		defer func() {
			opts.Timer.End(idx, fmt.Sprintf("%d directives", len(report.Lines)))
		}()
	}
	emit(opts.Progress, ui.Event{File: path, Status: ui.StatusQueued})

	data, err := os.ReadFile(path)
	if err != nil {
		report.Err = err.Error()
		emit(opts.Progress, ui.Event{File: path, Status: ui.StatusError})
		return report, nil
	}
	lines := fileText(strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n"))

	kind := dialectFor(path, opts)
	report.Dialect = kind.String()

	var (
		mu       sync.Mutex
		outcomes = make(map[int]linestate.Outcome)
		settled  int
	)
	sink := overlay.SinkFunc(func(line int, o linestate.Outcome) {
		mu.Lock()
		defer mu.Unlock()
		prev, seen := outcomes[line]
		outcomes[line] = o
		wasSettled := seen && prev.Kind != linestate.Loading
		if o.Kind != linestate.Loading && !wasSettled {
			settled++
		}
		emit(opts.Progress, ui.Event{File: path, Status: ui.StatusResolving, Directives: len(outcomes), Settled: settled})
	})

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	sctx := trace.WithDocument(ctx, path)
	session := overlay.NewSession(sctx, overlay.Options{
		Dialect:    kind,
		BaseDir:    filepath.Dir(abs),
		Dispatcher: dispatcher,
		Fetcher:    opts.Fetcher,
		Text:       lines,
		Sink:       sink,
	})
	defer session.Close()

	span := trace.Begin(trace.FromContext(sctx), trace.ScopeSession, "check")
	session.NotifyRange(0, len(lines))
	session.Flush()
	if err := session.Wait(ctx); err != nil {
		span.End("canceled")
		return report, err
	}
	span.End("")

	for _, rec := range session.Snapshot() {
		report.Lines = append(report.Lines, lineReport(rec))
	}
	sort.Slice(report.Lines, func(i, j int) bool { return report.Lines[i].Line < report.Lines[j].Line })

	final := ui.Event{File: path, Status: ui.StatusDone, Directives: len(report.Lines), Settled: len(report.Lines), Failed: report.Failed()}
	if final.Failed > 0 {
		final.Status = ui.StatusError
	}
	emit(opts.Progress, final)
	return report, nil
}

func lineReport(rec linestate.Record) LineReport {
	lr := LineReport{
		Line:   rec.Line,
		Source: rec.Source,
		Scale:  rec.Scale,
	}
	switch rec.Status {
	case linestate.StatusReady:
		lr.Kind = linestate.Ready.String()
		lr.Path = rec.LocalPath
		lr.Width, lr.Height = rec.Width, rec.Height
	case linestate.StatusError:
		lr.Kind = linestate.Failed.String()
		lr.Code = rec.Diagnostic.Code.ID()
		lr.Message = rec.Diagnostic.Text()
	default:
		lr.Kind = linestate.Loading.String()
	}
	return lr
}

func dialectFor(path string, opts Options) dialect.Kind {
	if opts.Dialect != nil {
		return *opts.Dialect
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if k, ok := opts.Languages[ext]; ok {
		return k
	}
	k, _ := dialect.ForPath(path)
	return k
}

func emit(ch chan<- ui.Event, ev ui.Event) {
	if ch != nil {
		ch <- ev
	}
}
