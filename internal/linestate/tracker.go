package linestate

import (
	"context"
	"errors"
	"net/url"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"memeful/internal/diag"
	"memeful/internal/directive"
	"memeful/internal/fetch"
	"memeful/internal/imgcache"
	"memeful/internal/trace"
)

// Fetcher resolves a remote URL to a local file.
type Fetcher interface {
	RequestFetch(url string, onComplete func(fetch.Result))
}

// Record is the state of one directive line.
type Record struct {
	Line      int
	Source    string
	Scale     float64
	Column    int
	Status    Status
	LocalPath string
	Width     int
	Height    int
	// Diagnostic is valid when Status is StatusError.
	Diagnostic diag.Diagnostic

	gen         uint64
	parseFailed bool
}

// Tracker owns the records of one document.
type Tracker struct {
	mu       sync.Mutex
	baseDir  string
	fetcher  Fetcher
	publish  PublishFunc
	tracer   trace.Tracer
	records  map[int]*Record
	gen      uint64
	inflight int
	idle     chan struct{}
}

// NewTracker creates a tracker. baseDir anchors relative local paths; the
// tracer is taken from ctx.
func NewTracker(ctx context.Context, baseDir string, fetcher Fetcher, publish PublishFunc) *Tracker {
	if publish == nil {
		publish = func(int, Outcome) {}
	}
	return &Tracker{
		baseDir: baseDir,
		fetcher: fetcher,
		publish: publish,
		tracer:  trace.FromContext(ctx),
		records: make(map[int]*Record),
	}
}

// SetBaseDir changes the directory relative paths resolve against.
func (t *Tracker) SetBaseDir(dir string) {
	t.mu.Lock()
	t.baseDir = dir
	t.mu.Unlock()
}

// Resolve applies the directive found on line; nil means the line has none.
func (t *Tracker) Resolve(line int, d *directive.Directive) {
	t.mu.Lock()
	run := t.resolveLocked(line, d)
	t.mu.Unlock()
	if run != nil {
		run()
	}
}

func (t *Tracker) resolveLocked(line int, d *directive.Directive) func() {
	rec := t.records[line]
	if d == nil {
		if rec != nil {
			delete(t.records, line)
			t.emit(line, Outcome{Kind: Cleared})
		}
		return nil
	}
	if rec == nil {
		rec = &Record{Line: line}
		t.records[line] = rec
		rec.Source, rec.Scale, rec.Column = d.Source, d.Scale, d.Column
		return t.startLocked(rec)
	}

	rec.Column = d.Column
	if rec.Source != d.Source || rec.parseFailed {
		rec.Source, rec.Scale = d.Source, d.Scale
		return t.startLocked(rec)
	}
	if rec.Scale == d.Scale {
		return nil
	}
	rec.Scale = d.Scale
	switch rec.Status {
	case StatusReady:
		t.emit(line, t.readyOutcome(rec))
	case StatusError:
		return t.startLocked(rec)
	}
	// Loading: the completion publishes with the new scale.
	return nil
}

// Fail records a malformed directive on line. Nothing is fetched.
func (t *Tracker) Fail(line int, err error) {
	column := 0
	var perr *directive.ParseError
	if errors.As(err, &perr) {
		column = perr.Column
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	d := diagnosticFor(line, column, err)
	rec := t.records[line]
	if rec != nil && rec.parseFailed && rec.Diagnostic == d {
		return
	}
	if rec == nil {
		rec = &Record{Line: line}
		t.records[line] = rec
	}
	t.gen++
	*rec = Record{
		Line:        line,
		Column:      column,
		Status:      StatusError,
		Diagnostic:  d,
		gen:         t.gen,
		parseFailed: true,
	}
	t.emit(line, Outcome{Kind: Failed, Diagnostic: d})
}

// startLocked discards the prior resolution of rec and begins a new one.
// The returned function, if any, must run after the lock is released.
func (t *Tracker) startLocked(rec *Record) func() {
	t.gen++
	rec.gen = t.gen
	rec.parseFailed = false
	rec.LocalPath, rec.Width, rec.Height = "", 0, 0
	rec.Diagnostic = diag.Diagnostic{}

	if !IsRemote(rec.Source) {
		t.resolveLocalLocked(rec)
		return nil
	}

	rec.Status = StatusLoading
	t.emit(rec.Line, Outcome{Kind: Loading, Scale: rec.Scale})
	if t.fetcher == nil {
		return nil
	}
	t.beginFlightLocked()
	line, gen, source := rec.Line, rec.gen, rec.Source
	return func() {
		t.fetcher.RequestFetch(source, func(res fetch.Result) {
			t.complete(line, gen, source, res)
		})
	}
}

func (t *Tracker) resolveLocalLocked(rec *Record) {
	path := t.localPath(rec.Source)
	info, err := imgcache.ProbeFile(path)
	if err != nil {
		var derr *imgcache.DecodeError
		if !errors.As(err, &derr) {
			err = &LocalError{Path: path, Err: err}
		}
		t.failLocked(rec, err)
		return
	}
	rec.Status = StatusReady
	rec.LocalPath = path
	rec.Width, rec.Height = info.Width, info.Height
	t.emit(rec.Line, t.readyOutcome(rec))
}

func (t *Tracker) complete(line int, gen uint64, source string, res fetch.Result) {
	t.mu.Lock()
	defer t.mu.Unlock()
	defer t.endFlightLocked()

	rec := t.records[line]
	if rec == nil || rec.gen != gen || rec.Source != source {
		trace.Point(t.tracer, trace.ScopeLine, "stale_completion", "line:"+strconv.Itoa(line)+" "+source)
		return
	}
	if res.Err != nil {
		t.failLocked(rec, res.Err)
		return
	}
	info, err := imgcache.ProbeFile(res.Path)
	if err != nil {
		var derr *imgcache.DecodeError
		if !errors.As(err, &derr) {
			err = &LocalError{Path: res.Path, Err: err}
		}
		t.failLocked(rec, err)
		return
	}
	rec.Status = StatusReady
	rec.LocalPath = res.Path
	rec.Width, rec.Height = info.Width, info.Height
	t.emit(line, t.readyOutcome(rec))
}

func (t *Tracker) failLocked(rec *Record, err error) {
	rec.Status = StatusError
	rec.Diagnostic = diagnosticFor(rec.Line, rec.Column, err)
	t.emit(rec.Line, Outcome{Kind: Failed, Scale: rec.Scale, Diagnostic: rec.Diagnostic})
}

func (t *Tracker) readyOutcome(rec *Record) Outcome {
	return Outcome{
		Kind:   Ready,
		Path:   rec.LocalPath,
		Scale:  rec.Scale,
		Width:  rec.Width,
		Height: rec.Height,
	}
}

func (t *Tracker) emit(line int, o Outcome) {
	trace.Point(t.tracer, trace.ScopeLine, "line:"+strconv.Itoa(line), o.Kind.String())
	t.publish(line, o)
}

// RetryFailed re-requests every line whose resolution failed. Lines with
// malformed directives are left alone.
func (t *Tracker) RetryFailed() int {
	t.mu.Lock()
	var runs []func()
	for _, line := range t.sortedLinesLocked() {
		rec := t.records[line]
		if rec.Status != StatusError || rec.parseFailed {
			continue
		}
		if run := t.startLocked(rec); run != nil {
			runs = append(runs, run)
		}
	}
	t.mu.Unlock()
	for _, run := range runs {
		run()
	}
	return len(runs)
}

// Reset drops every record, publishing Cleared for each line.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, line := range t.sortedLinesLocked() {
		delete(t.records, line)
		t.emit(line, Outcome{Kind: Cleared})
	}
}

// Lookup returns a copy of the record for line.
func (t *Tracker) Lookup(line int) (Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[line]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// Snapshot returns copies of all records ordered by line.
func (t *Tracker) Snapshot() []Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	lines := t.sortedLinesLocked()
	out := make([]Record, 0, len(lines))
	for _, line := range lines {
		out = append(out, *t.records[line])
	}
	return out
}

// Len returns the number of records.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}

// WaitIdle blocks until no remote resolution is in flight or ctx ends.
func (t *Tracker) WaitIdle(ctx context.Context) error {
	t.mu.Lock()
	if t.inflight == 0 {
		t.mu.Unlock()
		return nil
	}
	ch := t.idle
	t.mu.Unlock()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Tracker) beginFlightLocked() {
	if t.inflight == 0 {
		t.idle = make(chan struct{})
	}
	t.inflight++
}

func (t *Tracker) endFlightLocked() {
	t.inflight--
	if t.inflight == 0 {
		close(t.idle)
	}
}

func (t *Tracker) sortedLinesLocked() []int {
	lines := make([]int, 0, len(t.records))
	for line := range t.records {
		lines = append(lines, line)
	}
	sort.Ints(lines)
	return lines
}

func (t *Tracker) localPath(source string) string {
	if hasSchemeFold(source, "file://") {
		if u, err := url.Parse(source); err == nil && u.Path != "" {
			return filepath.FromSlash(u.Path)
		}
		return filepath.FromSlash(source[len("file://"):])
	}
	if filepath.IsAbs(source) || t.baseDir == "" {
		return source
	}
	return filepath.Join(t.baseDir, source)
}

// IsRemote reports whether source is fetched over http or https.
func IsRemote(source string) bool {
	return hasSchemeFold(source, "http://") || hasSchemeFold(source, "https://")
}

func hasSchemeFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
