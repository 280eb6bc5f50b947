package linestate

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"memeful/internal/diag"
	"memeful/internal/dialect"
	"memeful/internal/directive"
	"memeful/internal/fetch"
	"memeful/internal/imgcache"
)

type published struct {
	line int
	out  Outcome
}

type recorder struct {
	mu     sync.Mutex
	events []published
}

func (r *recorder) publish(line int, o Outcome) {
	r.mu.Lock()
	r.events = append(r.events, published{line: line, out: o})
	r.mu.Unlock()
}

func (r *recorder) kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Kind, len(r.events))
	for i, e := range r.events {
		out[i] = e.out.Kind
	}
	return out
}

func (r *recorder) last() published {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

// manualFetcher holds requests until the test completes them.
type manualFetcher struct {
	mu       sync.Mutex
	requests map[string][]func(fetch.Result)
	count    int
}

func newManualFetcher() *manualFetcher {
	return &manualFetcher{requests: make(map[string][]func(fetch.Result))}
}

func (f *manualFetcher) RequestFetch(url string, onComplete func(fetch.Result)) {
	f.mu.Lock()
	f.requests[url] = append(f.requests[url], onComplete)
	f.count++
	f.mu.Unlock()
}

func (f *manualFetcher) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}

func (f *manualFetcher) complete(url string, res fetch.Result) {
	f.mu.Lock()
	waiters := f.requests[url]
	delete(f.requests, url)
	f.mu.Unlock()
	res.URL = url
	for _, w := range waiters {
		w(res)
	}
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func parse(t *testing.T, text string) *directive.Directive {
	t.Helper()
	d, err := directive.Parse(dialect.C, text)
	if err != nil {
		t.Fatalf("Parse(%q): %v", text, err)
	}
	return &d
}

func TestPlainLineHasNoRecord(t *testing.T) {
	rec := &recorder{}
	tr := NewTracker(context.Background(), "", newManualFetcher(), rec.publish)
	tr.Resolve(3, nil)
	if tr.Len() != 0 || len(rec.kinds()) != 0 {
		t.Fatalf("plain line produced state: %d records, %v", tr.Len(), rec.kinds())
	}
}

func TestLocalFileReady(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "cat.png"), 5, 4)

	rec := &recorder{}
	f := newManualFetcher()
	tr := NewTracker(context.Background(), dir, f, rec.publish)
	tr.Resolve(0, parse(t, `// <image url="cat.png" scale="0.5"/>`))

	got := rec.last()
	if got.out.Kind != Ready || got.out.Path != filepath.Join(dir, "cat.png") || got.out.Scale != 0.5 {
		t.Fatalf("unexpected outcome %+v", got.out)
	}
	if got.out.Width != 5 || got.out.Height != 4 {
		t.Fatalf("unexpected size %dx%d", got.out.Width, got.out.Height)
	}
	if f.Count() != 0 {
		t.Fatal("local file triggered a fetch")
	}
}

func TestFileURIIsLocal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.png")
	writePNG(t, path, 1, 1)

	rec := &recorder{}
	tr := NewTracker(context.Background(), "", newManualFetcher(), rec.publish)
	tr.Resolve(2, parse(t, `// <image url="file://`+filepath.ToSlash(path)+`"/>`))
	if out := rec.last().out; out.Kind != Ready || out.Path != path {
		t.Fatalf("unexpected outcome %+v", out)
	}
}

func TestMissingLocalFile(t *testing.T) {
	rec := &recorder{}
	tr := NewTracker(context.Background(), t.TempDir(), newManualFetcher(), rec.publish)
	tr.Resolve(1, parse(t, `// <image url="nope.png"/>`))

	out := rec.last().out
	if out.Kind != Failed || out.Diagnostic.Code != diag.ResLocal {
		t.Fatalf("expected local error, got %+v", out)
	}
	r, _ := tr.Lookup(1)
	if r.Status != StatusError {
		t.Fatalf("record status %v", r.Status)
	}
}

func TestCorruptLocalFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.png"), []byte("nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	rec := &recorder{}
	tr := NewTracker(context.Background(), dir, newManualFetcher(), rec.publish)
	tr.Resolve(0, parse(t, `// <image url="bad.png"/>`))

	out := rec.last().out
	if out.Diagnostic.Code != diag.ResDecode {
		t.Fatalf("expected decode error, got %+v", out)
	}
	if !bytes.Contains([]byte(out.Message()), []byte("corrupt, invalid or unsupported")) {
		t.Fatalf("missing hint in %q", out.Message())
	}
}

func TestRemoteLoadingThenReady(t *testing.T) {
	store, err := imgcache.OpenStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 7, 3))); err != nil {
		t.Fatal(err)
	}
	var calls int
	var mu sync.Mutex
	transport := fetch.TransportFunc(func(ctx context.Context, url string) ([]byte, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return buf.Bytes(), nil
	})
	coord := fetch.NewCoordinator(context.Background(), transport, store, imgcache.NewCache())

	rec := &recorder{}
	tr := NewTracker(context.Background(), "", coord, rec.publish)
	const url = "https://example.test/meme.png"
	tr.Resolve(4, parse(t, `// <image url="`+url+`" scale="2"/>`))
	if err := tr.WaitIdle(context.Background()); err != nil {
		t.Fatal(err)
	}

	kinds := rec.kinds()
	if len(kinds) != 2 || kinds[0] != Loading || kinds[1] != Ready {
		t.Fatalf("unexpected outcomes %v", kinds)
	}
	out := rec.last().out
	if out.Scale != 2 || out.Width != 7 {
		t.Fatalf("unexpected ready outcome %+v", out)
	}
	if p, ok := coord.Cache().TryGet(url); !ok || p != out.Path {
		t.Fatalf("cache not populated: %q %v", p, ok)
	}

	// identical pass is a no-op
	tr.Resolve(4, parse(t, `// <image url="`+url+`" scale="2"/>`))
	tr.Resolve(4, parse(t, `// <image url="`+url+`" scale="2"/>`))
	if len(rec.kinds()) != 2 || calls != 1 {
		t.Fatalf("repeat pass changed state: %v calls=%d", rec.kinds(), calls)
	}
}

func TestScaleChangeKeepsReadyImage(t *testing.T) {
	f := newManualFetcher()
	rec := &recorder{}
	tr := NewTracker(context.Background(), "", f, rec.publish)
	dir := t.TempDir()
	path := filepath.Join(dir, "x.png")
	writePNG(t, path, 2, 2)

	const url = "https://example.test/x.png"
	tr.Resolve(0, parse(t, `// <image url="`+url+`"/>`))
	f.complete(url, fetch.Result{Path: path})

	tr.Resolve(0, parse(t, `// <image url="`+url+`" scale="3"/>`))
	out := rec.last().out
	if out.Kind != Ready || out.Scale != 3 || out.Path != path {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if f.Count() != 1 {
		t.Fatalf("scale change refetched: %d requests", f.Count())
	}
}

func TestScaleChangeWhileLoading(t *testing.T) {
	f := newManualFetcher()
	rec := &recorder{}
	tr := NewTracker(context.Background(), "", f, rec.publish)
	path := filepath.Join(t.TempDir(), "y.png")
	writePNG(t, path, 2, 2)

	const url = "https://example.test/y.png"
	tr.Resolve(0, parse(t, `// <image url="`+url+`"/>`))
	tr.Resolve(0, parse(t, `// <image url="`+url+`" scale="4"/>`))
	f.complete(url, fetch.Result{Path: path})

	if out := rec.last().out; out.Kind != Ready || out.Scale != 4 {
		t.Fatalf("completion did not use new scale: %+v", out)
	}
}

func TestCompletionWithMissingFileIsLocalError(t *testing.T) {
	f := newManualFetcher()
	rec := &recorder{}
	tr := NewTracker(context.Background(), "", f, rec.publish)

	const url = "https://example.test/evicted.png"
	tr.Resolve(2, parse(t, `// <image url="`+url+`"/>`))
	f.complete(url, fetch.Result{Path: filepath.Join(t.TempDir(), "gone.png")})

	out := rec.last().out
	if out.Kind != Failed || out.Diagnostic.Code != diag.ResLocal {
		t.Fatalf("expected local error, got %+v", out)
	}
	if text := out.Diagnostic.Text(); !strings.HasPrefix(text, "Trouble loading image") {
		t.Fatalf("unexpected diagnostic text %q", text)
	}
	if r, _ := tr.Lookup(2); r.Status != StatusError {
		t.Fatalf("record status %v", r.Status)
	}
}

func TestStaleCompletionDiscarded(t *testing.T) {
	f := newManualFetcher()
	rec := &recorder{}
	tr := NewTracker(context.Background(), "", f, rec.publish)
	path := filepath.Join(t.TempDir(), "z.png")
	writePNG(t, path, 2, 2)

	tr.Resolve(0, parse(t, `// <image url="https://example.test/a.png"/>`))
	tr.Resolve(0, parse(t, `// <image url="https://example.test/b.png"/>`))

	f.complete("https://example.test/a.png", fetch.Result{Path: path})
	r, _ := tr.Lookup(0)
	if r.Status != StatusLoading || r.Source != "https://example.test/b.png" {
		t.Fatalf("stale completion applied: %+v", r)
	}

	f.complete("https://example.test/b.png", fetch.Result{Path: path})
	r, _ = tr.Lookup(0)
	if r.Status != StatusReady {
		t.Fatalf("fresh completion not applied: %+v", r)
	}
	if err := tr.WaitIdle(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestCompletionAfterRemovalDiscarded(t *testing.T) {
	f := newManualFetcher()
	rec := &recorder{}
	tr := NewTracker(context.Background(), "", f, rec.publish)
	const url = "https://example.test/gone.png"

	tr.Resolve(9, parse(t, `// <image url="`+url+`"/>`))
	tr.Resolve(9, nil)
	f.complete(url, fetch.Result{Path: "/nowhere.png"})

	kinds := rec.kinds()
	if len(kinds) != 2 || kinds[0] != Loading || kinds[1] != Cleared {
		t.Fatalf("unexpected outcomes %v", kinds)
	}
	if tr.Len() != 0 {
		t.Fatal("record resurrected")
	}
}

func TestMalformedDirectiveDoesNotFetch(t *testing.T) {
	f := newManualFetcher()
	rec := &recorder{}
	tr := NewTracker(context.Background(), "", f, rec.publish)

	_, err := directive.Parse(dialect.C, `// <image url="https://x.test/a.png" scale="-1"/>`)
	if err == nil {
		t.Fatal("expected parse error")
	}
	tr.Fail(2, err)
	tr.Fail(2, err)

	if f.Count() != 0 {
		t.Fatal("parse error triggered a fetch")
	}
	kinds := rec.kinds()
	if len(kinds) != 1 || kinds[0] != Failed {
		t.Fatalf("unexpected outcomes %v", kinds)
	}
	out := rec.last().out
	if out.Diagnostic.Code != diag.DirMalformed {
		t.Fatalf("unexpected code %v", out.Diagnostic.Code)
	}
	if got := out.Message(); len(got) < 27 || got[:27] != "Problem with comment format" {
		t.Fatalf("unexpected message %q", got)
	}

	// fixing the directive starts a fresh resolution
	tr.Resolve(2, parse(t, `// <image url="https://x.test/a.png"/>`))
	if f.Count() != 1 || rec.last().out.Kind != Loading {
		t.Fatalf("fix did not start resolution: %v", rec.kinds())
	}
}

func TestFetchFailureAndRetry(t *testing.T) {
	f := newManualFetcher()
	rec := &recorder{}
	tr := NewTracker(context.Background(), "", f, rec.publish)
	const url = "https://example.test/down.png"
	path := filepath.Join(t.TempDir(), "ok.png")
	writePNG(t, path, 1, 1)

	tr.Resolve(1, parse(t, `// <image url="`+url+`"/>`))
	f.complete(url, fetch.Result{Err: &fetch.FetchError{URL: url, Op: fetch.OpDownload, Err: errors.New("timeout")}})

	out := rec.last().out
	if out.Kind != Failed || out.Diagnostic.Code != diag.ResFetch {
		t.Fatalf("expected fetch error, got %+v", out)
	}

	if n := tr.RetryFailed(); n != 1 {
		t.Fatalf("expected 1 retry, got %d", n)
	}
	f.complete(url, fetch.Result{Path: path})
	if out := rec.last().out; out.Kind != Ready {
		t.Fatalf("retry did not recover: %+v", out)
	}
	if f.Count() != 2 {
		t.Fatalf("expected 2 requests, got %d", f.Count())
	}
}

func TestShiftedLineResolvedFresh(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"), 1, 1)
	rec := &recorder{}
	tr := NewTracker(context.Background(), dir, newManualFetcher(), rec.publish)

	line := `// <image url="a.png"/>`
	tr.Resolve(3, parse(t, line))

	// a line inserted above moves the directive from 3 to 4
	tr.Resolve(3, nil)
	tr.Resolve(4, parse(t, line))

	snap := tr.Snapshot()
	if len(snap) != 1 || snap[0].Line != 4 || snap[0].Status != StatusReady {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	kinds := rec.kinds()
	if len(kinds) != 3 || kinds[1] != Cleared || kinds[2] != Ready {
		t.Fatalf("unexpected outcomes %v", kinds)
	}
}

func TestReset(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"), 1, 1)
	rec := &recorder{}
	tr := NewTracker(context.Background(), dir, newManualFetcher(), rec.publish)
	tr.Resolve(5, parse(t, `// <image url="a.png"/>`))
	tr.Resolve(1, parse(t, `// <image url="a.png"/>`))

	tr.Reset()
	if tr.Len() != 0 {
		t.Fatal("records survived reset")
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	tail := rec.events[len(rec.events)-2:]
	if tail[0].line != 1 || tail[1].line != 5 || tail[0].out.Kind != Cleared {
		t.Fatalf("unexpected reset events %+v", tail)
	}
}

func TestIsRemote(t *testing.T) {
	tests := []struct {
		src  string
		want bool
	}{
		{"https://x.test/a.png", true},
		{"HTTP://x.test/a.png", true},
		{"file:///tmp/a.png", false},
		{"img/a.png", false},
		{"/abs/a.png", false},
		{"http:/broken", false},
	}
	for _, tc := range tests {
		if got := IsRemote(tc.src); got != tc.want {
			t.Errorf("IsRemote(%q) = %v, want %v", tc.src, got, tc.want)
		}
	}
}
